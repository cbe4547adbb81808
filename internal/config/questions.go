package config

import "fmt"

// QuestionType enumerates the questionnaire question kinds.
type QuestionType string

const (
	QuestionServiceSelect QuestionType = "service-select"
	QuestionSelectMenu    QuestionType = "select-menu"
	QuestionOptions       QuestionType = "option-buttons"
	QuestionText          QuestionType = "text"
	QuestionNumber        QuestionType = "number"
	QuestionBudget        QuestionType = "budget"
	QuestionBoolean       QuestionType = "boolean"
)

// BudgetQuoteSentinel bypasses numeric validation on budget questions:
// the customer may answer "quote" to request a price instead of naming
// one.
const BudgetQuoteSentinel = "quote"

// SelectOption is one entry of a select menu.
type SelectOption struct {
	Label       string `mapstructure:"label" yaml:"label"`
	Value       string `mapstructure:"value" yaml:"value"`
	Description string `mapstructure:"description" yaml:"description"`
}

// SelectMenu configures select-menu style questions.
type SelectMenu struct {
	Placeholder string         `mapstructure:"placeholder" yaml:"placeholder"`
	MinValues   int            `mapstructure:"min_values" yaml:"min_values"`
	MaxValues   int            `mapstructure:"max_values" yaml:"max_values"`
	Options     []SelectOption `mapstructure:"options" yaml:"options"`
}

// ShowIf gates a question on a previous answer. A reference to a
// question at an equal or later index never matches and the gated
// question is always skipped; this mirrors the long-standing behavior
// configs depend on.
type ShowIf struct {
	Label  string   `mapstructure:"label" yaml:"label"`
	Values []string `mapstructure:"values" yaml:"values"`
}

// Question is one questionnaire entry.
type Question struct {
	Type        QuestionType `mapstructure:"type" yaml:"type"`
	Label       string       `mapstructure:"label" yaml:"label"`
	Description string       `mapstructure:"description" yaml:"description"`

	// Text/number/budget bounds. For text they are length bounds, for
	// number/budget value bounds. Zero means unbounded.
	Min int `mapstructure:"min" yaml:"min"`
	Max int `mapstructure:"max" yaml:"max"`

	// Options for option-buttons questions.
	Options []string `mapstructure:"options" yaml:"options"`

	// SelectMenu data for select-menu and service-select questions.
	SelectMenu *SelectMenu `mapstructure:"select_menu" yaml:"select_menu"`

	// Boolean labels.
	YesLabel string `mapstructure:"yes_label" yaml:"yes_label"`
	NoLabel  string `mapstructure:"no_label" yaml:"no_label"`

	ShowIf *ShowIf `mapstructure:"show_if" yaml:"show_if"`
}

// Validate checks per-type requirements.
func (q *Question) Validate() error {
	if q.Label == "" {
		return fmt.Errorf("question label is required")
	}
	switch q.Type {
	case QuestionServiceSelect:
		// Options are injected from the configured services at runtime.
	case QuestionSelectMenu:
		if q.SelectMenu == nil || len(q.SelectMenu.Options) == 0 {
			return fmt.Errorf("select-menu question %q requires select_menu options", q.Label)
		}
	case QuestionOptions:
		if len(q.Options) == 0 {
			return fmt.Errorf("option-buttons question %q requires options", q.Label)
		}
	case QuestionText, QuestionNumber, QuestionBudget:
		if q.Min < 0 || q.Max < 0 {
			return fmt.Errorf("question %q: min/max must not be negative", q.Label)
		}
		if q.Max != 0 && q.Min > q.Max {
			return fmt.Errorf("question %q: min exceeds max", q.Label)
		}
	case QuestionBoolean:
	default:
		return fmt.Errorf("question %q: unknown type %q", q.Label, q.Type)
	}
	if q.ShowIf != nil {
		if q.ShowIf.Label == "" || len(q.ShowIf.Values) == 0 {
			return fmt.Errorf("question %q: show_if requires label and values", q.Label)
		}
	}
	return nil
}
