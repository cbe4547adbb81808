// Package config loads and validates the service configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/craftdesk/craftdesk/internal/models"
)

// Config is the root configuration object.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Tickets  TicketsConfig  `mapstructure:"tickets"`
	Settings GuildSettings  `mapstructure:"settings"`
	Prompts  PromptsConfig  `mapstructure:"prompts"`
	Services []Service      `mapstructure:"services"`
	Sweeps   SweepsConfig   `mapstructure:"sweeps"`

	// Gateways holds one raw section per gateway id. Each section is
	// validated against the gateway's declared JSON schema before the
	// adapter is activated.
	Gateways map[string]map[string]any `mapstructure:"gateways"`
}

// DatabaseConfig selects the SQL backend.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// HTTPConfig configures the callback/metrics listener.
type HTTPConfig struct {
	Listen string `mapstructure:"listen"`
}

// TicketsConfig carries the ticket lifecycle policy.
type TicketsConfig struct {
	Enabled struct {
		Commissions  bool `mapstructure:"commissions"`
		Applications bool `mapstructure:"applications"`
		Support      bool `mapstructure:"support"`
	} `mapstructure:"enabled"`

	Cooldown time.Duration `mapstructure:"cooldown"`

	Archive struct {
		Action models.ArchiveAction `mapstructure:"action"`
	} `mapstructure:"archive"`

	// ServiceCutPercent of invoice principal routed to service-cut
	// recipients on delivery acceptance; the freelancer gets the rest.
	ServiceCutPercent float64 `mapstructure:"service_cut_percent"`

	// Naming templates for ticket channels. Placeholders {type},
	// {service}, {serial} and {username} are expanded on creation and
	// on intake completion.
	Naming struct {
		Pending string `mapstructure:"pending"`
		Final   string `mapstructure:"final"`
	} `mapstructure:"naming"`

	QuotesInChannels       bool          `mapstructure:"quotes_in_channels"`
	QuoteReminderAfter     time.Duration `mapstructure:"quote_reminder_after"`
	SendQuoteReminders     bool          `mapstructure:"send_quote_reminders"`
	MentionOnCreate        bool          `mapstructure:"mention_on_create"`
	AllowPromptCancel      bool          `mapstructure:"allow_prompt_cancel"`
	ApplicationMinServices int           `mapstructure:"application_min_services"`
	ApplicationMaxServices int           `mapstructure:"application_max_services"`
}

// GuildSettings mirrors the per-guild settings row of the original
// deployment. A single section is used for all guilds the bot serves.
type GuildSettings struct {
	CommissionCategory  string `mapstructure:"commission_category"`
	ApplicationCategory string `mapstructure:"application_category"`
	SupportCategory     string `mapstructure:"support_category"`
	ClosedCategory      string `mapstructure:"closed_category"`
	QuotesCategory      string `mapstructure:"quotes_category"`
	ManagerRole         string `mapstructure:"manager_role"`
	FreelancerRole      string `mapstructure:"freelancer_role"`
	ClientRole          string `mapstructure:"client_role"`
	LogChannel          string `mapstructure:"log_channel"`
}

// Service is one offered service shown in the service selector.
type Service struct {
	ID          string `mapstructure:"id"`
	Name        string `mapstructure:"name"`
	Description string `mapstructure:"description"`
	ChannelName string `mapstructure:"channel_name"`
	RoleID      string `mapstructure:"role_id"`
	Other       bool   `mapstructure:"other"`
}

// PromptsConfig holds the per-type question lists. Larger deployments
// keep the questionnaires in a standalone YAML document referenced by
// File; when set it replaces the inline lists.
type PromptsConfig struct {
	File string `mapstructure:"file"`

	Commissions  []Question `mapstructure:"commissions" yaml:"commissions"`
	Applications []Question `mapstructure:"applications" yaml:"applications"`
	Support      []Question `mapstructure:"support" yaml:"support"`
}

// SweepsConfig sets the periodic sweep cadence.
type SweepsConfig struct {
	PaymentPoll    time.Duration `mapstructure:"payment_poll"`
	ArchiveTimers  time.Duration `mapstructure:"archive_timers"`
	Deadlines      time.Duration `mapstructure:"deadlines"`
	QuoteReminders time.Duration `mapstructure:"quote_reminders"`
	Cooldowns      time.Duration `mapstructure:"cooldowns"`
}

// Load reads the config file at path (YAML) with env overrides
// (CRAFTDESK_ prefix) and validates it.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("CRAFTDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.Prompts.File != "" {
		path := cfg.Prompts.File
		if !filepath.IsAbs(path) {
			path = filepath.Join(filepath.Dir(v.ConfigFileUsed()), path)
		}
		prompts, err := LoadQuestionsFile(path)
		if err != nil {
			return nil, err
		}
		prompts.File = cfg.Prompts.File
		cfg.Prompts = *prompts
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadQuestionsFile parses a standalone questionnaire document.
func LoadQuestionsFile(path string) (*PromptsConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read questions file: %w", err)
	}
	var prompts PromptsConfig
	if err := yaml.Unmarshal(raw, &prompts); err != nil {
		return nil, fmt.Errorf("failed to parse questions file %s: %w", path, err)
	}
	return &prompts, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.dsn", "craftdesk.db")
	v.SetDefault("http.listen", ":8137")
	v.SetDefault("tickets.enabled.commissions", true)
	v.SetDefault("tickets.enabled.applications", true)
	v.SetDefault("tickets.enabled.support", true)
	v.SetDefault("tickets.cooldown", "5m")
	v.SetDefault("tickets.archive.action", string(models.ArchiveCategorize))
	v.SetDefault("tickets.service_cut_percent", 15)
	v.SetDefault("tickets.naming.pending", "{type}-{serial}-{username}")
	v.SetDefault("tickets.naming.final", "{service}-{serial}")
	v.SetDefault("tickets.quote_reminder_after", "72h")
	v.SetDefault("tickets.application_min_services", 1)
	v.SetDefault("tickets.application_max_services", 3)
	v.SetDefault("sweeps.payment_poll", "1m")
	v.SetDefault("sweeps.archive_timers", "30s")
	v.SetDefault("sweeps.deadlines", "1m")
	v.SetDefault("sweeps.quote_reminders", "15m")
	v.SetDefault("sweeps.cooldowns", "10m")
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Tickets.Archive.Action {
	case models.ArchiveDelete, models.ArchiveCategorize, models.ArchiveNone, models.ArchiveHalt:
	default:
		return fmt.Errorf("tickets.archive.action: unknown action %q", c.Tickets.Archive.Action)
	}
	if c.Tickets.ServiceCutPercent < 0 || c.Tickets.ServiceCutPercent > 100 {
		return fmt.Errorf("tickets.service_cut_percent must be within [0,100], got %v", c.Tickets.ServiceCutPercent)
	}
	if c.Tickets.Cooldown < 0 {
		return fmt.Errorf("tickets.cooldown must not be negative")
	}
	for name, list := range map[string][]Question{
		"prompts.commissions":  c.Prompts.Commissions,
		"prompts.applications": c.Prompts.Applications,
		"prompts.support":      c.Prompts.Support,
	} {
		for i := range list {
			if err := list[i].Validate(); err != nil {
				return fmt.Errorf("%s[%d]: %w", name, i, err)
			}
		}
	}
	return nil
}

// ServiceByID looks up a configured service. Matching falls back to the
// display name because older rows stored the name, not the id.
func (c *Config) ServiceByID(id string) *Service {
	for i := range c.Services {
		if c.Services[i].ID == id || c.Services[i].Name == id {
			return &c.Services[i]
		}
	}
	return nil
}

// QuestionsFor returns the configured question list for a ticket type.
func (c *Config) QuestionsFor(t models.TicketType) []Question {
	switch t {
	case models.TicketCommission:
		return c.Prompts.Commissions
	case models.TicketApplication:
		return c.Prompts.Applications
	case models.TicketSupport:
		return c.Prompts.Support
	default:
		return nil
	}
}

// TypeEnabled reports whether the ticket type is switched on.
func (c *Config) TypeEnabled(t models.TicketType) bool {
	switch t {
	case models.TicketCommission:
		return c.Tickets.Enabled.Commissions
	case models.TicketApplication:
		return c.Tickets.Enabled.Applications
	case models.TicketSupport:
		return c.Tickets.Enabled.Support
	default:
		return false
	}
}
