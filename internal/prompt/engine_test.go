package prompt

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftdesk/craftdesk/internal/chat/chattest"
	"github.com/craftdesk/craftdesk/internal/config"
	"github.com/craftdesk/craftdesk/internal/models"
	"github.com/craftdesk/craftdesk/internal/repository/repositorytest"
)

type engineFixture struct {
	engine    *Engine
	sessions  *repositorytest.Prompts
	tickets   *repositorytest.Tickets
	platform  *chattest.Fake
	finalized []string
}

func newEngineFixture(t *testing.T, cfg *config.Config) *engineFixture {
	t.Helper()
	f := &engineFixture{
		sessions: repositorytest.NewPrompts(),
		tickets:  repositorytest.NewTickets(),
		platform: chattest.New(),
	}
	f.platform.AddChannel("chan-ticket", "support-1-alice", "")
	f.engine = NewEngine(cfg, f.sessions, f.tickets, f.platform)
	f.engine.OnFinalize(func(_ context.Context, ticket *models.Ticket, _ *models.PromptSession) error {
		f.finalized = append(f.finalized, ticket.ID)
		return nil
	})
	return f
}

func (f *engineFixture) seedTicket(t *testing.T, typ models.TicketType) *models.Ticket {
	t.Helper()
	row := &models.Ticket{
		Type:      typ,
		GuildID:   "guild-1",
		ChannelID: "chan-ticket",
		AuthorID:  "user-author",
		Pending:   true,
	}
	require.NoError(t, f.tickets.Create(row))
	return row
}

func supportConfig(questions ...config.Question) *config.Config {
	return &config.Config{
		Prompts: config.PromptsConfig{Support: questions},
	}
}

func TestBeginRendersFirstQuestion(t *testing.T) {
	f := newEngineFixture(t, supportConfig(
		config.Question{Type: config.QuestionText, Label: "Describe your issue"},
	))
	row := f.seedTicket(t, models.TicketSupport)

	session, err := f.engine.Begin(context.Background(), row)
	require.NoError(t, err)
	require.NotEmpty(t, session.MessageID)

	last := f.platform.LastSent()
	require.NotNil(t, last)
	assert.Equal(t, "Describe your issue", last.Message.Title)
	assert.Equal(t, session.MessageID, last.MessageID)
}

func TestSkipGateOnPreviousAnswer(t *testing.T) {
	f := newEngineFixture(t, supportConfig(
		config.Question{Type: config.QuestionBoolean, Label: "Is this urgent?"},
		config.Question{
			Type:   config.QuestionText,
			Label:  "What is the deadline?",
			ShowIf: &config.ShowIf{Label: "Is this urgent?", Values: []string{"Yes"}},
		},
		config.Question{Type: config.QuestionText, Label: "Anything else?"},
	))
	row := f.seedTicket(t, models.TicketSupport)

	session, err := f.engine.Begin(context.Background(), row)
	require.NoError(t, err)

	// Answering "No" must skip the gated question entirely.
	require.NoError(t, f.engine.SubmitButton(context.Background(), session, "user-author", "chan-ticket", "newTicket-boolean-no"))
	assert.Equal(t, 2, session.CurrentQuestionIdx)
	assert.Equal(t, "Anything else?", f.platform.Edited[len(f.platform.Edited)-1].Message.Title)

	require.NoError(t, f.engine.SubmitMessage(context.Background(), session, "user-author", "chan-ticket", "no", nil))
	require.Len(t, f.finalized, 1)

	responses := session.Responses()
	require.Len(t, responses, 2)
	assert.Equal(t, "Is this urgent?", responses[0].Label)
	assert.Equal(t, "No", responses[0].Value)
	assert.Equal(t, "Anything else?", responses[1].Label)
}

func TestSkipGatePassesOnMatchingAnswer(t *testing.T) {
	f := newEngineFixture(t, supportConfig(
		config.Question{Type: config.QuestionBoolean, Label: "Is this urgent?"},
		config.Question{
			Type:   config.QuestionText,
			Label:  "What is the deadline?",
			ShowIf: &config.ShowIf{Label: "Is this urgent?", Values: []string{"Yes"}},
		},
	))
	row := f.seedTicket(t, models.TicketSupport)

	session, err := f.engine.Begin(context.Background(), row)
	require.NoError(t, err)

	require.NoError(t, f.engine.SubmitButton(context.Background(), session, "user-author", "chan-ticket", "newTicket-boolean-yes"))
	assert.Equal(t, 1, session.CurrentQuestionIdx)
	assert.Empty(t, f.finalized)
	assert.Equal(t, "What is the deadline?", f.platform.Edited[len(f.platform.Edited)-1].Message.Title)
}

func TestForwardAndSelfReferencesAlwaysSkip(t *testing.T) {
	f := newEngineFixture(t, supportConfig(
		config.Question{
			Type:   config.QuestionText,
			Label:  "Self gated",
			ShowIf: &config.ShowIf{Label: "Self gated", Values: []string{"anything"}},
		},
		config.Question{
			Type:   config.QuestionText,
			Label:  "Forward gated",
			ShowIf: &config.ShowIf{Label: "Later question", Values: []string{"anything"}},
		},
		config.Question{
			Type:   config.QuestionText,
			Label:  "Dangling gated",
			ShowIf: &config.ShowIf{Label: "No such question", Values: []string{"anything"}},
		},
		config.Question{Type: config.QuestionText, Label: "Later question"},
	))
	row := f.seedTicket(t, models.TicketSupport)

	session, err := f.engine.Begin(context.Background(), row)
	require.NoError(t, err)

	// All three gated questions are skipped; the cursor lands on the
	// only answerable one.
	assert.Equal(t, 3, session.CurrentQuestionIdx)
	assert.Equal(t, "Later question", f.platform.LastSent().Message.Title)
}

func TestFinalizeFiresOnce(t *testing.T) {
	f := newEngineFixture(t, supportConfig(
		config.Question{Type: config.QuestionText, Label: "Only question"},
	))
	row := f.seedTicket(t, models.TicketSupport)

	session, err := f.engine.Begin(context.Background(), row)
	require.NoError(t, err)

	require.NoError(t, f.engine.SubmitMessage(context.Background(), session, "user-author", "chan-ticket", "hello", nil))
	require.Len(t, f.finalized, 1)
	assert.True(t, session.Done)
	assert.Empty(t, session.MessageID)

	// A redundant event after completion must not re-enter the
	// finalizer.
	require.NoError(t, f.engine.SubmitMessage(context.Background(), session, "user-author", "chan-ticket", "again", nil))
	require.NoError(t, f.engine.Advance(context.Background(), session))
	assert.Len(t, f.finalized, 1)
}

func TestSubmitGuardRejectsOtherUsersAndChannels(t *testing.T) {
	f := newEngineFixture(t, supportConfig(
		config.Question{Type: config.QuestionText, Label: "Only question"},
	))
	row := f.seedTicket(t, models.TicketSupport)

	session, err := f.engine.Begin(context.Background(), row)
	require.NoError(t, err)

	require.NoError(t, f.engine.SubmitMessage(context.Background(), session, "user-other", "chan-ticket", "hi", nil))
	require.NoError(t, f.engine.SubmitMessage(context.Background(), session, "user-author", "chan-elsewhere", "hi", nil))
	assert.Equal(t, 0, session.CurrentQuestionIdx)
	assert.Empty(t, f.finalized)
}

func TestTextValidationMessages(t *testing.T) {
	f := newEngineFixture(t, supportConfig(
		config.Question{Type: config.QuestionText, Label: "Describe", Min: 10, Max: 20},
	))
	row := f.seedTicket(t, models.TicketSupport)

	session, err := f.engine.Begin(context.Background(), row)
	require.NoError(t, err)

	require.NoError(t, f.engine.SubmitMessage(context.Background(), session, "user-author", "chan-ticket", "", nil))
	assert.Equal(t, "Please answer with a text message.", f.platform.LastSent().Message.Body)
	assert.Equal(t, 0, session.CurrentQuestionIdx)
	assert.NotEmpty(t, session.ErrorMessageID)

	require.NoError(t, f.engine.SubmitMessage(context.Background(), session, "user-author", "chan-ticket", "short", nil))
	assert.Equal(t, "Your answer must be at least 10 characters long.", f.platform.LastSent().Message.Body)

	require.NoError(t, f.engine.SubmitMessage(context.Background(), session, "user-author", "chan-ticket", strings.Repeat("x", 30), nil))
	assert.Equal(t, "Your answer must be at most 20 characters long.", f.platform.LastSent().Message.Body)

	require.NoError(t, f.engine.SubmitMessage(context.Background(), session, "user-author", "chan-ticket", "long enough now", nil))
	assert.Empty(t, session.ErrorMessageID)
	require.Len(t, f.finalized, 1)
}

func TestNumberValidation(t *testing.T) {
	f := newEngineFixture(t, supportConfig(
		config.Question{Type: config.QuestionNumber, Label: "How many?", Min: 1, Max: 10},
	))
	row := f.seedTicket(t, models.TicketSupport)

	session, err := f.engine.Begin(context.Background(), row)
	require.NoError(t, err)

	require.NoError(t, f.engine.SubmitMessage(context.Background(), session, "user-author", "chan-ticket", "a few", nil))
	assert.Equal(t, "Please answer with a number.", f.platform.LastSent().Message.Body)

	require.NoError(t, f.engine.SubmitMessage(context.Background(), session, "user-author", "chan-ticket", "99", nil))
	assert.Equal(t, "Please answer with a number no higher than 10.", f.platform.LastSent().Message.Body)

	require.NoError(t, f.engine.SubmitMessage(context.Background(), session, "user-author", "chan-ticket", "5", nil))
	require.Len(t, f.finalized, 1)
	assert.Equal(t, "5", session.Responses()[0].Value)
}

func TestBudgetQuoteSentinel(t *testing.T) {
	f := newEngineFixture(t, supportConfig(
		config.Question{Type: config.QuestionBudget, Label: "Budget?", Min: 50},
	))
	row := f.seedTicket(t, models.TicketSupport)

	session, err := f.engine.Begin(context.Background(), row)
	require.NoError(t, err)

	require.NoError(t, f.engine.SubmitMessage(context.Background(), session, "user-author", "chan-ticket", "cheap", nil))
	assert.Equal(t, `Please answer with a number, or "quote" to request a quote.`, f.platform.LastSent().Message.Body)

	require.NoError(t, f.engine.SubmitMessage(context.Background(), session, "user-author", "chan-ticket", "10", nil))
	assert.Equal(t, "Please answer with a budget of at least 50.", f.platform.LastSent().Message.Body)

	// "quote" bypasses the numeric bounds, case-insensitively and with
	// currency punctuation stripped.
	require.NoError(t, f.engine.SubmitMessage(context.Background(), session, "user-author", "chan-ticket", "$QuOtE", nil))
	require.Len(t, f.finalized, 1)
	assert.Equal(t, "$QuOtE", session.Responses()[0].Value)
}

func TestBudgetAcceptsFormattedNumber(t *testing.T) {
	f := newEngineFixture(t, supportConfig(
		config.Question{Type: config.QuestionBudget, Label: "Budget?"},
	))
	row := f.seedTicket(t, models.TicketSupport)

	session, err := f.engine.Begin(context.Background(), row)
	require.NoError(t, err)

	require.NoError(t, f.engine.SubmitMessage(context.Background(), session, "user-author", "chan-ticket", "$1,200", nil))
	require.Len(t, f.finalized, 1)
}

func TestNumberSmallValueBoundStoresRawAnswer(t *testing.T) {
	// Max bounds the numeric value, not the answer's length: a padded
	// "  1" against Max 2 must be accepted and stored verbatim.
	f := newEngineFixture(t, supportConfig(
		config.Question{Type: config.QuestionNumber, Label: "How many?", Min: 1, Max: 2},
	))
	row := f.seedTicket(t, models.TicketSupport)

	session, err := f.engine.Begin(context.Background(), row)
	require.NoError(t, err)

	require.NoError(t, f.engine.SubmitMessage(context.Background(), session, "user-author", "chan-ticket", "  1", nil))
	require.Len(t, f.finalized, 1)
	assert.Equal(t, "  1", session.Responses()[0].Value)
}

func TestNumberSeparatorsSurviveStorage(t *testing.T) {
	f := newEngineFixture(t, supportConfig(
		config.Question{Type: config.QuestionNumber, Label: "How many?", Max: 3},
		config.Question{
			Type:   config.QuestionText,
			Label:  "Which ones?",
			ShowIf: &config.ShowIf{Label: "How many?", Values: []string{"0,,2"}},
		},
	))
	row := f.seedTicket(t, models.TicketSupport)

	session, err := f.engine.Begin(context.Background(), row)
	require.NoError(t, err)

	// "0,,2" sanitizes to 2 for validation but is stored as typed, so
	// the gate matching the raw value stays reachable.
	require.NoError(t, f.engine.SubmitMessage(context.Background(), session, "user-author", "chan-ticket", "0,,2", nil))
	assert.Equal(t, "0,,2", session.Responses()[0].Value)
	assert.Equal(t, 1, session.CurrentQuestionIdx)
	assert.Equal(t, "Which ones?", f.platform.Edited[len(f.platform.Edited)-1].Message.Title)
}

func TestBudgetSmallValueBoundStoresRawAnswer(t *testing.T) {
	f := newEngineFixture(t, supportConfig(
		config.Question{Type: config.QuestionBudget, Label: "Budget?", Max: 2},
	))
	row := f.seedTicket(t, models.TicketSupport)

	session, err := f.engine.Begin(context.Background(), row)
	require.NoError(t, err)

	require.NoError(t, f.engine.SubmitMessage(context.Background(), session, "user-author", "chan-ticket", "$ 2", nil))
	require.Len(t, f.finalized, 1)
	assert.Equal(t, "$ 2", session.Responses()[0].Value)
}

func TestTrimIgnoresSubEllipsisBounds(t *testing.T) {
	assert.Equal(t, "abcd", trim("abcd", 2))
	assert.Equal(t, "ab", trim("ab", 2))
	assert.Equal(t, "a...", trim("abcdefgh", 4))
	assert.Equal(t, "abc", trim("abc", 0))
}

func TestServiceSelectLandsOnTicket(t *testing.T) {
	cfg := &config.Config{
		Services: []config.Service{
			{ID: "logo", Name: "Logo Design"},
			{ID: "web", Name: "Web Design"},
		},
		Prompts: config.PromptsConfig{
			Commissions: []config.Question{
				{Type: config.QuestionText, Label: "Describe the work"},
			},
		},
	}
	f := newEngineFixture(t, cfg)
	row := f.seedTicket(t, models.TicketCommission)

	session, err := f.engine.Begin(context.Background(), row)
	require.NoError(t, err)

	first := f.platform.LastSent()
	require.Len(t, first.Message.Selects, 1)
	assert.Equal(t, "newTicket-selection", first.Message.Selects[0].CustomID)

	require.NoError(t, f.engine.SubmitSelect(context.Background(), session, "user-author", "chan-ticket", []string{"logo"}))

	stored, err := f.tickets.GetByID(row.ID)
	require.NoError(t, err)
	assert.Equal(t, "logo", stored.SelectedService)

	require.NoError(t, f.engine.SubmitMessage(context.Background(), session, "user-author", "chan-ticket", "A logo please", nil))
	require.Len(t, f.finalized, 1)
	responses := session.Responses()
	require.Len(t, responses, 1)
	assert.Equal(t, "Describe the work", responses[0].Label)
}

func TestOptionButtons(t *testing.T) {
	f := newEngineFixture(t, supportConfig(
		config.Question{Type: config.QuestionOptions, Label: "Pick one", Options: []string{"Red", "Green", "Blue"}},
	))
	row := f.seedTicket(t, models.TicketSupport)

	session, err := f.engine.Begin(context.Background(), row)
	require.NoError(t, err)

	rendered := f.platform.LastSent()
	require.Len(t, rendered.Message.Buttons, 3)
	assert.Equal(t, "newTicket-option-0", rendered.Message.Buttons[0].CustomID)

	// Out-of-range index is ignored.
	require.NoError(t, f.engine.SubmitButton(context.Background(), session, "user-author", "chan-ticket", "newTicket-option-9"))
	assert.Equal(t, 0, session.CurrentQuestionIdx)

	require.NoError(t, f.engine.SubmitButton(context.Background(), session, "user-author", "chan-ticket", "newTicket-option-1"))
	require.Len(t, f.finalized, 1)
	assert.Equal(t, "Green", session.Responses()[0].Value)
}

func TestCancelDeletesSession(t *testing.T) {
	cfg := supportConfig(config.Question{Type: config.QuestionText, Label: "Only question"})
	cfg.Tickets.AllowPromptCancel = true
	f := newEngineFixture(t, cfg)
	row := f.seedTicket(t, models.TicketSupport)

	session, err := f.engine.Begin(context.Background(), row)
	require.NoError(t, err)
	assert.Equal(t, "newTicket-cancel", f.platform.LastSent().Message.Buttons[len(f.platform.LastSent().Message.Buttons)-1].CustomID)

	require.NoError(t, f.engine.SubmitButton(context.Background(), session, "user-author", "chan-ticket", "newTicket-cancel"))

	stored, err := f.sessions.GetByTicket(row.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)
	assert.Empty(t, f.finalized)
}

func TestLongAnswerTrimmedToMax(t *testing.T) {
	f := newEngineFixture(t, supportConfig(
		config.Question{Type: config.QuestionText, Label: "Describe"},
	))
	row := f.seedTicket(t, models.TicketSupport)

	session, err := f.engine.Begin(context.Background(), row)
	require.NoError(t, err)

	require.NoError(t, f.engine.SubmitMessage(context.Background(), session, "user-author", "chan-ticket", strings.Repeat("x", 3000), nil))
	stored := session.Responses()[0].Value
	assert.Len(t, stored, 2048)
	assert.True(t, strings.HasSuffix(stored, "..."))
}
