// Package prompt drives dynamic intake questionnaires over persisted
// sessions. The engine renders one question at a time into the ticket
// channel, validates submissions per question type, and hands the
// finished session back to the owning ticket exactly once.
package prompt

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/craftdesk/craftdesk/internal/chat"
	"github.com/craftdesk/craftdesk/internal/config"
	"github.com/craftdesk/craftdesk/internal/models"
	"github.com/craftdesk/craftdesk/internal/repository"
)

// Finalizer receives the completed session. It runs exactly once per
// session, after the session is marked done and its UI cleaned up.
type Finalizer func(ctx context.Context, ticket *models.Ticket, session *models.PromptSession) error

// Engine drives prompt sessions.
type Engine struct {
	cfg      *config.Config
	sessions repository.PromptRepository
	tickets  repository.TicketRepository
	platform chat.Platform
	finalize Finalizer
}

// NewEngine creates the prompt engine.
func NewEngine(cfg *config.Config, sessions repository.PromptRepository, tickets repository.TicketRepository, platform chat.Platform) *Engine {
	return &Engine{cfg: cfg, sessions: sessions, tickets: tickets, platform: platform}
}

// OnFinalize installs the completion hook. Set once at wiring time.
func (e *Engine) OnFinalize(fn Finalizer) {
	e.finalize = fn
}

// Begin opens a session for a ticket and renders the first question.
func (e *Engine) Begin(ctx context.Context, ticket *models.Ticket) (*models.PromptSession, error) {
	session := &models.PromptSession{
		TicketID: ticket.ID,
		GuildID:  ticket.GuildID,
		UserID:   ticket.AuthorID,
	}
	if err := e.sessions.Create(session); err != nil {
		return nil, err
	}
	if err := e.Advance(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// questionList assembles the full list for a ticket type. Commission and
// application intakes get a synthetic service selector prepended; its
// answer lands on the ticket, not in the response sequence.
func (e *Engine) questionList(t models.TicketType) []config.Question {
	switch t {
	case models.TicketCommission:
		selector := config.Question{
			Type:        config.QuestionServiceSelect,
			Label:       "Select a service",
			Description: "Which service are you commissioning?",
			SelectMenu: &config.SelectMenu{
				Placeholder: "Select a service...",
				MinValues:   1,
				MaxValues:   1,
				Options:     e.serviceOptions(false),
			},
		}
		return append([]config.Question{selector}, e.cfg.Prompts.Commissions...)

	case models.TicketApplication:
		min := e.cfg.Tickets.ApplicationMinServices
		max := e.cfg.Tickets.ApplicationMaxServices
		options := e.serviceOptions(true)
		if max > len(options) {
			max = len(options)
		}
		selector := config.Question{
			Type:        config.QuestionServiceSelect,
			Label:       "Select services",
			Description: fmt.Sprintf("Which services are you applying for? Pick between %d and %d.", min, max),
			SelectMenu: &config.SelectMenu{
				Placeholder: "Select services...",
				MinValues:   min,
				MaxValues:   max,
				Options:     options,
			},
		}
		return append([]config.Question{selector}, e.cfg.Prompts.Applications...)

	default:
		return e.cfg.Prompts.Support
	}
}

func (e *Engine) serviceOptions(skipOther bool) []config.SelectOption {
	var opts []config.SelectOption
	for _, s := range e.cfg.Services {
		if skipOther && s.Other {
			continue
		}
		opts = append(opts, config.SelectOption{Label: s.Name, Value: s.ID, Description: s.Description})
	}
	return opts
}

// Advance walks forward from the session cursor, skipping questions
// whose show_if gate does not pass, and renders the first eligible
// question. A show_if referencing a question at an equal or later index
// never passes; gated questions behind such references are always
// skipped rather than shown.
//
// When the cursor runs off the end, the session is terminal: transient
// UI is removed, the done flag is set, and the finalizer runs. The flag
// is persisted before the finalizer fires so a redundant event cannot
// re-enter it.
func (e *Engine) Advance(ctx context.Context, session *models.PromptSession) error {
	ticket, err := e.tickets.GetByID(session.TicketID)
	if err != nil {
		return err
	}
	if ticket == nil {
		return nil
	}

	questions := e.questionList(ticket.Type)
	responses := session.Responses()

	for session.CurrentQuestionIdx < len(questions) {
		q := questions[session.CurrentQuestionIdx]
		if q.ShowIf == nil {
			break
		}
		refIdx := indexByLabel(questions, q.ShowIf.Label)
		if refIdx == -1 || refIdx >= session.CurrentQuestionIdx {
			session.CurrentQuestionIdx++
			continue
		}
		answer := ""
		if refIdx < len(responses) {
			answer = responses[refIdx].Value
		}
		if answer == "" || !contains(q.ShowIf.Values, answer) {
			session.CurrentQuestionIdx++
			continue
		}
		break
	}

	if session.CurrentQuestionIdx >= len(questions) {
		return e.complete(ctx, ticket, session)
	}

	if err := e.sessions.Update(session); err != nil {
		return err
	}
	return e.render(ctx, ticket, session, questions[session.CurrentQuestionIdx])
}

func (e *Engine) complete(ctx context.Context, ticket *models.Ticket, session *models.PromptSession) error {
	if session.Done {
		return nil
	}
	if session.MessageID != "" {
		if err := e.platform.DeleteMessage(ctx, ticket.ChannelID, session.MessageID); err != nil {
			log.Printf("[prompt] failed to remove prompt message: %v", err)
		}
	}
	if session.ErrorMessageID != "" {
		if err := e.platform.DeleteMessage(ctx, ticket.ChannelID, session.ErrorMessageID); err != nil {
			log.Printf("[prompt] failed to remove error message: %v", err)
		}
	}
	session.MessageID = ""
	session.ErrorMessageID = ""
	session.Done = true
	if err := e.sessions.Update(session); err != nil {
		return err
	}
	if e.finalize == nil {
		return nil
	}
	return e.finalize(ctx, ticket, session)
}

// render draws the current question, editing the existing prompt message
// in place when there is one so the channel never shows two prompts.
func (e *Engine) render(ctx context.Context, ticket *models.Ticket, session *models.PromptSession, q config.Question) error {
	msg := chat.Message{Kind: chat.KindInfo, Title: q.Label, Body: q.Description}

	switch q.Type {
	case config.QuestionServiceSelect, config.QuestionSelectMenu:
		sm := q.SelectMenu
		sel := chat.Select{
			CustomID:    "newTicket-selection",
			Placeholder: sm.Placeholder,
			MinValues:   sm.MinValues,
			MaxValues:   sm.MaxValues,
		}
		if sel.Placeholder == "" {
			sel.Placeholder = "Select an option here..."
		}
		if sel.MinValues == 0 {
			sel.MinValues = 1
		}
		if sel.MaxValues == 0 {
			sel.MaxValues = 1
		}
		for _, opt := range sm.Options {
			value := opt.Value
			if value == "" {
				value = opt.Label
			}
			sel.Options = append(sel.Options, chat.SelectOption{Label: opt.Label, Value: value, Description: opt.Description})
		}
		msg.Selects = []chat.Select{sel}

	case config.QuestionOptions:
		for i, opt := range q.Options {
			msg.Buttons = append(msg.Buttons, chat.Button{
				CustomID: fmt.Sprintf("newTicket-option-%d", i),
				Label:    opt,
			})
		}

	case config.QuestionBoolean:
		yes, no := q.YesLabel, q.NoLabel
		if yes == "" {
			yes = "Yes"
		}
		if no == "" {
			no = "No"
		}
		msg.Buttons = []chat.Button{
			{CustomID: "newTicket-boolean-yes", Label: yes},
			{CustomID: "newTicket-boolean-no", Label: no},
		}
	}

	if e.cfg.Tickets.AllowPromptCancel {
		msg.Buttons = append(msg.Buttons, chat.Button{CustomID: "newTicket-cancel", Label: "Cancel"})
	}

	if session.MessageID != "" {
		if err := e.platform.Edit(ctx, ticket.ChannelID, session.MessageID, msg); err == nil {
			return nil
		}
		// Previous prompt message is gone; fall through and send fresh.
	}
	messageID, err := e.platform.Send(ctx, ticket.ChannelID, msg)
	if err != nil {
		return err
	}
	session.MessageID = messageID
	return e.sessions.Update(session)
}

func indexByLabel(questions []config.Question, label string) int {
	for i := range questions {
		if questions[i].Label == label {
			return i
		}
	}
	return -1
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

// trim clamps a string to max bytes, matching the storage bound applied
// to free-text answers. Bounds too small to fit the ellipsis pass the
// string through.
func trim(s string, max int) string {
	if max < 3 || len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

// Submission guard: the event must come from the session's author inside
// the session's ticket channel.
func (e *Engine) accepts(session *models.PromptSession, ticket *models.Ticket, userID, channelID string) bool {
	return session.UserID == userID &&
		session.TicketID == ticket.ID &&
		ticket.ChannelID == channelID &&
		!session.Done
}

// SubmitMessage handles free-form message input for text, number and
// budget questions. A non-empty verdict is the user-facing validation
// failure; state does not advance.
func (e *Engine) SubmitMessage(ctx context.Context, session *models.PromptSession, userID, channelID, content string, attachments []models.PromptAttachment) error {
	ticket, err := e.tickets.GetByID(session.TicketID)
	if err != nil {
		return err
	}
	if ticket == nil || !e.accepts(session, ticket, userID, channelID) {
		return nil
	}

	questions := e.questionList(ticket.Type)
	if session.CurrentQuestionIdx >= len(questions) {
		return nil
	}
	q := questions[session.CurrentQuestionIdx]
	if q.Type != config.QuestionText && q.Type != config.QuestionNumber && q.Type != config.QuestionBudget {
		return nil
	}

	if verdict := validate(q, content); verdict != "" {
		errID, err := e.platform.Send(ctx, channelID, chat.Message{Kind: chat.KindError, Body: verdict})
		if err != nil {
			return err
		}
		session.ErrorMessageID = errID
		return e.sessions.Update(session)
	}

	if session.ErrorMessageID != "" {
		if err := e.platform.DeleteMessage(ctx, channelID, session.ErrorMessageID); err != nil {
			log.Printf("[prompt] failed to remove error message: %v", err)
		}
		session.ErrorMessageID = ""
	}

	if q.Type == config.QuestionText && len(attachments) > 0 {
		session.AppendAttachments(attachments)
	}

	// Only text questions carry a length bound; for number and budget
	// questions Max bounds the value, so the raw answer is stored as-is.
	stored := content
	if q.Type == config.QuestionText {
		max := q.Max
		if max == 0 {
			max = 2048
		}
		stored = trim(content, max)
	}
	session.AppendResponse(q.Label, stored)
	session.CurrentQuestionIdx++
	if err := e.sessions.Update(session); err != nil {
		return err
	}
	return e.Advance(ctx, session)
}

// SubmitButton handles option and boolean button clicks, plus the
// cancel button when enabled.
func (e *Engine) SubmitButton(ctx context.Context, session *models.PromptSession, userID, channelID, customID string) error {
	ticket, err := e.tickets.GetByID(session.TicketID)
	if err != nil {
		return err
	}
	if ticket == nil || !e.accepts(session, ticket, userID, channelID) {
		return nil
	}

	if customID == "newTicket-cancel" && e.cfg.Tickets.AllowPromptCancel {
		return e.cancel(ctx, ticket, session)
	}

	questions := e.questionList(ticket.Type)
	if session.CurrentQuestionIdx >= len(questions) {
		return nil
	}
	q := questions[session.CurrentQuestionIdx]

	switch {
	case strings.HasPrefix(customID, "newTicket-boolean-"):
		if q.Type != config.QuestionBoolean {
			return nil
		}
		answer := "No"
		if strings.HasSuffix(customID, "-yes") {
			answer = "Yes"
		}
		session.AppendResponse(q.Label, answer)

	case strings.HasPrefix(customID, "newTicket-option-"):
		if q.Type != config.QuestionOptions {
			return nil
		}
		idx, err := strconv.Atoi(strings.TrimPrefix(customID, "newTicket-option-"))
		if err != nil || idx < 0 || idx >= len(q.Options) {
			return nil
		}
		session.AppendResponse(q.Label, q.Options[idx])

	default:
		return nil
	}

	session.CurrentQuestionIdx++
	if err := e.sessions.Update(session); err != nil {
		return err
	}
	return e.Advance(ctx, session)
}

// SubmitSelect handles select-menu choices. Service selections land on
// the ticket row instead of the response sequence.
func (e *Engine) SubmitSelect(ctx context.Context, session *models.PromptSession, userID, channelID string, values []string) error {
	ticket, err := e.tickets.GetByID(session.TicketID)
	if err != nil {
		return err
	}
	if ticket == nil || !e.accepts(session, ticket, userID, channelID) {
		return nil
	}

	questions := e.questionList(ticket.Type)
	if session.CurrentQuestionIdx >= len(questions) {
		return nil
	}
	q := questions[session.CurrentQuestionIdx]
	if q.Type != config.QuestionServiceSelect && q.Type != config.QuestionSelectMenu {
		return nil
	}
	if len(values) == 0 {
		return nil
	}

	if q.Type == config.QuestionServiceSelect {
		ticket.SelectedService = strings.Join(values, ", ")
		if err := e.tickets.Update(ticket); err != nil {
			return err
		}
	} else {
		session.AppendResponse(q.Label, strings.Join(values, ", "))
	}

	session.CurrentQuestionIdx++
	if err := e.sessions.Update(session); err != nil {
		return err
	}
	return e.Advance(ctx, session)
}

func (e *Engine) cancel(ctx context.Context, ticket *models.Ticket, session *models.PromptSession) error {
	if session.MessageID != "" {
		if err := e.platform.DeleteMessage(ctx, ticket.ChannelID, session.MessageID); err != nil {
			log.Printf("[prompt] failed to remove prompt message: %v", err)
		}
	}
	return e.sessions.Delete(session.ID)
}

// validate applies the per-type input rules and returns the user-facing
// failure message, or empty on success.
func validate(q config.Question, content string) string {
	switch q.Type {
	case config.QuestionText:
		if content == "" {
			return "Please answer with a text message."
		}
		if q.Min != 0 && len(content) < q.Min {
			return fmt.Sprintf("Your answer must be at least %d characters long.", q.Min)
		}
		if q.Max != 0 && len(content) > q.Max {
			return fmt.Sprintf("Your answer must be at most %d characters long.", q.Max)
		}

	case config.QuestionNumber:
		sanitized := strings.ReplaceAll(content, ",", "")
		n, err := strconv.Atoi(strings.TrimSpace(sanitized))
		if err != nil {
			return "Please answer with a number."
		}
		if q.Min != 0 && n < q.Min {
			return fmt.Sprintf("Please answer with a number no lower than %d.", q.Min)
		}
		if q.Max != 0 && n > q.Max {
			return fmt.Sprintf("Please answer with a number no higher than %d.", q.Max)
		}

	case config.QuestionBudget:
		sanitized := strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(content, "$", ""), ",", ""))
		if strings.EqualFold(sanitized, config.BudgetQuoteSentinel) {
			return ""
		}
		n, err := strconv.Atoi(sanitized)
		if err != nil {
			return fmt.Sprintf("Please answer with a number, or %q to request a quote.", config.BudgetQuoteSentinel)
		}
		if q.Min != 0 && n < q.Min {
			return fmt.Sprintf("Please answer with a budget of at least %d.", q.Min)
		}
		if q.Max != 0 && n > q.Max {
			return fmt.Sprintf("Please answer with a budget of at most %d.", q.Max)
		}
	}
	return ""
}
