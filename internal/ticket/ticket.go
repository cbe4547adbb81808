package ticket

import (
	"context"
	"fmt"

	"github.com/craftdesk/craftdesk/internal/apierrors"
	"github.com/craftdesk/craftdesk/internal/chat"
	"github.com/craftdesk/craftdesk/internal/models"
)

// Handle is the behavior attached to a ticket row. The concrete type is
// chosen once from the stored discriminator when the row is wrapped.
type Handle interface {
	// Model exposes the underlying row. Mutations go through the
	// behavior methods, not the row.
	Model() *models.Ticket

	// Start posts the welcome message and, when startIntake is set,
	// begins the questionnaire.
	Start(ctx context.Context, startIntake bool) error

	// FinalizePrompts runs when the questionnaire completes.
	FinalizePrompts(ctx context.Context, session *models.PromptSession) error

	// Archive closes the ticket. An empty action falls back to the
	// configured default.
	Archive(ctx context.Context, reason string, action models.ArchiveAction) error

	// Unarchive restores a closed ticket. Rejected when not closed.
	Unarchive(ctx context.Context) error
}

// base carries the behavior shared by all three ticket types.
type base struct {
	m *Manager
	t *models.Ticket
}

func (b *base) Model() *models.Ticket { return b.t }

// start posts the welcome message with the customer panel and archive
// buttons, persists its id, and optionally begins the questionnaire.
func (b *base) start(ctx context.Context, welcome string, startIntake bool) error {
	msg := chat.Message{
		Kind:  chat.KindSuccess,
		Title: "Welcome",
		Body:  welcome,
		Buttons: []chat.Button{
			{CustomID: "panel-" + b.t.ID, Label: "Panel"},
			{CustomID: "archive-" + b.t.ID, Label: "Archive"},
		},
	}
	if b.m.cfg.Tickets.MentionOnCreate {
		msg.Body = mention(b.t.AuthorID) + "\n" + msg.Body
	}
	msgID, err := b.m.deps.Platform.Send(ctx, b.t.ChannelID, msg)
	if err != nil {
		return fmt.Errorf("failed to send welcome message: %w", err)
	}
	b.t.WelcomeMessageID = msgID
	if err := b.m.deps.Tickets.Update(b.t); err != nil {
		return err
	}
	if startIntake {
		if _, err := b.m.deps.Engine.Begin(ctx, b.t); err != nil {
			return fmt.Errorf("failed to begin questionnaire: %w", err)
		}
	}
	return nil
}

// Archive closes the ticket and applies the channel side effect chosen
// by action: delete removes the channel, categorize strips overwrites
// and moves it to the archive category, none marks the row only, halt
// skips all channel work (used when the channel is already gone).
func (b *base) Archive(ctx context.Context, reason string, action models.ArchiveAction) error {
	if b.t.Closed {
		return apierrors.NewUserError(apierrors.CodeTicketAlreadyArchived)
	}
	if action == "" {
		action = b.m.cfg.Tickets.Archive.Action
	}

	// The questionnaire dies with the ticket.
	if session, err := b.m.deps.Prompts.GetByTicket(b.t.ID); err == nil && session != nil {
		if err := b.m.deps.Prompts.Delete(session.ID); err != nil {
			b.m.logger.Printf("[ticket] failed to delete prompt session for %s: %v", b.t.ID, err)
		}
	}

	b.t.Closed = true
	b.t.BeforeArchivedPending = b.t.Pending
	b.t.Pending = false
	if ch, err := b.m.deps.Platform.Channel(ctx, b.t.ChannelID); err == nil && ch != nil {
		b.t.BeforeArchiveName = ch.Name
	} else {
		b.t.BeforeArchiveName = b.t.ChannelName
	}
	if err := b.m.deps.Tickets.Update(b.t); err != nil {
		return fmt.Errorf("failed to close ticket: %w", err)
	}

	if reason == "" {
		reason = "No reason given"
	}
	b.m.adminLog(ctx, chat.Message{
		Kind:  chat.KindWarn,
		Title: "Ticket archived",
		Fields: []chat.Field{
			{Name: "Ticket", Value: fmt.Sprintf("%s #%d (%s)", b.t.Type, b.t.Serial, b.t.ID)},
			{Name: "Reason", Value: reason},
		},
	})

	switch action {
	case models.ArchiveHalt:
		return nil
	case models.ArchiveDelete:
		if err := b.m.deps.Platform.DeleteChannel(ctx, b.t.ChannelID); err != nil {
			return fmt.Errorf("failed to delete channel: %w", err)
		}
		return nil
	}

	// categorize and none both strip everything except the manager role
	// and the guild-wide deny.
	keep := []string{b.m.cfg.Settings.ManagerRole, b.t.GuildID}
	if err := b.m.deps.Platform.ClearOverwrites(ctx, b.t.ChannelID, keep); err != nil {
		return fmt.Errorf("failed to strip channel overwrites: %w", err)
	}

	if action == models.ArchiveCategorize {
		if cat := b.m.cfg.Settings.ClosedCategory; cat != "" {
			if err := b.m.deps.Platform.MoveChannel(ctx, b.t.ChannelID, cat); err != nil {
				return fmt.Errorf("failed to move channel to archive category: %w", err)
			}
		}
		name := archivedName(b.t.BeforeArchiveName)
		if err := b.m.deps.Platform.RenameChannel(ctx, b.t.ChannelID, name); err != nil {
			return fmt.Errorf("failed to rename archived channel: %w", err)
		}
		b.t.ChannelName = name
		if err := b.m.deps.Tickets.Update(b.t); err != nil {
			return err
		}
	}

	if _, err := b.m.deps.Platform.Send(ctx, b.t.ChannelID, chat.Message{
		Kind:  chat.KindInfo,
		Title: "Archived",
		Body:  "This ticket has been archived. A manager can restore it with the button below.",
		Buttons: []chat.Button{
			{CustomID: "unarchive-" + b.t.ID, Label: "Unarchive"},
		},
	}); err != nil {
		b.m.logger.Printf("[ticket] failed to send archived notice for %s: %v", b.t.ID, err)
	}
	return nil
}

// Unarchive restores a categorized or overwrite-stripped ticket: author
// access, original category, original name, and the pending flag as it
// was at archive time.
func (b *base) Unarchive(ctx context.Context) error {
	if !b.t.Closed {
		return apierrors.NewUserError(apierrors.CodeTicketNotArchived)
	}

	if err := b.m.deps.Platform.SetOverwrite(ctx, b.t.ChannelID, b.t.AuthorID, true); err != nil {
		return fmt.Errorf("failed to restore author access: %w", err)
	}
	if cat := b.m.categoryFor(b.t.Type); cat != "" {
		if err := b.m.deps.Platform.MoveChannel(ctx, b.t.ChannelID, cat); err != nil {
			return fmt.Errorf("failed to restore channel category: %w", err)
		}
	}
	if b.t.BeforeArchiveName != "" {
		if err := b.m.deps.Platform.RenameChannel(ctx, b.t.ChannelID, b.t.BeforeArchiveName); err != nil {
			return fmt.Errorf("failed to restore channel name: %w", err)
		}
		b.t.ChannelName = b.t.BeforeArchiveName
	}

	b.t.Closed = false
	b.t.Pending = b.t.BeforeArchivedPending
	b.t.BeforeArchiveName = ""
	b.t.BeforeArchivedPending = false
	if err := b.m.deps.Tickets.Update(b.t); err != nil {
		return fmt.Errorf("failed to reopen ticket: %w", err)
	}

	if _, err := b.m.deps.Platform.Send(ctx, b.t.ChannelID, chat.Message{
		Kind: chat.KindSuccess,
		Body: "This ticket has been restored.",
	}); err != nil {
		b.m.logger.Printf("[ticket] failed to send unarchive notice for %s: %v", b.t.ID, err)
	}
	return nil
}

// editWelcome appends the recorded answers to the welcome message once
// the questionnaire completes.
func (b *base) editWelcome(ctx context.Context, lead string, fields []chat.Field) {
	if b.t.WelcomeMessageID == "" {
		return
	}
	err := b.m.deps.Platform.Edit(ctx, b.t.ChannelID, b.t.WelcomeMessageID, chat.Message{
		Kind:   chat.KindSuccess,
		Title:  lead,
		Fields: fields,
	})
	if err != nil {
		b.m.logger.Printf("[ticket] failed to edit welcome message for %s: %v", b.t.ID, err)
	}
}

// finalName renames the channel from its pending name to the final
// template and persists the row.
func (b *base) finalName(ctx context.Context, service string) error {
	username := b.t.AuthorID
	if u, err := b.m.deps.Platform.User(ctx, b.t.AuthorID); err == nil && u != nil {
		username = u.Username
	}
	name := expandName(b.m.cfg.Tickets.Naming.Final, b.t.Type, service, b.t.Serial, username)
	if err := b.m.deps.Platform.RenameChannel(ctx, b.t.ChannelID, name); err != nil {
		return fmt.Errorf("failed to rename channel: %w", err)
	}
	b.t.ChannelName = name
	return nil
}

// responseFields maps recorded answers onto message fields.
func responseFields(session *models.PromptSession) []chat.Field {
	responses := session.Responses()
	fields := make([]chat.Field, 0, len(responses))
	for _, r := range responses {
		value := r.Value
		if value == "" {
			value = "(no answer)"
		}
		fields = append(fields, chat.Field{Name: r.Label, Value: value})
	}
	return fields
}

func mention(userID string) string {
	return "<@" + userID + ">"
}

func channelMention(channelID string) string {
	return "<#" + channelID + ">"
}
