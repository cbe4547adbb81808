package ticket

import (
	"context"
	"fmt"

	"github.com/craftdesk/craftdesk/internal/chat"
	"github.com/craftdesk/craftdesk/internal/models"
)

// SweepArchiveTimers fires every due deferred archive. Timers whose
// ticket is already closed or gone are dropped without side effects.
// Returns the number of tickets archived.
func (m *Manager) SweepArchiveTimers(ctx context.Context) (int, error) {
	due, err := m.deps.Timers.Due(m.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to list due archive timers: %w", err)
	}
	archived := 0
	for _, timer := range due {
		row, err := m.deps.Tickets.GetByID(timer.TicketID)
		if err != nil {
			m.logger.Printf("[ticket] archive timer %s: %v", timer.ID, err)
			continue
		}
		if row != nil && !row.Closed {
			action := models.ArchiveAction("")
			if ch, err := m.deps.Platform.Channel(ctx, row.ChannelID); err == nil && ch == nil {
				action = models.ArchiveHalt
			}
			if err := m.Wrap(row).Archive(ctx, timer.Reason, action); err != nil {
				m.logger.Printf("[ticket] deferred archive of %s failed: %v", row.ID, err)
				continue
			}
			archived++
		}
		if err := m.deps.Timers.Delete(timer.ID); err != nil {
			m.logger.Printf("[ticket] failed to delete fired timer %s: %v", timer.ID, err)
		}
	}
	return archived, nil
}

// SweepDeadlines clears expired commission deadlines and posts a notice
// in the ticket channel. Returns the number of deadlines cleared.
func (m *Manager) SweepDeadlines(ctx context.Context) (int, error) {
	rows, err := m.deps.Tickets.WithDeadlineBefore(m.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to list expired deadlines: %w", err)
	}
	cleared := 0
	for _, row := range rows {
		c, ok := m.Wrap(row).(*Commission)
		if !ok {
			continue
		}
		if _, err := m.deps.Platform.Send(ctx, row.ChannelID, chat.Message{
			Kind:  chat.KindWarn,
			Title: "Deadline passed",
			Body:  fmt.Sprintf("%s the delivery deadline for this commission has passed.", mention(row.FreelancerID)),
		}); err != nil {
			m.logger.Printf("[ticket] failed to post deadline notice for %s: %v", row.ID, err)
		}
		if err := c.ClearDeadline(ctx); err != nil {
			m.logger.Printf("[ticket] failed to clear deadline for %s: %v", row.ID, err)
			continue
		}
		cleared++
	}
	return cleared, nil
}

// SweepQuoteReminders nudges commissions that sat without a quote for
// the configured quiet period. Returns the number of reminders sent.
func (m *Manager) SweepQuoteReminders(ctx context.Context) (int, error) {
	if !m.cfg.Tickets.SendQuoteReminders {
		return 0, nil
	}
	cutoff := m.now().UTC().Add(-m.cfg.Tickets.QuoteReminderAfter)
	rows, err := m.deps.Tickets.QuotedBefore(cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list unquoted commissions: %w", err)
	}
	sent := 0
	for _, row := range rows {
		c, ok := m.Wrap(row).(*Commission)
		if !ok {
			continue
		}
		if err := c.SendQuoteReminder(ctx); err != nil {
			m.logger.Printf("[ticket] quote reminder for %s failed: %v", row.ID, err)
			continue
		}
		sent++
	}
	return sent, nil
}
