// Package ticket implements the ticket workflow: creation with cooldown
// and serial allocation, the commission/application/support behaviors,
// archive/unarchive, and the quote lifecycle on commissions.
package ticket

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/xeonx/timeago"

	"github.com/craftdesk/craftdesk/internal/apierrors"
	"github.com/craftdesk/craftdesk/internal/bank"
	"github.com/craftdesk/craftdesk/internal/chat"
	"github.com/craftdesk/craftdesk/internal/config"
	"github.com/craftdesk/craftdesk/internal/invoice"
	"github.com/craftdesk/craftdesk/internal/models"
	"github.com/craftdesk/craftdesk/internal/prompt"
	"github.com/craftdesk/craftdesk/internal/repository"
)

// Deps bundles the manager's collaborators.
type Deps struct {
	Tickets   repository.TicketRepository
	Prompts   repository.PromptRepository
	Quotes    repository.QuoteRepository
	Invoices  repository.InvoiceRepository
	Timers    repository.ArchiveTimerRepository
	Cooldowns repository.CooldownRepository
	Platform  chat.Platform
	Engine    *prompt.Engine
	Ledger    *invoice.Ledger
	Bank      *bank.Service
}

// Manager owns the ticket lifecycle. One instance serves all guilds.
type Manager struct {
	cfg    *config.Config
	deps   Deps
	logger *log.Logger
	now    func() time.Time
}

// Option configures the manager.
type Option func(*Manager)

// WithLogger sets a custom logger.
func WithLogger(l *log.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates the ticket manager. Call InstallFinalizer
// afterwards so completed questionnaires reach the type-specific
// finalize hooks.
func NewManager(cfg *config.Config, deps Deps, opts ...Option) *Manager {
	m := &Manager{
		cfg:    cfg,
		deps:   deps,
		logger: log.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// InstallFinalizer wires the prompt engine's terminal callback to the
// per-type FinalizePrompts behavior. Kept out of NewManager so the
// engine can be constructed first.
func (m *Manager) InstallFinalizer() {
	if m.deps.Engine != nil {
		m.deps.Engine.OnFinalize(m.FinalizePrompts)
	}
}

// Create opens a new ticket: enable-flag check, cooldown check, serial
// allocation, channel creation, row insert, then the type-specific
// start hook. startIntake controls whether the questionnaire begins
// immediately.
func (m *Manager) Create(ctx context.Context, t models.TicketType, guildID, authorID string, startIntake bool) (Handle, error) {
	if !m.cfg.TypeEnabled(t) {
		return nil, apierrors.NewUserError(apierrors.CodeTicketDisabled)
	}

	now := m.now().UTC()
	cd, err := m.deps.Cooldowns.Get(authorID)
	if err != nil {
		return nil, fmt.Errorf("failed to check cooldown: %w", err)
	}
	if cd != nil && cd.ExpiresAt.After(now) {
		return nil, apierrors.NewUserErrorf(apierrors.CodeTicketCooldown,
			fmt.Sprintf("You are creating tickets too quickly. Try again %s.", timeago.English.Format(cd.ExpiresAt)))
	}
	if m.cfg.Tickets.Cooldown > 0 {
		if err := m.deps.Cooldowns.Set(authorID, now.Add(m.cfg.Tickets.Cooldown)); err != nil {
			return nil, fmt.Errorf("failed to set cooldown: %w", err)
		}
	}

	author, err := m.deps.Platform.User(ctx, authorID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve author %s: %w", authorID, err)
	}
	if author == nil {
		return nil, apierrors.NewUserError(apierrors.CodeTicketUnavailable)
	}

	serial, err := m.deps.Tickets.NextSerial(guildID, t)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate serial: %w", err)
	}

	name := expandName(m.cfg.Tickets.Naming.Pending, t, "", serial, author.Username)
	ch, err := m.deps.Platform.CreateChannel(ctx, guildID, chat.ChannelRequest{
		Name:           name,
		Topic:          channelTopic(t),
		ParentID:       m.categoryFor(t),
		AllowedUserIDs: []string{authorID},
		AllowedRoleIDs: []string{m.cfg.Settings.ManagerRole},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ticket channel: %w", err)
	}

	row := &models.Ticket{
		Type:        t,
		Serial:      serial,
		GuildID:     guildID,
		ChannelID:   ch.ID,
		AuthorID:    authorID,
		Pending:     true,
		Fresh:       true,
		ChannelName: name,
	}
	if err := m.deps.Tickets.Create(row); err != nil {
		return nil, fmt.Errorf("failed to persist ticket: %w", err)
	}
	m.logger.Printf("[ticket] created %s #%d (%s) in guild %s for %s", t, serial, row.ID, guildID, authorID)

	h := m.Wrap(row)
	if err := h.Start(ctx, startIntake); err != nil {
		return h, fmt.Errorf("failed to start ticket %s: %w", row.ID, err)
	}
	return h, nil
}

// Resolved is a ticket row rehydrated against the live platform.
type Resolved struct {
	Handle  Handle
	Channel *chat.ChannelInfo
	Author  *chat.UserInfo
}

// Resolve attaches live guild, channel and author state to a persisted
// row. Missing external state is modeled as (nil, nil), never as an
// error; callers must nil-check.
func (m *Manager) Resolve(ctx context.Context, row *models.Ticket) (*Resolved, error) {
	ok, err := m.deps.Platform.GuildExists(ctx, row.GuildID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	ch, err := m.deps.Platform.Channel(ctx, row.ChannelID)
	if err != nil {
		return nil, err
	}
	if ch == nil {
		return nil, nil
	}
	author, err := m.deps.Platform.User(ctx, row.AuthorID)
	if err != nil {
		return nil, err
	}
	if author == nil {
		return nil, nil
	}
	return &Resolved{Handle: m.Wrap(row), Channel: ch, Author: author}, nil
}

// Fetch returns the first ticket matching the filter, wrapped in its
// type-specific behavior, or nil when none matches.
func (m *Manager) Fetch(filter repository.TicketFilter) (Handle, error) {
	row, err := m.deps.Tickets.Find(filter)
	if err != nil || row == nil {
		return nil, err
	}
	return m.Wrap(row), nil
}

// FetchAll returns all tickets matching the filter, each wrapped.
func (m *Manager) FetchAll(filter repository.TicketFilter) ([]Handle, error) {
	rows, err := m.deps.Tickets.FindAll(filter)
	if err != nil {
		return nil, err
	}
	handles := make([]Handle, 0, len(rows))
	for _, row := range rows {
		handles = append(handles, m.Wrap(row))
	}
	return handles, nil
}

// FetchByChannel looks a ticket up by its bound channel.
func (m *Manager) FetchByChannel(channelID string) (Handle, error) {
	row, err := m.deps.Tickets.GetByChannel(channelID)
	if err != nil || row == nil {
		return nil, err
	}
	return m.Wrap(row), nil
}

// Wrap dispatches a row to its concrete behavior once, at load time.
func (m *Manager) Wrap(row *models.Ticket) Handle {
	b := base{m: m, t: row}
	switch row.Type {
	case models.TicketCommission:
		return &Commission{base: b}
	case models.TicketApplication:
		return &Application{base: b}
	default:
		return &Support{base: b}
	}
}

// FinalizePrompts dispatches a completed questionnaire to the owning
// ticket's finalize hook. Installed on the prompt engine.
func (m *Manager) FinalizePrompts(ctx context.Context, row *models.Ticket, session *models.PromptSession) error {
	return m.Wrap(row).FinalizePrompts(ctx, session)
}

// OnMessage reacts to a channel message: the first one marks a fresh
// ticket active, and any message cancels pending message-cancellable
// archive timers.
func (m *Manager) OnMessage(ctx context.Context, channelID, authorID string) error {
	row, err := m.deps.Tickets.GetByChannel(channelID)
	if err != nil || row == nil {
		return err
	}
	if row.Fresh && authorID == row.AuthorID {
		row.Fresh = false
		if err := m.deps.Tickets.Update(row); err != nil {
			return fmt.Errorf("failed to mark ticket active: %w", err)
		}
	}
	n, err := m.deps.Timers.DeleteCancellableByTicket(row.ID)
	if err != nil {
		return fmt.Errorf("failed to cancel archive timers: %w", err)
	}
	if n > 0 {
		m.logger.Printf("[ticket] cancelled %d archive timer(s) for %s after new message", n, row.ID)
	}
	return nil
}

// ScheduleArchive registers a deferred archive. The sweep fires it once
// due; if messageCancels is set, any new channel message deletes it
// first.
func (m *Manager) ScheduleArchive(ticketID, userID string, after time.Duration, messageCancels bool, reason string) (*models.ArchiveTimer, error) {
	timer := &models.ArchiveTimer{
		TicketID:       ticketID,
		UserID:         userID,
		ArchiveAfter:   m.now().UTC().Add(after),
		MessageCancels: messageCancels,
		Reason:         reason,
	}
	if err := m.deps.Timers.Create(timer); err != nil {
		return nil, fmt.Errorf("failed to schedule archive: %w", err)
	}
	return timer, nil
}

func (m *Manager) categoryFor(t models.TicketType) string {
	switch t {
	case models.TicketCommission:
		return m.cfg.Settings.CommissionCategory
	case models.TicketApplication:
		return m.cfg.Settings.ApplicationCategory
	case models.TicketSupport:
		return m.cfg.Settings.SupportCategory
	default:
		return ""
	}
}

// adminLog posts to the configured log channel. Failures are logged and
// swallowed: a broken log channel must not fail the operation.
func (m *Manager) adminLog(ctx context.Context, msg chat.Message) {
	if m.cfg.Settings.LogChannel == "" {
		return
	}
	if _, err := m.deps.Platform.Send(ctx, m.cfg.Settings.LogChannel, msg); err != nil {
		m.logger.Printf("[ticket] failed to send admin log: %v", err)
	}
}
