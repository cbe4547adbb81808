package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/craftdesk/craftdesk/internal/database"
	"github.com/craftdesk/craftdesk/internal/models"
)

// TicketFilter narrows ticket lookups. Zero-value fields are ignored;
// pointer fields filter only when set.
type TicketFilter struct {
	GuildID   string
	ChannelID string
	AuthorID  string
	InvoiceID string
	Type      *models.TicketType
	Closed    *bool
	Pending   *bool
	Fresh     *bool
	Complete  *bool
}

// TicketRepository defines the interface for ticket persistence.
type TicketRepository interface {
	Create(ticket *models.Ticket) error
	GetByID(id string) (*models.Ticket, error)
	GetByChannel(channelID string) (*models.Ticket, error)
	GetByInvoice(invoiceID string) (*models.Ticket, error)
	Find(filter TicketFilter) (*models.Ticket, error)
	FindAll(filter TicketFilter) ([]*models.Ticket, error)
	Update(ticket *models.Ticket) error
	NextSerial(guildID string, ticketType models.TicketType) (int, error)
	WithDeadlineBefore(cutoff time.Time) ([]*models.Ticket, error)
	QuotedBefore(cutoff time.Time) ([]*models.Ticket, error)
}

// TicketSQLRepository handles database operations for the tickets table.
type TicketSQLRepository struct {
	db *database.DB
}

// NewTicketRepository creates a new ticket repository.
func NewTicketRepository(db *database.DB) *TicketSQLRepository {
	return &TicketSQLRepository{db: db}
}

const ticketColumns = `id, type, serial, guild_id, channel_id, author_id,
	closed, pending, fresh, channel_name, welcome_message_id,
	before_archive_name, before_archived_pending, selected_service, invoice_id,
	manager_id, freelancer_id, complete, delivery_accepted, log_message_id,
	quote_channel_id, deadline, deadline_message_id, last_quoted, deniers,
	created_at, updated_at`

// Create inserts a new ticket. A missing ID is generated.
func (r *TicketSQLRepository) Create(ticket *models.Ticket) error {
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	if ticket.DeniersJSON == "" {
		ticket.DeniersJSON = "[]"
	}

	query := r.db.Convert(`
		INSERT INTO tickets (` + ticketColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.Exec(query,
		ticket.ID, ticket.Type, ticket.Serial, ticket.GuildID, ticket.ChannelID, ticket.AuthorID,
		ticket.Closed, ticket.Pending, ticket.Fresh, ticket.ChannelName, ticket.WelcomeMessageID,
		ticket.BeforeArchiveName, ticket.BeforeArchivedPending, ticket.SelectedService, ticket.InvoiceID,
		ticket.ManagerID, ticket.FreelancerID, ticket.Complete, ticket.DeliveryAccepted, ticket.LogMessageID,
		ticket.QuoteChannelID, ticket.Deadline, ticket.DeadlineMessageID, ticket.LastQuoted, ticket.DeniersJSON,
		ticket.CreatedAt, ticket.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create ticket: %w", err)
	}
	return nil
}

// GetByID returns the ticket with the given ID, or nil when absent.
func (r *TicketSQLRepository) GetByID(id string) (*models.Ticket, error) {
	return r.one("id = ?", id)
}

// GetByChannel returns the ticket bound to a chat channel, or nil when absent.
func (r *TicketSQLRepository) GetByChannel(channelID string) (*models.Ticket, error) {
	return r.one("channel_id = ?", channelID)
}

// GetByInvoice returns the ticket owning an invoice, or nil when absent.
func (r *TicketSQLRepository) GetByInvoice(invoiceID string) (*models.Ticket, error) {
	return r.one("invoice_id = ?", invoiceID)
}

func (r *TicketSQLRepository) one(where string, args ...interface{}) (*models.Ticket, error) {
	query := r.db.Convert(`SELECT ` + ticketColumns + ` FROM tickets WHERE ` + where)
	var t models.Ticket
	err := r.db.Get(&t, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}
	return &t, nil
}

func buildTicketWhere(filter TicketFilter) (string, []interface{}) {
	var clauses []string
	var args []interface{}
	add := func(clause string, arg interface{}) {
		clauses = append(clauses, clause)
		args = append(args, arg)
	}
	if filter.GuildID != "" {
		add("guild_id = ?", filter.GuildID)
	}
	if filter.ChannelID != "" {
		add("channel_id = ?", filter.ChannelID)
	}
	if filter.AuthorID != "" {
		add("author_id = ?", filter.AuthorID)
	}
	if filter.InvoiceID != "" {
		add("invoice_id = ?", filter.InvoiceID)
	}
	if filter.Type != nil {
		add("type = ?", *filter.Type)
	}
	if filter.Closed != nil {
		add("closed = ?", *filter.Closed)
	}
	if filter.Pending != nil {
		add("pending = ?", *filter.Pending)
	}
	if filter.Fresh != nil {
		add("fresh = ?", *filter.Fresh)
	}
	if filter.Complete != nil {
		add("complete = ?", *filter.Complete)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// Find returns the first ticket matching the filter, or nil when none match.
func (r *TicketSQLRepository) Find(filter TicketFilter) (*models.Ticket, error) {
	where, args := buildTicketWhere(filter)
	query := r.db.Convert(`SELECT ` + ticketColumns + ` FROM tickets` + where + ` ORDER BY created_at DESC LIMIT 1`)
	var t models.Ticket
	err := r.db.Get(&t, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find ticket: %w", err)
	}
	return &t, nil
}

// FindAll returns every ticket matching the filter, newest first.
func (r *TicketSQLRepository) FindAll(filter TicketFilter) ([]*models.Ticket, error) {
	where, args := buildTicketWhere(filter)
	query := r.db.Convert(`SELECT ` + ticketColumns + ` FROM tickets` + where + ` ORDER BY created_at DESC`)
	var tickets []*models.Ticket
	if err := r.db.Select(&tickets, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	return tickets, nil
}

// Update persists every mutable column of the ticket.
func (r *TicketSQLRepository) Update(ticket *models.Ticket) error {
	ticket.UpdatedAt = time.Now().UTC()
	query := r.db.Convert(`
		UPDATE tickets SET
			closed = ?, pending = ?, fresh = ?, channel_id = ?, channel_name = ?,
			welcome_message_id = ?, before_archive_name = ?, before_archived_pending = ?,
			selected_service = ?, invoice_id = ?, manager_id = ?, freelancer_id = ?,
			complete = ?, delivery_accepted = ?, log_message_id = ?, quote_channel_id = ?,
			deadline = ?, deadline_message_id = ?, last_quoted = ?, deniers = ?, updated_at = ?
		WHERE id = ?`)
	res, err := r.db.Exec(query,
		ticket.Closed, ticket.Pending, ticket.Fresh, ticket.ChannelID, ticket.ChannelName,
		ticket.WelcomeMessageID, ticket.BeforeArchiveName, ticket.BeforeArchivedPending,
		ticket.SelectedService, ticket.InvoiceID, ticket.ManagerID, ticket.FreelancerID,
		ticket.Complete, ticket.DeliveryAccepted, ticket.LogMessageID, ticket.QuoteChannelID,
		ticket.Deadline, ticket.DeadlineMessageID, ticket.LastQuoted, ticket.DeniersJSON, ticket.UpdatedAt,
		ticket.ID)
	if err != nil {
		return fmt.Errorf("failed to update ticket: %w", err)
	}
	rows, err := res.RowsAffected()
	if err == nil && rows == 0 {
		return fmt.Errorf("ticket %s not found", ticket.ID)
	}
	return nil
}

// NextSerial atomically increments and returns the per-guild, per-type
// ticket counter. Concurrent callers never observe the same value.
func (r *TicketSQLRepository) NextSerial(guildID string, ticketType models.TicketType) (int, error) {
	var serial int
	switch r.db.Driver() {
	case "postgres", "sqlite3":
		query := r.db.Convert(`
			INSERT INTO ticket_serial_counter (guild_id, ticket_type, counter)
			VALUES (?, ?, 1)
			ON CONFLICT (guild_id, ticket_type)
			DO UPDATE SET counter = ticket_serial_counter.counter + 1
			RETURNING counter`)
		if err := r.db.Get(&serial, query, guildID, ticketType); err != nil {
			return 0, fmt.Errorf("failed to allocate ticket serial: %w", err)
		}
	default:
		// MySQL has no RETURNING; use the LAST_INSERT_ID trick.
		_, err := r.db.Exec(`
			INSERT INTO ticket_serial_counter (guild_id, ticket_type, counter)
			VALUES (?, ?, LAST_INSERT_ID(1))
			ON DUPLICATE KEY UPDATE counter = LAST_INSERT_ID(counter + 1)`,
			guildID, ticketType)
		if err != nil {
			return 0, fmt.Errorf("failed to allocate ticket serial: %w", err)
		}
		if err := r.db.Get(&serial, `SELECT LAST_INSERT_ID()`); err != nil {
			return 0, fmt.Errorf("failed to read ticket serial: %w", err)
		}
	}
	return serial, nil
}

// WithDeadlineBefore returns open commissions whose deadline falls before
// the cutoff and has not expired to zero.
func (r *TicketSQLRepository) WithDeadlineBefore(cutoff time.Time) ([]*models.Ticket, error) {
	query := r.db.Convert(`
		SELECT ` + ticketColumns + ` FROM tickets
		WHERE type = ? AND closed = ? AND deadline IS NOT NULL AND deadline <= ?`)
	var tickets []*models.Ticket
	if err := r.db.Select(&tickets, query, models.TicketCommission, false, cutoff); err != nil {
		return nil, fmt.Errorf("failed to list tickets by deadline: %w", err)
	}
	return tickets, nil
}

// QuotedBefore returns open, unclaimed commissions whose latest quote is
// older than the cutoff, for reminder sweeps.
func (r *TicketSQLRepository) QuotedBefore(cutoff time.Time) ([]*models.Ticket, error) {
	query := r.db.Convert(`
		SELECT ` + ticketColumns + ` FROM tickets
		WHERE type = ? AND closed = ? AND freelancer_id = ?
		AND last_quoted IS NOT NULL AND last_quoted <= ?`)
	var tickets []*models.Ticket
	if err := r.db.Select(&tickets, query, models.TicketCommission, false, "", cutoff); err != nil {
		return nil, fmt.Errorf("failed to list stale quotes: %w", err)
	}
	return tickets, nil
}
