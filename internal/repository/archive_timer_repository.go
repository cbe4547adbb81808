package repository

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/craftdesk/craftdesk/internal/database"
	"github.com/craftdesk/craftdesk/internal/models"
)

// ArchiveTimerRepository defines the interface for deferred archive timers.
type ArchiveTimerRepository interface {
	Create(timer *models.ArchiveTimer) error
	Due(now time.Time) ([]*models.ArchiveTimer, error)
	ByTicket(ticketID string) ([]*models.ArchiveTimer, error)
	Delete(id string) error
	DeleteCancellableByTicket(ticketID string) (int, error)
}

// ArchiveTimerSQLRepository handles database operations for archive_timers.
type ArchiveTimerSQLRepository struct {
	db *database.DB
}

// NewArchiveTimerRepository creates a new archive timer repository.
func NewArchiveTimerRepository(db *database.DB) *ArchiveTimerSQLRepository {
	return &ArchiveTimerSQLRepository{db: db}
}

const archiveTimerColumns = `id, ticket_id, user_id, archive_after, message_cancels, reason, created_at`

// Create schedules a deferred archive.
func (r *ArchiveTimerSQLRepository) Create(timer *models.ArchiveTimer) error {
	if timer.ID == "" {
		timer.ID = uuid.NewString()
	}
	timer.CreatedAt = time.Now().UTC()
	query := r.db.Convert(`
		INSERT INTO archive_timers (` + archiveTimerColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.Exec(query,
		timer.ID, timer.TicketID, timer.UserID, timer.ArchiveAfter, timer.MessageCancels,
		timer.Reason, timer.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create archive timer: %w", err)
	}
	return nil
}

// Due returns every timer whose deadline has passed.
func (r *ArchiveTimerSQLRepository) Due(now time.Time) ([]*models.ArchiveTimer, error) {
	query := r.db.Convert(`SELECT ` + archiveTimerColumns + ` FROM archive_timers WHERE archive_after <= ?`)
	var timers []*models.ArchiveTimer
	if err := r.db.Select(&timers, query, now); err != nil {
		return nil, fmt.Errorf("failed to list due archive timers: %w", err)
	}
	return timers, nil
}

// ByTicket returns every timer pending on a ticket.
func (r *ArchiveTimerSQLRepository) ByTicket(ticketID string) ([]*models.ArchiveTimer, error) {
	query := r.db.Convert(`SELECT ` + archiveTimerColumns + ` FROM archive_timers WHERE ticket_id = ?`)
	var timers []*models.ArchiveTimer
	if err := r.db.Select(&timers, query, ticketID); err != nil {
		return nil, fmt.Errorf("failed to list archive timers: %w", err)
	}
	return timers, nil
}

// Delete removes a timer, fired or cancelled.
func (r *ArchiveTimerSQLRepository) Delete(id string) error {
	query := r.db.Convert(`DELETE FROM archive_timers WHERE id = ?`)
	if _, err := r.db.Exec(query, id); err != nil {
		return fmt.Errorf("failed to delete archive timer: %w", err)
	}
	return nil
}

// DeleteCancellableByTicket removes the ticket's timers that chat activity
// is allowed to cancel, returning how many were dropped.
func (r *ArchiveTimerSQLRepository) DeleteCancellableByTicket(ticketID string) (int, error) {
	query := r.db.Convert(`DELETE FROM archive_timers WHERE ticket_id = ? AND message_cancels = ?`)
	res, err := r.db.Exec(query, ticketID, true)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel archive timers: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return int(rows), nil
}
