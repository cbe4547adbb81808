package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/craftdesk/craftdesk/internal/database"
	"github.com/craftdesk/craftdesk/internal/models"
)

// CooldownRepository defines the interface for ticket-creation cooldowns.
type CooldownRepository interface {
	Get(authorID string) (*models.Cooldown, error)
	Set(authorID string, expiresAt time.Time) error
	DeleteExpired(now time.Time) (int, error)
}

// CooldownSQLRepository handles database operations for the cooldowns table.
type CooldownSQLRepository struct {
	db *database.DB
}

// NewCooldownRepository creates a new cooldown repository.
func NewCooldownRepository(db *database.DB) *CooldownSQLRepository {
	return &CooldownSQLRepository{db: db}
}

// Get returns the author's cooldown, or nil when none is recorded. Expired
// rows are returned as-is; callers compare against the clock.
func (r *CooldownSQLRepository) Get(authorID string) (*models.Cooldown, error) {
	query := r.db.Convert(`SELECT author_id, expires_at FROM cooldowns WHERE author_id = ?`)
	var cd models.Cooldown
	err := r.db.Get(&cd, query, authorID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cooldown: %w", err)
	}
	return &cd, nil
}

// Set records or extends the author's cooldown.
func (r *CooldownSQLRepository) Set(authorID string, expiresAt time.Time) error {
	var query string
	switch r.db.Driver() {
	case "mysql":
		query = `INSERT INTO cooldowns (author_id, expires_at) VALUES (?, ?)
			ON DUPLICATE KEY UPDATE expires_at = VALUES(expires_at)`
	default:
		query = r.db.Convert(`INSERT INTO cooldowns (author_id, expires_at) VALUES (?, ?)
			ON CONFLICT (author_id) DO UPDATE SET expires_at = excluded.expires_at`)
	}
	if _, err := r.db.Exec(query, authorID, expiresAt); err != nil {
		return fmt.Errorf("failed to set cooldown: %w", err)
	}
	return nil
}

// DeleteExpired removes cooldowns that lapsed before now.
func (r *CooldownSQLRepository) DeleteExpired(now time.Time) (int, error) {
	query := r.db.Convert(`DELETE FROM cooldowns WHERE expires_at <= ?`)
	res, err := r.db.Exec(query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to prune cooldowns: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return int(rows), nil
}
