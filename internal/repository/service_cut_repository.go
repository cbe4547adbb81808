package repository

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/craftdesk/craftdesk/internal/database"
	"github.com/craftdesk/craftdesk/internal/models"
)

// ErrCutOverflow is returned when the requested shares would push a
// guild's total service cut above 100 percent.
var ErrCutOverflow = fmt.Errorf("service cut shares exceed 100 percent")

// ServiceCutRepository defines the interface for revenue share persistence.
type ServiceCutRepository interface {
	ByGuild(guildID string) ([]*models.ServiceCut, error)
	Set(guildID, userID string, percentage float64) error
	Remove(guildID, userID string) error
}

// ServiceCutSQLRepository handles database operations for service_cuts.
type ServiceCutSQLRepository struct {
	db *database.DB
}

// NewServiceCutRepository creates a new service cut repository.
func NewServiceCutRepository(db *database.DB) *ServiceCutSQLRepository {
	return &ServiceCutSQLRepository{db: db}
}

// ByGuild returns every recipient of the guild's service cut.
func (r *ServiceCutSQLRepository) ByGuild(guildID string) ([]*models.ServiceCut, error) {
	query := r.db.Convert(`SELECT id, guild_id, user_id, percentage FROM service_cuts WHERE guild_id = ?`)
	var cuts []*models.ServiceCut
	if err := r.db.Select(&cuts, query, guildID); err != nil {
		return nil, fmt.Errorf("failed to list service cuts: %w", err)
	}
	return cuts, nil
}

// Set writes a recipient's share, rejecting totals above 100 percent.
func (r *ServiceCutSQLRepository) Set(guildID, userID string, percentage float64) error {
	if percentage <= 0 || percentage > 100 {
		return fmt.Errorf("share must be between 0 and 100, got %v", percentage)
	}
	cuts, err := r.ByGuild(guildID)
	if err != nil {
		return err
	}
	total := percentage
	for _, cut := range cuts {
		if cut.UserID != userID {
			total += cut.Percentage
		}
	}
	if total > 100 {
		return ErrCutOverflow
	}

	updateQuery := r.db.Convert(`UPDATE service_cuts SET percentage = ? WHERE guild_id = ? AND user_id = ?`)
	res, err := r.db.Exec(updateQuery, percentage, guildID, userID)
	if err != nil {
		return fmt.Errorf("failed to update service cut: %w", err)
	}
	if rows, rowsErr := res.RowsAffected(); rowsErr == nil && rows > 0 {
		return nil
	}

	insertQuery := r.db.Convert(`INSERT INTO service_cuts (id, guild_id, user_id, percentage) VALUES (?, ?, ?, ?)`)
	if _, err := r.db.Exec(insertQuery, uuid.NewString(), guildID, userID, percentage); err != nil {
		return fmt.Errorf("failed to insert service cut: %w", err)
	}
	return nil
}

// Remove drops a recipient from the guild's split.
func (r *ServiceCutSQLRepository) Remove(guildID, userID string) error {
	query := r.db.Convert(`DELETE FROM service_cuts WHERE guild_id = ? AND user_id = ?`)
	if _, err := r.db.Exec(query, guildID, userID); err != nil {
		return fmt.Errorf("failed to remove service cut: %w", err)
	}
	return nil
}
