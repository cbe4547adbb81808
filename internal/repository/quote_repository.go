package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/craftdesk/craftdesk/internal/database"
	"github.com/craftdesk/craftdesk/internal/models"
)

// QuoteRepository defines the interface for quote persistence.
type QuoteRepository interface {
	Create(quote *models.Quote) error
	GetByID(id string) (*models.Quote, error)
	GetByMessage(messageID string) (*models.Quote, error)
	ByCommission(commissionID string) ([]*models.Quote, error)
	Update(quote *models.Quote) error
}

// QuoteSQLRepository handles database operations for the quotes table.
type QuoteSQLRepository struct {
	db *database.DB
}

// NewQuoteRepository creates a new quote repository.
func NewQuoteRepository(db *database.DB) *QuoteSQLRepository {
	return &QuoteSQLRepository{db: db}
}

const quoteColumns = `id, commission_id, freelancer_id, price, status, message, message_id, created_at`

// Create inserts a new quote.
func (r *QuoteSQLRepository) Create(quote *models.Quote) error {
	if quote.ID == "" {
		quote.ID = uuid.NewString()
	}
	quote.CreatedAt = time.Now().UTC()
	query := r.db.Convert(`
		INSERT INTO quotes (` + quoteColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.Exec(query,
		quote.ID, quote.CommissionID, quote.FreelancerID, quote.Price, quote.Status,
		quote.Message, quote.MessageID, quote.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create quote: %w", err)
	}
	return nil
}

// GetByID returns the quote with the given ID, or nil when absent.
func (r *QuoteSQLRepository) GetByID(id string) (*models.Quote, error) {
	return r.one("id = ?", id)
}

// GetByMessage resolves a quote from its rendered chat message, or nil.
func (r *QuoteSQLRepository) GetByMessage(messageID string) (*models.Quote, error) {
	return r.one("message_id = ?", messageID)
}

func (r *QuoteSQLRepository) one(where string, args ...interface{}) (*models.Quote, error) {
	query := r.db.Convert(`SELECT ` + quoteColumns + ` FROM quotes WHERE ` + where)
	var q models.Quote
	err := r.db.Get(&q, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get quote: %w", err)
	}
	return &q, nil
}

// ByCommission returns every quote placed on a commission, oldest first.
func (r *QuoteSQLRepository) ByCommission(commissionID string) ([]*models.Quote, error) {
	query := r.db.Convert(`SELECT ` + quoteColumns + ` FROM quotes WHERE commission_id = ? ORDER BY created_at ASC`)
	var quotes []*models.Quote
	if err := r.db.Select(&quotes, query, commissionID); err != nil {
		return nil, fmt.Errorf("failed to list quotes: %w", err)
	}
	return quotes, nil
}

// Update persists the quote's status, price and message binding.
func (r *QuoteSQLRepository) Update(quote *models.Quote) error {
	query := r.db.Convert(`
		UPDATE quotes SET price = ?, status = ?, message = ?, message_id = ? WHERE id = ?`)
	res, err := r.db.Exec(query, quote.Price, quote.Status, quote.Message, quote.MessageID, quote.ID)
	if err != nil {
		return fmt.Errorf("failed to update quote: %w", err)
	}
	rows, err := res.RowsAffected()
	if err == nil && rows == 0 {
		return fmt.Errorf("quote %s not found", quote.ID)
	}
	return nil
}
