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

// BankRepository defines the interface for bank account persistence.
type BankRepository interface {
	GetOrCreate(userID string) (*models.Bank, error)
	GetByUser(userID string) (*models.Bank, error)
	Credit(userID string, amount float64, txType, note string) error
	TransactionsByUser(userID string, limit int) ([]*models.Transaction, error)
	BalanceFromLedger(userID string) (float64, error)
}

// BankSQLRepository handles database operations for banks and transactions.
type BankSQLRepository struct {
	db *database.DB
}

// NewBankRepository creates a new bank repository.
func NewBankRepository(db *database.DB) *BankSQLRepository {
	return &BankSQLRepository{db: db}
}

// GetOrCreate returns the user's bank account, creating an empty one on
// first use.
func (r *BankSQLRepository) GetOrCreate(userID string) (*models.Bank, error) {
	bank, err := r.GetByUser(userID)
	if err != nil {
		return nil, err
	}
	if bank != nil {
		return bank, nil
	}

	now := time.Now().UTC()
	bank = &models.Bank{
		ID:        uuid.NewString(),
		UserID:    userID,
		Balance:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}
	query := r.db.Convert(`
		INSERT INTO banks (id, user_id, balance, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`)
	if _, err := r.db.Exec(query, bank.ID, bank.UserID, bank.Balance, bank.CreatedAt, bank.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to create bank account: %w", err)
	}
	return bank, nil
}

// GetByUser returns the user's bank account, or nil when none exists.
func (r *BankSQLRepository) GetByUser(userID string) (*models.Bank, error) {
	query := r.db.Convert(`SELECT id, user_id, balance, created_at, updated_at FROM banks WHERE user_id = ?`)
	var bank models.Bank
	err := r.db.Get(&bank, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bank account: %w", err)
	}
	return &bank, nil
}

// Credit adjusts the user's balance and records the ledger entry in one
// database transaction, so the balance and the ledger cannot drift apart.
// Negative amounts debit the account.
func (r *BankSQLRepository) Credit(userID string, amount float64, txType, note string) error {
	if _, err := r.GetOrCreate(userID); err != nil {
		return err
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	updateQuery := r.db.Convert(`UPDATE banks SET balance = balance + ?, updated_at = ? WHERE user_id = ?`)
	if _, err = tx.Exec(updateQuery, amount, now, userID); err != nil {
		return fmt.Errorf("failed to credit bank account: %w", err)
	}

	insertQuery := r.db.Convert(`
		INSERT INTO transactions (id, user_id, type, amount, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if _, err = tx.Exec(insertQuery, uuid.NewString(), userID, txType, amount, note, now); err != nil {
		return fmt.Errorf("failed to record transaction: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit credit: %w", err)
	}
	return nil
}

// TransactionsByUser returns a user's most recent ledger entries.
func (r *BankSQLRepository) TransactionsByUser(userID string, limit int) ([]*models.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	query := r.db.Convert(`
		SELECT id, user_id, type, amount, note, created_at FROM transactions
		WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`)
	var txs []*models.Transaction
	if err := r.db.Select(&txs, query, userID, limit); err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txs, nil
}

// BalanceFromLedger recomputes a balance by summing the ledger. Used to
// audit the cached balance column.
func (r *BankSQLRepository) BalanceFromLedger(userID string) (float64, error) {
	query := r.db.Convert(`SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE user_id = ?`)
	var total float64
	if err := r.db.Get(&total, query, userID); err != nil {
		return 0, fmt.Errorf("failed to sum ledger: %w", err)
	}
	return total, nil
}
