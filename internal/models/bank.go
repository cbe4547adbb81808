package models

import "time"

// Transaction types written by the revenue split.
const (
	TransactionCommissionRevenue = "COMMISSION_REVENUE"
	TransactionServiceCutRevenue = "SERVICE_CUT_REVENUE"
	TransactionWithdrawal        = "WITHDRAWAL"
)

// Bank caches one user's balance. The transaction ledger is the source
// of truth; the balance column is updated in the same SQL transaction as
// every ledger append.
type Bank struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Balance   float64   `db:"balance" json:"balance"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Transaction is one append-only ledger entry. Amount is signed:
// credits positive, withdrawals negative.
type Transaction struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Type      string    `db:"type" json:"type"`
	Amount    float64   `db:"amount" json:"amount"`
	Note      string    `db:"note" json:"note"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ServiceCut routes a percentage of commission revenue to one recipient.
// Shares for a guild must sum to at most 100, enforced when written.
type ServiceCut struct {
	ID         string  `db:"id" json:"id"`
	GuildID    string  `db:"guild_id" json:"guild_id"`
	UserID     string  `db:"user_id" json:"user_id"`
	Percentage float64 `db:"percentage" json:"percentage"`
}
