package models

import "time"

// QuoteStatus tracks the lifecycle of one freelancer price offer.
type QuoteStatus int

const (
	QuotePending QuoteStatus = iota
	QuoteAccepted
	QuoteDeclined
	QuoteCountered
)

// Quote is one price offer from a freelancer on a commission ticket.
type Quote struct {
	ID           string      `db:"id" json:"id"`
	CommissionID string      `db:"commission_id" json:"commission_id"`
	FreelancerID string      `db:"freelancer_id" json:"freelancer_id"`
	Price        float64     `db:"price" json:"price"`
	Status       QuoteStatus `db:"status" json:"status"`
	Message      string      `db:"message" json:"message"`
	MessageID    string      `db:"message_id" json:"message_id"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
}

// ArchiveTimer is a deferred archive request swept by the scheduler.
// If MessageCancels is set, any new channel message deletes the timer
// before it fires.
type ArchiveTimer struct {
	ID             string    `db:"id" json:"id"`
	TicketID       string    `db:"ticket_id" json:"ticket_id"`
	UserID         string    `db:"user_id" json:"user_id"`
	ArchiveAfter   time.Time `db:"archive_after" json:"archive_after"`
	MessageCancels bool      `db:"message_cancels" json:"message_cancels"`
	Reason         string    `db:"reason" json:"reason"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Cooldown is a persisted ticket-creation rate limit entry, reloaded on
// startup so a restart does not reset limits.
type Cooldown struct {
	AuthorID  string    `db:"author_id" json:"author_id"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
}
