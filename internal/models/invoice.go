package models

import "time"

// Invoice is the financial record for one payment request tied to a
// ticket. Rows are never deleted; cancellation is a flag.
type Invoice struct {
	ID       string `db:"id" json:"id"`
	TicketID string `db:"ticket_id" json:"ticket_id"`
	UserID   string `db:"user_id" json:"user_id"`

	// Amount is the principal. Tax is the gateway handling-fee rate
	// (0.10 means 10%), recorded when a payment is started.
	Amount float64 `db:"amount" json:"amount"`
	Tax    float64 `db:"tax" json:"tax"`

	GatewayID        string `db:"gateway_id" json:"gateway_id"`
	GatewayReference string `db:"gateway_reference" json:"gateway_reference"`
	PaymentURL       string `db:"payment_url" json:"payment_url"`

	Paid       bool    `db:"paid" json:"paid"`
	PaidAmount float64 `db:"paid_amount" json:"paid_amount"`
	Manual     bool    `db:"manual" json:"manual"`
	Started    bool    `db:"started" json:"started"`
	Cancelled  bool    `db:"cancelled" json:"cancelled"`

	// Channel/message where the invoice summary is rendered.
	MessageChannelID string `db:"message_channel_id" json:"message_channel_id"`
	MessageID        string `db:"message_id" json:"message_id"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// TotalDue is the principal plus the handling fee.
func (i *Invoice) TotalDue() float64 {
	return i.Amount * (1 + i.Tax)
}

// Open reports whether the invoice still needs reconciliation: started,
// not cancelled, not fully paid.
func (i *Invoice) Open() bool {
	return i.Started && !i.Cancelled && !i.Paid
}

// Active reports whether the invoice blocks creation of another one for
// the same ticket: any non-cancelled, unpaid invoice is active.
func (i *Invoice) Active() bool {
	return !i.Cancelled && !i.Paid
}
