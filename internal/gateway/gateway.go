// Package gateway defines the payment provider abstraction and the
// compiled-in provider implementations. A Gateway talks to exactly one
// provider's REST API; reconciliation events flow back to the invoice
// ledger as typed Event values.
package gateway

import (
	"context"
	"errors"
	"net/http"

	"github.com/craftdesk/craftdesk/internal/models"
)

// Mode selects how a gateway reports payments back.
type Mode string

const (
	// ModeWebhook gateways push signed callbacks to the IPN endpoint.
	ModeWebhook Mode = "webhook"
	// ModePolling gateways are swept by the reconciliation loop.
	ModePolling Mode = "polling"
)

// EventKind discriminates reconciliation events.
type EventKind string

const (
	EventPaid          EventKind = "paid"
	EventPartiallyPaid EventKind = "partially_paid"
	EventCryptoPending EventKind = "crypto_pending"
	EventCancelled     EventKind = "cancelled"
)

// Event is a payment state observation reported by a gateway. Events are
// facts about the provider side; the ledger decides what, if anything,
// changes locally.
type Event struct {
	Kind     EventKind
	Amount   float64
	Currency string
}

// Metadata describes a gateway implementation.
type Metadata struct {
	ID              string
	Name            string
	Description     string
	Version         string
	SupportsRefresh bool
}

// Callback is a raw inbound provider callback: the unparsed body plus
// the headers carrying the provider's authenticity proof.
type Callback struct {
	Body   []byte
	Header http.Header
}

// CreatePaymentRequest describes the payment to open upstream.
type CreatePaymentRequest struct {
	Amount      float64
	Title       string
	Description string
}

// CreatePaymentResult carries the hosted payment URL and the provider's
// reference, stored on the invoice for later correlation.
type CreatePaymentResult struct {
	URL       string
	Reference string
}

// Status is the provider-side payment state reported by RefreshPayment.
type Status string

const (
	StatusPaid      Status = "paid"
	StatusPending   Status = "pending"
	StatusUnpaid    Status = "unpaid"
	StatusCancelled Status = "cancelled"
)

var (
	// ErrVerificationFailed marks a callback whose authenticity proof did
	// not check out. The dispatcher drops these silently.
	ErrVerificationFailed = errors.New("gateway: webhook verification failed")

	// ErrRefreshUnsupported marks gateways with no pull path.
	ErrRefreshUnsupported = errors.New("gateway: refresh not supported")
)

// Gateway is the provider capability set. Implementations are stateless
// beyond their validated config and are safe for concurrent use.
type Gateway interface {
	Metadata() Metadata
	Mode() Mode
	FeeRate() float64
	Currency() string
	ButtonLabel() string
	ButtonSort() int

	// CreatePayment opens a payment upstream. Errors propagate to the
	// caller so the invoking command fails visibly.
	CreatePayment(ctx context.Context, req CreatePaymentRequest) (*CreatePaymentResult, error)

	// ReferenceID extracts the provider reference from a raw callback
	// without side effects. It runs before any verification, purely to
	// locate the invoice. Empty string means the callback is unusable.
	ReferenceID(cb *Callback) string

	// HandleWebhook verifies the callback and translates it into events.
	// Returns ErrVerificationFailed when the authenticity proof fails.
	HandleWebhook(ctx context.Context, cb *Callback, inv *models.Invoice) ([]Event, error)

	// RefreshPayment pulls the provider-side state for an open invoice.
	RefreshPayment(ctx context.Context, inv *models.Invoice) ([]Event, Status, error)

	// CancelPayment is best effort; upstream failure does not block
	// local cancellation.
	CancelPayment(ctx context.Context, inv *models.Invoice) error
}

// Taxed returns the amount with the gateway's handling fee applied.
func Taxed(amount, feeRate float64) float64 {
	return amount * (1 + feeRate)
}
