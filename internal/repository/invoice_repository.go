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

// InvoiceRepository defines the interface for invoice persistence.
type InvoiceRepository interface {
	Create(invoice *models.Invoice) error
	GetByID(id string) (*models.Invoice, error)
	GetByReference(gatewayID, reference string) (*models.Invoice, error)
	GetActiveByTicket(ticketID string) (*models.Invoice, error)
	Update(invoice *models.Invoice) error
	FindOpen() ([]*models.Invoice, error)
}

// InvoiceSQLRepository handles database operations for the invoices table.
type InvoiceSQLRepository struct {
	db *database.DB
}

// NewInvoiceRepository creates a new invoice repository.
func NewInvoiceRepository(db *database.DB) *InvoiceSQLRepository {
	return &InvoiceSQLRepository{db: db}
}

const invoiceColumns = `id, ticket_id, user_id, amount, tax, gateway_id, gateway_reference,
	payment_url, paid, paid_amount, manual, started, cancelled,
	message_channel_id, message_id, created_at, updated_at`

// Create inserts a new invoice. A missing ID is generated.
func (r *InvoiceSQLRepository) Create(invoice *models.Invoice) error {
	if invoice.ID == "" {
		invoice.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	invoice.CreatedAt = now
	invoice.UpdatedAt = now

	query := r.db.Convert(`
		INSERT INTO invoices (` + invoiceColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.Exec(query,
		invoice.ID, invoice.TicketID, invoice.UserID, invoice.Amount, invoice.Tax, invoice.GatewayID, invoice.GatewayReference,
		invoice.PaymentURL, invoice.Paid, invoice.PaidAmount, invoice.Manual, invoice.Started, invoice.Cancelled,
		invoice.MessageChannelID, invoice.MessageID, invoice.CreatedAt, invoice.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create invoice: %w", err)
	}
	return nil
}

// GetByID returns the invoice with the given ID, or nil when absent.
func (r *InvoiceSQLRepository) GetByID(id string) (*models.Invoice, error) {
	return r.one("id = ?", id)
}

// GetByReference resolves a gateway's external payment reference back to
// the invoice it belongs to, or nil when no invoice carries it.
func (r *InvoiceSQLRepository) GetByReference(gatewayID, reference string) (*models.Invoice, error) {
	return r.one("gateway_id = ? AND gateway_reference = ?", gatewayID, reference)
}

// GetActiveByTicket returns the ticket's invoice that is neither paid nor
// cancelled, or nil when the ticket has no active invoice.
func (r *InvoiceSQLRepository) GetActiveByTicket(ticketID string) (*models.Invoice, error) {
	return r.one("ticket_id = ? AND paid = ? AND cancelled = ?", ticketID, false, false)
}

func (r *InvoiceSQLRepository) one(where string, args ...interface{}) (*models.Invoice, error) {
	query := r.db.Convert(`SELECT ` + invoiceColumns + ` FROM invoices WHERE ` + where)
	var inv models.Invoice
	err := r.db.Get(&inv, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return &inv, nil
}

// Update persists every mutable column of the invoice.
func (r *InvoiceSQLRepository) Update(invoice *models.Invoice) error {
	invoice.UpdatedAt = time.Now().UTC()
	query := r.db.Convert(`
		UPDATE invoices SET
			gateway_reference = ?, payment_url = ?, paid = ?, paid_amount = ?,
			started = ?, cancelled = ?, message_channel_id = ?, message_id = ?, updated_at = ?
		WHERE id = ?`)
	res, err := r.db.Exec(query,
		invoice.GatewayReference, invoice.PaymentURL, invoice.Paid, invoice.PaidAmount,
		invoice.Started, invoice.Cancelled, invoice.MessageChannelID, invoice.MessageID, invoice.UpdatedAt,
		invoice.ID)
	if err != nil {
		return fmt.Errorf("failed to update invoice: %w", err)
	}
	rows, err := res.RowsAffected()
	if err == nil && rows == 0 {
		return fmt.Errorf("invoice %s not found", invoice.ID)
	}
	return nil
}

// FindOpen returns every invoice that has been started but is neither
// paid nor cancelled. The payment poller walks this set.
func (r *InvoiceSQLRepository) FindOpen() ([]*models.Invoice, error) {
	query := r.db.Convert(`
		SELECT ` + invoiceColumns + ` FROM invoices
		WHERE started = ? AND paid = ? AND cancelled = ?`)
	var invoices []*models.Invoice
	if err := r.db.Select(&invoices, query, true, false, false); err != nil {
		return nil, fmt.Errorf("failed to list open invoices: %w", err)
	}
	return invoices, nil
}
