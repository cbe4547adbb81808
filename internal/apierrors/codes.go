// Package apierrors provides structured error codes shared by the HTTP
// boundary and the chat interaction boundary.
// All codes are namespaced (e.g., "ticket:cooldown", "gateway:unknown").
package apierrors

import "net/http"

const (
	// Core
	CodeInvalidRequest = "core:invalid_request"
	CodeNotFound       = "core:not_found"
	CodeInternalError  = "core:internal_error"

	// Ticket lifecycle
	CodeTicketDisabled        = "ticket:disabled"
	CodeTicketCooldown        = "ticket:cooldown"
	CodeTicketClaimed         = "ticket:claimed"
	CodeTicketAlreadyArchived = "ticket:already_archived"
	CodeTicketNotArchived     = "ticket:not_archived"
	CodeTicketUnavailable     = "ticket:unavailable"

	// Quoting
	CodeQuoteInvalidAmount = "quote:invalid_amount"
	CodeQuoteAlreadyDenied = "quote:already_denied"

	// Invoicing
	CodeInvoiceActiveExists = "invoice:active_exists"
	CodeInvoiceAlreadyPaid  = "invoice:already_paid"
	CodeInvoiceNotFound     = "invoice:not_found"

	// Gateways
	CodeGatewayUnknown      = "gateway:unknown"
	CodeGatewayCreateFailed = "gateway:create_failed"
	CodeGatewayBadConfig    = "gateway:bad_config"

	// Banking
	CodeServiceCutOverflow = "bank:service_cut_overflow"
)

var coreErrors = []ErrorCode{
	{Code: CodeInvalidRequest, Message: "Invalid request body", HTTPStatus: http.StatusBadRequest},
	{Code: CodeNotFound, Message: "Resource not found", HTTPStatus: http.StatusNotFound},
	{Code: CodeInternalError, Message: "Internal server error", HTTPStatus: http.StatusInternalServerError},

	{Code: CodeTicketDisabled, Message: "This ticket type is disabled", HTTPStatus: http.StatusForbidden},
	{Code: CodeTicketCooldown, Message: "You are creating tickets too quickly", HTTPStatus: http.StatusTooManyRequests},
	{Code: CodeTicketClaimed, Message: "This ticket is already claimed", HTTPStatus: http.StatusConflict},
	{Code: CodeTicketAlreadyArchived, Message: "This ticket is already archived", HTTPStatus: http.StatusConflict},
	{Code: CodeTicketNotArchived, Message: "This ticket is not archived", HTTPStatus: http.StatusConflict},
	{Code: CodeTicketUnavailable, Message: "Ticket is unavailable", HTTPStatus: http.StatusNotFound},

	{Code: CodeQuoteInvalidAmount, Message: "Invalid quote amount", HTTPStatus: http.StatusBadRequest},
	{Code: CodeQuoteAlreadyDenied, Message: "You already declined this commission", HTTPStatus: http.StatusConflict},

	{Code: CodeInvoiceActiveExists, Message: "An active invoice already exists for this ticket", HTTPStatus: http.StatusConflict},
	{Code: CodeInvoiceAlreadyPaid, Message: "Invoice is already paid", HTTPStatus: http.StatusConflict},
	{Code: CodeInvoiceNotFound, Message: "Invoice not found", HTTPStatus: http.StatusNotFound},

	{Code: CodeGatewayUnknown, Message: "Unknown payment gateway", HTTPStatus: http.StatusNotFound},
	{Code: CodeGatewayCreateFailed, Message: "Payment creation failed", HTTPStatus: http.StatusBadGateway},
	{Code: CodeGatewayBadConfig, Message: "Gateway configuration is invalid", HTTPStatus: http.StatusInternalServerError},

	{Code: CodeServiceCutOverflow, Message: "Service cut shares exceed 100%", HTTPStatus: http.StatusBadRequest},
}

func init() {
	for _, e := range coreErrors {
		Registry.Register(e)
	}
}
