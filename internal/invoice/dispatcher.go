package invoice

import (
	"context"
	"errors"
	"log"

	"github.com/craftdesk/craftdesk/internal/apierrors"
	"github.com/craftdesk/craftdesk/internal/gateway"
	"github.com/craftdesk/craftdesk/internal/repository"
)

// Dispatcher is the push half of reconciliation: it resolves an inbound
// provider callback to a gateway and an invoice, lets the gateway verify
// and translate it, and applies the resulting events through the ledger.
type Dispatcher struct {
	gateways *gateway.Registry
	invoices repository.InvoiceRepository
	ledger   *Ledger
}

// NewDispatcher creates the webhook dispatcher.
func NewDispatcher(gateways *gateway.Registry, invoices repository.InvoiceRepository, ledger *Ledger) *Dispatcher {
	return &Dispatcher{gateways: gateways, invoices: invoices, ledger: ledger}
}

// Dispatch handles one raw callback addressed to a gateway id. Unknown
// gateways and unmatched references are reported to the caller; failed
// authenticity verification is dropped silently so the endpoint leaks
// nothing about why a forged callback did not stick.
func (d *Dispatcher) Dispatch(ctx context.Context, gatewayID string, cb *gateway.Callback) error {
	gw := d.gateways.Get(gatewayID)
	if gw == nil {
		return apierrors.NewUserError(apierrors.CodeGatewayUnknown)
	}

	reference := gw.ReferenceID(cb)
	if reference == "" {
		return apierrors.NewUserError(apierrors.CodeInvoiceNotFound)
	}
	inv, err := d.invoices.GetByReference(gatewayID, reference)
	if err != nil {
		return err
	}
	if inv == nil {
		return apierrors.NewUserError(apierrors.CodeInvoiceNotFound)
	}

	events, err := gw.HandleWebhook(ctx, cb, inv)
	if err != nil {
		if errors.Is(err, gateway.ErrVerificationFailed) {
			log.Printf("[dispatcher] dropped unverified %s callback for invoice %s", gatewayID, inv.ID)
			return nil
		}
		return err
	}

	for _, ev := range events {
		if err := d.ledger.ApplyEvent(ctx, inv.ID, ev); err != nil {
			return err
		}
	}
	return nil
}
