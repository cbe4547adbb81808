package invoice

import (
	"context"
	"fmt"
	"log"

	"github.com/craftdesk/craftdesk/internal/apierrors"
	"github.com/craftdesk/craftdesk/internal/chat"
	"github.com/craftdesk/craftdesk/internal/gateway"
	"github.com/craftdesk/craftdesk/internal/models"
	"github.com/craftdesk/craftdesk/internal/repository"
)

// Ledger owns invoice lifecycle: creation, payment start, reconciliation
// event application, manual marking and cancellation. All writes re-read
// the row first so redundant deliveries converge instead of clobbering.
type Ledger struct {
	invoices repository.InvoiceRepository
	tickets  repository.TicketRepository
	gateways *gateway.Registry
	platform chat.Platform

	// clientRoleID, when set, is granted to the payer on the first full
	// payment.
	clientRoleID string
}

// LedgerOption configures a Ledger.
type LedgerOption func(*Ledger)

// WithClientRole enables the grant-role-on-first-payment side effect.
func WithClientRole(roleID string) LedgerOption {
	return func(l *Ledger) { l.clientRoleID = roleID }
}

// NewLedger creates the invoice ledger service.
func NewLedger(invoices repository.InvoiceRepository, tickets repository.TicketRepository, gateways *gateway.Registry, platform chat.Platform, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		invoices: invoices,
		tickets:  tickets,
		gateways: gateways,
		platform: platform,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Create opens a new invoice on a ticket. A ticket carries at most one
// active invoice at a time; a second create is rejected until the first
// is paid or cancelled.
func (l *Ledger) Create(ctx context.Context, ticket *models.Ticket, amount float64) (*models.Invoice, error) {
	active, err := l.invoices.GetActiveByTicket(ticket.ID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, apierrors.NewUserError(apierrors.CodeInvoiceActiveExists)
	}

	inv := &models.Invoice{
		TicketID:         ticket.ID,
		UserID:           ticket.AuthorID,
		Amount:           amount,
		MessageChannelID: ticket.ChannelID,
	}
	if err := l.invoices.Create(inv); err != nil {
		return nil, err
	}

	ticket.InvoiceID = inv.ID
	if err := l.tickets.Update(ticket); err != nil {
		return nil, err
	}

	if err := l.Render(ctx, inv); err != nil {
		log.Printf("[invoice] failed to render invoice %s: %v", inv.ID, err)
	}
	return inv, nil
}

// StartPayment opens the payment upstream on the chosen gateway and
// records the hosted URL, reference and fee rate. Provider failures
// propagate so the invoking command fails visibly.
func (l *Ledger) StartPayment(ctx context.Context, inv *models.Invoice, gatewayID, title, description string) error {
	if inv.Paid {
		return apierrors.NewUserError(apierrors.CodeInvoiceAlreadyPaid)
	}
	gw := l.gateways.Get(gatewayID)
	if gw == nil {
		return apierrors.NewUserError(apierrors.CodeGatewayUnknown)
	}

	res, err := gw.CreatePayment(ctx, gateway.CreatePaymentRequest{
		Amount:      inv.Amount,
		Title:       title,
		Description: description,
	})
	if err != nil {
		log.Printf("[invoice] payment creation failed on %s for invoice %s: %v", gatewayID, inv.ID, err)
		return apierrors.NewUserError(apierrors.CodeGatewayCreateFailed)
	}

	inv.Started = true
	inv.PaymentURL = res.URL
	inv.Tax = gw.FeeRate()
	inv.GatewayID = gatewayID
	inv.GatewayReference = res.Reference
	if err := l.invoices.Update(inv); err != nil {
		return err
	}
	return l.Render(ctx, inv)
}

// MarkPaid records a manual full payment, e.g. staff confirming an
// email-link transfer. It flows through the same transition as gateway
// events, so it is idempotent too.
func (l *Ledger) MarkPaid(ctx context.Context, invoiceID string) error {
	inv, err := l.invoices.GetByID(invoiceID)
	if err != nil {
		return err
	}
	if inv == nil {
		return apierrors.NewUserError(apierrors.CodeInvoiceNotFound)
	}
	inv.Manual = true
	if err := l.invoices.Update(inv); err != nil {
		return err
	}
	currency := "USD"
	if gw := l.gateways.Get(inv.GatewayID); gw != nil {
		currency = gw.Currency()
	}
	return l.ApplyEvent(ctx, inv.ID, gateway.Event{Kind: gateway.EventPaid, Amount: inv.TotalDue(), Currency: currency})
}

// Cancel cancels the invoice locally and attempts the upstream cancel
// best effort; a provider failure is logged, never blocking.
func (l *Ledger) Cancel(ctx context.Context, invoiceID string) error {
	inv, err := l.invoices.GetByID(invoiceID)
	if err != nil {
		return err
	}
	if inv == nil {
		return apierrors.NewUserError(apierrors.CodeInvoiceNotFound)
	}
	if inv.Paid {
		return apierrors.NewUserError(apierrors.CodeInvoiceAlreadyPaid)
	}

	if gw := l.gateways.Get(inv.GatewayID); gw != nil {
		if err := gw.CancelPayment(ctx, inv); err != nil {
			log.Printf("[invoice] upstream cancel failed for invoice %s: %v", inv.ID, err)
		}
	}

	inv.Cancelled = true
	if err := l.invoices.Update(inv); err != nil {
		return err
	}
	return l.Render(ctx, inv)
}

// ApplyEvent re-reads the invoice, folds the event through the pure
// transition, persists the result and runs the requested effects. Safe
// to call redundantly from both the webhook and the poll path.
func (l *Ledger) ApplyEvent(ctx context.Context, invoiceID string, ev gateway.Event) error {
	inv, err := l.invoices.GetByID(invoiceID)
	if err != nil {
		return err
	}
	if inv == nil {
		return apierrors.NewUserError(apierrors.CodeInvoiceNotFound)
	}

	next, effects := Apply(*inv, ev)
	if next != *inv {
		if err := l.invoices.Update(&next); err != nil {
			return err
		}
	}
	transitionsTotal.WithLabelValues(string(ev.Kind), inv.GatewayID).Inc()
	l.runEffects(ctx, &next, effects)
	return nil
}

func (l *Ledger) runEffects(ctx context.Context, inv *models.Invoice, effects []Effect) {
	for _, eff := range effects {
		switch eff.Kind {
		case EffectNotify:
			channelID, err := l.channelFor(ctx, inv)
			if err != nil || channelID == "" {
				continue
			}
			if _, err := l.platform.Send(ctx, channelID, chat.Message{Kind: eff.MessageKind, Body: eff.Text}); err != nil {
				log.Printf("[invoice] failed to post update for invoice %s: %v", inv.ID, err)
			}
		case EffectRender:
			if err := l.Render(ctx, inv); err != nil {
				log.Printf("[invoice] failed to render invoice %s: %v", inv.ID, err)
			}
		case EffectGrantClientRole:
			l.grantClientRole(ctx, inv)
		}
	}
}

func (l *Ledger) grantClientRole(ctx context.Context, inv *models.Invoice) {
	if l.clientRoleID == "" {
		return
	}
	ticket, err := l.tickets.GetByInvoice(inv.ID)
	if err != nil || ticket == nil {
		return
	}
	if err := l.platform.GrantRole(ctx, ticket.GuildID, inv.UserID, l.clientRoleID); err != nil {
		log.Printf("[invoice] failed to grant client role to %s: %v", inv.UserID, err)
	}
}

func (l *Ledger) channelFor(ctx context.Context, inv *models.Invoice) (string, error) {
	if inv.MessageChannelID != "" {
		return inv.MessageChannelID, nil
	}
	ticket, err := l.tickets.GetByInvoice(inv.ID)
	if err != nil {
		return "", err
	}
	if ticket == nil {
		return "", nil
	}
	return ticket.ChannelID, nil
}

// Render draws the invoice summary, editing the previous message in
// place when one exists so the channel carries a single live summary.
func (l *Ledger) Render(ctx context.Context, inv *models.Invoice) error {
	channelID, err := l.channelFor(ctx, inv)
	if err != nil {
		return err
	}
	if channelID == "" {
		return nil
	}

	msg := l.summaryMessage(inv)
	if inv.MessageID != "" {
		return l.platform.Edit(ctx, channelID, inv.MessageID, msg)
	}
	messageID, err := l.platform.Send(ctx, channelID, msg)
	if err != nil {
		return err
	}
	inv.MessageID = messageID
	inv.MessageChannelID = channelID
	return l.invoices.Update(inv)
}

func (l *Ledger) summaryMessage(inv *models.Invoice) chat.Message {
	currency := "USD"
	if gw := l.gateways.Get(inv.GatewayID); gw != nil {
		currency = gw.Currency()
	} else if all := l.gateways.All(); len(all) > 0 {
		currency = all[0].Currency()
	}
	sym := CurrencySymbol(currency)
	price := fmt.Sprintf("%s%.2f", sym, inv.Amount)
	total := fmt.Sprintf("%s%.2f", sym, inv.TotalDue())

	switch {
	case inv.Cancelled:
		fields := []chat.Field{{Name: "Amount", Value: price}}
		if inv.Tax != 0 {
			fields = append(fields, chat.Field{
				Name:  fmt.Sprintf("Handling Fee (%.0f%%)", inv.Tax*100),
				Value: fmt.Sprintf("%s%.2f", sym, inv.Amount*inv.Tax),
			})
		}
		fields = append(fields,
			chat.Field{Name: "Total", Value: total},
			chat.Field{Name: "Status", Value: "Cancelled"},
		)
		return chat.Message{
			Kind:   chat.KindError,
			Title:  "Invoice #" + inv.ID,
			Body:   fmt.Sprintf("Invoice for %s %s", price, currency),
			Fields: fields,
		}

	case !inv.Started:
		// Not started: offer one pay button per activated gateway, with
		// the fee-inclusive total each would charge.
		var fields []chat.Field
		var buttons []chat.Button
		for _, gw := range l.gateways.All() {
			gwTotal := gateway.Taxed(inv.Amount, gw.FeeRate())
			value := fmt.Sprintf("**%s%.2f**", CurrencySymbol(gw.Currency()), gwTotal)
			if gw.FeeRate() != 0 {
				value = fmt.Sprintf("%s (+%.0f%% handling fee) = %s", price, gw.FeeRate()*100, value)
			}
			fields = append(fields, chat.Field{Name: gw.Metadata().Name, Value: value})
			buttons = append(buttons, chat.Button{
				CustomID: "generateinvoice-" + gw.Metadata().ID + "-" + inv.ID,
				Label:    gw.ButtonLabel(),
			})
		}
		return chat.Message{
			Kind:    chat.KindInfo,
			Title:   "Invoice #" + inv.ID,
			Body:    fmt.Sprintf("Invoice for %s %s\nChoose a payment method below.", price, currency),
			Fields:  fields,
			Buttons: buttons,
		}

	default:
		status := fmt.Sprintf("%s%.2f / %s paid", sym, inv.PaidAmount, total)
		if inv.Paid {
			status = "Paid in full: " + status
		}
		fields := []chat.Field{{Name: "Amount", Value: price}}
		if inv.Tax != 0 {
			fields = append(fields, chat.Field{
				Name:  fmt.Sprintf("Handling Fee (%.0f%%)", inv.Tax*100),
				Value: fmt.Sprintf("%s%.2f", sym, inv.Amount*inv.Tax),
			})
		}
		fields = append(fields,
			chat.Field{Name: "Total", Value: total},
			chat.Field{Name: "Status", Value: status},
		)
		msg := chat.Message{
			Kind:   chat.KindInfo,
			Title:  "Invoice #" + inv.ID,
			Body:   fmt.Sprintf("Invoice for %s %s", price, currency),
			Fields: fields,
		}
		if inv.Paid {
			msg.Kind = chat.KindSuccess
		} else if inv.PaymentURL != "" {
			msg.Buttons = []chat.Button{{Label: "Open payment page", URL: inv.PaymentURL}}
		}
		return msg
	}
}
