// Package invoice holds the reconciliation core: a pure transition
// function over invoice state, the ledger service that persists its
// results, and the webhook dispatcher feeding it from the push path.
package invoice

import (
	"fmt"

	"github.com/craftdesk/craftdesk/internal/chat"
	"github.com/craftdesk/craftdesk/internal/gateway"
	"github.com/craftdesk/craftdesk/internal/models"
)

// EffectKind discriminates the side effects a transition requests.
type EffectKind string

const (
	// EffectNotify posts a status notice to the ticket channel.
	EffectNotify EffectKind = "notify"
	// EffectRender re-renders the invoice summary message.
	EffectRender EffectKind = "render"
	// EffectGrantClientRole fires on the first full payment.
	EffectGrantClientRole EffectKind = "grant_client_role"
)

// Effect is a side effect requested by Apply. Effects are descriptions;
// the ledger executes them after persisting the new state.
type Effect struct {
	Kind        EffectKind
	MessageKind chat.MessageKind
	Text        string
}

// Apply folds one reconciliation event into an invoice. It is pure: the
// returned invoice is the new state, and the effects describe what should
// happen if that state is persisted. Both delivery paths, webhook and
// poll, go through here, so every rule must hold under redundant and
// out-of-order delivery:
//
//   - paid is idempotent: a second full-payment event is a no-op.
//   - partially_paid is monotonic: an amount at or below the recorded
//     paidAmount is a stale observation and changes nothing.
//   - crypto_pending is informational only.
func Apply(inv models.Invoice, ev gateway.Event) (models.Invoice, []Effect) {
	switch ev.Kind {
	case gateway.EventPaid:
		if inv.Paid {
			return inv, nil
		}
		inv.Paid = true
		inv.PaidAmount = ev.Amount
		return inv, []Effect{
			{Kind: EffectNotify, MessageKind: chat.KindSuccess,
				Text: fmt.Sprintf("Invoice fully paid: %s%.2f received.", CurrencySymbol(ev.Currency), ev.Amount)},
			{Kind: EffectRender},
			{Kind: EffectGrantClientRole},
		}

	case gateway.EventPartiallyPaid:
		if ev.Amount <= inv.PaidAmount {
			return inv, nil
		}
		inv.PaidAmount = ev.Amount
		return inv, []Effect{
			{Kind: EffectNotify, MessageKind: chat.KindWarn,
				Text: fmt.Sprintf("Partial payment received: %s%.2f of %s%.2f.",
					CurrencySymbol(ev.Currency), ev.Amount, CurrencySymbol(ev.Currency), inv.TotalDue())},
			{Kind: EffectRender},
		}

	case gateway.EventCryptoPending:
		return inv, []Effect{
			{Kind: EffectNotify, MessageKind: chat.KindInfo,
				Text: "A charge was made but is not yet verified on-chain. The invoice will update once it confirms."},
		}

	case gateway.EventCancelled:
		if inv.Cancelled {
			return inv, nil
		}
		inv.Cancelled = true
		return inv, []Effect{
			{Kind: EffectNotify, MessageKind: chat.KindError, Text: "The payment was cancelled upstream."},
			{Kind: EffectRender},
		}

	default:
		return inv, nil
	}
}

var currencySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"AUD": "A$",
	"CAD": "C$",
}

// CurrencySymbol maps an ISO code to its display symbol, falling back to
// the code itself.
func CurrencySymbol(code string) string {
	if sym, ok := currencySymbols[code]; ok {
		return sym
	}
	return code + " "
}
