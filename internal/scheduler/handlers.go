package scheduler

import (
	"context"

	"github.com/craftdesk/craftdesk/internal/gateway"
)

func (s *Service) registerBuiltinHandlers() {
	s.RegisterHandler("invoice.poll", s.handleInvoicePoll)
	s.RegisterHandler("ticket.archiveTimers", s.handleArchiveTimers)
	s.RegisterHandler("ticket.deadlines", s.handleDeadlines)
	s.RegisterHandler("ticket.quoteReminders", s.handleQuoteReminders)
	s.RegisterHandler("cooldown.cleanup", s.handleCooldownCleanup)
}

// handleInvoicePoll is the pull path of payment reconciliation: every
// open invoice on a polling-mode gateway is refreshed and the resulting
// events run through the same ledger transition as webhooks. A refresh
// failure leaves the invoice untouched for the next sweep.
func (s *Service) handleInvoicePoll(ctx context.Context, _ *Job) error {
	open, err := s.invoices.FindOpen()
	if err != nil {
		return err
	}
	polled := 0
	for _, inv := range open {
		gw := s.gateways.Get(inv.GatewayID)
		if gw == nil || gw.Mode() != gateway.ModePolling {
			continue
		}
		events, _, err := gw.RefreshPayment(ctx, inv)
		if err != nil {
			if err != gateway.ErrRefreshUnsupported {
				s.opts.Logger.Printf("[scheduler] refresh of invoice %s via %s failed: %v", inv.ID, inv.GatewayID, err)
			}
			continue
		}
		polled++
		for _, ev := range events {
			if err := s.ledger.ApplyEvent(ctx, inv.ID, ev); err != nil {
				s.opts.Logger.Printf("[scheduler] failed to apply %s to invoice %s: %v", ev.Kind, inv.ID, err)
			}
		}
	}
	if polled > 0 {
		s.opts.Logger.Printf("[scheduler] payment poll refreshed %d invoice(s)", polled)
	}
	return nil
}

func (s *Service) handleArchiveTimers(ctx context.Context, _ *Job) error {
	n, err := s.manager.SweepArchiveTimers(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		s.opts.Logger.Printf("[scheduler] deferred archive closed %d ticket(s)", n)
	}
	return nil
}

func (s *Service) handleDeadlines(ctx context.Context, _ *Job) error {
	n, err := s.manager.SweepDeadlines(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		s.opts.Logger.Printf("[scheduler] cleared %d expired deadline(s)", n)
	}
	return nil
}

func (s *Service) handleQuoteReminders(ctx context.Context, _ *Job) error {
	n, err := s.manager.SweepQuoteReminders(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		s.opts.Logger.Printf("[scheduler] sent %d quote reminder(s)", n)
	}
	return nil
}

func (s *Service) handleCooldownCleanup(_ context.Context, _ *Job) error {
	n, err := s.cooldowns.DeleteExpired(s.opts.Now())
	if err != nil {
		return err
	}
	if n > 0 {
		s.opts.Logger.Printf("[scheduler] purged %d expired cooldown(s)", n)
	}
	return nil
}
