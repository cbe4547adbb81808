package ticket

import (
	"context"
	"strings"

	"github.com/craftdesk/craftdesk/internal/models"
)

// Support is a help ticket: intake answers are folded back into the
// welcome message so managers see the issue at a glance. No service
// selection, no quoting, no payment.
type Support struct {
	base
}

func (s *Support) Start(ctx context.Context, startIntake bool) error {
	return s.start(ctx, "Thanks for reaching out! Please answer the questions below so we can help you faster.", startIntake)
}

func (s *Support) FinalizePrompts(ctx context.Context, session *models.PromptSession) error {
	s.t.Pending = false
	if err := s.m.deps.Tickets.Update(s.t); err != nil {
		return err
	}
	s.editWelcome(ctx, "Support request", responseFields(session))
	return nil
}

// splitSelected splits a stored multi-select value.
func splitSelected(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ", ")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
