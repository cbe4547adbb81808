package ticket

import (
	"context"
	"fmt"

	"github.com/craftdesk/craftdesk/internal/chat"
	"github.com/craftdesk/craftdesk/internal/models"
)

// Application is a join-the-team ticket. Intake picks the positions
// applied for; the answers land in the admin log for review.
type Application struct {
	base
}

func (a *Application) Start(ctx context.Context, startIntake bool) error {
	return a.start(ctx, "Thanks for applying! Please answer the questions below to complete your application.", startIntake)
}

func (a *Application) FinalizePrompts(ctx context.Context, session *models.PromptSession) error {
	if a.t.SelectedService == "" {
		return fmt.Errorf("application %s finished intake without selected positions", a.t.ID)
	}

	fields := []chat.Field{
		{Name: "Ticket", Value: fmt.Sprintf("%s (`%s`)", channelMention(a.t.ChannelID), a.t.ID)},
		{Name: "Positions", Value: a.positionNames()},
	}
	fields = append(fields, responseFields(session)...)
	a.m.adminLog(ctx, chat.Message{
		Kind:   chat.KindSuccess,
		Title:  "New application",
		Fields: fields,
	})

	a.t.Pending = false
	if err := a.finalName(ctx, "application"); err != nil {
		return err
	}
	if err := a.m.deps.Tickets.Update(a.t); err != nil {
		return err
	}

	welcome := append([]chat.Field{{Name: "Positions", Value: a.positionNames()}}, responseFields(session)...)
	a.editWelcome(ctx, "Application received", welcome)
	return nil
}

// positionNames maps the stored service ids back to display names.
func (a *Application) positionNames() string {
	names := ""
	for _, id := range splitSelected(a.t.SelectedService) {
		name := id
		if svc := a.m.cfg.ServiceByID(id); svc != nil {
			name = svc.Name
		}
		if names != "" {
			names += ", "
		}
		names += name
	}
	if names == "" {
		return a.t.SelectedService
	}
	return names
}
