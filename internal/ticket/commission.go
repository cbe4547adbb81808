package ticket

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/craftdesk/craftdesk/internal/apierrors"
	"github.com/craftdesk/craftdesk/internal/chat"
	"github.com/craftdesk/craftdesk/internal/models"
)

// Commission is a paid-work ticket: intake selects a service, the log
// message collects freelancer quotes, an accepted quote assigns the
// freelancer and opens an invoice, and accepted delivery splits the
// revenue.
type Commission struct {
	base
}

func (c *Commission) Start(ctx context.Context, startIntake bool) error {
	return c.start(ctx, "Thanks for opening a commission! Please answer the questions below so our freelancers can quote your project.", startIntake)
}

// FinalizePrompts publishes the completed intake: creates the per-ticket
// quote channel when enabled, posts the commission log with quote and
// deny buttons, renames the channel after the selected service, and
// folds the answers into the welcome message.
func (c *Commission) FinalizePrompts(ctx context.Context, session *models.PromptSession) error {
	if c.t.SelectedService == "" {
		return fmt.Errorf("commission %s finished intake without a selected service", c.t.ID)
	}

	if c.m.cfg.Tickets.QuotesInChannels {
		if err := c.createQuoteChannel(ctx); err != nil {
			return err
		}
	}
	if err := c.sendLog(ctx, session); err != nil {
		return err
	}

	c.t.Pending = false
	now := c.m.now().UTC()
	c.t.LastQuoted = &now
	if err := c.finalName(ctx, c.serviceName()); err != nil {
		return err
	}
	if err := c.m.deps.Tickets.Update(c.t); err != nil {
		return err
	}

	fields := append([]chat.Field{{Name: "Service", Value: c.serviceName()}}, responseFields(session)...)
	c.editWelcome(ctx, "Commission details", fields)
	return nil
}

// serviceName resolves the display name of the selected service,
// falling back to the stored value for services removed from config.
func (c *Commission) serviceName() string {
	first := c.t.SelectedService
	if i := strings.Index(first, ", "); i >= 0 {
		first = first[:i]
	}
	if svc := c.m.cfg.ServiceByID(first); svc != nil {
		return svc.Name
	}
	return first
}

func (c *Commission) serviceRole() string {
	first := c.t.SelectedService
	if i := strings.Index(first, ", "); i >= 0 {
		first = first[:i]
	}
	if svc := c.m.cfg.ServiceByID(first); svc != nil && svc.RoleID != "" {
		return svc.RoleID
	}
	return c.m.cfg.Settings.FreelancerRole
}

// createQuoteChannel opens the freelancer-facing channel for this
// commission. Visible to the service role (or the freelancer role when
// the service has none) and managers.
func (c *Commission) createQuoteChannel(ctx context.Context) error {
	if c.t.QuoteChannelID != "" {
		if ch, err := c.m.deps.Platform.Channel(ctx, c.t.QuoteChannelID); err == nil && ch != nil {
			return nil
		}
	}
	name := fmt.Sprintf("quote-%s-%d", sanitizeName(c.serviceName()), c.t.Serial)
	ch, err := c.m.deps.Platform.CreateChannel(ctx, c.t.GuildID, chat.ChannelRequest{
		Name:           name,
		Topic:          "Quote discussion for " + channelMention(c.t.ChannelID),
		ParentID:       c.m.cfg.Settings.QuotesCategory,
		AllowedRoleIDs: []string{c.serviceRole(), c.m.cfg.Settings.ManagerRole},
	})
	if err != nil {
		return fmt.Errorf("failed to create quote channel: %w", err)
	}
	c.t.QuoteChannelID = ch.ID
	return c.m.deps.Tickets.Update(c.t)
}

func (c *Commission) deleteQuoteChannel(ctx context.Context) {
	if c.t.QuoteChannelID == "" {
		return
	}
	if err := c.m.deps.Platform.DeleteChannel(ctx, c.t.QuoteChannelID); err != nil {
		c.m.logger.Printf("[ticket] failed to delete quote channel for %s: %v", c.t.ID, err)
	}
	c.t.QuoteChannelID = ""
	if err := c.m.deps.Tickets.Update(c.t); err != nil {
		c.m.logger.Printf("[ticket] failed to clear quote channel id for %s: %v", c.t.ID, err)
	}
}

// logChannelID is where the commission log lives: the per-ticket quote
// channel when enabled, the admin log channel otherwise.
func (c *Commission) logChannelID() string {
	if c.m.cfg.Tickets.QuotesInChannels && c.t.QuoteChannelID != "" {
		return c.t.QuoteChannelID
	}
	return c.m.cfg.Settings.LogChannel
}

func (c *Commission) logMessage(session *models.PromptSession, title string, buttons bool) chat.Message {
	fields := []chat.Field{
		{Name: "Ticket", Value: fmt.Sprintf("%s (`%s`)", channelMention(c.t.ChannelID), c.t.ID)},
		{Name: "Service", Value: c.serviceName()},
	}
	if session != nil {
		fields = append(fields, responseFields(session)...)
	}
	msg := chat.Message{
		Kind:   chat.KindInfo,
		Title:  title,
		Body:   "<@&" + c.serviceRole() + ">",
		Fields: fields,
	}
	if buttons {
		msg.Buttons = []chat.Button{
			{CustomID: "quote-" + c.t.ID, Label: "Quote"},
			{CustomID: "message-new-" + c.t.ID, Label: "Message"},
			{CustomID: "denycommission-" + c.t.ID + "-x", Label: "Deny"},
		}
	}
	return msg
}

func (c *Commission) sendLog(ctx context.Context, session *models.PromptSession) error {
	ch := c.logChannelID()
	if ch == "" {
		return nil
	}
	msgID, err := c.m.deps.Platform.Send(ctx, ch, c.logMessage(session, "New commission", true))
	if err != nil {
		return fmt.Errorf("failed to send commission log: %w", err)
	}
	c.t.LogMessageID = msgID
	return c.m.deps.Tickets.Update(c.t)
}

// updateLog repaints the commission log to reflect the current state:
// available (buttons live), claimed, or archived.
func (c *Commission) updateLog(ctx context.Context) {
	if c.t.LogMessageID == "" {
		return
	}
	ch := c.logChannelID()
	if ch == "" {
		return
	}
	var msg chat.Message
	switch {
	case c.t.Closed:
		msg = c.logMessage(nil, "[Archived] Commission", false)
		msg.Kind = chat.KindError
	case c.t.FreelancerID != "":
		msg = c.logMessage(nil, "[Claimed] Commission", false)
		msg.Kind = chat.KindWarn
	default:
		msg = c.logMessage(nil, "Commission", true)
	}
	if err := c.m.deps.Platform.Edit(ctx, ch, c.t.LogMessageID, msg); err != nil {
		c.m.logger.Printf("[ticket] failed to update commission log for %s: %v", c.t.ID, err)
	}
}

// Archive tears the quote channel down before the shared archive flow,
// then repaints the log.
func (c *Commission) Archive(ctx context.Context, reason string, action models.ArchiveAction) error {
	c.deleteQuoteChannel(ctx)
	if err := c.base.Archive(ctx, reason, action); err != nil {
		return err
	}
	c.updateLog(ctx)
	return nil
}

// Unarchive restores the quote channel and reposts the log before the
// shared restore flow.
func (c *Commission) Unarchive(ctx context.Context) error {
	if !c.t.Closed {
		return apierrors.NewUserError(apierrors.CodeTicketNotArchived)
	}
	if c.m.cfg.Tickets.QuotesInChannels && !c.t.Complete {
		if err := c.createQuoteChannel(ctx); err != nil {
			return err
		}
		if err := c.sendLog(ctx, nil); err != nil {
			return err
		}
	}
	if err := c.base.Unarchive(ctx); err != nil {
		return err
	}
	c.updateLog(ctx)
	return nil
}

// SubmitQuote records a freelancer's price offer and presents it to the
// customer with accept/decline/counter actions.
func (c *Commission) SubmitQuote(ctx context.Context, freelancerID string, price float64, message string) (*models.Quote, error) {
	if price <= 0 {
		return nil, apierrors.NewUserError(apierrors.CodeQuoteInvalidAmount)
	}
	if c.t.FreelancerID != "" {
		return nil, apierrors.NewUserError(apierrors.CodeTicketClaimed)
	}
	if c.t.HasDenied(freelancerID) {
		return nil, apierrors.NewUserError(apierrors.CodeQuoteAlreadyDenied)
	}

	quote := &models.Quote{
		CommissionID: c.t.ID,
		FreelancerID: freelancerID,
		Price:        price,
		Status:       models.QuotePending,
		Message:      message,
	}
	if err := c.m.deps.Quotes.Create(quote); err != nil {
		return nil, fmt.Errorf("failed to save quote: %w", err)
	}

	msg := chat.Message{
		Kind:  chat.KindInfo,
		Title: "New quote",
		Body:  fmt.Sprintf("%s quoted **$%.2f** for this commission.", mention(freelancerID), price),
		Buttons: []chat.Button{
			{CustomID: "quoteaccept-" + quote.ID, Label: "Accept"},
			{CustomID: "quotedecline-" + quote.ID, Label: "Decline"},
			{CustomID: "quotecounter-" + quote.ID, Label: "Counteroffer"},
		},
	}
	if message != "" {
		msg.Fields = []chat.Field{{Name: "Message", Value: message}}
	}
	msgID, err := c.m.deps.Platform.Send(ctx, c.t.ChannelID, msg)
	if err != nil {
		return nil, fmt.Errorf("failed to post quote: %w", err)
	}
	quote.MessageID = msgID
	if err := c.m.deps.Quotes.Update(quote); err != nil {
		return nil, err
	}

	now := c.m.now().UTC()
	c.t.LastQuoted = &now
	if err := c.m.deps.Tickets.Update(c.t); err != nil {
		return nil, err
	}
	return quote, nil
}

// AcceptQuote assigns the quoting freelancer and opens an invoice for
// the quoted price.
func (c *Commission) AcceptQuote(ctx context.Context, quoteID string) error {
	quote, err := c.m.deps.Quotes.GetByID(quoteID)
	if err != nil {
		return err
	}
	if quote == nil || quote.CommissionID != c.t.ID {
		return apierrors.NewUserError(apierrors.CodeNotFound)
	}
	if c.t.FreelancerID != "" {
		return apierrors.NewUserError(apierrors.CodeTicketClaimed)
	}

	quote.Status = models.QuoteAccepted
	if err := c.m.deps.Quotes.Update(quote); err != nil {
		return err
	}
	if err := c.Assign(ctx, quote.FreelancerID); err != nil {
		return err
	}
	if _, err := c.m.deps.Ledger.Create(ctx, c.t, quote.Price); err != nil {
		return err
	}
	return nil
}

// DeclineQuote marks the quote declined and tells the freelancer.
func (c *Commission) DeclineQuote(ctx context.Context, quoteID string) error {
	quote, err := c.m.deps.Quotes.GetByID(quoteID)
	if err != nil {
		return err
	}
	if quote == nil || quote.CommissionID != c.t.ID {
		return apierrors.NewUserError(apierrors.CodeNotFound)
	}
	quote.Status = models.QuoteDeclined
	if err := c.m.deps.Quotes.Update(quote); err != nil {
		return err
	}
	if err := c.m.deps.Platform.SendDM(ctx, quote.FreelancerID, chat.Message{
		Kind: chat.KindInfo,
		Body: fmt.Sprintf("Your quote of $%.2f on %s-%d was declined.", quote.Price, c.serviceName(), c.t.Serial),
	}); err != nil {
		c.m.logger.Printf("[ticket] failed to DM declined freelancer %s: %v", quote.FreelancerID, err)
	}
	return nil
}

// CounterQuote answers a pending quote with a different price. The
// counter lands as a fresh pending quote from the same freelancer so
// either side can accept it.
func (c *Commission) CounterQuote(ctx context.Context, quoteID string, price float64) (*models.Quote, error) {
	if price <= 0 {
		return nil, apierrors.NewUserError(apierrors.CodeQuoteInvalidAmount)
	}
	quote, err := c.m.deps.Quotes.GetByID(quoteID)
	if err != nil {
		return nil, err
	}
	if quote == nil || quote.CommissionID != c.t.ID {
		return nil, apierrors.NewUserError(apierrors.CodeNotFound)
	}
	quote.Status = models.QuoteCountered
	if err := c.m.deps.Quotes.Update(quote); err != nil {
		return nil, err
	}

	counter := &models.Quote{
		CommissionID: c.t.ID,
		FreelancerID: quote.FreelancerID,
		Price:        price,
		Status:       models.QuotePending,
		Message:      fmt.Sprintf("Counteroffer to $%.2f", quote.Price),
	}
	if err := c.m.deps.Quotes.Create(counter); err != nil {
		return nil, err
	}
	if err := c.m.deps.Platform.SendDM(ctx, quote.FreelancerID, chat.Message{
		Kind:  chat.KindInfo,
		Title: "Counteroffer",
		Body: fmt.Sprintf("The customer countered your $%.2f quote on %s-%d with **$%.2f**.",
			quote.Price, c.serviceName(), c.t.Serial, price),
		Buttons: []chat.Button{
			{CustomID: "quoteaccept-" + counter.ID, Label: "Accept"},
			{CustomID: "quotedecline-" + counter.ID, Label: "Decline"},
		},
	}); err != nil {
		c.m.logger.Printf("[ticket] failed to DM counteroffer to %s: %v", quote.FreelancerID, err)
	}
	return counter, nil
}

// DenyProposal records that a freelancer declined to work this
// commission, removes their access to the quote channel, and logs the
// reason.
func (c *Commission) DenyProposal(ctx context.Context, freelancerID, reason string) error {
	if c.t.HasDenied(freelancerID) {
		return apierrors.NewUserError(apierrors.CodeQuoteAlreadyDenied)
	}
	c.t.AddDenier(freelancerID)
	if err := c.m.deps.Tickets.Update(c.t); err != nil {
		return err
	}

	dm := chat.Message{
		Kind: chat.KindInfo,
		Body: fmt.Sprintf("You denied %s-%d.", c.serviceName(), c.t.Serial),
	}
	if c.m.cfg.Tickets.QuotesInChannels {
		dm.Buttons = []chat.Button{{CustomID: "denyrejoin-" + c.t.ID, Label: "Rejoin"}}
	}
	if err := c.m.deps.Platform.SendDM(ctx, freelancerID, dm); err != nil {
		c.m.logger.Printf("[ticket] failed to DM denier %s: %v", freelancerID, err)
	}

	if reason == "" {
		reason = "Unknown"
	}
	fields := []chat.Field{
		{Name: "Ticket", Value: channelMention(c.t.ChannelID)},
	}
	if c.m.cfg.Tickets.QuotesInChannels && c.t.QuoteChannelID != "" {
		fields = append(fields, chat.Field{Name: "Quote channel", Value: channelMention(c.t.QuoteChannelID)})
	}
	fields = append(fields,
		chat.Field{Name: "Freelancer", Value: mention(freelancerID)},
		chat.Field{Name: "Reason", Value: reason},
	)
	c.m.adminLog(ctx, chat.Message{Kind: chat.KindInfo, Title: "Commission denied", Fields: fields})

	if c.m.cfg.Tickets.QuotesInChannels && c.t.QuoteChannelID != "" {
		if err := c.m.deps.Platform.SetOverwrite(ctx, c.t.QuoteChannelID, freelancerID, false); err != nil {
			c.m.logger.Printf("[ticket] failed to hide quote channel from %s: %v", freelancerID, err)
		}
	}
	return nil
}

// RejoinProposal reverses a deny.
func (c *Commission) RejoinProposal(ctx context.Context, freelancerID string) error {
	if c.t.HasDenied(freelancerID) {
		c.t.RemoveDenier(freelancerID)
		if err := c.m.deps.Tickets.Update(c.t); err != nil {
			return err
		}
	}
	if c.m.cfg.Tickets.QuotesInChannels && c.t.QuoteChannelID != "" {
		if err := c.m.deps.Platform.SetOverwrite(ctx, c.t.QuoteChannelID, freelancerID, true); err != nil {
			return fmt.Errorf("failed to restore quote channel access: %w", err)
		}
	}
	return nil
}

// Assign claims the commission for a freelancer: the quote channel goes
// away, the freelancer joins the ticket channel, and the log shows the
// claim.
func (c *Commission) Assign(ctx context.Context, freelancerID string) error {
	c.deleteQuoteChannel(ctx)
	if err := c.m.deps.Platform.SetOverwrite(ctx, c.t.ChannelID, freelancerID, true); err != nil {
		return fmt.Errorf("failed to add freelancer to channel: %w", err)
	}
	c.t.FreelancerID = freelancerID
	if err := c.m.deps.Tickets.Update(c.t); err != nil {
		return err
	}
	c.updateLog(ctx)
	return nil
}

// Unassign releases the claim and reopens the commission for quoting.
func (c *Commission) Unassign(ctx context.Context) error {
	if c.t.FreelancerID == "" {
		return nil
	}
	freelancerID := c.t.FreelancerID
	if c.m.cfg.Tickets.QuotesInChannels {
		if err := c.createQuoteChannel(ctx); err != nil {
			return err
		}
		if err := c.sendLog(ctx, nil); err != nil {
			return err
		}
	}
	if err := c.m.deps.Platform.SetOverwrite(ctx, c.t.ChannelID, freelancerID, false); err != nil {
		c.m.logger.Printf("[ticket] failed to remove freelancer %s from channel: %v", freelancerID, err)
	}
	c.t.FreelancerID = ""
	if err := c.m.deps.Tickets.Update(c.t); err != nil {
		return err
	}
	c.updateLog(ctx)
	return nil
}

// AcceptDelivery marks the work accepted and splits the invoice amount
// between the freelancer and the service-cut recipients. Safe to call
// once; the second call is rejected so nobody gets paid twice.
func (c *Commission) AcceptDelivery(ctx context.Context) error {
	if c.t.DeliveryAccepted {
		return apierrors.NewUserErrorf(apierrors.CodeInvalidRequest, "Delivery was already accepted.")
	}
	c.t.Complete = true
	c.t.DeliveryAccepted = true
	if err := c.m.deps.Tickets.Update(c.t); err != nil {
		return err
	}

	inv, err := c.m.deps.Invoices.GetByID(c.t.InvoiceID)
	if err != nil {
		return err
	}
	if inv == nil {
		c.m.logger.Printf("[ticket] cannot credit revenue for %s: no invoice on record", c.t.ID)
		return nil
	}
	if _, err := c.m.deps.Bank.Split(c.t.GuildID, c.t.FreelancerID, inv, c.t.Serial); err != nil {
		return fmt.Errorf("failed to split revenue for %s: %w", c.t.ID, err)
	}
	return nil
}

// DenyDelivery sends the work back: the commission is open again.
func (c *Commission) DenyDelivery(ctx context.Context) error {
	if c.t.DeliveryAccepted {
		return apierrors.NewUserErrorf(apierrors.CodeInvalidRequest, "Delivery was already accepted.")
	}
	c.t.Complete = false
	return c.m.deps.Tickets.Update(c.t)
}

// SetDeadline posts and records a delivery deadline.
func (c *Commission) SetDeadline(ctx context.Context, at time.Time) error {
	if c.t.DeadlineMessageID != "" {
		if err := c.m.deps.Platform.DeleteMessage(ctx, c.t.ChannelID, c.t.DeadlineMessageID); err != nil {
			c.m.logger.Printf("[ticket] failed to delete old deadline notice for %s: %v", c.t.ID, err)
		}
	}
	msgID, err := c.m.deps.Platform.Send(ctx, c.t.ChannelID, chat.Message{
		Kind:  chat.KindInfo,
		Title: "Deadline set",
		Body:  "Delivery is due " + at.UTC().Format("Jan 2, 2006 15:04 MST") + ".",
	})
	if err != nil {
		return fmt.Errorf("failed to post deadline notice: %w", err)
	}
	at = at.UTC()
	c.t.Deadline = &at
	c.t.DeadlineMessageID = msgID
	return c.m.deps.Tickets.Update(c.t)
}

// ClearDeadline removes the deadline and its notice.
func (c *Commission) ClearDeadline(ctx context.Context) error {
	if c.t.DeadlineMessageID != "" {
		if err := c.m.deps.Platform.DeleteMessage(ctx, c.t.ChannelID, c.t.DeadlineMessageID); err != nil {
			c.m.logger.Printf("[ticket] failed to delete deadline notice for %s: %v", c.t.ID, err)
		}
	}
	c.t.Deadline = nil
	c.t.DeadlineMessageID = ""
	return c.m.deps.Tickets.Update(c.t)
}

// SendQuoteReminder nudges the service role when a commission has sat
// without quotes. The reminder resets the quiet-period clock.
func (c *Commission) SendQuoteReminder(ctx context.Context) error {
	ch := c.logChannelID()
	if ch == "" {
		return nil
	}
	if _, err := c.m.deps.Platform.Send(ctx, ch, chat.Message{
		Kind:  chat.KindWarn,
		Title: "Commission still unquoted",
		Body: fmt.Sprintf("<@&%s> %s-%d has been waiting for a quote. %s",
			c.serviceRole(), c.serviceName(), c.t.Serial, channelMention(c.t.ChannelID)),
	}); err != nil {
		return fmt.Errorf("failed to send quote reminder: %w", err)
	}
	now := c.m.now().UTC()
	c.t.LastQuoted = &now
	return c.m.deps.Tickets.Update(c.t)
}
