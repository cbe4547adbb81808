package ticket

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftdesk/craftdesk/internal/apierrors"
	"github.com/craftdesk/craftdesk/internal/models"
)

func newCommission(t *testing.T, f *fixture) *Commission {
	t.Helper()
	h, err := f.manager.Create(context.Background(), models.TicketCommission, "guild-1", "user-author", false)
	require.NoError(t, err)
	c, ok := h.(*Commission)
	require.True(t, ok)
	c.t.SelectedService = "logo"
	require.NoError(t, f.tickets.Update(c.t))
	return c
}

func TestSubmitQuote(t *testing.T) {
	f := newFixture(t, testConfig())
	c := newCommission(t, f)

	_, err := c.SubmitQuote(context.Background(), "user-free", 0, "")
	ue, ok := apierrors.AsUserError(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.CodeQuoteInvalidAmount, ue.Code)

	quote, err := c.SubmitQuote(context.Background(), "user-free", 150, "Can start Monday")
	require.NoError(t, err)
	assert.Equal(t, models.QuotePending, quote.Status)
	require.NotEmpty(t, quote.MessageID)
	require.NotNil(t, c.t.LastQuoted)

	posted := f.platform.LastSent()
	assert.Equal(t, c.t.ChannelID, posted.ChannelID)
	require.Len(t, posted.Message.Buttons, 3)
	assert.Equal(t, "quoteaccept-"+quote.ID, posted.Message.Buttons[0].CustomID)
	assert.Equal(t, "quotedecline-"+quote.ID, posted.Message.Buttons[1].CustomID)
	assert.Equal(t, "quotecounter-"+quote.ID, posted.Message.Buttons[2].CustomID)
}

func TestAcceptQuoteAssignsAndOpensInvoice(t *testing.T) {
	f := newFixture(t, testConfig())
	c := newCommission(t, f)

	quote, err := c.SubmitQuote(context.Background(), "user-free", 150, "")
	require.NoError(t, err)
	require.NoError(t, c.AcceptQuote(context.Background(), quote.ID))

	assert.Equal(t, "user-free", c.t.FreelancerID)
	assert.True(t, f.platform.Channels[c.t.ChannelID].Overwrites["user-free"])

	stored, err := f.quotes.GetByID(quote.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QuoteAccepted, stored.Status)

	require.NotEmpty(t, c.t.InvoiceID)
	inv, err := f.invoices.GetByID(c.t.InvoiceID)
	require.NoError(t, err)
	assert.InDelta(t, 150, inv.Amount, 1e-9)

	// A claimed commission takes no further quotes.
	_, err = c.SubmitQuote(context.Background(), "user-other", 120, "")
	ue, ok := apierrors.AsUserError(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.CodeTicketClaimed, ue.Code)

	err = c.AcceptQuote(context.Background(), quote.ID)
	ue, ok = apierrors.AsUserError(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.CodeTicketClaimed, ue.Code)
}

func TestAcceptQuoteFromOtherTicketRejected(t *testing.T) {
	cfg := testConfig()
	cfg.Tickets.Cooldown = 0
	f := newFixture(t, cfg)
	first := newCommission(t, f)
	second := newCommission(t, f)

	quote, err := first.SubmitQuote(context.Background(), "user-free", 100, "")
	require.NoError(t, err)

	err = second.AcceptQuote(context.Background(), quote.ID)
	ue, ok := apierrors.AsUserError(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.CodeNotFound, ue.Code)
}

func TestDeclineQuote(t *testing.T) {
	f := newFixture(t, testConfig())
	c := newCommission(t, f)

	quote, err := c.SubmitQuote(context.Background(), "user-free", 100, "")
	require.NoError(t, err)
	require.NoError(t, c.DeclineQuote(context.Background(), quote.ID))

	stored, err := f.quotes.GetByID(quote.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QuoteDeclined, stored.Status)
	require.Len(t, f.platform.DMs["user-free"], 1)
	assert.Contains(t, f.platform.DMs["user-free"][0].Body, "was declined")
}

func TestCounterQuote(t *testing.T) {
	f := newFixture(t, testConfig())
	c := newCommission(t, f)

	quote, err := c.SubmitQuote(context.Background(), "user-free", 200, "")
	require.NoError(t, err)

	counter, err := c.CounterQuote(context.Background(), quote.ID, 120)
	require.NoError(t, err)
	assert.Equal(t, models.QuotePending, counter.Status)
	assert.Equal(t, "user-free", counter.FreelancerID)
	assert.InDelta(t, 120, counter.Price, 1e-9)
	assert.Equal(t, "Counteroffer to $200.00", counter.Message)

	original, err := f.quotes.GetByID(quote.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QuoteCountered, original.Status)

	// The counter is acceptable like any pending quote.
	require.NoError(t, c.AcceptQuote(context.Background(), counter.ID))
	inv, err := f.invoices.GetByID(c.t.InvoiceID)
	require.NoError(t, err)
	assert.InDelta(t, 120, inv.Amount, 1e-9)
}

func TestDenyProposalBlocksQuoting(t *testing.T) {
	f := newFixture(t, testConfig())
	c := newCommission(t, f)

	require.NoError(t, c.DenyProposal(context.Background(), "user-free", "outside my skillset"))
	assert.True(t, c.t.HasDenied("user-free"))

	err := c.DenyProposal(context.Background(), "user-free", "")
	ue, ok := apierrors.AsUserError(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.CodeQuoteAlreadyDenied, ue.Code)

	_, err = c.SubmitQuote(context.Background(), "user-free", 100, "")
	ue, ok = apierrors.AsUserError(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.CodeQuoteAlreadyDenied, ue.Code)

	require.NoError(t, c.RejoinProposal(context.Background(), "user-free"))
	assert.False(t, c.t.HasDenied("user-free"))
	_, err = c.SubmitQuote(context.Background(), "user-free", 100, "")
	require.NoError(t, err)
}

func TestUnassignReopensForQuoting(t *testing.T) {
	f := newFixture(t, testConfig())
	c := newCommission(t, f)

	quote, err := c.SubmitQuote(context.Background(), "user-free", 100, "")
	require.NoError(t, err)
	require.NoError(t, c.AcceptQuote(context.Background(), quote.ID))
	require.Equal(t, "user-free", c.t.FreelancerID)

	require.NoError(t, c.Unassign(context.Background()))
	assert.Empty(t, c.t.FreelancerID)
	assert.False(t, f.platform.Channels[c.t.ChannelID].Overwrites["user-free"])

	_, err = c.SubmitQuote(context.Background(), "user-other", 90, "")
	require.NoError(t, err)
}

func TestAcceptDeliverySplitsRevenue(t *testing.T) {
	f := newFixture(t, testConfig())
	require.NoError(t, f.cuts.Set("guild-1", "user-owner", 60))
	require.NoError(t, f.cuts.Set("guild-1", "user-admin", 40))
	c := newCommission(t, f)

	quote, err := c.SubmitQuote(context.Background(), "user-free", 100, "")
	require.NoError(t, err)
	require.NoError(t, c.AcceptQuote(context.Background(), quote.ID))

	require.NoError(t, c.AcceptDelivery(context.Background()))
	assert.True(t, c.t.Complete)
	assert.True(t, c.t.DeliveryAccepted)

	// 15% service cut split 60/40, the freelancer keeps the rest.
	free, err := f.banks.BalanceFromLedger("user-free")
	require.NoError(t, err)
	assert.InDelta(t, 85, free, 1e-9)
	owner, err := f.banks.BalanceFromLedger("user-owner")
	require.NoError(t, err)
	assert.InDelta(t, 9, owner, 1e-9)
	admin, err := f.banks.BalanceFromLedger("user-admin")
	require.NoError(t, err)
	assert.InDelta(t, 6, admin, 1e-9)

	total := free + owner + admin
	assert.InDelta(t, 100, total, 1e-9, "credits must sum to the invoice principal")

	// Nobody gets paid twice.
	err = c.AcceptDelivery(context.Background())
	ue, ok := apierrors.AsUserError(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.CodeInvalidRequest, ue.Code)
	free, err = f.banks.BalanceFromLedger("user-free")
	require.NoError(t, err)
	assert.InDelta(t, 85, free, 1e-9)
}

func TestDenyDeliveryReopens(t *testing.T) {
	f := newFixture(t, testConfig())
	c := newCommission(t, f)
	c.t.Complete = true
	require.NoError(t, f.tickets.Update(c.t))

	require.NoError(t, c.DenyDelivery(context.Background()))
	assert.False(t, c.t.Complete)
	assert.False(t, c.t.DeliveryAccepted)
}

func TestQuoteChannelLifecycle(t *testing.T) {
	cfg := testConfig()
	cfg.Tickets.QuotesInChannels = true
	f := newFixture(t, cfg)
	c := newCommission(t, f)

	session := &models.PromptSession{TicketID: c.t.ID, UserID: "user-author"}
	session.AppendResponse("Describe the work", "A logo please")
	require.NoError(t, c.FinalizePrompts(context.Background(), session))

	require.NotEmpty(t, c.t.QuoteChannelID)
	qc := f.platform.Channels[c.t.QuoteChannelID]
	require.NotNil(t, qc)
	assert.Equal(t, "quote-logo-design-1", qc.Info.Name)
	assert.Equal(t, "cat-quotes", qc.Info.ParentID)
	assert.True(t, qc.Overwrites["role-logo"])
	assert.True(t, qc.Overwrites["role-manager"])
	assert.False(t, c.t.Pending)
	assert.Equal(t, "logo-design-1", c.t.ChannelName)

	// Claiming the commission deletes the quote channel.
	quote, err := c.SubmitQuote(context.Background(), "user-free", 100, "")
	require.NoError(t, err)
	require.NoError(t, c.AcceptQuote(context.Background(), quote.ID))
	assert.Empty(t, c.t.QuoteChannelID)
	assert.True(t, qc.Deleted)
}

func TestFinalizeWithoutServiceFails(t *testing.T) {
	f := newFixture(t, testConfig())
	h, err := f.manager.Create(context.Background(), models.TicketCommission, "guild-1", "user-author", false)
	require.NoError(t, err)
	c := h.(*Commission)

	err = c.FinalizePrompts(context.Background(), &models.PromptSession{TicketID: c.t.ID})
	require.Error(t, err)
}

func TestSetAndClearDeadline(t *testing.T) {
	f := newFixture(t, testConfig())
	c := newCommission(t, f)

	require.NoError(t, c.SetDeadline(context.Background(), f.now.Add(72*time.Hour)))
	require.NotNil(t, c.t.Deadline)
	require.NotEmpty(t, c.t.DeadlineMessageID)
	assert.Contains(t, f.platform.LastSent().Message.Body, "Delivery is due")

	require.NoError(t, c.ClearDeadline(context.Background()))
	assert.Nil(t, c.t.Deadline)
	assert.Empty(t, c.t.DeadlineMessageID)
}
