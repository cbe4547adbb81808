package invoice

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftdesk/craftdesk/internal/apierrors"
	"github.com/craftdesk/craftdesk/internal/chat/chattest"
	"github.com/craftdesk/craftdesk/internal/gateway"
	"github.com/craftdesk/craftdesk/internal/models"
	"github.com/craftdesk/craftdesk/internal/repository/repositorytest"
)

// stubGateway is a scriptable provider for wiring through
// gateway.NewStaticRegistry in tests.
type stubGateway struct {
	id        string
	mode      gateway.Mode
	feeRate   float64
	currency  string
	sort      int
	createRes *gateway.CreatePaymentResult
	createErr error
	reference string
	events    []gateway.Event
	hookErr   error
	cancelled int
}

func (g *stubGateway) Metadata() gateway.Metadata {
	return gateway.Metadata{ID: g.id, Name: g.id}
}
func (g *stubGateway) Mode() gateway.Mode { return g.mode }
func (g *stubGateway) FeeRate() float64   { return g.feeRate }
func (g *stubGateway) Currency() string {
	if g.currency == "" {
		return "USD"
	}
	return g.currency
}
func (g *stubGateway) ButtonLabel() string { return "Pay with " + g.id }
func (g *stubGateway) ButtonSort() int     { return g.sort }

func (g *stubGateway) CreatePayment(_ context.Context, _ gateway.CreatePaymentRequest) (*gateway.CreatePaymentResult, error) {
	if g.createErr != nil {
		return nil, g.createErr
	}
	if g.createRes != nil {
		return g.createRes, nil
	}
	return &gateway.CreatePaymentResult{URL: "https://pay.example/" + g.id, Reference: "ref-" + g.id}, nil
}

func (g *stubGateway) ReferenceID(_ *gateway.Callback) string { return g.reference }

func (g *stubGateway) HandleWebhook(_ context.Context, _ *gateway.Callback, _ *models.Invoice) ([]gateway.Event, error) {
	if g.hookErr != nil {
		return nil, g.hookErr
	}
	return g.events, nil
}

func (g *stubGateway) RefreshPayment(_ context.Context, _ *models.Invoice) ([]gateway.Event, gateway.Status, error) {
	return nil, gateway.StatusPending, gateway.ErrRefreshUnsupported
}

func (g *stubGateway) CancelPayment(_ context.Context, _ *models.Invoice) error {
	g.cancelled++
	return nil
}

type ledgerFixture struct {
	ledger   *Ledger
	invoices *repositorytest.Invoices
	tickets  *repositorytest.Tickets
	platform *chattest.Fake
}

func newLedgerFixture(t *testing.T, registry *gateway.Registry, opts ...LedgerOption) *ledgerFixture {
	t.Helper()
	invoices := repositorytest.NewInvoices()
	tickets := repositorytest.NewTickets()
	platform := chattest.New()
	platform.AddChannel("chan-ticket", "commission-1-alice", "")
	return &ledgerFixture{
		ledger:   NewLedger(invoices, tickets, registry, platform, opts...),
		invoices: invoices,
		tickets:  tickets,
		platform: platform,
	}
}

func (f *ledgerFixture) seedTicket(t *testing.T) *models.Ticket {
	t.Helper()
	row := &models.Ticket{
		Type:      models.TicketCommission,
		GuildID:   "guild-1",
		ChannelID: "chan-ticket",
		AuthorID:  "user-author",
	}
	require.NoError(t, f.tickets.Create(row))
	return row
}

func TestLedgerCreateRejectsSecondActive(t *testing.T) {
	f := newLedgerFixture(t, gateway.NewStaticRegistry())
	row := f.seedTicket(t)

	inv, err := f.ledger.Create(context.Background(), row, 120)
	require.NoError(t, err)
	require.NotNil(t, inv)
	assert.Equal(t, inv.ID, row.InvoiceID)
	assert.Equal(t, row.AuthorID, inv.UserID)

	_, err = f.ledger.Create(context.Background(), row, 55)
	ue, ok := apierrors.AsUserError(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.CodeInvoiceActiveExists, ue.Code)
}

func TestLedgerCreateAfterCancelAllowed(t *testing.T) {
	f := newLedgerFixture(t, gateway.NewStaticRegistry())
	row := f.seedTicket(t)

	first, err := f.ledger.Create(context.Background(), row, 120)
	require.NoError(t, err)
	require.NoError(t, f.ledger.Cancel(context.Background(), first.ID))

	second, err := f.ledger.Create(context.Background(), row, 90)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, second.ID, row.InvoiceID)
}

func TestLedgerStartPayment(t *testing.T) {
	gw := &stubGateway{id: "testpay", mode: gateway.ModeWebhook, feeRate: 0.05}
	f := newLedgerFixture(t, gateway.NewStaticRegistry(gw))
	row := f.seedTicket(t)

	inv, err := f.ledger.Create(context.Background(), row, 100)
	require.NoError(t, err)

	require.NoError(t, f.ledger.StartPayment(context.Background(), inv, "testpay", "Commission #1", "Logo work"))

	stored, err := f.invoices.GetByID(inv.ID)
	require.NoError(t, err)
	assert.True(t, stored.Started)
	assert.Equal(t, "testpay", stored.GatewayID)
	assert.Equal(t, "ref-testpay", stored.GatewayReference)
	assert.Equal(t, "https://pay.example/testpay", stored.PaymentURL)
	assert.InDelta(t, 0.05, stored.Tax, 1e-9)
	assert.InDelta(t, 105, stored.TotalDue(), 1e-9)
}

func TestLedgerStartPaymentUnknownGateway(t *testing.T) {
	f := newLedgerFixture(t, gateway.NewStaticRegistry())
	row := f.seedTicket(t)

	inv, err := f.ledger.Create(context.Background(), row, 100)
	require.NoError(t, err)

	err = f.ledger.StartPayment(context.Background(), inv, "nope", "", "")
	ue, ok := apierrors.AsUserError(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.CodeGatewayUnknown, ue.Code)
}

func TestLedgerStartPaymentProviderFailure(t *testing.T) {
	gw := &stubGateway{id: "flaky", createErr: errors.New("upstream 500")}
	f := newLedgerFixture(t, gateway.NewStaticRegistry(gw))
	row := f.seedTicket(t)

	inv, err := f.ledger.Create(context.Background(), row, 100)
	require.NoError(t, err)

	err = f.ledger.StartPayment(context.Background(), inv, "flaky", "", "")
	ue, ok := apierrors.AsUserError(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.CodeGatewayCreateFailed, ue.Code)

	stored, err := f.invoices.GetByID(inv.ID)
	require.NoError(t, err)
	assert.False(t, stored.Started)
}

func TestLedgerMarkPaidIdempotent(t *testing.T) {
	f := newLedgerFixture(t, gateway.NewStaticRegistry(), WithClientRole("role-client"))
	row := f.seedTicket(t)

	inv, err := f.ledger.Create(context.Background(), row, 200)
	require.NoError(t, err)

	require.NoError(t, f.ledger.MarkPaid(context.Background(), inv.ID))
	stored, err := f.invoices.GetByID(inv.ID)
	require.NoError(t, err)
	assert.True(t, stored.Paid)
	assert.True(t, stored.Manual)
	assert.InDelta(t, 200, stored.PaidAmount, 1e-9)
	assert.Contains(t, f.platform.Roles, "guild-1/user-author/role-client")

	sent := len(f.platform.Sent)
	require.NoError(t, f.ledger.MarkPaid(context.Background(), inv.ID))
	assert.Equal(t, sent, len(f.platform.Sent), "second mark must not repost")
}

func TestLedgerApplyEventPersistsAndNotifies(t *testing.T) {
	f := newLedgerFixture(t, gateway.NewStaticRegistry())
	row := f.seedTicket(t)

	inv, err := f.ledger.Create(context.Background(), row, 100)
	require.NoError(t, err)

	err = f.ledger.ApplyEvent(context.Background(), inv.ID, gateway.Event{
		Kind: gateway.EventPartiallyPaid, Amount: 40, Currency: "USD",
	})
	require.NoError(t, err)

	stored, err := f.invoices.GetByID(inv.ID)
	require.NoError(t, err)
	assert.InDelta(t, 40, stored.PaidAmount, 1e-9)
	assert.False(t, stored.Paid)

	last := f.platform.LastSent()
	require.NotNil(t, last)
	assert.Contains(t, last.Message.Body, "Partial payment")
}

func TestLedgerApplyEventStaleAmountNoOp(t *testing.T) {
	f := newLedgerFixture(t, gateway.NewStaticRegistry())
	row := f.seedTicket(t)

	inv, err := f.ledger.Create(context.Background(), row, 100)
	require.NoError(t, err)
	require.NoError(t, f.ledger.ApplyEvent(context.Background(), inv.ID, gateway.Event{Kind: gateway.EventPartiallyPaid, Amount: 60}))

	sent := len(f.platform.Sent)
	require.NoError(t, f.ledger.ApplyEvent(context.Background(), inv.ID, gateway.Event{Kind: gateway.EventPartiallyPaid, Amount: 40}))

	stored, err := f.invoices.GetByID(inv.ID)
	require.NoError(t, err)
	assert.InDelta(t, 60, stored.PaidAmount, 1e-9)
	assert.Equal(t, sent, len(f.platform.Sent))
}

func TestLedgerApplyEventUnknownInvoice(t *testing.T) {
	f := newLedgerFixture(t, gateway.NewStaticRegistry())

	err := f.ledger.ApplyEvent(context.Background(), "missing", gateway.Event{Kind: gateway.EventPaid})
	ue, ok := apierrors.AsUserError(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.CodeInvoiceNotFound, ue.Code)
}

func TestLedgerCancelCallsUpstream(t *testing.T) {
	gw := &stubGateway{id: "testpay"}
	f := newLedgerFixture(t, gateway.NewStaticRegistry(gw))
	row := f.seedTicket(t)

	inv, err := f.ledger.Create(context.Background(), row, 100)
	require.NoError(t, err)
	require.NoError(t, f.ledger.StartPayment(context.Background(), inv, "testpay", "", ""))

	require.NoError(t, f.ledger.Cancel(context.Background(), inv.ID))
	assert.Equal(t, 1, gw.cancelled)

	stored, err := f.invoices.GetByID(inv.ID)
	require.NoError(t, err)
	assert.True(t, stored.Cancelled)

	err = f.ledger.Cancel(context.Background(), "missing")
	ue, ok := apierrors.AsUserError(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.CodeInvoiceNotFound, ue.Code)
}

func TestLedgerRenderEditsInPlace(t *testing.T) {
	f := newLedgerFixture(t, gateway.NewStaticRegistry())
	row := f.seedTicket(t)

	inv, err := f.ledger.Create(context.Background(), row, 100)
	require.NoError(t, err)
	require.NotEmpty(t, inv.MessageID)

	sent := len(f.platform.Sent)
	require.NoError(t, f.ledger.Render(context.Background(), inv))
	assert.Equal(t, sent, len(f.platform.Sent), "re-render must edit, not repost")
	require.NotEmpty(t, f.platform.Edited)
	assert.Equal(t, inv.MessageID, f.platform.Edited[len(f.platform.Edited)-1].MessageID)
}
