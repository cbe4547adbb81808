package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftdesk/craftdesk/internal/chat/chattest"
	"github.com/craftdesk/craftdesk/internal/gateway"
	"github.com/craftdesk/craftdesk/internal/invoice"
	"github.com/craftdesk/craftdesk/internal/middleware"
	"github.com/craftdesk/craftdesk/internal/models"
	"github.com/craftdesk/craftdesk/internal/repository/repositorytest"
)

const webhookSecret = "s3cret"

type apiFixture struct {
	router   *gin.Engine
	invoices *repositorytest.Invoices
	tickets  *repositorytest.Tickets
	platform *chattest.Fake
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry, err := gateway.NewRegistry(map[string]map[string]any{
		"coinbase": {
			"apiKey": "test-key",
			"paymentNotifications": map[string]any{
				"type":                "webhook",
				"webhookSharedSecret": webhookSecret,
			},
		},
	})
	require.NoError(t, err)

	f := &apiFixture{
		invoices: repositorytest.NewInvoices(),
		tickets:  repositorytest.NewTickets(),
		platform: chattest.New(),
	}
	f.platform.AddChannel("chan-ticket", "commission-1-alice", "")
	ledger := invoice.NewLedger(f.invoices, f.tickets, registry, f.platform)
	dispatcher := invoice.NewDispatcher(registry, f.invoices, ledger)
	limiter := middleware.NewRateLimiter()
	t.Cleanup(limiter.Stop)
	f.router = NewRouter(dispatcher, registry, limiter)
	return f
}

func (f *apiFixture) seedInvoice(t *testing.T) *models.Invoice {
	t.Helper()
	inv := &models.Invoice{
		TicketID:         "ticket-1",
		UserID:           "user-author",
		Amount:           100,
		Tax:              0.1,
		GatewayID:        "coinbase",
		GatewayReference: "charge-1",
		Started:          true,
		MessageChannelID: "chan-ticket",
	}
	require.NoError(t, f.invoices.Create(inv))
	return inv
}

func signBody(body string) string {
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestHealthz(t *testing.T) {
	f := newAPIFixture(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestIPNInfoPage(t *testing.T) {
	f := newAPIFixture(t)

	for _, path := range []string{"/ipn", "/ipn/coinbase"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		f.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Contains(t, w.Body.String(), "payment notifications", path)
	}
}

func TestIPNUnknownGateway(t *testing.T) {
	f := newAPIFixture(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/ipn/venmo", strings.NewReader("{}"))
	f.router.ServeHTTP(w, req)

	// 200 with ok:false so the provider stops retrying.
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ok":false`)
}

func TestIPNUnmatchedInvoice(t *testing.T) {
	f := newAPIFixture(t)

	body := `{"event":{"type":"charge:confirmed","data":{"id":"charge-unknown"}}}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/ipn/coinbase", strings.NewReader(body))
	req.Header.Set("X-CC-Webhook-Signature", signBody(body))
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ok":false`)
}

func TestIPNVerifiedCallbackMarksInvoicePaid(t *testing.T) {
	f := newAPIFixture(t)
	inv := f.seedInvoice(t)

	body := `{"event":{"type":"charge:confirmed","data":{"id":"charge-1","pricing":{"local":{"amount":"110.00"}}}}}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/ipn/coinbase", strings.NewReader(body))
	req.Header.Set("X-CC-Webhook-Signature", signBody(body))
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ok":true`)

	stored, err := f.invoices.GetByID(inv.ID)
	require.NoError(t, err)
	assert.True(t, stored.Paid)
	assert.InDelta(t, 110, stored.PaidAmount, 1e-9)
}

func TestIPNForgedCallbackLooksLikeSuccess(t *testing.T) {
	f := newAPIFixture(t)
	inv := f.seedInvoice(t)

	body := `{"event":{"type":"charge:confirmed","data":{"id":"charge-1"}}}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/ipn/coinbase", strings.NewReader(body))
	req.Header.Set("X-CC-Webhook-Signature", "not-a-real-signature")
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ok":true`)

	stored, err := f.invoices.GetByID(inv.ID)
	require.NoError(t, err)
	assert.False(t, stored.Paid, "forged callback must not change state")
}
