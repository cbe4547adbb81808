package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftdesk/craftdesk/internal/models"
)

func TestNewRegistryUnknownProvider(t *testing.T) {
	_, err := NewRegistry(map[string]map[string]any{
		"venmo": {"token": "x"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown payment gateway "venmo"`)
}

func TestNewRegistryRejectsInvalidConfig(t *testing.T) {
	// "email" is required by the schema.
	_, err := NewRegistry(map[string]map[string]any{
		"paypalwebscr": {"handlingFee": 0.1},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "paypalwebscr")

	// Bounds are enforced too.
	_, err = NewRegistry(map[string]map[string]any{
		"paypalwebscr": {"email": "pay@example.com", "handlingFee": 3.0},
	})
	require.Error(t, err)
}

func TestRegistryGetAndOrdering(t *testing.T) {
	r, err := NewRegistry(map[string]map[string]any{
		"paypalwebscr": {"email": "pay@example.com", "buttonSort": 9},
		"coinbase":     {"apiKey": "test-key", "buttonSort": 2},
	})
	require.NoError(t, err)

	require.NotNil(t, r.Get("paypalwebscr"))
	require.NotNil(t, r.Get("coinbase"))
	assert.Nil(t, r.Get("stripe"), "unconfigured provider is absent, not an error")

	all := r.All()
	require.Len(t, all, 2)
	assert.Equal(t, "coinbase", all[0].Metadata().ID)
	assert.Equal(t, "paypalwebscr", all[1].Metadata().ID)
}

func TestPayPalWebscrCreatePayment(t *testing.T) {
	r, err := NewRegistry(map[string]map[string]any{
		"paypalwebscr": {
			"email":       "merchant@example.com",
			"handlingFee": 0.1,
			"currency":    "EUR",
			"returnUrl":   "https://example.com/thanks",
		},
	})
	require.NoError(t, err)
	gw := r.Get("paypalwebscr")
	require.NotNil(t, gw)
	assert.Equal(t, ModePolling, gw.Mode())
	assert.Equal(t, "EUR", gw.Currency())

	res, err := gw.CreatePayment(context.Background(), CreatePaymentRequest{
		Amount:      100,
		Description: "Logo commission",
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.Reference)

	parsed, err := url.Parse(res.URL)
	require.NoError(t, err)
	assert.Equal(t, "www.paypal.com", parsed.Host)
	q := parsed.Query()
	assert.Equal(t, "_xclick", q.Get("cmd"))
	assert.Equal(t, "merchant@example.com", q.Get("business"))
	assert.Equal(t, "EUR", q.Get("currency_code"))
	assert.Equal(t, "110.00", q.Get("amount"), "link total includes the handling fee")
	assert.Equal(t, "Logo commission", q.Get("item_name"))
	assert.Equal(t, "https://example.com/thanks", q.Get("return"))
}

func TestPayPalWebscrHasNoPushOrPullPath(t *testing.T) {
	r, err := NewRegistry(map[string]map[string]any{
		"paypalwebscr": {"email": "merchant@example.com"},
	})
	require.NoError(t, err)
	gw := r.Get("paypalwebscr")

	assert.Empty(t, gw.ReferenceID(&Callback{Body: []byte("anything")}))
	_, status, err := gw.RefreshPayment(context.Background(), &models.Invoice{})
	assert.Equal(t, StatusPending, status)
	assert.ErrorIs(t, err, ErrRefreshUnsupported)
}

func coinbaseWebhookGateway(t *testing.T, secret string) Gateway {
	t.Helper()
	r, err := NewRegistry(map[string]map[string]any{
		"coinbase": {
			"apiKey": "test-key",
			"paymentNotifications": map[string]any{
				"type":                "webhook",
				"webhookSharedSecret": secret,
			},
		},
	})
	require.NoError(t, err)
	return r.Get("coinbase")
}

func signedCallback(secret, body string) *Callback {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	header := http.Header{}
	header.Set("X-CC-Webhook-Signature", hex.EncodeToString(mac.Sum(nil)))
	return &Callback{Body: []byte(body), Header: header}
}

func TestCoinbaseWebhookModeRequiresSecret(t *testing.T) {
	_, err := NewRegistry(map[string]map[string]any{
		"coinbase": {
			"apiKey":               "test-key",
			"paymentNotifications": map[string]any{"type": "webhook"},
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shared secret")
}

func TestCoinbaseWebhookVerification(t *testing.T) {
	gw := coinbaseWebhookGateway(t, "s3cret")
	body := `{"event":{"type":"charge:confirmed","data":{"id":"charge-1","pricing":{"local":{"amount":"110.00"}}}}}`

	assert.Equal(t, "charge-1", gw.ReferenceID(&Callback{Body: []byte(body)}))

	events, err := gw.HandleWebhook(context.Background(), signedCallback("s3cret", body), &models.Invoice{Amount: 100})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventPaid, events[0].Kind)
	assert.InDelta(t, 110, events[0].Amount, 1e-9)

	// Wrong secret, missing signature, tampered body: all rejected.
	_, err = gw.HandleWebhook(context.Background(), signedCallback("wrong", body), &models.Invoice{})
	assert.ErrorIs(t, err, ErrVerificationFailed)
	_, err = gw.HandleWebhook(context.Background(), &Callback{Body: []byte(body), Header: http.Header{}}, &models.Invoice{})
	assert.ErrorIs(t, err, ErrVerificationFailed)
	cb := signedCallback("s3cret", body)
	cb.Body = []byte(strings.Replace(body, "110.00", "999.00", 1))
	_, err = gw.HandleWebhook(context.Background(), cb, &models.Invoice{})
	assert.ErrorIs(t, err, ErrVerificationFailed)
}

func TestCoinbaseWebhookEventMapping(t *testing.T) {
	gw := coinbaseWebhookGateway(t, "s3cret")

	cases := []struct {
		eventType string
		want      EventKind
	}{
		{"charge:pending", EventCryptoPending},
		{"charge:confirmed", EventPaid},
		{"charge:resolved", EventPaid},
		{"charge:failed", EventCancelled},
	}
	for _, tc := range cases {
		body := fmt.Sprintf(`{"event":{"type":"%s","data":{"id":"charge-1"}}}`, tc.eventType)
		events, err := gw.HandleWebhook(context.Background(), signedCallback("s3cret", body), &models.Invoice{Amount: 100})
		require.NoError(t, err, tc.eventType)
		require.Len(t, events, 1, tc.eventType)
		assert.Equal(t, tc.want, events[0].Kind, tc.eventType)
	}

	// Unrecognized event types are ignored, not errors.
	body := `{"event":{"type":"charge:created","data":{"id":"charge-1"}}}`
	events, err := gw.HandleWebhook(context.Background(), signedCallback("s3cret", body), &models.Invoice{Amount: 100})
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestCoinbasePollingModeIgnoresWebhooks(t *testing.T) {
	r, err := NewRegistry(map[string]map[string]any{
		"coinbase": {"apiKey": "test-key"},
	})
	require.NoError(t, err)
	gw := r.Get("coinbase")
	assert.Equal(t, ModePolling, gw.Mode())

	events, err := gw.HandleWebhook(context.Background(), &Callback{Body: []byte("{}")}, &models.Invoice{})
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestTaxed(t *testing.T) {
	assert.InDelta(t, 110, Taxed(100, 0.1), 1e-9)
	assert.InDelta(t, 100, Taxed(100, 0), 1e-9)
}

func TestNewStaticRegistryOrdering(t *testing.T) {
	a := &PayPalWebscr{cfg: paypalWebscrConfig{ButtonSort: 9}}
	r := NewStaticRegistry(a)
	require.Len(t, r.All(), 1)
	assert.Equal(t, Gateway(a), r.Get("paypalwebscr"))
}
