package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"strconv"

	"github.com/craftdesk/craftdesk/internal/models"
)

const coinbaseConfigSchema = `{
	"type": "object",
	"required": ["apiKey"],
	"properties": {
		"name": {"type": "string"},
		"buttonLabel": {"type": "string"},
		"buttonSort": {"type": "number"},
		"apiKey": {"type": "string", "minLength": 1},
		"handlingFee": {"type": "number", "minimum": 0, "maximum": 1},
		"currency": {"type": "string"},
		"paymentNotifications": {
			"type": "object",
			"properties": {
				"type": {"type": "string", "enum": ["webhook", "polling"]},
				"webhookSharedSecret": {"type": "string"}
			}
		}
	}
}`

type coinbaseNotifications struct {
	Type                string `json:"type"`
	WebhookSharedSecret string `json:"webhookSharedSecret"`
}

type coinbaseConfig struct {
	Name                 string                `json:"name"`
	ButtonLabel          string                `json:"buttonLabel"`
	ButtonSort           int                   `json:"buttonSort"`
	APIKey               string                `json:"apiKey"`
	HandlingFee          float64               `json:"handlingFee"`
	Currency             string                `json:"currency"`
	PaymentNotifications coinbaseNotifications `json:"paymentNotifications"`
}

// Coinbase Commerce over the charges API. Crypto settlement is not
// immediate: an on-chain transaction shows up as pending first, which is
// surfaced as an informational event, and becomes a payment only once
// the charge confirms.
type Coinbase struct {
	cfg coinbaseConfig
}

func init() {
	register("coinbase", coinbaseConfigSchema, func(cfg map[string]any) (Gateway, error) {
		c := coinbaseConfig{
			Name:                 "Coinbase Commerce",
			ButtonLabel:          "Pay with Coinbase Commerce",
			ButtonSort:           20,
			HandlingFee:          0.1,
			Currency:             "USD",
			PaymentNotifications: coinbaseNotifications{Type: string(ModePolling)},
		}
		if err := decodeConfig(cfg, &c); err != nil {
			return nil, err
		}
		if c.PaymentNotifications.Type == string(ModeWebhook) && c.PaymentNotifications.WebhookSharedSecret == "" {
			return nil, fmt.Errorf("coinbase: webhook mode requires a shared secret")
		}
		return &Coinbase{cfg: c}, nil
	})
}

const coinbaseAPIURL = "https://api.commerce.coinbase.com"

func (g *Coinbase) Metadata() Metadata {
	return Metadata{
		ID:              "coinbase",
		Name:            g.cfg.Name,
		Description:     "Coinbase Commerce payment gateway",
		Version:         "1.0.0",
		SupportsRefresh: true,
	}
}

func (g *Coinbase) Mode() Mode {
	if g.cfg.PaymentNotifications.Type == string(ModeWebhook) {
		return ModeWebhook
	}
	return ModePolling
}

func (g *Coinbase) FeeRate() float64    { return g.cfg.HandlingFee }
func (g *Coinbase) Currency() string    { return g.cfg.Currency }
func (g *Coinbase) ButtonLabel() string { return g.cfg.ButtonLabel }
func (g *Coinbase) ButtonSort() int     { return g.cfg.ButtonSort }

func (g *Coinbase) headers() map[string]string {
	return map[string]string{
		"X-CC-Api-Key": g.cfg.APIKey,
		"X-CC-Version": "2018-03-22",
	}
}

// CreatePayment opens a fixed-price charge for the fee-inclusive total.
func (g *Coinbase) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*CreatePaymentResult, error) {
	payload := map[string]any{
		"local_price": map[string]any{
			"amount":   strconv.FormatFloat(Taxed(req.Amount, g.cfg.HandlingFee), 'f', 2, 64),
			"currency": g.cfg.Currency,
		},
		"pricing_type": "fixed_price",
		"memo":         req.Description,
	}
	var res struct {
		Data struct {
			ID        string `json:"id"`
			HostedURL string `json:"hosted_url"`
		} `json:"data"`
	}
	if err := doJSON(ctx, "POST", coinbaseAPIURL+"/charges", g.headers(), payload, &res); err != nil {
		return nil, fmt.Errorf("coinbase: failed to create charge: %w", err)
	}
	return &CreatePaymentResult{URL: res.Data.HostedURL, Reference: res.Data.ID}, nil
}

// ReferenceID pulls the charge id out of the raw callback.
func (g *Coinbase) ReferenceID(cb *Callback) string {
	var body struct {
		Event struct {
			Data struct {
				ID string `json:"id"`
			} `json:"data"`
		} `json:"event"`
	}
	if err := json.Unmarshal(cb.Body, &body); err != nil {
		return ""
	}
	return body.Event.Data.ID
}

type coinbaseWebhookBody struct {
	Event struct {
		Type string `json:"type"`
		Data struct {
			ID      string `json:"id"`
			Pricing struct {
				Local struct {
					Amount string `json:"amount"`
				} `json:"local"`
			} `json:"pricing"`
		} `json:"data"`
	} `json:"event"`
}

func (g *Coinbase) HandleWebhook(ctx context.Context, cb *Callback, inv *models.Invoice) ([]Event, error) {
	if g.Mode() != ModeWebhook {
		return nil, nil
	}
	if !g.verify(cb) {
		return nil, ErrVerificationFailed
	}

	var body coinbaseWebhookBody
	if err := json.Unmarshal(cb.Body, &body); err != nil {
		return nil, fmt.Errorf("coinbase: failed to parse webhook body: %w", err)
	}

	amount, _ := strconv.ParseFloat(body.Event.Data.Pricing.Local.Amount, 64)
	if amount == 0 {
		amount = Taxed(inv.Amount, g.cfg.HandlingFee)
	}

	switch body.Event.Type {
	case "charge:pending":
		return []Event{{Kind: EventCryptoPending, Amount: amount, Currency: g.cfg.Currency}}, nil
	case "charge:confirmed", "charge:resolved":
		return []Event{{Kind: EventPaid, Amount: amount, Currency: g.cfg.Currency}}, nil
	case "charge:failed":
		return []Event{{Kind: EventCancelled}}, nil
	default:
		log.Printf("[gateway] coinbase: ignoring event type %s", body.Event.Type)
		return nil, nil
	}
}

// verify checks the shared-secret HMAC over the raw body.
func (g *Coinbase) verify(cb *Callback) bool {
	signature := cb.Header.Get("X-CC-Webhook-Signature")
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(g.cfg.PaymentNotifications.WebhookSharedSecret))
	mac.Write(cb.Body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (g *Coinbase) RefreshPayment(ctx context.Context, inv *models.Invoice) ([]Event, Status, error) {
	var res struct {
		Data struct {
			Timeline []struct {
				Status string `json:"status"`
			} `json:"timeline"`
		} `json:"data"`
	}
	url := coinbaseAPIURL + "/charges/" + inv.GatewayReference
	if err := doJSON(ctx, "GET", url, g.headers(), nil, &res); err != nil {
		return nil, "", fmt.Errorf("coinbase: failed to refresh charge: %w", err)
	}

	pending, completed := false, false
	for _, entry := range res.Data.Timeline {
		switch entry.Status {
		case "PENDING":
			pending = true
		case "COMPLETED":
			completed = true
		}
	}
	total := Taxed(inv.Amount, g.cfg.HandlingFee)
	if completed {
		return []Event{{Kind: EventPaid, Amount: total, Currency: g.cfg.Currency}}, StatusPaid, nil
	}
	if pending {
		return []Event{{Kind: EventCryptoPending, Amount: total, Currency: g.cfg.Currency}}, StatusPending, nil
	}
	return nil, StatusPending, nil
}

// CancelPayment is a no-op: Commerce charges expire on their own.
func (g *Coinbase) CancelPayment(ctx context.Context, inv *models.Invoice) error {
	return nil
}
