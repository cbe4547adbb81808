package gateway

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/craftdesk/craftdesk/internal/models"
)

const paypalWebscrConfigSchema = `{
	"type": "object",
	"required": ["email"],
	"properties": {
		"name": {"type": "string"},
		"buttonLabel": {"type": "string"},
		"buttonSort": {"type": "number"},
		"email": {"type": "string", "minLength": 1},
		"handlingFee": {"type": "number", "minimum": 0, "maximum": 1},
		"returnUrl": {"type": "string"},
		"cancelUrl": {"type": "string"},
		"currency": {"type": "string"}
	}
}`

type paypalWebscrConfig struct {
	Name        string  `json:"name"`
	ButtonLabel string  `json:"buttonLabel"`
	ButtonSort  int     `json:"buttonSort"`
	Email       string  `json:"email"`
	HandlingFee float64 `json:"handlingFee"`
	ReturnURL   string  `json:"returnUrl"`
	CancelURL   string  `json:"cancelUrl"`
	Currency    string  `json:"currency"`
}

// PayPalWebscr builds classic webscr pay links against a merchant email.
// Fire and forget: no reference tracking, no refresh, no webhook. Staff
// reconcile these manually.
type PayPalWebscr struct {
	cfg paypalWebscrConfig
}

func init() {
	register("paypalwebscr", paypalWebscrConfigSchema, func(cfg map[string]any) (Gateway, error) {
		c := paypalWebscrConfig{
			Name:        "PayPal Webscr",
			ButtonLabel: "Pay with PayPal",
			ButtonSort:  5,
			HandlingFee: 0.1,
			Currency:    "USD",
		}
		if err := decodeConfig(cfg, &c); err != nil {
			return nil, err
		}
		return &PayPalWebscr{cfg: c}, nil
	})
}

const paypalWebscrURL = "https://www.paypal.com/cgi-bin/webscr"

func (g *PayPalWebscr) Metadata() Metadata {
	return Metadata{
		ID:          "paypalwebscr",
		Name:        g.cfg.Name,
		Description: "PayPal email-based payment gateway",
		Version:     "1.0.0",
	}
}

func (g *PayPalWebscr) Mode() Mode          { return ModePolling }
func (g *PayPalWebscr) FeeRate() float64    { return g.cfg.HandlingFee }
func (g *PayPalWebscr) Currency() string    { return g.cfg.Currency }
func (g *PayPalWebscr) ButtonLabel() string { return g.cfg.ButtonLabel }
func (g *PayPalWebscr) ButtonSort() int     { return g.cfg.ButtonSort }

func (g *PayPalWebscr) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*CreatePaymentResult, error) {
	total := Taxed(req.Amount, g.cfg.HandlingFee)
	params := url.Values{}
	params.Set("cmd", "_xclick")
	params.Set("business", g.cfg.Email)
	params.Set("currency_code", g.cfg.Currency)
	params.Set("amount", strconv.FormatFloat(total, 'f', 2, 64))
	params.Set("item_name", req.Description)
	params.Set("no_shipping", "1")
	params.Set("return", g.cfg.ReturnURL)
	params.Set("cancel_return", g.cfg.CancelURL)

	// No provider-side object exists; a timestamp keeps the reference
	// column unique enough for bookkeeping.
	return &CreatePaymentResult{
		URL:       paypalWebscrURL + "?" + params.Encode(),
		Reference: strconv.FormatInt(time.Now().UnixMilli(), 10),
	}, nil
}

func (g *PayPalWebscr) ReferenceID(cb *Callback) string { return "" }

func (g *PayPalWebscr) HandleWebhook(ctx context.Context, cb *Callback, inv *models.Invoice) ([]Event, error) {
	return nil, nil
}

func (g *PayPalWebscr) RefreshPayment(ctx context.Context, inv *models.Invoice) ([]Event, Status, error) {
	return nil, StatusPending, ErrRefreshUnsupported
}

func (g *PayPalWebscr) CancelPayment(ctx context.Context, inv *models.Invoice) error {
	return nil
}
