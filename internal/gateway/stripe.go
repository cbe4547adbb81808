package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	stripe "github.com/stripe/stripe-go/v76"
	stripeclient "github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/craftdesk/craftdesk/internal/models"
)

const stripeConfigSchema = `{
	"type": "object",
	"required": ["publishableKey", "secretKey"],
	"properties": {
		"name": {"type": "string"},
		"buttonLabel": {"type": "string"},
		"buttonSort": {"type": "number"},
		"useSandbox": {"type": "boolean"},
		"publishableKey": {"type": "string", "minLength": 1},
		"secretKey": {"type": "string", "minLength": 1},
		"handlingFee": {"type": "number", "minimum": 0, "maximum": 1},
		"currency": {"type": "string"},
		"successUrl": {"type": "string"},
		"cancelUrl": {"type": "string"},
		"paymentNotifications": {
			"type": "object",
			"properties": {
				"type": {"type": "string", "enum": ["webhook", "polling"]},
				"webhookSigningSecret": {"type": "string"}
			}
		}
	}
}`

type stripeNotifications struct {
	Type                 string `json:"type"`
	WebhookSigningSecret string `json:"webhookSigningSecret"`
}

type stripeConfig struct {
	Name                 string              `json:"name"`
	ButtonLabel          string              `json:"buttonLabel"`
	ButtonSort           int                 `json:"buttonSort"`
	PublishableKey       string              `json:"publishableKey"`
	SecretKey            string              `json:"secretKey"`
	HandlingFee          float64             `json:"handlingFee"`
	Currency             string              `json:"currency"`
	SuccessURL           string              `json:"successUrl"`
	CancelURL            string              `json:"cancelUrl"`
	PaymentNotifications stripeNotifications `json:"paymentNotifications"`
}

// Stripe over hosted checkout sessions.
type Stripe struct {
	cfg stripeConfig
	sc  *stripeclient.API
}

func init() {
	register("stripe", stripeConfigSchema, func(cfg map[string]any) (Gateway, error) {
		c := stripeConfig{
			Name:                 "Stripe",
			ButtonLabel:          "Pay with Stripe",
			ButtonSort:           10,
			HandlingFee:          0.1,
			Currency:             "USD",
			SuccessURL:           "https://stripe.com",
			CancelURL:            "https://stripe.com",
			PaymentNotifications: stripeNotifications{Type: string(ModePolling)},
		}
		if err := decodeConfig(cfg, &c); err != nil {
			return nil, err
		}
		return &Stripe{cfg: c, sc: stripeclient.New(c.SecretKey, nil)}, nil
	})
}

func (g *Stripe) Metadata() Metadata {
	return Metadata{
		ID:              "stripe",
		Name:            g.cfg.Name,
		Description:     "Stripe payment gateway",
		Version:         "1.0.0",
		SupportsRefresh: true,
	}
}

func (g *Stripe) Mode() Mode {
	if g.cfg.PaymentNotifications.Type == string(ModeWebhook) {
		return ModeWebhook
	}
	return ModePolling
}

func (g *Stripe) FeeRate() float64    { return g.cfg.HandlingFee }
func (g *Stripe) Currency() string    { return g.cfg.Currency }
func (g *Stripe) ButtonLabel() string { return g.cfg.ButtonLabel }
func (g *Stripe) ButtonSort() int     { return g.cfg.ButtonSort }

// CreatePayment opens a checkout session for the amount in minor units.
func (g *Stripe) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*CreatePaymentResult, error) {
	title := req.Title
	if title == "" {
		title = "Payment"
	}
	params := &stripe.CheckoutSessionParams{
		Params: stripe.Params{Context: ctx},
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(g.cfg.Currency),
				UnitAmount: stripe.Int64(int64(req.Amount*100 + 0.5)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        stripe.String(title),
					Description: stripe.String(req.Description),
				},
			},
			Quantity: stripe.Int64(1),
		}},
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(g.cfg.SuccessURL),
		CancelURL:  stripe.String(g.cfg.CancelURL),
	}
	session, err := g.sc.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe: failed to create checkout session: %w", err)
	}
	return &CreatePaymentResult{URL: session.URL, Reference: session.ID}, nil
}

// ReferenceID pulls the checkout session id out of the raw event body.
func (g *Stripe) ReferenceID(cb *Callback) string {
	var body struct {
		Data struct {
			Object struct {
				ID string `json:"id"`
			} `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(cb.Body, &body); err != nil {
		return ""
	}
	return body.Data.Object.ID
}

func (g *Stripe) HandleWebhook(ctx context.Context, cb *Callback, inv *models.Invoice) ([]Event, error) {
	if g.Mode() != ModeWebhook {
		return nil, nil
	}
	secret := g.cfg.PaymentNotifications.WebhookSigningSecret
	if secret == "" {
		return nil, fmt.Errorf("stripe: webhook signing secret is not configured")
	}

	event, err := webhook.ConstructEvent(cb.Body, cb.Header.Get("Stripe-Signature"), secret)
	if err != nil {
		return nil, ErrVerificationFailed
	}

	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return nil, fmt.Errorf("stripe: failed to parse session payload: %w", err)
		}
		if session.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid {
			return []Event{{Kind: EventPaid, Amount: Taxed(inv.Amount, g.cfg.HandlingFee), Currency: g.cfg.Currency}}, nil
		}
		return nil, nil
	default:
		log.Printf("[gateway] stripe: ignoring event type %s", event.Type)
		return nil, nil
	}
}

func (g *Stripe) RefreshPayment(ctx context.Context, inv *models.Invoice) ([]Event, Status, error) {
	if inv.GatewayReference == "" {
		return nil, "", fmt.Errorf("stripe: invoice has no checkout session reference")
	}
	session, err := g.sc.CheckoutSessions.Get(inv.GatewayReference, &stripe.CheckoutSessionParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return nil, "", fmt.Errorf("stripe: failed to refresh checkout session: %w", err)
	}

	switch session.PaymentStatus {
	case stripe.CheckoutSessionPaymentStatusPaid:
		return []Event{{Kind: EventPaid, Amount: Taxed(inv.Amount, g.cfg.HandlingFee), Currency: g.cfg.Currency}}, StatusPaid, nil
	case stripe.CheckoutSessionPaymentStatusUnpaid:
		return nil, StatusUnpaid, nil
	default:
		return nil, StatusPending, nil
	}
}

// CancelPayment expires the checkout session so the hosted link dies.
func (g *Stripe) CancelPayment(ctx context.Context, inv *models.Invoice) error {
	if inv.GatewayReference == "" {
		return nil
	}
	_, err := g.sc.CheckoutSessions.Expire(inv.GatewayReference, &stripe.CheckoutSessionExpireParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return fmt.Errorf("stripe: failed to expire checkout session: %w", err)
	}
	return nil
}
