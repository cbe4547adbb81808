package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"strconv"

	"github.com/craftdesk/craftdesk/internal/models"
)

const paypalConfigSchema = `{
	"type": "object",
	"required": ["clientId", "clientSecret", "merchantName", "merchantEmail"],
	"properties": {
		"name": {"type": "string"},
		"buttonLabel": {"type": "string"},
		"buttonSort": {"type": "number"},
		"useSandbox": {"type": "boolean"},
		"clientId": {"type": "string", "minLength": 1},
		"clientSecret": {"type": "string", "minLength": 1},
		"merchantName": {"type": "string"},
		"merchantEmail": {"type": "string"},
		"enablePartialPayments": {"type": "boolean"},
		"minimumDuePercentage": {"type": "number", "minimum": 0, "maximum": 100},
		"handlingFee": {"type": "number", "minimum": 0, "maximum": 1},
		"currency": {"type": "string"},
		"paymentNotifications": {
			"type": "object",
			"properties": {
				"type": {"type": "string", "enum": ["webhook", "polling"]},
				"webhookId": {"type": "string"}
			}
		}
	}
}`

type paypalNotifications struct {
	Type      string `json:"type"`
	WebhookID string `json:"webhookId"`
}

type paypalConfig struct {
	Name                  string              `json:"name"`
	ButtonLabel           string              `json:"buttonLabel"`
	ButtonSort            int                 `json:"buttonSort"`
	UseSandbox            bool                `json:"useSandbox"`
	ClientID              string              `json:"clientId"`
	ClientSecret          string              `json:"clientSecret"`
	MerchantName          string              `json:"merchantName"`
	MerchantEmail         string              `json:"merchantEmail"`
	EnablePartialPayments bool                `json:"enablePartialPayments"`
	MinimumDuePercentage  float64             `json:"minimumDuePercentage"`
	HandlingFee           float64             `json:"handlingFee"`
	Currency              string              `json:"currency"`
	PaymentNotifications  paypalNotifications `json:"paymentNotifications"`
}

// PayPal over the REST invoicing API. Supports partial payments and
// webhook verification through the verify-webhook-signature endpoint.
type PayPal struct {
	cfg paypalConfig
}

func init() {
	register("paypal", paypalConfigSchema, func(cfg map[string]any) (Gateway, error) {
		c := paypalConfig{
			Name:                  "PayPal",
			ButtonLabel:           "Pay with PayPal",
			ButtonSort:            0,
			EnablePartialPayments: true,
			MinimumDuePercentage:  50,
			HandlingFee:           0.1,
			Currency:              "USD",
			PaymentNotifications:  paypalNotifications{Type: string(ModePolling)},
		}
		if err := decodeConfig(cfg, &c); err != nil {
			return nil, err
		}
		return &PayPal{cfg: c}, nil
	})
}

const (
	paypalLiveURL    = "https://api-m.paypal.com"
	paypalSandboxURL = "https://api-m.sandbox.paypal.com"
)

func (g *PayPal) Metadata() Metadata {
	return Metadata{
		ID:              "paypal",
		Name:            g.cfg.Name,
		Description:     "PayPal payment gateway",
		Version:         "1.0.0",
		SupportsRefresh: true,
	}
}

func (g *PayPal) Mode() Mode {
	if g.cfg.PaymentNotifications.Type == string(ModeWebhook) {
		return ModeWebhook
	}
	return ModePolling
}

func (g *PayPal) FeeRate() float64    { return g.cfg.HandlingFee }
func (g *PayPal) Currency() string    { return g.cfg.Currency }
func (g *PayPal) ButtonLabel() string { return g.cfg.ButtonLabel }
func (g *PayPal) ButtonSort() int     { return g.cfg.ButtonSort }

func (g *PayPal) apiURL() string {
	if g.cfg.UseSandbox {
		return paypalSandboxURL
	}
	return paypalLiveURL
}

func (g *PayPal) headers() map[string]string {
	auth := base64.StdEncoding.EncodeToString([]byte(g.cfg.ClientID + ":" + g.cfg.ClientSecret))
	return map[string]string{"Authorization": "Basic " + auth}
}

type paypalLink struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method"`
}

// CreatePayment drafts an invoice, applying the handling fee as a tax
// line, then sends it and returns the payer view link.
func (g *PayPal) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*CreatePaymentResult, error) {
	var numberRes struct {
		InvoiceNumber string `json:"invoice_number"`
	}
	err := doJSON(ctx, "POST", g.apiURL()+"/v2/invoicing/generate-next-invoice-number", g.headers(), nil, &numberRes)
	if err != nil {
		return nil, fmt.Errorf("paypal: failed to allocate invoice number: %w", err)
	}

	title := req.Title
	if title == "" {
		title = "Payment"
	}
	item := map[string]any{
		"name":        title,
		"description": req.Description,
		"quantity":    "1",
		"unit_amount": map[string]any{
			"currency_code": g.cfg.Currency,
			"value":         strconv.FormatFloat(req.Amount, 'f', 2, 64),
		},
	}
	if g.cfg.HandlingFee > 0 {
		item["tax"] = map[string]any{
			"name":    "Handling Fee",
			"percent": strconv.FormatFloat(g.cfg.HandlingFee*100, 'f', 2, 64),
		}
	}
	partial := map[string]any{"allow_partial_payment": g.cfg.EnablePartialPayments}
	if g.cfg.EnablePartialPayments {
		partial["minimum_amount_due"] = map[string]any{
			"currency_code": g.cfg.Currency,
			"value":         strconv.FormatFloat(req.Amount*g.cfg.MinimumDuePercentage/100, 'f', 2, 64),
		}
	}
	draft := map[string]any{
		"detail": map[string]any{
			"invoice_number": numberRes.InvoiceNumber,
			"currency_code":  g.cfg.Currency,
			"note":           req.Description,
			"memo":           req.Description,
		},
		"items": []any{item},
		"configuration": map[string]any{
			"allow_tip":       false,
			"partial_payment": partial,
		},
	}

	headers := g.headers()
	headers["Prefer"] = "return=representation"
	var createRes struct {
		ID    string       `json:"id"`
		Links []paypalLink `json:"links"`
	}
	if err := doJSON(ctx, "POST", g.apiURL()+"/v2/invoicing/invoices", headers, draft, &createRes); err != nil {
		return nil, fmt.Errorf("paypal: failed to create invoice: %w", err)
	}

	sendHref := ""
	for _, link := range createRes.Links {
		if link.Rel == "send" {
			sendHref = link.Href
		}
	}
	if sendHref == "" {
		return nil, fmt.Errorf("paypal: invoice %s has no send link", createRes.ID)
	}
	var sendRes struct {
		Href string `json:"href"`
	}
	if err := doJSON(ctx, "POST", sendHref, g.headers(), map[string]any{"send_to_recipient": false}, &sendRes); err != nil {
		return nil, fmt.Errorf("paypal: failed to send invoice: %w", err)
	}

	return &CreatePaymentResult{URL: sendRes.Href, Reference: createRes.ID}, nil
}

// ReferenceID pulls the provider invoice id out of the raw callback.
func (g *PayPal) ReferenceID(cb *Callback) string {
	var body struct {
		Resource struct {
			Invoice struct {
				ID string `json:"id"`
			} `json:"invoice"`
		} `json:"resource"`
	}
	if err := json.Unmarshal(cb.Body, &body); err != nil {
		return ""
	}
	return body.Resource.Invoice.ID
}

type paypalWebhookBody struct {
	ID        string `json:"id"`
	EventType string `json:"event_type"`
	Resource  struct {
		Invoice struct {
			ID       string `json:"id"`
			Status   string `json:"status"`
			Payments struct {
				PaidAmount struct {
					Value string `json:"value"`
				} `json:"paid_amount"`
			} `json:"payments"`
		} `json:"invoice"`
	} `json:"resource"`
}

func (g *PayPal) HandleWebhook(ctx context.Context, cb *Callback, inv *models.Invoice) ([]Event, error) {
	if g.Mode() != ModeWebhook {
		return nil, nil
	}
	if g.cfg.PaymentNotifications.WebhookID == "" {
		return nil, fmt.Errorf("paypal: webhook id is not configured")
	}

	var body paypalWebhookBody
	if err := json.Unmarshal(cb.Body, &body); err != nil {
		return nil, fmt.Errorf("paypal: failed to parse webhook body: %w", err)
	}
	if body.EventType != "INVOICING.INVOICE.PAID" {
		log.Printf("[gateway] paypal: ignoring event type %s", body.EventType)
		return nil, nil
	}

	ok, err := g.verify(ctx, cb)
	if err != nil || !ok {
		return nil, ErrVerificationFailed
	}

	switch body.Resource.Invoice.Status {
	case "PAID", "MARKED_AS_PAID":
		return []Event{{Kind: EventPaid, Amount: Taxed(inv.Amount, g.cfg.HandlingFee), Currency: g.cfg.Currency}}, nil
	case "PARTIALLY_PAID":
		amount, err := strconv.ParseFloat(body.Resource.Invoice.Payments.PaidAmount.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("paypal: bad paid amount in webhook: %w", err)
		}
		return []Event{{Kind: EventPartiallyPaid, Amount: amount, Currency: g.cfg.Currency}}, nil
	default:
		log.Printf("[gateway] paypal: ignoring invoice status %s", body.Resource.Invoice.Status)
		return nil, nil
	}
}

// verify posts the transmission headers and raw event back to PayPal's
// verify-webhook-signature endpoint.
func (g *PayPal) verify(ctx context.Context, cb *Callback) (bool, error) {
	var event json.RawMessage = cb.Body
	payload := map[string]any{
		"auth_algo":         cb.Header.Get("Paypal-Auth-Algo"),
		"cert_url":          cb.Header.Get("Paypal-Cert-Url"),
		"transmission_id":   cb.Header.Get("Paypal-Transmission-Id"),
		"transmission_sig":  cb.Header.Get("Paypal-Transmission-Sig"),
		"transmission_time": cb.Header.Get("Paypal-Transmission-Time"),
		"webhook_id":        g.cfg.PaymentNotifications.WebhookID,
		"webhook_event":     event,
	}
	var res struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := doJSON(ctx, "POST", g.apiURL()+"/v1/notifications/verify-webhook-signature", g.headers(), payload, &res); err != nil {
		return false, err
	}
	return res.VerificationStatus == "SUCCESS", nil
}

func (g *PayPal) RefreshPayment(ctx context.Context, inv *models.Invoice) ([]Event, Status, error) {
	var res struct {
		Status   string `json:"status"`
		Payments struct {
			PaidAmount struct {
				Value string `json:"value"`
			} `json:"paid_amount"`
		} `json:"payments"`
	}
	url := g.apiURL() + "/v2/invoicing/invoices/" + inv.GatewayReference
	if err := doJSON(ctx, "GET", url, g.headers(), nil, &res); err != nil {
		return nil, "", fmt.Errorf("paypal: failed to refresh invoice: %w", err)
	}

	switch res.Status {
	case "PAID", "MARKED_AS_PAID":
		return []Event{{Kind: EventPaid, Amount: Taxed(inv.Amount, g.cfg.HandlingFee), Currency: g.cfg.Currency}}, StatusPaid, nil
	case "PARTIALLY_PAID":
		amount, err := strconv.ParseFloat(res.Payments.PaidAmount.Value, 64)
		if err != nil {
			return nil, "", fmt.Errorf("paypal: bad paid amount: %w", err)
		}
		return []Event{{Kind: EventPartiallyPaid, Amount: amount, Currency: g.cfg.Currency}}, StatusPending, nil
	case "CANCELLED":
		return []Event{{Kind: EventCancelled}}, StatusCancelled, nil
	default:
		return nil, StatusPending, nil
	}
}

func (g *PayPal) CancelPayment(ctx context.Context, inv *models.Invoice) error {
	if inv.GatewayReference == "" {
		return nil
	}
	url := g.apiURL() + "/v2/invoicing/invoices/" + inv.GatewayReference + "/cancel"
	if err := doJSON(ctx, "POST", url, g.headers(), map[string]any{}, nil); err != nil {
		return fmt.Errorf("paypal: failed to cancel invoice: %w", err)
	}
	return nil
}
