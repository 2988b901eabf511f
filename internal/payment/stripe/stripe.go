package stripe

import (
	"context"
	"encoding/json"
	"fmt"

	stripego "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/Skotchmaster/storefront/internal/payment"
)

type Provider struct {
	api           *client.API
	webhookSecret string
}

// NewProvider builds a Stripe-backed provider. backends may be nil to use
// the default Stripe endpoints.
func NewProvider(secretKey, webhookSecret string, backends *stripego.Backends) *Provider {
	api := &client.API{}
	api.Init(secretKey, backends)
	return &Provider{api: api, webhookSecret: webhookSecret}
}

func (p *Provider) CreateSession(ctx context.Context, req payment.SessionRequest) (*payment.Session, error) {
	params := &stripego.CheckoutSessionParams{
		Mode:       stripego.String(string(stripego.CheckoutSessionModePayment)),
		SuccessURL: stripego.String(req.SuccessURL),
		CancelURL:  stripego.String(req.CancelURL),
	}
	params.Context = ctx
	if req.Email != "" {
		params.CustomerEmail = stripego.String(req.Email)
	}
	if req.Reference != "" {
		params.ClientReferenceID = stripego.String(req.Reference)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	for _, it := range req.Items {
		params.LineItems = append(params.LineItems, &stripego.CheckoutSessionLineItemParams{
			PriceData: &stripego.CheckoutSessionLineItemPriceDataParams{
				Currency: stripego.String(req.Currency),
				ProductData: &stripego.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripego.String(it.Name),
				},
				UnitAmount: stripego.Int64(it.UnitAmount),
			},
			Quantity: stripego.Int64(it.Quantity),
		})
	}

	s, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("%w: create checkout session: %v", payment.ErrProvider, err)
	}
	return &payment.Session{ID: s.ID, URL: s.URL}, nil
}

func (p *Provider) ParseWebhook(payload []byte, signatureHeader string) (*payment.Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, p.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", payment.ErrSignature, err)
	}

	out := &payment.Event{ID: event.ID, Type: payment.EventType(event.Type)}
	if out.Type != payment.EventCheckoutCompleted && out.Type != payment.EventAsyncPaymentSucceeded {
		return out, nil
	}
	if event.Data == nil {
		return nil, fmt.Errorf("%w: event %s has no data", payment.ErrProvider, event.ID)
	}

	var s stripego.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
		return nil, fmt.Errorf("%w: decode checkout session: %v", payment.ErrProvider, err)
	}

	out.SessionID = s.ID
	out.Email = s.CustomerEmail
	if out.Email == "" && s.CustomerDetails != nil {
		out.Email = s.CustomerDetails.Email
	}
	// Delayed payment methods complete the session unpaid and confirm later.
	out.Paid = s.PaymentStatus != stripego.CheckoutSessionPaymentStatusUnpaid
	return out, nil
}
