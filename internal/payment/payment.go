// Package payment describes the hosted-checkout provider the storefront
// talks to, independent of any vendor SDK.
package payment

import (
	"context"
	"errors"
)

var (
	ErrSignature = errors.New("invalid webhook signature")
	ErrProvider  = errors.New("payment provider error")
)

type EventType string

const (
	EventCheckoutCompleted     EventType = "checkout.session.completed"
	EventAsyncPaymentSucceeded EventType = "checkout.session.async_payment_succeeded"
)

// LineItem amounts are in minor currency units.
type LineItem struct {
	Name       string
	UnitAmount int64
	Quantity   int64
}

type SessionRequest struct {
	Email      string
	Currency   string
	SuccessURL string
	CancelURL  string
	Reference  string
	Items      []LineItem
	Metadata   map[string]string
}

type Session struct {
	ID  string
	URL string
}

// Event is a verified provider notification. Paid is set when the event
// confirms that money was captured for SessionID.
type Event struct {
	ID        string
	Type      EventType
	SessionID string
	Email     string
	Paid      bool
}

type Provider interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
	ParseWebhook(payload []byte, signatureHeader string) (*Event, error)
}
