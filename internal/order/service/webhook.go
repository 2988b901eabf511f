package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Skotchmaster/storefront/internal/order/events"
	"github.com/Skotchmaster/storefront/internal/order/models"
	"github.com/Skotchmaster/storefront/internal/order/repo"
	"github.com/Skotchmaster/storefront/internal/payment"
	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/Skotchmaster/storefront/pkg/metrics"
)

type Outcome string

const (
	OutcomePaid           Outcome = "paid"
	OutcomeAlreadyPaid    Outcome = "already_paid"
	OutcomeDuplicate      Outcome = "duplicate"
	OutcomeIgnored        Outcome = "ignored"
	OutcomeUnpaid         Outcome = "unpaid"
	OutcomeUnknownSession Outcome = "unknown_session"
)

type PaidMarker interface {
	FindBySessionID(ctx context.Context, sessionID string) (*models.Order, error)
	MarkPaid(ctx context.Context, sessionID string, at time.Time) (bool, error)
}

type Ledger interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Record(ctx context.Context, eventID, eventType string, at time.Time) error
}

type CartClearer interface {
	Clear(ctx context.Context, cartID string) error
}

type Publisher interface {
	PublishEvent(ctx context.Context, topic, key string, event any) error
}

type WebhookService struct {
	Provider payment.Provider
	Orders   PaidMarker
	Ledger   Ledger
	Carts    CartClearer
	Events   Publisher
	Metrics  *metrics.Metrics
	Now      func() time.Time
}

func (s *WebhookService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *WebhookService) count(o Outcome) {
	if s.Metrics != nil {
		s.Metrics.WebhookEvents.WithLabelValues(string(o)).Inc()
	}
}

// Handle verifies a provider notification and applies it. Only the call
// that actually moves an order from pending to paid clears the cart,
// publishes order_paid and counts the sale.
func (s *WebhookService) Handle(ctx context.Context, payload []byte, signature string) (Outcome, error) {
	l := logging.FromContext(ctx).With("component", "webhook")

	ev, err := s.Provider.ParseWebhook(payload, signature)
	if err != nil {
		if errors.Is(err, payment.ErrSignature) && s.Metrics != nil {
			s.Metrics.WebhookEvents.WithLabelValues("invalid_signature").Inc()
		}
		return "", err
	}
	l = l.With("event_id", ev.ID, "event_type", string(ev.Type))

	seen, err := s.Ledger.Seen(ctx, ev.ID)
	if err != nil {
		return "", fmt.Errorf("webhook ledger lookup: %w", err)
	}
	if seen {
		l.Info("webhook_duplicate")
		s.count(OutcomeDuplicate)
		return OutcomeDuplicate, nil
	}

	outcome, err := s.apply(ctx, l, ev)
	if err != nil {
		return "", err
	}
	s.count(outcome)

	// Unknown sessions stay out of the ledger so a redelivery can still match
	// an order that was written late.
	if outcome != OutcomeUnknownSession {
		if err := s.Ledger.Record(ctx, ev.ID, string(ev.Type), s.now()); err != nil {
			l.Error("webhook_ledger_record_error", "error", err)
		}
	}
	return outcome, nil
}

func (s *WebhookService) apply(ctx context.Context, l *slog.Logger, ev *payment.Event) (Outcome, error) {
	if ev.Type != payment.EventCheckoutCompleted && ev.Type != payment.EventAsyncPaymentSucceeded {
		l.Info("webhook_ignored")
		return OutcomeIgnored, nil
	}
	if !ev.Paid {
		l.Info("webhook_payment_pending", "session_id", ev.SessionID)
		return OutcomeUnpaid, nil
	}

	o, err := s.Orders.FindBySessionID(ctx, ev.SessionID)
	if errors.Is(err, repo.ErrOrderNotFound) {
		l.Warn("webhook_unknown_session", "session_id", ev.SessionID)
		return OutcomeUnknownSession, nil
	}
	if err != nil {
		return "", fmt.Errorf("find order for session %s: %w", ev.SessionID, err)
	}

	paidAt := s.now()
	transitioned, err := s.Orders.MarkPaid(ctx, ev.SessionID, paidAt)
	if err != nil {
		return "", err
	}
	if !transitioned {
		l.Info("webhook_already_paid", "order_id", o.ID)
		return OutcomeAlreadyPaid, nil
	}

	s.afterPaid(ctx, l, o, paidAt)
	l.Info("order_paid", "order_id", o.ID, "session_id", o.SessionID)
	return OutcomePaid, nil
}

// afterPaid runs the side effects of a confirmed payment. Failures are
// logged; the transition itself is already durable.
func (s *WebhookService) afterPaid(ctx context.Context, l *slog.Logger, o *models.Order, paidAt time.Time) {
	if s.Carts != nil && o.CartID != "" {
		if err := s.Carts.Clear(ctx, o.CartID); err != nil {
			l.Error("cart_clear_after_paid_error", "order_id", o.ID, "error", err)
		}
	}

	if s.Events != nil {
		msg := events.OrderPaid{
			OrderID:   o.ID,
			SessionID: o.SessionID,
			Email:     o.Email,
			Total:     o.Total,
			Currency:  o.Currency,
			PaidAt:    paidAt,
		}
		if err := s.Events.PublishEvent(ctx, events.TopicOrderPaid, o.ID, msg); err != nil {
			l.Error("order_paid_publish_error", "order_id", o.ID, "error", err)
		}
	}

	if s.Metrics != nil {
		s.Metrics.OrdersPaid.Inc()
	}
}
