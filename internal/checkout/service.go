// Package checkout turns a visitor cart into a hosted payment session and
// the pending order that the payment webhook later confirms.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/storefront/internal/cart"
	catalogmodels "github.com/Skotchmaster/storefront/internal/catalog/models"
	"github.com/Skotchmaster/storefront/internal/order/models"
	"github.com/Skotchmaster/storefront/internal/payment"
	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/Skotchmaster/storefront/pkg/metrics"
	"github.com/Skotchmaster/storefront/pkg/validate"
)

var (
	ErrValidation = errors.New("validation")
	ErrEmptyCart  = fmt.Errorf("%w: cart is empty", ErrValidation)
	ErrConflict   = errors.New("conflict")
)

type CartLoader interface {
	Load(ctx context.Context, cartID string) (cart.Cart, error)
}

type Catalog interface {
	Lookup(ctx context.Context, ids []string) (map[string]catalogmodels.Product, error)
}

type OrderInserter interface {
	Insert(ctx context.Context, o *models.Order) error
}

type CheckoutService struct {
	Carts    CartLoader
	Catalog  Catalog
	Provider payment.Provider
	Orders   OrderInserter
	Metrics  *metrics.Metrics

	Currency   string
	SuccessURL string
	CancelURL  string

	Now func() time.Time
}

type Result struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
	OrderID   string `json:"-"`
}

func (s *CheckoutService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *CheckoutService) count(outcome string) {
	if s.Metrics != nil {
		s.Metrics.CheckoutSessions.WithLabelValues(outcome).Inc()
	}
}

// Price resolves every cart line against the live catalog. Lines are priced
// from the catalog, never from the cart snapshot; a product that vanished,
// was deactivated or lacks stock makes the whole cart stale.
func (s *CheckoutService) Price(ctx context.Context, c cart.Cart) ([]models.Item, int64, error) {
	if c.Empty() {
		return nil, 0, ErrEmptyCart
	}

	found, err := s.Catalog.Lookup(ctx, c.ProductIDs())
	if err != nil {
		return nil, 0, fmt.Errorf("catalog lookup: %w", err)
	}

	items := make([]models.Item, 0, len(c.Items))
	var total int64
	for _, it := range c.Items {
		p, ok := found[it.ProductID]
		if !ok || !p.Active {
			return nil, 0, fmt.Errorf("%w: product %s is no longer available", ErrConflict, it.ProductID)
		}
		if p.Stock < it.Quantity {
			return nil, 0, fmt.Errorf("%w: only %d left of %s", ErrConflict, p.Stock, p.Title)
		}
		items = append(items, models.Item{
			ProductID: it.ProductID,
			Title:     p.Title,
			UnitPrice: p.Price,
			Quantity:  it.Quantity,
		})
		total += p.Price * int64(it.Quantity)
	}
	return items, total, nil
}

// Start opens a hosted payment session for the visitor's cart and records
// the pending order once the provider has returned its session id. Nothing
// is written when the provider call fails.
func (s *CheckoutService) Start(ctx context.Context, cartID, email string) (*Result, error) {
	l := logging.FromContext(ctx).With("component", "checkout")

	addr, ok := validate.Email(email)
	if !ok {
		s.count("invalid")
		return nil, fmt.Errorf("%w: a valid email is required", ErrValidation)
	}

	var c cart.Cart
	if cartID != "" {
		var err error
		if c, err = s.Carts.Load(ctx, cartID); err != nil {
			s.count("error")
			return nil, fmt.Errorf("load cart: %w", err)
		}
	}

	items, total, err := s.Price(ctx, c)
	if err != nil {
		switch {
		case errors.Is(err, ErrValidation):
			s.count("empty")
		case errors.Is(err, ErrConflict):
			s.count("stale")
		default:
			s.count("error")
		}
		return nil, err
	}

	orderID := uuid.NewString()
	req := payment.SessionRequest{
		Email:      addr,
		Currency:   s.Currency,
		SuccessURL: s.SuccessURL,
		CancelURL:  s.CancelURL,
		Reference:  orderID,
		Metadata:   map[string]string{"order_id": orderID, "cart_id": cartID},
	}
	for _, it := range items {
		req.Items = append(req.Items, payment.LineItem{
			Name:       it.Title,
			UnitAmount: it.UnitPrice,
			Quantity:   int64(it.Quantity),
		})
	}

	session, err := s.Provider.CreateSession(ctx, req)
	if err != nil {
		s.count("provider_error")
		return nil, err
	}

	o := &models.Order{
		ID:        orderID,
		SessionID: session.ID,
		CartID:    cartID,
		Email:     addr,
		Items:     items,
		Total:     total,
		Currency:  s.Currency,
		Status:    models.StatusPending,
		CreatedAt: s.now(),
	}
	if err := s.Orders.Insert(ctx, o); err != nil {
		l.Error("pending_order_insert_error", "session_id", session.ID, "order_id", orderID, "error", err)
		s.count("error")
		return nil, fmt.Errorf("record pending order: %w", err)
	}

	s.count("created")
	l.Info("checkout_session_created", "session_id", session.ID, "order_id", orderID, "total", total)
	return &Result{SessionID: session.ID, URL: session.URL, OrderID: orderID}, nil
}
