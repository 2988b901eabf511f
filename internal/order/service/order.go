package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Skotchmaster/storefront/internal/order/invoice"
	"github.com/Skotchmaster/storefront/internal/order/models"
	"github.com/Skotchmaster/storefront/internal/order/repo"
)

var (
	ErrValidation = errors.New("validation")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
)

type OrderReader interface {
	FindByID(ctx context.Context, id string) (*models.Order, error)
	FindBySessionID(ctx context.Context, sessionID string) (*models.Order, error)
	ListByEmail(ctx context.Context, email string, offset, limit int) ([]models.Order, int64, error)
	ListAll(ctx context.Context, status models.Status, offset, limit int) ([]models.Order, int64, error)
}

type OrderService struct {
	Repo   OrderReader
	Seller invoice.Seller
}

func sameEmail(a, b string) bool {
	return a != "" && strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// GetOwned returns the order only when it belongs to email. A foreign order
// is reported as not found so ids cannot be probed.
func (s *OrderService) GetOwned(ctx context.Context, id, email string) (*models.Order, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: id required", ErrValidation)
	}
	o, err := s.Repo.FindByID(ctx, id)
	if errors.Is(err, repo.ErrOrderNotFound) {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if !sameEmail(email, o.Email) {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, id)
	}
	return o, nil
}

func (s *OrderService) ListOwned(ctx context.Context, email string, offset, limit int) ([]models.Order, int64, error) {
	if email == "" {
		return nil, 0, fmt.Errorf("%w: email required", ErrValidation)
	}
	return s.Repo.ListByEmail(ctx, strings.ToLower(email), offset, limit)
}

func (s *OrderService) ListAll(ctx context.Context, status string, offset, limit int) ([]models.Order, int64, error) {
	st := models.Status(status)
	switch st {
	case "", models.StatusPending, models.StatusPaid:
	default:
		return nil, 0, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	return s.Repo.ListAll(ctx, st, offset, limit)
}

// SessionStatus reports the order status for a checkout session, which the
// success page polls until the webhook has landed.
func (s *OrderService) SessionStatus(ctx context.Context, sessionID string) (models.Status, error) {
	if sessionID == "" {
		return "", fmt.Errorf("%w: session_id required", ErrValidation)
	}
	o, err := s.Repo.FindBySessionID(ctx, sessionID)
	if errors.Is(err, repo.ErrOrderNotFound) {
		return "", fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
	}
	if err != nil {
		return "", err
	}
	return o.Status, nil
}

func (s *OrderService) Invoice(ctx context.Context, id, email string) ([]byte, error) {
	o, err := s.GetOwned(ctx, id, email)
	if err != nil {
		return nil, err
	}
	pdf, err := invoice.Render(o, s.Seller)
	if errors.Is(err, invoice.ErrNotPaid) {
		return nil, fmt.Errorf("%w: order %s is %s", ErrConflict, id, o.Status)
	}
	return pdf, err
}
