package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"

	catalogmodels "github.com/Skotchmaster/storefront/internal/catalog/models"
	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/Skotchmaster/storefront/pkg/metrics"
)

var (
	ErrValidation = errors.New("validation")
	ErrNotFound   = errors.New("not found")
)

type Catalog interface {
	Lookup(ctx context.Context, ids []string) (map[string]catalogmodels.Product, error)
}

type Store interface {
	Load(ctx context.Context, cartID string) (Cart, error)
	Update(ctx context.Context, cartID string, fn func(Cart) Cart) (Cart, error)
	Clear(ctx context.Context, cartID string) error
}

type CartService struct {
	Store   Store
	Catalog Catalog
	Metrics *metrics.Metrics
}

func (s *CartService) count(op string) {
	if s.Metrics != nil {
		s.Metrics.CartMutations.WithLabelValues(op).Inc()
	}
}

func (s *CartService) Get(ctx context.Context, cartID string) (Cart, error) {
	if cartID == "" {
		return Cart{Items: []Item{}}, nil
	}
	return s.Store.Load(ctx, cartID)
}

// Add puts one more unit of productID in the cart, snapshotting its live
// title and price. Unknown or inactive products are rejected.
func (s *CartService) Add(ctx context.Context, cartID, productID string) (Cart, error) {
	productID = strings.TrimSpace(productID)
	if cartID == "" || productID == "" {
		return Cart{}, fmt.Errorf("%w: product_id required", ErrValidation)
	}

	found, err := s.Catalog.Lookup(ctx, []string{productID})
	if err != nil {
		return Cart{}, err
	}
	p, ok := found[productID]
	if !ok || !p.Active {
		return Cart{}, fmt.Errorf("%w: product %s", ErrNotFound, productID)
	}

	c, err := s.Store.Update(ctx, cartID, func(c Cart) Cart {
		return c.Add(Product{ID: productID, Title: p.Title, Price: p.Price})
	})
	if err != nil {
		return Cart{}, err
	}
	s.count("add")
	return c, nil
}

func (s *CartService) Remove(ctx context.Context, cartID, productID string) (Cart, error) {
	if cartID == "" {
		return Cart{Items: []Item{}}, nil
	}
	c, err := s.Store.Update(ctx, cartID, func(c Cart) Cart {
		return c.Remove(productID)
	})
	if err != nil {
		return Cart{}, err
	}
	s.count("remove")
	return c, nil
}

func (s *CartService) Clear(ctx context.Context, cartID string) error {
	if cartID == "" {
		return nil
	}
	if err := s.Store.Clear(ctx, cartID); err != nil {
		logging.FromContext(ctx).Error("cart_clear_error", "cart_id", cartID, "error", err)
		return err
	}
	s.count("clear")
	return nil
}
