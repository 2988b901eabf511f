package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/cache"
	"github.com/Skotchmaster/storefront/internal/catalog/models"
	"github.com/Skotchmaster/storefront/internal/catalog/repo"
	"github.com/Skotchmaster/storefront/internal/catalog/transport"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

var (
	ErrValidation = errors.New("validation")
	ErrNotFound   = errors.New("not found")
)

// Indexer mirrors catalog writes into the search backend.
type Indexer interface {
	Upsert(ctx context.Context, p models.Product) error
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, query string, from, size int) (int64, []models.Product, error)
}

// Invalidator drops cached catalog responses.
type Invalidator interface {
	Invalidate(ctx context.Context, tag string) (int, error)
}

type CatalogService struct {
	Repo  *repo.GormRepo
	Index Indexer
	Cache Invalidator
}

func (s *CatalogService) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	p, err := s.Repo.GetProduct(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: product %s", ErrNotFound, id)
	}
	return p, err
}

// GetActiveBySlug hides inactive products from the storefront.
func (s *CatalogService) GetActiveBySlug(ctx context.Context, slug string) (*models.Product, error) {
	p, err := s.Repo.GetBySlug(ctx, slug)
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !p.Active) {
		return nil, fmt.Errorf("%w: product %q", ErrNotFound, slug)
	}
	return p, err
}

func (s *CatalogService) GetProducts(ctx context.Context, category string, offset, limit int) (int64, []models.Product, error) {
	return s.Repo.GetProducts(ctx, category, offset, limit)
}

// Lookup returns the products for the given ids keyed by id string. Unknown
// or malformed ids are simply absent from the map.
func (s *CatalogService) Lookup(ctx context.Context, ids []string) (map[string]models.Product, error) {
	parsed := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if u, err := uuid.Parse(id); err == nil {
			parsed = append(parsed, u)
		}
	}
	items, err := s.Repo.GetByIDs(ctx, parsed)
	if err != nil {
		return nil, err
	}
	out := make(map[string]models.Product, len(items))
	for _, p := range items {
		out[p.ID.String()] = p
	}
	return out, nil
}

func (s *CatalogService) Search(ctx context.Context, q string, offset, limit int) (int64, []models.Product, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return 0, nil, fmt.Errorf("%w: empty query", ErrValidation)
	}
	if s.Index != nil {
		total, items, err := s.Index.Search(ctx, q, offset, limit)
		if err == nil {
			return total, items, nil
		}
		logging.FromContext(ctx).Warn("search_index_error", "reason", "falling back to database", "error", err)
	}
	return s.Repo.SearchLike(ctx, q, offset, limit)
}

func (s *CatalogService) uniqueSlug(ctx context.Context, base string) (string, error) {
	candidate := base
	for n := 2; ; n++ {
		exists, err := s.Repo.SlugExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, n)
	}
}

func (s *CatalogService) CreateProduct(ctx context.Context, req transport.CreateProductRequest) (*models.Product, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title required", ErrValidation)
	}
	if req.Price < 0 {
		return nil, fmt.Errorf("%w: price cannot be negative", ErrValidation)
	}
	if req.Stock < 0 {
		return nil, fmt.Errorf("%w: stock cannot be negative", ErrValidation)
	}

	base := req.Slug
	if base == "" {
		base = title
	}
	base = slug.Make(base)
	if base == "" {
		return nil, fmt.Errorf("%w: cannot build slug from %q", ErrValidation, title)
	}
	productSlug, err := s.uniqueSlug(ctx, base)
	if err != nil {
		return nil, err
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	p := &models.Product{
		Slug:        productSlug,
		Title:       title,
		Description: req.Description,
		Price:       req.Price,
		Category:    req.Category,
		Image:       req.Image,
		Stock:       req.Stock,
		Active:      active,
	}
	if err := s.Repo.CreateProduct(ctx, p); err != nil {
		return nil, err
	}

	s.afterWrite(ctx, p, false)
	return p, nil
}

func (s *CatalogService) PatchProduct(ctx context.Context, req transport.PatchProductRequest, id uuid.UUID) (*models.Product, error) {
	if req.Price != nil && *req.Price < 0 {
		return nil, fmt.Errorf("%w: price cannot be negative", ErrValidation)
	}
	if req.Stock != nil && *req.Stock < 0 {
		return nil, fmt.Errorf("%w: stock cannot be negative", ErrValidation)
	}
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		return nil, fmt.Errorf("%w: title cannot be empty", ErrValidation)
	}

	p, err := s.Repo.PatchProduct(ctx, req, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: product %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	s.afterWrite(ctx, p, false)
	return p, nil
}

func (s *CatalogService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	if err := s.Repo.DeleteProduct(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: product %s", ErrNotFound, id)
		}
		return err
	}

	s.afterWrite(ctx, &models.Product{ID: id}, true)
	return nil
}

// ListInactive returns products not updated within the last days days.
func (s *CatalogService) ListInactive(ctx context.Context, days int, now time.Time) ([]models.Product, error) {
	if days < 1 {
		return nil, fmt.Errorf("%w: days must be positive", ErrValidation)
	}
	return s.Repo.ListInactive(ctx, now.AddDate(0, 0, -days))
}

// afterWrite keeps search and cache in step. Failures are logged only; the
// database stays the source of truth.
func (s *CatalogService) afterWrite(ctx context.Context, p *models.Product, deleted bool) {
	l := logging.FromContext(ctx).With("svc", "catalog.after_write", "product_id", p.ID.String())

	if s.Index != nil {
		var err error
		if deleted {
			err = s.Index.Delete(ctx, p.ID.String())
		} else {
			err = s.Index.Upsert(ctx, *p)
		}
		if err != nil {
			l.Error("search_index_error", "error", err)
		}
	}

	if s.Cache != nil {
		if _, err := s.Cache.Invalidate(ctx, cache.TagProducts); err != nil {
			l.Error("cache_invalidate_error", "error", err)
		}
	}
}
