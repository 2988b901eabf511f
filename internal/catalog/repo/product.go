package repo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/storefront/internal/catalog/models"
	"github.com/Skotchmaster/storefront/internal/catalog/transport"
)

type GormRepo struct {
	DB *gorm.DB
}

func (r *GormRepo) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *GormRepo) GetBySlug(ctx context.Context, slug string) (*models.Product, error) {
	var product models.Product
	if err := r.DB.WithContext(ctx).Where("slug = ?", slug).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *GormRepo) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var items []models.Product
	if err := r.DB.WithContext(ctx).Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *GormRepo) GetProducts(ctx context.Context, category string, offset, limit int) (int64, []models.Product, error) {
	q := r.DB.WithContext(ctx).Model(&models.Product{}).Where("active = ?", true)
	if category != "" {
		q = q.Where("category = ?", category)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return 0, nil, err
	}

	items := make([]models.Product, 0, limit)
	if err := q.Order("created_at DESC").Order("id ASC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return 0, nil, err
	}
	return total, items, nil
}

func (r *GormRepo) SlugExists(ctx context.Context, slug string) (bool, error) {
	var count int64
	if err := r.DB.WithContext(ctx).Model(&models.Product{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *GormRepo) CreateProduct(ctx context.Context, prod *models.Product) error {
	return r.DB.WithContext(ctx).Create(prod).Error
}

func (r *GormRepo) PatchProduct(ctx context.Context, req transport.PatchProductRequest, id uuid.UUID) (*models.Product, error) {
	var prod models.Product
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&prod).Error; err != nil {
			return err
		}

		if req.Title != nil {
			prod.Title = *req.Title
		}
		if req.Description != nil {
			prod.Description = *req.Description
		}
		if req.Price != nil {
			prod.Price = *req.Price
		}
		if req.Category != nil {
			prod.Category = *req.Category
		}
		if req.Image != nil {
			prod.Image = *req.Image
		}
		if req.Stock != nil {
			prod.Stock = *req.Stock
		}
		if req.Active != nil {
			prod.Active = *req.Active
		}

		return tx.Save(&prod).Error
	})
	if err != nil {
		return nil, err
	}
	return &prod, nil
}

func (r *GormRepo) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	res := r.DB.WithContext(ctx).Where("id = ?", id).Delete(&models.Product{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListInactive returns products whose last update is older than cutoff.
func (r *GormRepo) ListInactive(ctx context.Context, cutoff time.Time) ([]models.Product, error) {
	var items []models.Product
	if err := r.DB.WithContext(ctx).
		Where("updated_at < ?", cutoff).
		Order("updated_at ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// SearchLike is the database fallback when no search index is configured.
func (r *GormRepo) SearchLike(ctx context.Context, q string, offset, limit int) (int64, []models.Product, error) {
	pattern := "%" + strings.ToLower(q) + "%"
	where := r.DB.WithContext(ctx).Model(&models.Product{}).
		Where("active = ?", true).
		Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern).
		Session(&gorm.Session{})

	var total int64
	if err := where.Count(&total).Error; err != nil {
		return 0, nil, err
	}

	items := make([]models.Product, 0, limit)
	if err := where.Order("title ASC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return 0, nil, err
	}
	return total, items, nil
}
