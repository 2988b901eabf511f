package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Product prices are in minor currency units.
type Product struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"   json:"id"`
	Slug        string    `gorm:"uniqueIndex;not null"    json:"slug"`
	Title       string    `gorm:"not null"                json:"title"`
	Description string    `gorm:"not null;default:''"     json:"description"`
	Price       int64     `gorm:"not null;check:price>=0" json:"price"`
	Category    string    `gorm:"index"                   json:"category"`
	Image       string    `json:"image"`
	Stock       int       `gorm:"not null;default:0"      json:"stock"`
	Active      bool      `gorm:"not null"                json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `gorm:"index"                   json:"updated_at"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
