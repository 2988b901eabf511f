package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"  json:"id"`
	Email        string    `gorm:"uniqueIndex;not null"   json:"email"`
	PasswordHash string    `gorm:"not null"               json:"-"`
	Role         string    `gorm:"not null"               json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

type RefreshToken struct {
	ID        uint      `gorm:"primaryKey"            json:"id"`
	Token     string    `gorm:"uniqueIndex;not null"  json:"-"`
	UserID    uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	JTI       string    `gorm:"uniqueIndex;not null"  json:"jti"`
	ExpiresAt int64     `gorm:"not null"              json:"expires_at"`
	Revoked   bool      `gorm:"default:false"         json:"revoked"`
}
