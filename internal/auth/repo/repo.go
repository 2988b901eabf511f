package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/storefront/internal/auth/models"
	jwthelp "github.com/Skotchmaster/storefront/pkg/jwt"
)

var (
	ErrUserAlreadyExist = errors.New("user already exist")
	ErrRefreshInvalid   = errors.New("refresh token expired or revoked")
)

type GormRepo struct {
	DB *gorm.DB
}

func (r *GormRepo) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *GormRepo) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *GormRepo) CreateUserIfNotExists(ctx context.Context, u *models.User) error {
	tx := r.DB.WithContext(ctx).Where("email = ?", u.Email).FirstOrCreate(u)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrUserAlreadyExist
	}
	return nil
}

// UpsertAdmin makes sure the given email exists with the admin role and the
// given password hash.
func (r *GormRepo) UpsertAdmin(ctx context.Context, email, passwordHash string) error {
	u := models.User{Email: email, PasswordHash: passwordHash, Role: "admin"}
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"password_hash", "role"}),
	}).Create(&u).Error
}

func (r *GormRepo) SaveRefresh(ctx context.Context, userID uuid.UUID, jti, token string, exp time.Time) error {
	return r.DB.WithContext(ctx).Create(&models.RefreshToken{
		Token:     jwthelp.Sha256Hex(token),
		UserID:    userID,
		JTI:       jti,
		ExpiresAt: exp.Unix(),
	}).Error
}

// RotateRefresh revokes the old token and stores the new one in the same
// transaction. The old row is locked so a token can only be rotated once.
func (r *GormRepo) RotateRefresh(ctx context.Context, oldJTI string, next models.RefreshToken) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var old models.RefreshToken
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("jti = ?", oldJTI).First(&old).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRefreshInvalid
			}
			return err
		}
		if old.Revoked || old.ExpiresAt < time.Now().Unix() {
			return ErrRefreshInvalid
		}

		res := tx.Model(&models.RefreshToken{}).
			Where("jti = ? AND revoked = ?", oldJTI, false).
			Update("revoked", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrRefreshInvalid
		}

		return tx.Create(&next).Error
	})
}

func (r *GormRepo) RevokeRefresh(ctx context.Context, token string) error {
	return r.DB.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("token = ?", jwthelp.Sha256Hex(token)).
		Update("revoked", true).Error
}
