package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/auth/models"
	"github.com/Skotchmaster/storefront/internal/auth/repo"
	pkg_hash "github.com/Skotchmaster/storefront/pkg/hash"
	jwthelp "github.com/Skotchmaster/storefront/pkg/jwt"
	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/Skotchmaster/storefront/pkg/tokens"
	"github.com/Skotchmaster/storefront/pkg/validate"
)

var (
	ErrValidation   = errors.New("validation")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
)

const minPasswordLen = 8

type AuthService struct {
	Repo          *repo.GormRepo
	JWTSecret     []byte
	RefreshSecret []byte
}

type LoginResult struct {
	tokens.Pair
	IsAdmin bool
}

func (s *AuthService) CreateAccessToken(user *models.User, accessExp time.Time) (string, error) {
	return tokens.Sign(tokens.AccessClaims{
		Email: user.Email,
		Role:  user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(accessExp),
		},
	}, s.JWTSecret)
}

func (s *AuthService) CreateRefreshToken(userID uuid.UUID, jti string, refreshExp time.Time) (string, error) {
	return tokens.Sign(tokens.RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(refreshExp),
			ID:        jti,
		},
	}, s.RefreshSecret)
}

func (s *AuthService) issue(user *models.User) (*tokens.Pair, string, error) {
	now := time.Now()
	accessExp := now.Add(tokens.AccessTTL)
	access, err := s.CreateAccessToken(user, accessExp)
	if err != nil {
		return nil, "", err
	}

	jti := jwthelp.NewJTI()
	refreshExp := now.Add(tokens.RefreshTTL)
	refresh, err := s.CreateRefreshToken(user.ID, jti, refreshExp)
	if err != nil {
		return nil, "", err
	}

	return &tokens.Pair{
		AccessToken:  access,
		RefreshToken: refresh,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
	}, jti, nil
}

func (s *AuthService) Register(ctx context.Context, email, password string) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "auth.register")

	addr, ok := validate.Email(email)
	if !ok {
		return nil, fmt.Errorf("%w: invalid email", ErrValidation)
	}
	if len(password) < minPasswordLen {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLen)
	}

	pwHash, err := pkg_hash.HashPassword(password)
	if err != nil {
		l.Error("register_error", "status", 500, "reason", "cannot hash the password", "error", err)
		return nil, err
	}

	user := &models.User{Email: addr, PasswordHash: pwHash, Role: tokens.RoleUser}
	if err := s.Repo.CreateUserIfNotExists(ctx, user); err != nil {
		if errors.Is(err, repo.ErrUserAlreadyExist) {
			return nil, fmt.Errorf("%w: %s already registered", ErrConflict, addr)
		}
		l.Error("register_error", "status", 500, "reason", "cannot create user", "error", err)
		return nil, err
	}

	l.Info("user_registered", "user_id", user.ID.String())
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	addr, ok := validate.Email(email)
	if !ok || password == "" {
		return nil, fmt.Errorf("%w: email and password required", ErrValidation)
	}
	l := logging.FromContext(ctx).With("svc", "auth.login", "email", addr)

	user, err := s.Repo.FindUserByEmail(ctx, addr)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnauthorized
		}
		l.Error("login_error", "status", 500, "error", err)
		return nil, err
	}
	if !pkg_hash.CheckPassword(user.PasswordHash, password) {
		return nil, ErrUnauthorized
	}

	pair, jti, err := s.issue(user)
	if err != nil {
		l.Error("login_error", "status", 500, "reason", "cannot sign tokens", "error", err)
		return nil, err
	}
	if err := s.Repo.SaveRefresh(ctx, user.ID, jti, pair.RefreshToken, pair.RefreshExp); err != nil {
		l.Error("login_error", "status", 500, "reason", "cannot store refresh token", "error", err)
		return nil, err
	}

	return &LoginResult{Pair: *pair, IsAdmin: user.Role == tokens.RoleAdmin}, nil
}

// Refresh rotates a refresh token. The presented token is revoked whether or
// not the caller ever receives the new pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*tokens.Pair, error) {
	l := logging.FromContext(ctx).With("svc", "auth.refresh")

	claims, err := tokens.RefreshClaimsFromToken(refreshToken, s.RefreshSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: bad subject", ErrUnauthorized)
	}

	user, err := s.Repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user gone", ErrUnauthorized)
		}
		return nil, err
	}

	pair, jti, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	next := models.RefreshToken{
		Token:     jwthelp.Sha256Hex(pair.RefreshToken),
		UserID:    user.ID,
		JTI:       jti,
		ExpiresAt: pair.RefreshExp.Unix(),
	}
	if err := s.Repo.RotateRefresh(ctx, claims.ID, next); err != nil {
		if errors.Is(err, repo.ErrRefreshInvalid) {
			l.Warn("refresh_rejected", "user_id", user.ID.String(), "reason", err.Error())
			return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
		return nil, err
	}

	return pair, nil
}

func (s *AuthService) LogOut(ctx context.Context, refreshToken string) error {
	return s.Repo.RevokeRefresh(ctx, refreshToken)
}

// EnsureAdmin seeds the administrator account from configuration.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) error {
	addr, ok := validate.Email(email)
	if !ok || password == "" {
		return fmt.Errorf("%w: admin email and password required", ErrValidation)
	}
	pwHash, err := pkg_hash.HashPassword(password)
	if err != nil {
		return err
	}
	return s.Repo.UpsertAdmin(ctx, addr, pwHash)
}
