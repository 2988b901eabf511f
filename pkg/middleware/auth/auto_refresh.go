package middleware

import (
	"context"
	"errors"
	"net/http"

	jwthelp "github.com/Skotchmaster/storefront/pkg/jwt"
	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/Skotchmaster/storefront/pkg/tokens"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const (
	ctxUserID = "user_id"
	ctxRole   = "role"
	ctxEmail  = "email"
	ctxClaims = "claims"
)

var errNoSession = errors.New("no session")

// Refresher rotates a refresh token into a new token pair.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*tokens.Pair, error)
}

type AutoRefreshMiddleware struct {
	JWTSecret []byte
	Refresher Refresher
	LoginPath string
}

func NewAutoRefreshMiddleware(secret []byte, refresher Refresher, loginPath string) *AutoRefreshMiddleware {
	return &AutoRefreshMiddleware{
		JWTSecret: secret,
		Refresher: refresher,
		LoginPath: loginPath,
	}
}

// IsAdmin reports whether the session belongs to an administrator.
func IsAdmin(claims *tokens.AccessClaims) bool {
	return claims != nil && claims.Role == tokens.RoleAdmin
}

func (m *AutoRefreshMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims, err := m.session(c)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
		}
		setUserContext(c, claims)
		return next(c)
	}
}

// RequireAdmin sends anyone who is not an administrator to the login page.
func (m *AutoRefreshMiddleware) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		l := logging.FromContext(c.Request().Context()).With("middleware", "auth.require_admin")

		claims, err := m.session(c)
		if err != nil || !IsAdmin(claims) {
			reason := "not an admin"
			if err != nil {
				reason = err.Error()
			}
			l.Warn("admin_access_denied", "status", http.StatusFound, "reason", reason)
			return c.Redirect(http.StatusFound, m.LoginPath)
		}
		setUserContext(c, claims)
		return next(c)
	}
}

// OptionalAuth attaches the session when there is one and never rejects.
func (m *AutoRefreshMiddleware) OptionalAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if claims, err := m.session(c); err == nil {
			setUserContext(c, claims)
		}
		return next(c)
	}
}

func (m *AutoRefreshMiddleware) session(c echo.Context) (*tokens.AccessClaims, error) {
	accessCookie, err := c.Cookie(jwthelp.AccessCookie)
	if err != nil || accessCookie.Value == "" {
		return m.refresh(c)
	}

	claims, err := tokens.AccessClaimsFromToken(accessCookie.Value, m.JWTSecret)
	if err == nil {
		return claims, nil
	}
	if !errors.Is(err, jwt.ErrTokenExpired) {
		clearAuthCookies(c)
		return nil, err
	}
	return m.refresh(c)
}

func (m *AutoRefreshMiddleware) refresh(c echo.Context) (*tokens.AccessClaims, error) {
	refreshCookie, err := c.Cookie(jwthelp.RefreshCookie)
	if err != nil || refreshCookie.Value == "" || m.Refresher == nil {
		return nil, errNoSession
	}

	pair, err := m.Refresher.Refresh(c.Request().Context(), refreshCookie.Value)
	if err != nil {
		clearAuthCookies(c)
		return nil, err
	}

	c.SetCookie(jwthelp.CreateCookie(jwthelp.AccessCookie, pair.AccessToken, "/", pair.AccessExp))
	c.SetCookie(jwthelp.CreateCookie(jwthelp.RefreshCookie, pair.RefreshToken, "/", pair.RefreshExp))

	claims, err := tokens.AccessClaimsFromToken(pair.AccessToken, m.JWTSecret)
	if err != nil {
		clearAuthCookies(c)
		return nil, err
	}
	return claims, nil
}

func clearAuthCookies(c echo.Context) {
	c.SetCookie(jwthelp.DeleteCookie(jwthelp.AccessCookie, "/"))
	c.SetCookie(jwthelp.DeleteCookie(jwthelp.RefreshCookie, "/"))
}

func setUserContext(c echo.Context, claims *tokens.AccessClaims) {
	c.Set(ctxUserID, claims.Subject)
	c.Set(ctxRole, claims.Role)
	c.Set(ctxEmail, claims.Email)
	c.Set(ctxClaims, claims)
}

// Claims returns the session attached by one of the middlewares, or nil.
func Claims(c echo.Context) *tokens.AccessClaims {
	claims, _ := c.Get(ctxClaims).(*tokens.AccessClaims)
	return claims
}
