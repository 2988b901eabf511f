package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/auth/service"
	jwthelp "github.com/Skotchmaster/storefront/pkg/jwt"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

type AuthHTTP struct {
	Svc *service.AuthService
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.register")

	var req credentials
	if err := c.Bind(&req); err != nil {
		l.Warn("register_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	user, err := h.Svc.Register(ctx, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			l.Warn("register_error", "status", 400, "error", err)
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrConflict):
			l.Warn("register_error", "status", 409, "reason", "email taken")
			return echo.NewHTTPError(http.StatusConflict, "email already registered")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "register failed")
		}
	}

	return c.JSON(http.StatusCreated, user)
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.login")

	var req credentials
	if err := c.Bind(&req); err != nil {
		l.Warn("login_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	res, err := h.Svc.Login(ctx, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrUnauthorized):
			l.Warn("login_failed", "status", 401)
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid email or password")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "login failed")
		}
	}

	c.SetCookie(jwthelp.CreateCookie(jwthelp.AccessCookie, res.AccessToken, "/", res.AccessExp))
	c.SetCookie(jwthelp.CreateCookie(jwthelp.RefreshCookie, res.RefreshToken, "/", res.RefreshExp))
	l.Info("login_successful")

	return c.JSON(http.StatusOK, echo.Map{"is_admin": res.IsAdmin})
}

func (h *AuthHTTP) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.refresh")

	ck, err := c.Cookie(jwthelp.RefreshCookie)
	if err != nil || ck.Value == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "refresh token missing")
	}

	pair, err := h.Svc.Refresh(ctx, ck.Value)
	if err != nil {
		c.SetCookie(jwthelp.DeleteCookie(jwthelp.AccessCookie, "/"))
		c.SetCookie(jwthelp.DeleteCookie(jwthelp.RefreshCookie, "/"))
		if errors.Is(err, service.ErrUnauthorized) {
			return echo.NewHTTPError(http.StatusUnauthorized, "refresh failed")
		}
		l.Error("refresh_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "refresh failed")
	}

	c.SetCookie(jwthelp.CreateCookie(jwthelp.AccessCookie, pair.AccessToken, "/", pair.AccessExp))
	c.SetCookie(jwthelp.CreateCookie(jwthelp.RefreshCookie, pair.RefreshToken, "/", pair.RefreshExp))
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHTTP) LogOut(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.logout")

	if ck, err := c.Cookie(jwthelp.RefreshCookie); err == nil && ck.Value != "" {
		if err := h.Svc.LogOut(ctx, ck.Value); err != nil {
			l.Error("logout_failed", "status", 500, "reason", "cannot revoke refreshToken", "error", err)
		}
	}

	c.SetCookie(jwthelp.DeleteCookie(jwthelp.RefreshCookie, "/"))
	c.SetCookie(jwthelp.DeleteCookie(jwthelp.AccessCookie, "/"))

	l.Info("successful_logout")
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}
