package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	carthttp "github.com/Skotchmaster/storefront/internal/cart/httpserver"
	"github.com/Skotchmaster/storefront/internal/checkout"
	"github.com/Skotchmaster/storefront/internal/payment"
	middleware "github.com/Skotchmaster/storefront/pkg/middleware/auth"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

type CheckoutHTTP struct {
	Svc *checkout.CheckoutService
}

type createRequest struct {
	Email string `json:"email"`
}

func (h *CheckoutHTTP) Create(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "checkout.create")

	var req createRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("checkout_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Email == "" {
		if claims := middleware.Claims(c); claims != nil {
			req.Email = claims.Email
		}
	}

	res, err := h.Svc.Start(ctx, carthttp.CartID(c, false), req.Email)
	if err != nil {
		switch {
		case errors.Is(err, checkout.ErrValidation):
			l.Warn("checkout_error", "status", 400, "reason", err.Error())
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, checkout.ErrConflict):
			l.Warn("checkout_error", "status", 409, "reason", err.Error())
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		case errors.Is(err, payment.ErrProvider):
			l.Error("checkout_error", "status", 502, "error", err)
			return echo.NewHTTPError(http.StatusBadGateway, "payment provider unavailable")
		default:
			l.Error("checkout_error", "status", 500, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
	}

	return c.JSON(http.StatusOK, res)
}

// Register mounts checkout on api. optionalAuth lets a signed-in customer
// omit the email.
func Register(api *echo.Group, h *CheckoutHTTP, optionalAuth echo.MiddlewareFunc) {
	if optionalAuth != nil {
		api.POST("/checkout", h.Create, optionalAuth)
		return
	}
	api.POST("/checkout", h.Create)
}
