package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/order/service"
	"github.com/Skotchmaster/storefront/internal/util"
	middleware "github.com/Skotchmaster/storefront/pkg/middleware/auth"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

type OrderHTTP struct {
	Svc *service.OrderService
}

func sessionEmail(c echo.Context) (string, error) {
	claims := middleware.Claims(c)
	if claims == nil || claims.Email == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return claims.Email, nil
}

func (h *OrderHTTP) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get_order")

	email, err := sessionEmail(c)
	if err != nil {
		return err
	}

	o, err := h.Svc.GetOwned(ctx, c.Param("id"), email)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrValidation):
			l.Warn("get_order_error", "status", 404, "order_id", c.Param("id"))
			return echo.NewHTTPError(http.StatusNotFound, "order not found")
		default:
			l.Error("get_order_error", "status", 500, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
	}
	return c.JSON(http.StatusOK, o)
}

func (h *OrderHTTP) ListOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.list_orders")

	email, err := sessionEmail(c)
	if err != nil {
		return err
	}

	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	items, total, err := h.Svc.ListOwned(ctx, email, offset, limit)
	if err != nil {
		l.Error("list_orders_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot list orders")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"data": items,
		"meta": util.Meta(page, offset, limit, total),
	})
}

func (h *OrderHTTP) Invoice(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.invoice")

	email, err := sessionEmail(c)
	if err != nil {
		return err
	}

	id := c.Param("id")
	pdf, err := h.Svc.Invoice(ctx, id, email)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrValidation):
			return echo.NewHTTPError(http.StatusNotFound, "order not found")
		case errors.Is(err, service.ErrConflict):
			l.Warn("invoice_error", "status", 409, "reason", "order not paid", "order_id", id)
			return echo.NewHTTPError(http.StatusConflict, "order is not paid yet")
		default:
			l.Error("invoice_error", "status", 500, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "cannot render invoice")
		}
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, `inline; filename="invoice-`+id+`.pdf"`)
	return c.Blob(http.StatusOK, "application/pdf", pdf)
}

// CheckoutStatus lets the success page poll until the webhook has marked the
// order paid. The session id is the capability; no login is needed.
func (h *OrderHTTP) CheckoutStatus(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.checkout_status")

	st, err := h.Svc.SessionStatus(ctx, c.QueryParam("session_id"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			return echo.NewHTTPError(http.StatusBadRequest, "session_id required")
		case errors.Is(err, service.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "unknown session")
		default:
			l.Error("checkout_status_error", "status", 500, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"status": st})
}

func (h *OrderHTTP) AdminListOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.admin_list_orders")

	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	items, total, err := h.Svc.ListAll(ctx, c.QueryParam("status"), offset, limit)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		l.Error("admin_list_orders_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot list orders")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"data": items,
		"meta": util.Meta(page, offset, limit, total),
	})
}
