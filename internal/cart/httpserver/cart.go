package httpserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/cart"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

const CookieName = "cart_id"

type CartHTTP struct {
	Svc *cart.CartService
}

// CartID returns the visitor's cart id from the cookie. With create set, a
// new id is issued when the cookie is missing or malformed.
func CartID(c echo.Context, create bool) string {
	if ck, err := c.Cookie(CookieName); err == nil {
		if _, perr := uuid.Parse(ck.Value); perr == nil {
			return ck.Value
		}
	}
	if !create {
		return ""
	}
	id := uuid.NewString()
	c.SetCookie(&http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		Expires:  time.Now().Add(30 * 24 * time.Hour),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

func cartResponse(c cart.Cart) echo.Map {
	return echo.Map{"items": c.Items, "count": c.Count(), "total": c.Total()}
}

func (h *CartHTTP) GetCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.get")

	got, err := h.Svc.Get(ctx, CartID(c, false))
	if err != nil {
		l.Error("get_cart_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot load cart")
	}
	return c.JSON(http.StatusOK, cartResponse(got))
}

func (h *CartHTTP) AddItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.add_item")

	var req struct {
		ProductID string `json:"product_id"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	got, err := h.Svc.Add(ctx, CartID(c, true), req.ProductID)
	if err != nil {
		switch {
		case errors.Is(err, cart.ErrValidation):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, cart.ErrNotFound):
			l.Warn("add_item_error", "status", 404, "product_id", req.ProductID)
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		default:
			l.Error("add_item_error", "status", 500, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "cannot update cart")
		}
	}
	return c.JSON(http.StatusOK, cartResponse(got))
}

func (h *CartHTTP) RemoveItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.remove_item")

	got, err := h.Svc.Remove(ctx, CartID(c, false), c.Param("product_id"))
	if err != nil {
		l.Error("remove_item_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot update cart")
	}
	return c.JSON(http.StatusOK, cartResponse(got))
}

func (h *CartHTTP) ClearCart(c echo.Context) error {
	ctx := c.Request().Context()

	if err := h.Svc.Clear(ctx, CartID(c, false)); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot clear cart")
	}
	return c.NoContent(http.StatusNoContent)
}

func Register(g *echo.Group, h *CartHTTP) {
	cg := g.Group("/cart")
	cg.GET("", h.GetCart)
	cg.DELETE("", h.ClearCart)
	cg.POST("/items", h.AddItem)
	cg.DELETE("/items/:product_id", h.RemoveItem)
}
