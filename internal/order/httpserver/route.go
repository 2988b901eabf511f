package httpserver

import "github.com/labstack/echo/v4"

// Register mounts the customer order routes behind requireAuth, the public
// webhook and status endpoints on api, and the order list on admin.
func Register(api, admin *echo.Group, h *OrderHTTP, wh *WebhookHTTP, requireAuth echo.MiddlewareFunc) {
	api.POST("/webhooks/stripe", wh.Stripe)
	api.GET("/checkout/status", h.CheckoutStatus)

	orders := api.Group("/orders", requireAuth)
	orders.GET("", h.ListOrders)
	orders.GET("/:id", h.GetOrder)
	orders.GET("/:id/invoice", h.Invoice)

	admin.GET("/orders", h.AdminListOrders)
}
