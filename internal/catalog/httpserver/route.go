package httpserver

import "github.com/labstack/echo/v4"

// Register mounts the public catalog on api and the management routes on
// admin, which is expected to be gated already.
func Register(api, admin *echo.Group, h *CatalogHTTP, cached echo.MiddlewareFunc) {
	products := api.Group("/catalog")
	if cached != nil {
		products.Use(cached)
	}
	products.GET("/products", h.GetProducts)
	products.GET("/products/:slug", h.GetProduct)
	products.GET("/search", h.SearchProducts)

	admin.GET("/products/inactive", h.ListInactive)
	admin.POST("/products", h.CreateProduct)
	admin.PATCH("/products/:id", h.PatchProduct)
	admin.DELETE("/products/:id", h.DeleteProduct)
}
