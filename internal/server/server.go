// Package server assembles the storefront HTTP surface from the per-domain
// handlers.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	ecM "github.com/labstack/echo/v4/middleware"

	authhttp "github.com/Skotchmaster/storefront/internal/auth/httpserver"
	"github.com/Skotchmaster/storefront/internal/cache"
	carthttp "github.com/Skotchmaster/storefront/internal/cart/httpserver"
	cataloghttp "github.com/Skotchmaster/storefront/internal/catalog/httpserver"
	checkouthttp "github.com/Skotchmaster/storefront/internal/checkout/httpserver"
	orderhttp "github.com/Skotchmaster/storefront/internal/order/httpserver"
	"github.com/Skotchmaster/storefront/pkg/metrics"
	middleware "github.com/Skotchmaster/storefront/pkg/middleware/auth"
	"github.com/Skotchmaster/storefront/pkg/middleware/csrf"
	loggingmw "github.com/Skotchmaster/storefront/pkg/middleware/logging"
)

// Check is a readiness probe for one backing service.
type Check func(ctx context.Context) error

// SiteConfig is the public, non-secret configuration the frontend reads.
type SiteConfig struct {
	AnalyticsID    string `json:"analytics_id"`
	PublishableKey string `json:"payment_publishable_key"`
	Currency       string `json:"currency"`
}

type Deps struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	AuthMW *middleware.AutoRefreshMiddleware

	Auth       *authhttp.AuthHTTP
	Catalog    *cataloghttp.CatalogHTTP
	Cart       *carthttp.CartHTTP
	Checkout   *checkouthttp.CheckoutHTTP
	Orders     *orderhttp.OrderHTTP
	Webhook    *orderhttp.WebhookHTTP
	Revalidate *cache.RevalidateHTTP
	Cache      *cache.TagCache

	CSRF        csrf.Config
	CORSOrigins []string
	SiteConfig  SiteConfig
	Ready       map[string]Check
}

// CSRFSkips lists the endpoints that authenticate by other means: signed
// provider callbacks, the revalidate token, and the credential exchanges.
func CSRFSkips(cfg csrf.Config) csrf.Config {
	cfg.SkipPaths = append(cfg.SkipPaths,
		"/health/live", "/health/ready", "/metrics",
		"/api/revalidate",
		"/api/v1/auth/login", "/api/v1/auth/register", "/api/v1/auth/refresh",
	)
	cfg.SkipPrefixes = append(cfg.SkipPrefixes, "/api/v1/webhooks/")
	return cfg
}

func Common(d *Deps) []echo.MiddlewareFunc {
	mws := []echo.MiddlewareFunc{
		ecM.Recover(),
		ecM.RequestID(),
		loggingmw.RequestLogger(d.Logger),
		ecM.Secure(),
	}
	if len(d.CORSOrigins) > 0 {
		mws = append(mws, ecM.CORSWithConfig(ecM.CORSConfig{
			AllowOrigins:     d.CORSOrigins,
			AllowCredentials: true,
			AllowHeaders: []string{
				echo.HeaderContentType,
				echo.HeaderXRequestID,
				d.CSRF.HeaderName,
			},
		}))
	}
	mws = append(mws, csrf.Middleware(CSRFSkips(d.CSRF)))
	return mws
}

func Register(e *echo.Echo, d *Deps) {
	e.Pre(ecM.RemoveTrailingSlash())
	for _, m := range Common(d) {
		e.Use(m)
	}

	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", d.ready)
	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.Metrics.Handler()))
	}

	var cached echo.MiddlewareFunc
	if d.Cache != nil {
		cached = d.Cache.Middleware(cache.TagProducts)
	}

	api := e.Group("/api/v1")
	admin := e.Group("/admin", d.AuthMW.RequireAdmin)

	authhttp.Register(api, d.Auth)
	cataloghttp.Register(api, admin, d.Catalog, cached)
	carthttp.Register(api, d.Cart)
	checkouthttp.Register(api, d.Checkout, d.AuthMW.OptionalAuth)
	orderhttp.Register(api, admin, d.Orders, d.Webhook, d.AuthMW.RequireAuth)

	api.GET("/site-config", func(c echo.Context) error { return c.JSON(http.StatusOK, d.SiteConfig) })

	if d.Revalidate != nil {
		e.Match([]string{http.MethodGet, http.MethodPost}, "/api/revalidate", d.Revalidate.Revalidate)
	}
}

func (d *Deps) ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{}
	healthy := true
	for name, check := range d.Ready {
		if err := check(ctx); err != nil {
			status[name] = err.Error()
			healthy = false
			continue
		}
		status[name] = "ok"
	}
	if !healthy {
		return c.JSON(http.StatusServiceUnavailable, status)
	}
	return c.JSON(http.StatusOK, status)
}
