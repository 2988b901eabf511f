package cache

import (
	"bytes"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/pkg/logging"
)

type bodyRecorder struct {
	http.ResponseWriter
	buf bytes.Buffer
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

// Middleware serves successful GET JSON responses from the cache and stores
// misses under the request URI, tagged with tags plus the path tag.
func (tc *TagCache) Middleware(tags ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Method != http.MethodGet {
				return next(c)
			}
			ctx := req.Context()
			l := logging.FromContext(ctx).With("middleware", "cache")
			key := req.URL.RequestURI()

			body, ok, err := tc.Get(ctx, key)
			if err != nil {
				l.Warn("cache_get_error", "key", key, "error", err)
			}
			if ok {
				c.Response().Header().Set("X-Cache", "HIT")
				return c.JSONBlob(http.StatusOK, body)
			}

			rec := &bodyRecorder{ResponseWriter: c.Response().Writer}
			c.Response().Writer = rec
			c.Response().Header().Set("X-Cache", "MISS")

			if err := next(c); err != nil {
				return err
			}

			if c.Response().Status == http.StatusOK && rec.buf.Len() > 0 {
				all := append([]string{PathTag(req.URL.Path)}, tags...)
				if err := tc.Set(ctx, key, rec.buf.Bytes(), all...); err != nil {
					l.Warn("cache_set_error", "key", key, "error", err)
				}
			}
			return nil
		}
	}
}
