package cache

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/pkg/logging"
)

type RevalidateHTTP struct {
	Cache *TagCache
	Token string
}

type revalidateRequest struct {
	Secret string `query:"secret" json:"secret"`
	Tag    string `query:"tag"    json:"tag"`
	Path   string `query:"path"   json:"path"`
}

func (h *RevalidateHTTP) authorized(secret string) bool {
	if h.Token == "" || secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(secret), []byte(h.Token)) == 1
}

// Revalidate drops cached responses by tag or by path. The token may come
// from the secret parameter or an x-revalidate-token header.
func (h *RevalidateHTTP) Revalidate(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cache.revalidate")

	var req revalidateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	req.Secret = firstNonEmpty(req.Secret, c.QueryParam("secret"), c.Request().Header.Get("X-Revalidate-Token"))
	req.Tag = firstNonEmpty(req.Tag, c.QueryParam("tag"))
	req.Path = firstNonEmpty(req.Path, c.QueryParam("path"))

	if !h.authorized(req.Secret) {
		l.Warn("revalidate_denied", "status", 401)
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	var tag string
	switch {
	case req.Tag != "":
		tag = req.Tag
	case req.Path != "":
		tag = PathTag(req.Path)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "tag or path required")
	}

	n, err := h.Cache.Invalidate(ctx, tag)
	if err != nil {
		l.Error("revalidate_error", "status", 500, "tag", tag, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "revalidate failed")
	}

	l.Info("revalidated", "tag", tag, "entries", n)
	resp := echo.Map{"revalidated": true, "entries": n, "now": time.Now().UnixMilli()}
	if req.Tag != "" {
		resp["tag"] = req.Tag
	} else {
		resp["path"] = req.Path
	}
	return c.JSON(http.StatusOK, resp)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
