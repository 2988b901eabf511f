package cache

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*TagCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewTagCache(client, time.Minute), mr
}

func TestTagCache_SetGetInvalidate(t *testing.T) {
	tc, _ := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, tc.Set(ctx, "/a", []byte(`{"a":1}`), TagProducts, PathTag("/a")))
	require.NoError(t, tc.Set(ctx, "/b", []byte(`{"b":1}`), TagProducts))

	v, ok, err := tc.Get(ctx, "/a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"a":1}`, string(v))

	n, err := tc.Invalidate(ctx, PathTag("/a"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, ok, err = tc.Get(ctx, "/a")
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, _ = tc.Get(ctx, "/b")
	assert.True(t, ok)

	n, err = tc.Invalidate(ctx, TagProducts)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	_, ok, _ = tc.Get(ctx, "/b")
	assert.False(t, ok)
}

func TestMiddleware_HitAfterMiss(t *testing.T) {
	tc, _ := setupTestRedis(t)
	calls := 0

	e := echo.New()
	e.GET("/api/v1/catalog/products", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, echo.Map{"calls": calls})
	}, tc.Middleware(TagProducts))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/catalog/products?page=1", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]int
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, 1, body["calls"])
	}
	assert.Equal(t, 1, calls)

	_, err := tc.Invalidate(context.Background(), TagProducts)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/catalog/products?page=1", nil))
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, 2, calls)
}

func TestMiddleware_ErrorsNotCached(t *testing.T) {
	tc, mr := setupTestRedis(t)

	e := echo.New()
	e.GET("/missing", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "nope")
	}, tc.Middleware())

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, mr.Exists("page:/missing"))
}

func TestRevalidate(t *testing.T) {
	tc, _ := setupTestRedis(t)
	h := &RevalidateHTTP{Cache: tc, Token: "s3cret"}
	e := echo.New()
	ctx := context.Background()
	require.NoError(t, tc.Set(ctx, "/p/blue-mug", []byte(`{}`), PathTag("/p/blue-mug")))

	call := func(method, target string) (*httptest.ResponseRecorder, error) {
		req := httptest.NewRequest(method, target, strings.NewReader(""))
		rec := httptest.NewRecorder()
		return rec, h.Revalidate(e.NewContext(req, rec))
	}

	_, err := call(http.MethodGet, "/api/revalidate?tag=products")
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusUnauthorized, he.Code)

	_, err = call(http.MethodPost, "/api/revalidate?secret=wrong&tag=products")
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusUnauthorized, he.Code)

	_, err = call(http.MethodGet, "/api/revalidate?secret=s3cret")
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusBadRequest, he.Code)

	rec, err := call(http.MethodPost, "/api/revalidate?secret=s3cret&path=/p/blue-mug")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["revalidated"])
	assert.EqualValues(t, 1, body["entries"])

	_, ok, _ := tc.Get(ctx, "/p/blue-mug")
	assert.False(t, ok)
}
