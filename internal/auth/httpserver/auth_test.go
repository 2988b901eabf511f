package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/storefront/internal/auth/models"
	"github.com/Skotchmaster/storefront/internal/auth/repo"
	"github.com/Skotchmaster/storefront/internal/auth/service"
	"github.com/Skotchmaster/storefront/pkg/db"
	jwthelp "github.com/Skotchmaster/storefront/pkg/jwt"
)

type testEnv struct {
	T *testing.T
	E *echo.Echo
	A *AuthHTTP
}

func newTestEnv(t *testing.T) *testEnv {
	gdb, err := db.Open(context.Background(), "sqlite::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(gdb) })
	require.NoError(t, gdb.AutoMigrate(&models.User{}, &models.RefreshToken{}))

	return &testEnv{
		T: t,
		E: echo.New(),
		A: &AuthHTTP{Svc: &service.AuthService{
			Repo:          &repo.GormRepo{DB: gdb},
			JWTSecret:     []byte("jwt"),
			RefreshSecret: []byte("refresh"),
		}},
	}
}

func (env *testEnv) doJSONRequest(method, path string, body any, cookies ...*http.Cookie) (*httptest.ResponseRecorder, echo.Context) {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(env.T, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	return rec, env.E.NewContext(req, rec)
}

func cookieByName(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == name {
			return ck
		}
	}
	return nil
}

func httpCode(t *testing.T, err error) int {
	t.Helper()
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	return he.Code
}

func TestRegisterLoginRefreshLogout(t *testing.T) {
	env := newTestEnv(t)
	creds := map[string]string{"email": "jane@shop.fr", "password": "password1"}

	rec, c := env.doJSONRequest(http.MethodPost, "/api/v1/auth/register", creds)
	require.NoError(t, env.A.Register(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var user map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	assert.Equal(t, "jane@shop.fr", user["email"])
	assert.NotContains(t, user, "PasswordHash")

	_, c = env.doJSONRequest(http.MethodPost, "/api/v1/auth/register", creds)
	assert.Equal(t, http.StatusConflict, httpCode(t, env.A.Register(c)))

	rec, c = env.doJSONRequest(http.MethodPost, "/api/v1/auth/login", creds)
	require.NoError(t, env.A.Login(c))
	require.Equal(t, http.StatusOK, rec.Code)
	refresh := cookieByName(rec, jwthelp.RefreshCookie)
	require.NotNil(t, refresh)
	require.NotNil(t, cookieByName(rec, jwthelp.AccessCookie))

	rec, c = env.doJSONRequest(http.MethodPost, "/api/v1/auth/refresh", nil, refresh)
	require.NoError(t, env.A.Refresh(c))
	require.Equal(t, http.StatusNoContent, rec.Code)
	rotated := cookieByName(rec, jwthelp.RefreshCookie)
	require.NotNil(t, rotated)

	_, c = env.doJSONRequest(http.MethodPost, "/api/v1/auth/refresh", nil, refresh)
	assert.Equal(t, http.StatusUnauthorized, httpCode(t, env.A.Refresh(c)))

	rec, c = env.doJSONRequest(http.MethodPost, "/api/v1/auth/logout", nil, rotated)
	require.NoError(t, env.A.LogOut(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	_, c = env.doJSONRequest(http.MethodPost, "/api/v1/auth/refresh", nil, rotated)
	assert.Equal(t, http.StatusUnauthorized, httpCode(t, env.A.Refresh(c)))
}

func TestLogin_BadCredentials(t *testing.T) {
	env := newTestEnv(t)

	_, c := env.doJSONRequest(http.MethodPost, "/api/v1/auth/login", map[string]string{"email": "x@shop.fr", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, httpCode(t, env.A.Login(c)))

	_, c = env.doJSONRequest(http.MethodPost, "/api/v1/auth/login", map[string]string{"email": "", "password": ""})
	assert.Equal(t, http.StatusBadRequest, httpCode(t, env.A.Login(c)))
}
