package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/Skotchmaster/storefront/internal/order/invoice"
	"github.com/Skotchmaster/storefront/internal/order/models"
	"github.com/Skotchmaster/storefront/internal/order/repo"
	"github.com/Skotchmaster/storefront/internal/order/service"
	stripeprovider "github.com/Skotchmaster/storefront/internal/payment/stripe"
	"github.com/Skotchmaster/storefront/pkg/db"
	jwthelp "github.com/Skotchmaster/storefront/pkg/jwt"
	middleware "github.com/Skotchmaster/storefront/pkg/middleware/auth"
	"github.com/Skotchmaster/storefront/pkg/tokens"
)

var (
	jwtSecret = []byte("order-secret")
	whsec     = "whsec_order_test"
)

type memOrders struct {
	mu     sync.Mutex
	orders []*models.Order
}

func (m *memOrders) find(match func(*models.Order) bool) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if match(o) {
			cp := *o
			return &cp, nil
		}
	}
	return nil, repo.ErrOrderNotFound
}

func (m *memOrders) FindByID(_ context.Context, id string) (*models.Order, error) {
	return m.find(func(o *models.Order) bool { return o.ID == id })
}

func (m *memOrders) FindBySessionID(_ context.Context, sid string) (*models.Order, error) {
	return m.find(func(o *models.Order) bool { return o.SessionID == sid })
}

func (m *memOrders) list(keep func(*models.Order) bool) ([]models.Order, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Order{}
	for _, o := range m.orders {
		if keep(o) {
			out = append(out, *o)
		}
	}
	return out, int64(len(out)), nil
}

func (m *memOrders) ListByEmail(_ context.Context, email string, _, _ int) ([]models.Order, int64, error) {
	return m.list(func(o *models.Order) bool { return o.Email == email })
}

func (m *memOrders) ListAll(_ context.Context, st models.Status, _, _ int) ([]models.Order, int64, error) {
	return m.list(func(o *models.Order) bool { return st == "" || o.Status == st })
}

func (m *memOrders) MarkPaid(_ context.Context, sid string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.SessionID == sid && o.Status == models.StatusPending {
			o.Status, o.PaidAt = models.StatusPaid, &at
			return true, nil
		}
	}
	return false, nil
}

func newTestServer(t *testing.T) (*echo.Echo, *memOrders) {
	t.Helper()

	gdb, err := db.Open(context.Background(), "sqlite::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(gdb) })
	require.NoError(t, gdb.AutoMigrate(&models.WebhookEvent{}))

	orders := &memOrders{orders: []*models.Order{{
		ID:        "ord-1",
		SessionID: "cs_test_1",
		Email:     "jane@shop.fr",
		Items:     []models.Item{{ProductID: "p1", Title: "Mug", UnitPrice: 2000, Quantity: 2}},
		Total:     4000,
		Currency:  "eur",
		Status:    models.StatusPending,
		CreatedAt: time.Now().UTC(),
	}}}

	oh := &OrderHTTP{Svc: &service.OrderService{Repo: orders, Seller: invoice.Seller{Name: "Storefront"}}}
	wh := &WebhookHTTP{Svc: &service.WebhookService{
		Provider: stripeprovider.NewProvider("sk_test_x", whsec, nil),
		Orders:   orders,
		Ledger:   &repo.LedgerRepo{DB: gdb},
	}}

	auth := middleware.NewAutoRefreshMiddleware(jwtSecret, nil, "/fr/admin/login")
	e := echo.New()
	Register(e.Group("/api/v1"), e.Group("/admin", auth.RequireAdmin), oh, wh, auth.RequireAuth)
	return e, orders
}

func sessionCookie(t *testing.T, email, role string) *http.Cookie {
	t.Helper()
	tok, err := tokens.Sign(tokens.AccessClaims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}, jwtSecret)
	require.NoError(t, err)
	return &http.Cookie{Name: jwthelp.AccessCookie, Value: tok}
}

func get(e *echo.Echo, target string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func postWebhook(e *echo.Echo, payload, sig string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", strings.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(SignatureHeader, sig)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func signed(payload string) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    whsec,
		Timestamp: time.Now(),
	}).Header
}

const completedEvent = `{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_test_1","object":"checkout.session","payment_status":"paid","customer_email":"jane@shop.fr"}}}`

func TestGetOrder_Ownership(t *testing.T) {
	e, _ := newTestServer(t)

	rec := get(e, "/api/v1/orders/ord-1")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = get(e, "/api/v1/orders/ord-1", sessionCookie(t, "jane@shop.fr", tokens.RoleUser))
	require.Equal(t, http.StatusOK, rec.Code)
	var o models.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &o))
	assert.Equal(t, int64(4000), o.Total)

	rec = get(e, "/api/v1/orders/ord-1", sessionCookie(t, "bob@shop.fr", tokens.RoleUser))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = get(e, "/api/v1/orders/ord-missing", sessionCookie(t, "jane@shop.fr", tokens.RoleUser))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListOrders(t *testing.T) {
	e, _ := newTestServer(t)

	rec := get(e, "/api/v1/orders", sessionCookie(t, "jane@shop.fr", tokens.RoleUser))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data []models.Order `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Data, 1)
}

func TestWebhook_EndToEnd(t *testing.T) {
	e, orders := newTestServer(t)
	jane := sessionCookie(t, "jane@shop.fr", tokens.RoleUser)

	rec := get(e, "/api/v1/orders/ord-1/invoice", jane)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = postWebhook(e, completedEvent, "t=1,v1=bad")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	o, _ := orders.FindByID(context.Background(), "ord-1")
	assert.Equal(t, models.StatusPending, o.Status)

	rec = postWebhook(e, completedEvent, signed(completedEvent))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"outcome":"paid"`)

	rec = postWebhook(e, completedEvent, signed(completedEvent))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"outcome":"duplicate"`)

	rec = get(e, "/api/v1/checkout/status?session_id=cs_test_1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"paid"}`, rec.Body.String())

	rec = get(e, "/api/v1/orders/ord-1/invoice", jane)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get(echo.HeaderContentType))
}

func TestWebhook_UnknownSessionAcknowledged(t *testing.T) {
	e, _ := newTestServer(t)
	payload := strings.Replace(completedEvent, "cs_test_1", "cs_unknown", 1)

	rec := postWebhook(e, payload, signed(payload))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"outcome":"unknown_session"`)
}

func TestAdminOrders_Gate(t *testing.T) {
	e, _ := newTestServer(t)

	rec := get(e, "/admin/orders")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/fr/admin/login", rec.Header().Get(echo.HeaderLocation))

	rec = get(e, "/admin/orders", sessionCookie(t, "jane@shop.fr", tokens.RoleUser))
	assert.Equal(t, http.StatusFound, rec.Code)

	rec = get(e, "/admin/orders?status=pending", sessionCookie(t, "boss@shop.fr", tokens.RoleAdmin))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ord-1")

	rec = get(e, "/admin/orders?status=weird", sessionCookie(t, "boss@shop.fr", tokens.RoleAdmin))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
