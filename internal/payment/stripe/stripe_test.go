package stripe

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	stripego "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/storefront/internal/payment"
)

const whsec = "whsec_test_secret"

func sign(t *testing.T, payload string) string {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    whsec,
		Timestamp: time.Now(),
	})
	return signed.Header
}

func TestParseWebhook_Completed(t *testing.T) {
	p := NewProvider("sk_test_x", whsec, nil)
	payload := `{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_test_1","object":"checkout.session","payment_status":"paid","customer_email":"jane@shop.fr"}}}`

	ev, err := p.ParseWebhook([]byte(payload), sign(t, payload))
	require.NoError(t, err)
	assert.Equal(t, "evt_1", ev.ID)
	assert.Equal(t, payment.EventCheckoutCompleted, ev.Type)
	assert.Equal(t, "cs_test_1", ev.SessionID)
	assert.Equal(t, "jane@shop.fr", ev.Email)
	assert.True(t, ev.Paid)
}

func TestParseWebhook_UnpaidCompletion(t *testing.T) {
	p := NewProvider("sk_test_x", whsec, nil)
	payload := `{"id":"evt_2","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_test_2","object":"checkout.session","payment_status":"unpaid"}}}`

	ev, err := p.ParseWebhook([]byte(payload), sign(t, payload))
	require.NoError(t, err)
	assert.False(t, ev.Paid)
}

func TestParseWebhook_OtherEventType(t *testing.T) {
	p := NewProvider("sk_test_x", whsec, nil)
	payload := `{"id":"evt_3","object":"event","type":"payment_intent.created","data":{"object":{"id":"pi_1","object":"payment_intent"}}}`

	ev, err := p.ParseWebhook([]byte(payload), sign(t, payload))
	require.NoError(t, err)
	assert.Equal(t, payment.EventType("payment_intent.created"), ev.Type)
	assert.Empty(t, ev.SessionID)
}

func TestParseWebhook_BadSignature(t *testing.T) {
	p := NewProvider("sk_test_x", whsec, nil)
	payload := `{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_test_1"}}}`

	_, err := p.ParseWebhook([]byte(payload), "t=1,v1=deadbeef")
	assert.ErrorIs(t, err, payment.ErrSignature)

	tampered := `{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_other"}}}`
	_, err = p.ParseWebhook([]byte(tampered), sign(t, payload))
	assert.ErrorIs(t, err, payment.ErrSignature)
}

func TestCreateSession_SendsLineItems(t *testing.T) {
	var form url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		form, _ = url.ParseQuery(string(body))
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_test_123","object":"checkout.session","url":"https://checkout.example/cs_test_123"}`))
	}))
	t.Cleanup(srv.Close)

	backend := stripego.GetBackendWithConfig(stripego.APIBackend, &stripego.BackendConfig{
		URL:               stripego.String(srv.URL),
		MaxNetworkRetries: stripego.Int64(0),
	})
	p := NewProvider("sk_test_x", whsec, &stripego.Backends{API: backend, Connect: backend, Uploads: backend})

	s, err := p.CreateSession(context.Background(), payment.SessionRequest{
		Email:      "jane@shop.fr",
		Currency:   "eur",
		SuccessURL: "https://shop.example/checkout/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  "https://shop.example/cart",
		Reference:  "cart-1",
		Items:      []payment.LineItem{{Name: "Mug", UnitAmount: 2000, Quantity: 2}},
		Metadata:   map[string]string{"cart_id": "cart-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_test_123", s.ID)
	assert.Equal(t, "https://checkout.example/cs_test_123", s.URL)

	assert.Equal(t, "payment", form.Get("mode"))
	assert.Equal(t, "jane@shop.fr", form.Get("customer_email"))
	assert.Equal(t, "2000", form.Get("line_items[0][price_data][unit_amount]"))
	assert.Equal(t, "2", form.Get("line_items[0][quantity]"))
	assert.Equal(t, "Mug", form.Get("line_items[0][price_data][product_data][name]"))
	assert.Equal(t, "cart-1", form.Get("metadata[cart_id]"))
}

func TestCreateSession_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"bad"}}`))
	}))
	t.Cleanup(srv.Close)

	backend := stripego.GetBackendWithConfig(stripego.APIBackend, &stripego.BackendConfig{
		URL:               stripego.String(srv.URL),
		MaxNetworkRetries: stripego.Int64(0),
	})
	p := NewProvider("sk_test_x", whsec, &stripego.Backends{API: backend, Connect: backend, Uploads: backend})

	_, err := p.CreateSession(context.Background(), payment.SessionRequest{
		Currency: "eur",
		Items:    []payment.LineItem{{Name: "Mug", UnitAmount: 2000, Quantity: 1}},
	})
	assert.ErrorIs(t, err, payment.ErrProvider)
}
