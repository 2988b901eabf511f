package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the storefront counters on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	CheckoutSessions *prometheus.CounterVec
	WebhookEvents    *prometheus.CounterVec
	OrdersPaid       prometheus.Counter
	CartMutations    *prometheus.CounterVec
	EmailsSent       *prometheus.CounterVec
}

func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		CheckoutSessions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_sessions_total",
			Help:      "Checkout session requests by outcome.",
		}, []string{"outcome"}),
		WebhookEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Payment provider notifications by result.",
		}, []string{"result"}),
		OrdersPaid: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_paid_total",
			Help:      "Orders transitioned from pending to paid.",
		}),
		CartMutations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_mutations_total",
			Help:      "Cart mutations by operation.",
		}, []string{"op"}),
		EmailsSent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emails_sent_total",
			Help:      "Confirmation emails by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
