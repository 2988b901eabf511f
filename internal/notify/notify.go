// Package notify sends the customer confirmation once an order is paid.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Skotchmaster/storefront/internal/order/events"
	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/Skotchmaster/storefront/pkg/metrics"
	"github.com/Skotchmaster/storefront/pkg/money"
)

type Notifier struct {
	Sender    Sender
	ShopName  string
	PublicURL string
	Metrics   *metrics.Metrics
}

func (n *Notifier) count(outcome string) {
	if n.Metrics != nil {
		n.Metrics.EmailsSent.WithLabelValues(outcome).Inc()
	}
}

// OrderPaidEmail renders the subject and body of the confirmation.
func (n *Notifier) OrderPaidEmail(ev events.OrderPaid) (string, string) {
	subject := fmt.Sprintf("%s: order %s confirmed", n.ShopName, ev.OrderID)

	var b strings.Builder
	fmt.Fprintf(&b, "Thank you for your order.\n\n")
	fmt.Fprintf(&b, "Order: %s\n", ev.OrderID)
	fmt.Fprintf(&b, "Amount paid: %s\n", money.Format(ev.Total, ev.Currency))
	fmt.Fprintf(&b, "Date: %s\n", ev.PaidAt.Format("2006-01-02 15:04 MST"))
	if n.PublicURL != "" {
		fmt.Fprintf(&b, "\nInvoice: %s/api/v1/orders/%s/invoice\n", n.PublicURL, ev.OrderID)
	}
	fmt.Fprintf(&b, "\n%s\n", n.ShopName)
	return subject, b.String()
}

// HandleOrderPaid is the consumer callback for the order_paid topic.
func (n *Notifier) HandleOrderPaid(ctx context.Context, key, value []byte) error {
	l := logging.FromContext(ctx).With("component", "notify")

	var ev events.OrderPaid
	if err := json.Unmarshal(value, &ev); err != nil {
		n.count("invalid")
		return fmt.Errorf("decode order_paid %s: %w", key, err)
	}
	if ev.Email == "" {
		n.count("skipped")
		l.Warn("order_paid_without_email", "order_id", ev.OrderID)
		return nil
	}

	subject, body := n.OrderPaidEmail(ev)
	if err := n.Sender.Send(ctx, ev.Email, subject, body); err != nil {
		n.count("failed")
		return err
	}
	n.count("sent")
	l.Info("confirmation_email_sent", "order_id", ev.OrderID)
	return nil
}
