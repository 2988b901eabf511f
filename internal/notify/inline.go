package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Skotchmaster/storefront/internal/order/events"
)

// Inline delivers order_paid straight to the notifier when no broker is
// configured. It satisfies the same PublishEvent contract as the Kafka
// producer.
type Inline struct {
	Notifier *Notifier
}

func (i Inline) PublishEvent(ctx context.Context, topic, key string, event any) error {
	if topic != events.TopicOrderPaid {
		return fmt.Errorf("inline publisher: unsupported topic %s", topic)
	}
	b, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("inline publisher: %w", err)
	}
	return i.Notifier.HandleOrderPaid(ctx, []byte(key), b)
}
