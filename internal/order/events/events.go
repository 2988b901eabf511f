// Package events defines the messages the order lifecycle publishes.
package events

import "time"

const TopicOrderPaid = "order_paid"

type OrderPaid struct {
	OrderID   string    `json:"order_id"`
	SessionID string    `json:"session_id"`
	Email     string    `json:"email"`
	Total     int64     `json:"total"`
	Currency  string    `json:"currency"`
	PaidAt    time.Time `json:"paid_at"`
}
