package models

import "time"

type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
)

// Item is the line snapshot taken when the checkout session was created.
type Item struct {
	ProductID string `bson:"product_id" json:"product_id"`
	Title     string `bson:"title"      json:"title"`
	UnitPrice int64  `bson:"unit_price" json:"unit_price"`
	Quantity  int    `bson:"quantity"   json:"quantity"`
}

type Order struct {
	ID        string     `bson:"_id"               json:"id"`
	SessionID string     `bson:"session_id"        json:"session_id"`
	CartID    string     `bson:"cart_id"           json:"-"`
	Email     string     `bson:"email"             json:"email"`
	Items     []Item     `bson:"items"             json:"items"`
	Total     int64      `bson:"total"             json:"total"`
	Currency  string     `bson:"currency"          json:"currency"`
	Status    Status     `bson:"status"            json:"status"`
	CreatedAt time.Time  `bson:"created_at"        json:"created_at"`
	PaidAt    *time.Time `bson:"paid_at,omitempty" json:"paid_at,omitempty"`
}

// WebhookEvent records a provider event id that has already been handled.
type WebhookEvent struct {
	EventID     string    `gorm:"primaryKey;size:255" json:"event_id"`
	Type        string    `gorm:"size:128;not null"   json:"type"`
	ProcessedAt time.Time `gorm:"not null"            json:"processed_at"`
}
