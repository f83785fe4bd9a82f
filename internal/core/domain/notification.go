package domain

import "time"

const (
	NotificationTypeOrder    = "order"
	NotificationStatusActive = "active"
	NotificationScreenOrders = "orders"
)

// NotificationData is the structured navigation payload carried by both the
// stored notification and the push message.
type NotificationData struct {
	Type   string `json:"type"`
	ID     string `json:"id"`
	Status string `json:"status"`
	Screen string `json:"screen"`
	Tab    int    `json:"tab"`
}

// Notification is append-only: created exactly once per dispatched side
// effect, never mutated.
type Notification struct {
	ID     string
	UserID string
	Title  string
	Body   string
	Data   NotificationData
	Type   string
	Status string

	CreatedAt time.Time
}
