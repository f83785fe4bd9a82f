package domain

import "time"

// CartLine is a pending-purchase record for one (user, product) pair.
// At most one line exists per pair; a repeated add merges into it.
// Price is a snapshot of the product's unit price at add time.
type CartLine struct {
	ID        string
	UserID    string
	ProductID string
	Quantity  int
	Price     Money
	Total     Money

	CreatedAt time.Time
	UpdatedAt time.Time
}

type Cart struct {
	UserID string
	Lines  []CartLine
}
