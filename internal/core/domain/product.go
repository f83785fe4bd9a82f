package domain

import "time"

// Product stock is the single piece of truly shared mutable state; it is
// mutated only through the stock ledger and never goes negative.
type Product struct {
	ID      string
	Name    string
	Price   Money
	Stock   int
	Version int // optimistic locking

	CreatedAt time.Time
	UpdatedAt time.Time
}

type Availability struct {
	Available    bool
	CurrentStock int
}
