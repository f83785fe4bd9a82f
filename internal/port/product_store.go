package port

import (
	"context"

	"github.com/shopengine/orderflow/internal/core/domain"
)

type ProductStore interface {
	// GetProduct returns domain.ErrProductNotFound when no such product exists.
	GetProduct(ctx context.Context, productID string) (domain.Product, error)

	// DecrementStock atomically decreases stock by quantity in a single
	// conditional update, returning false when stock < quantity. It must
	// never drive stock negative.
	DecrementStock(ctx context.Context, productID string, quantity int) (bool, error)

	// IncrementStock restores stock; used to roll back a partially applied
	// reservation set.
	IncrementStock(ctx context.Context, productID string, quantity int) error
}
