package port

import (
	"context"

	"github.com/shopengine/orderflow/internal/core/domain"
)

type CartStore interface {
	GetCart(ctx context.Context, userID string) (domain.Cart, error)

	// GetLine returns domain.ErrCartLineNotFound when the (user, product)
	// pair has no line.
	GetLine(ctx context.Context, userID, productID string) (domain.CartLine, error)

	GetLineByID(ctx context.Context, lineID string) (domain.CartLine, error)

	// InsertLine creates the first line for a (user, product) pair and
	// returns domain.ErrStaleWrite when a concurrent insert won the race.
	InsertLine(ctx context.Context, line domain.CartLine) error

	// IncrementLine atomically adds delta to an existing line's quantity and
	// recomputes its total, but only when the merged quantity stays within
	// maxQuantity. Returns false when no row matched.
	IncrementLine(ctx context.Context, userID, productID string, delta, maxQuantity int) (bool, error)

	// ReplaceLineQuantity overwrites a line's quantity by line ID and
	// recomputes its total; update-by-id bypasses merge semantics.
	ReplaceLineQuantity(ctx context.Context, lineID string, quantity int) error

	// DeleteLine reports whether a line was actually removed.
	DeleteLine(ctx context.Context, userID, productID string) (bool, error)

	// DeleteLines removes only the user's lines for the given products,
	// leaving unrelated in-progress lines untouched.
	DeleteLines(ctx context.Context, userID string, productIDs []string) error

	ClearCart(ctx context.Context, userID string) error
}
