package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shopengine/orderflow/internal/core/domain"
	"github.com/shopengine/orderflow/internal/port"
)

// writeRetryLimit bounds internal retries of optimistic-lock conflicts
// before ErrStaleWrite surfaces to the caller.
const writeRetryLimit = 3

// CartService merges (product, quantity) additions into the caller's cart,
// keeping at most one line per (user, product) pair.
type CartService struct {
	products port.ProductStore
	carts    port.CartStore
	logger   *zap.Logger
}

func NewCartService(products port.ProductStore, carts port.CartStore, logger *zap.Logger) *CartService {
	return &CartService{products: products, carts: carts, logger: logger}
}

// AddToCart validates the requested quantity against current stock and merges
// it into any existing line for the pair. Merging is always additive: adding
// 2 on top of an existing 3 yields 5, never an overwrite.
func (s *CartService) AddToCart(ctx context.Context, userID, productID string, quantity int) (domain.CartLine, error) {
	if userID == "" {
		return domain.CartLine{}, fmt.Errorf("userID is empty")
	}
	if quantity < 1 {
		return domain.CartLine{}, fmt.Errorf("quantity must be positive, got %d", quantity)
	}

	product, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return domain.CartLine{}, fmt.Errorf("get product %s: %w", productID, err)
	}
	if product.Stock < 1 {
		return domain.CartLine{}, fmt.Errorf("product %s: %w", productID, domain.ErrOutOfStock)
	}
	if product.Stock < quantity {
		return domain.CartLine{}, domain.InsufficientStockError(product.Stock, quantity)
	}

	for attempt := 0; attempt < writeRetryLimit; attempt++ {
		// Merge path: a single conditional increment so concurrent adds for
		// the same pair never lose an increment.
		merged, err := s.carts.IncrementLine(ctx, userID, productID, quantity, product.Stock)
		if err != nil {
			return domain.CartLine{}, fmt.Errorf("increment cart line: %w", err)
		}
		if merged {
			return s.carts.GetLine(ctx, userID, productID)
		}

		existing, err := s.carts.GetLine(ctx, userID, productID)
		switch {
		case err == nil:
			if existing.Quantity+quantity > product.Stock {
				return domain.CartLine{}, domain.InsufficientStockError(product.Stock, existing.Quantity+quantity)
			}
			// The line appeared between the increment and the read; retry
			// onto the merge path.
			continue
		case errors.Is(err, domain.ErrCartLineNotFound):
			// First add for this pair.
		default:
			return domain.CartLine{}, fmt.Errorf("get cart line: %w", err)
		}

		now := time.Now().UTC()
		line := domain.CartLine{
			ID:        uuid.NewString(),
			UserID:    userID,
			ProductID: productID,
			Quantity:  quantity,
			Price:     product.Price,
			Total:     product.Price.Mul(quantity),
			CreatedAt: now,
			UpdatedAt: now,
		}

		err = s.carts.InsertLine(ctx, line)
		if err == nil {
			return line, nil
		}
		if errors.Is(err, domain.ErrStaleWrite) {
			// A concurrent first add won the insert; retry onto the merge path.
			continue
		}
		return domain.CartLine{}, fmt.Errorf("insert cart line: %w", err)
	}

	return domain.CartLine{}, fmt.Errorf("add to cart %s/%s: %w", userID, productID, domain.ErrStaleWrite)
}

// UpdateLine replaces a line's quantity directly, bypassing merge semantics.
// The target quantity is re-validated against current stock.
func (s *CartService) UpdateLine(ctx context.Context, lineID string, quantity int) (domain.CartLine, error) {
	if quantity < 1 {
		return domain.CartLine{}, fmt.Errorf("quantity must be positive, got %d", quantity)
	}

	line, err := s.carts.GetLineByID(ctx, lineID)
	if err != nil {
		return domain.CartLine{}, fmt.Errorf("get cart line %s: %w", lineID, err)
	}

	product, err := s.products.GetProduct(ctx, line.ProductID)
	if err != nil {
		return domain.CartLine{}, fmt.Errorf("get product %s: %w", line.ProductID, err)
	}
	if product.Stock < quantity {
		return domain.CartLine{}, domain.InsufficientStockError(product.Stock, quantity)
	}

	if err := s.carts.ReplaceLineQuantity(ctx, lineID, quantity); err != nil {
		return domain.CartLine{}, fmt.Errorf("replace cart line %s: %w", lineID, err)
	}

	line.Quantity = quantity
	line.Total = line.Price.Mul(quantity)
	return line, nil
}

func (s *CartService) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	if userID == "" {
		return domain.Cart{}, fmt.Errorf("userID is empty")
	}
	return s.carts.GetCart(ctx, userID)
}

func (s *CartService) RemoveLine(ctx context.Context, userID, productID string) (bool, error) {
	if userID == "" {
		return false, fmt.Errorf("userID is empty")
	}
	return s.carts.DeleteLine(ctx, userID, productID)
}

func (s *CartService) ClearCart(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("userID is empty")
	}
	return s.carts.ClearCart(ctx, userID)
}
