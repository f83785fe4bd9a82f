package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/shopengine/orderflow/internal/core/domain"
	"github.com/shopengine/orderflow/internal/port"
)

// StockLedger is the single source of truth for product availability. All
// stock mutation funnels through it; a reservation is one atomic conditional
// decrement, never a read-modify-write round trip.
type StockLedger struct {
	products port.ProductStore
	logger   *zap.Logger
}

func NewStockLedger(products port.ProductStore, logger *zap.Logger) *StockLedger {
	return &StockLedger{products: products, logger: logger}
}

func (l *StockLedger) CheckAvailable(ctx context.Context, productID string, quantity int) (domain.Availability, error) {
	if quantity < 1 {
		return domain.Availability{}, fmt.Errorf("quantity must be positive, got %d", quantity)
	}

	product, err := l.products.GetProduct(ctx, productID)
	if err != nil {
		return domain.Availability{}, fmt.Errorf("get product %s: %w", productID, err)
	}

	return domain.Availability{
		Available:    product.Stock >= quantity,
		CurrentStock: product.Stock,
	}, nil
}

// Reserve decrements stock by quantity, failing with ErrInsufficientStock
// when quantity exceeds the current stock.
func (l *StockLedger) Reserve(ctx context.Context, productID string, quantity int) error {
	if quantity < 1 {
		return fmt.Errorf("quantity must be positive, got %d", quantity)
	}

	ok, err := l.products.DecrementStock(ctx, productID, quantity)
	if err != nil {
		return fmt.Errorf("decrement stock %s: %w", productID, err)
	}
	if ok {
		return nil
	}

	// The conditional update matched no row: either the product is gone or
	// the stock is short. Re-read to tell the two apart.
	product, err := l.products.GetProduct(ctx, productID)
	if err != nil {
		return fmt.Errorf("get product %s: %w", productID, err)
	}

	return domain.InsufficientStockError(product.Stock, quantity)
}

// Release restores previously reserved stock. The status flow never restocks
// on cancellation; this exists to roll back partial reservation sets.
func (l *StockLedger) Release(ctx context.Context, productID string, quantity int) error {
	if err := l.products.IncrementStock(ctx, productID, quantity); err != nil {
		return fmt.Errorf("increment stock %s: %w", productID, err)
	}
	return nil
}

// ReserveAll reserves every line of an order as one all-or-nothing set. When
// a later line fails, reservations already applied are released before the
// error is returned, so no partial stock commitment survives.
func (l *StockLedger) ReserveAll(ctx context.Context, lines []domain.OrderLine) error {
	for i, line := range lines {
		if err := l.Reserve(ctx, line.ProductID, line.Quantity); err != nil {
			l.releaseApplied(ctx, lines[:i])
			return fmt.Errorf("reserve product %s: %w", line.ProductID, err)
		}
	}
	return nil
}

func (l *StockLedger) releaseApplied(ctx context.Context, applied []domain.OrderLine) {
	for _, line := range applied {
		if err := l.Release(ctx, line.ProductID, line.Quantity); err != nil {
			l.logger.Error("stock rollback failed",
				zap.String("product_id", line.ProductID),
				zap.Int("quantity", line.Quantity),
				zap.Error(err))
		}
	}
}
