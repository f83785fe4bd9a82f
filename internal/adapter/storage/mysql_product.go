package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/shopengine/orderflow/internal/core/domain"
)

func (s *MySQLStore) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	var (
		p      domain.Product
		amount decimal.Decimal
		code   string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, price_amount, price_currency, stock, version, created_at, updated_at
		FROM products WHERE id = ?`, productID,
	).Scan(&p.ID, &p.Name, &amount, &code, &p.Stock, &p.Version, &p.CreatedAt, &p.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, fmt.Errorf("product %s: %w", productID, domain.ErrProductNotFound)
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("query product: %w", err)
	}

	p.Price, err = parseMoney(amount, code)
	if err != nil {
		return domain.Product{}, fmt.Errorf("parse price: %w", err)
	}

	return p, nil
}

func (s *MySQLStore) DecrementStock(ctx context.Context, productID string, quantity int) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET stock = stock - ?, version = version + 1, updated_at = NOW()
		WHERE id = ? AND stock >= ?`,
		quantity, productID, quantity,
	)
	if err != nil {
		return false, fmt.Errorf("decrement stock: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}

	return rows > 0, nil
}

func (s *MySQLStore) IncrementStock(ctx context.Context, productID string, quantity int) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET stock = stock + ?, version = version + 1, updated_at = NOW()
		WHERE id = ?`,
		quantity, productID,
	)
	if err != nil {
		return fmt.Errorf("increment stock: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("product %s: %w", productID, domain.ErrProductNotFound)
	}

	return nil
}
