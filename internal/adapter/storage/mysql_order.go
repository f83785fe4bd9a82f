package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/shopengine/orderflow/internal/core/domain"
)

func (s *MySQLStore) InsertOrder(ctx context.Context, order domain.Order) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, status, sub_total_amount, total_amount, currency,
			shipping_method, shipping_fee_amount, start_ship_date, expected_ship_date, shipped_date,
			payment_method, payment_status, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.UserID, order.Status,
		order.SubTotal.Amount, order.Total.Amount, order.Total.Currency.String(),
		order.Shipping.Method, order.Shipping.Fee.Amount,
		order.Shipping.StartShipDate, order.Shipping.ExpectedShipDate, order.Shipping.ShippedDate,
		order.Payment.Method, order.Payment.Status,
		order.Version, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i, line := range order.Lines {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_lines (order_id, line_no, product_id, quantity, price_amount, price_currency)
			VALUES (?, ?, ?, ?, ?, ?)`,
			order.ID, i, line.ProductID, line.Quantity,
			line.Price.Amount, line.Price.Currency.String(),
		)
		if err != nil {
			return fmt.Errorf("insert order line %s: %w", line.ProductID, err)
		}
	}

	return tx.Commit()
}

func (s *MySQLStore) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	var (
		order       domain.Order
		subTotal    decimal.Decimal
		total       decimal.Decimal
		code        string
		fee         decimal.Decimal
		shippedDate sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, status, sub_total_amount, total_amount, currency,
			shipping_method, shipping_fee_amount, start_ship_date, expected_ship_date, shipped_date,
			payment_method, payment_status, version, created_at, updated_at
		FROM orders WHERE id = ?`, orderID,
	).Scan(&order.ID, &order.UserID, &order.Status, &subTotal, &total, &code,
		&order.Shipping.Method, &fee,
		&order.Shipping.StartShipDate, &order.Shipping.ExpectedShipDate, &shippedDate,
		&order.Payment.Method, &order.Payment.Status,
		&order.Version, &order.CreatedAt, &order.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, fmt.Errorf("order %s: %w", orderID, domain.ErrOrderNotFound)
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("query order: %w", err)
	}

	if order.SubTotal, err = parseMoney(subTotal, code); err != nil {
		return domain.Order{}, fmt.Errorf("parse subtotal: %w", err)
	}
	if order.Total, err = parseMoney(total, code); err != nil {
		return domain.Order{}, fmt.Errorf("parse total: %w", err)
	}
	if order.Shipping.Fee, err = parseMoney(fee, code); err != nil {
		return domain.Order{}, fmt.Errorf("parse shipping fee: %w", err)
	}
	if shippedDate.Valid {
		order.Shipping.ShippedDate = &shippedDate.Time
	}

	order.Lines, err = s.getOrderLines(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}

	return order, nil
}

func (s *MySQLStore) getOrderLines(ctx context.Context, orderID string) ([]domain.OrderLine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, quantity, price_amount, price_currency
		FROM order_lines WHERE order_id = ? ORDER BY line_no`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order lines: %w", err)
	}
	defer rows.Close()

	var lines []domain.OrderLine
	for rows.Next() {
		var (
			line   domain.OrderLine
			amount decimal.Decimal
			code   string
		)
		if err := rows.Scan(&line.ProductID, &line.Quantity, &amount, &code); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		if line.Price, err = parseMoney(amount, code); err != nil {
			return nil, fmt.Errorf("parse line price: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order lines: %w", err)
	}

	return lines, nil
}

func (s *MySQLStore) UpdateOrderStatus(ctx context.Context, orderID string, fromVersion int, newStatus domain.OrderStatus, patch domain.ShippingPatch) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET status = ?, shipped_date = COALESCE(?, shipped_date),
		    version = version + 1, updated_at = NOW()
		WHERE id = ? AND version = ?`,
		newStatus, patch.ShippedDate, orderID, fromVersion,
	)
	if err != nil {
		return false, fmt.Errorf("update order status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}

	return rows > 0, nil
}
