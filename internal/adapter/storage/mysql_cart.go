package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/shopengine/orderflow/internal/core/domain"
)

const cartLineColumns = `id, user_id, product_id, quantity, price_amount, price_currency, total_amount, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCartLine(row rowScanner) (domain.CartLine, error) {
	var (
		line        domain.CartLine
		priceAmount decimal.Decimal
		totalAmount decimal.Decimal
		code        string
	)
	err := row.Scan(&line.ID, &line.UserID, &line.ProductID, &line.Quantity,
		&priceAmount, &code, &totalAmount, &line.CreatedAt, &line.UpdatedAt)
	if err != nil {
		return domain.CartLine{}, err
	}

	line.Price, err = parseMoney(priceAmount, code)
	if err != nil {
		return domain.CartLine{}, fmt.Errorf("parse price: %w", err)
	}
	line.Total, err = parseMoney(totalAmount, code)
	if err != nil {
		return domain.CartLine{}, fmt.Errorf("parse total: %w", err)
	}

	return line, nil
}

func (s *MySQLStore) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+cartLineColumns+`
		FROM cart_lines WHERE user_id = ? ORDER BY created_at`, userID)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("query cart: %w", err)
	}
	defer rows.Close()

	cart := domain.Cart{UserID: userID}
	for rows.Next() {
		line, err := scanCartLine(rows)
		if err != nil {
			return domain.Cart{}, fmt.Errorf("scan cart line: %w", err)
		}
		cart.Lines = append(cart.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return domain.Cart{}, fmt.Errorf("iterate cart lines: %w", err)
	}

	return cart, nil
}

func (s *MySQLStore) GetLine(ctx context.Context, userID, productID string) (domain.CartLine, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+cartLineColumns+`
		FROM cart_lines WHERE user_id = ? AND product_id = ?`, userID, productID)

	line, err := scanCartLine(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CartLine{}, fmt.Errorf("cart line %s/%s: %w", userID, productID, domain.ErrCartLineNotFound)
	}
	if err != nil {
		return domain.CartLine{}, fmt.Errorf("query cart line: %w", err)
	}

	return line, nil
}

func (s *MySQLStore) GetLineByID(ctx context.Context, lineID string) (domain.CartLine, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+cartLineColumns+`
		FROM cart_lines WHERE id = ?`, lineID)

	line, err := scanCartLine(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CartLine{}, fmt.Errorf("cart line %s: %w", lineID, domain.ErrCartLineNotFound)
	}
	if err != nil {
		return domain.CartLine{}, fmt.Errorf("query cart line: %w", err)
	}

	return line, nil
}

func (s *MySQLStore) InsertLine(ctx context.Context, line domain.CartLine) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cart_lines (`+cartLineColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		line.ID, line.UserID, line.ProductID, line.Quantity,
		line.Price.Amount, line.Price.Currency.String(), line.Total.Amount,
		line.CreatedAt, line.UpdatedAt,
	)
	if isDuplicateKey(err) {
		// a concurrent first add for the same (user, product) pair won
		return fmt.Errorf("cart line %s/%s exists: %w", line.UserID, line.ProductID, domain.ErrStaleWrite)
	}
	if err != nil {
		return fmt.Errorf("insert cart line: %w", err)
	}

	return nil
}

func (s *MySQLStore) IncrementLine(ctx context.Context, userID, productID string, delta, maxQuantity int) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE cart_lines
		SET total_amount = price_amount * (quantity + ?),
		    quantity = quantity + ?,
		    updated_at = NOW()
		WHERE user_id = ? AND product_id = ? AND quantity + ? <= ?`,
		delta, delta, userID, productID, delta, maxQuantity,
	)
	if err != nil {
		return false, fmt.Errorf("increment cart line: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}

	return rows > 0, nil
}

func (s *MySQLStore) ReplaceLineQuantity(ctx context.Context, lineID string, quantity int) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE cart_lines
		SET quantity = ?, total_amount = price_amount * ?, updated_at = NOW()
		WHERE id = ?`,
		quantity, quantity, lineID,
	)
	if err != nil {
		return fmt.Errorf("replace cart line: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		// zero changed rows can also mean a no-op update to the same quantity
		if _, err := s.GetLineByID(ctx, lineID); err != nil {
			return err
		}
	}

	return nil
}

func (s *MySQLStore) DeleteLine(ctx context.Context, userID, productID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM cart_lines WHERE user_id = ? AND product_id = ?`,
		userID, productID,
	)
	if err != nil {
		return false, fmt.Errorf("delete cart line: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}

	return rows > 0, nil
}

func (s *MySQLStore) DeleteLines(ctx context.Context, userID string, productIDs []string) error {
	if len(productIDs) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(productIDs)), ", ")
	args := make([]any, 0, len(productIDs)+1)
	args = append(args, userID)
	for _, id := range productIDs {
		args = append(args, id)
	}

	_, err := s.db.ExecContext(ctx, `
		DELETE FROM cart_lines WHERE user_id = ? AND product_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return fmt.Errorf("delete cart lines: %w", err)
	}

	return nil
}

func (s *MySQLStore) ClearCart(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM cart_lines WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}
