package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/shopengine/orderflow/internal/core/domain"
)

// MySQLStore implements the persistence ports over a single MySQL database.
// Every conditional mutation is a single UPDATE with its precondition in the
// WHERE clause, so the read and the write cannot be torn apart by a
// concurrent caller.
type MySQLStore struct {
	db *sql.DB
}

func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{db: db}
}

func isDuplicateKey(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}

func parseMoney(amount decimal.Decimal, code string) (domain.Money, error) {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return domain.Money{}, fmt.Errorf("currency[%s] is not valid: %w", code, err)
	}
	return domain.Money{Amount: amount, Currency: unit}, nil
}
