package product

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var (
	// ErrNotFound means no product row exists for the id.
	ErrNotFound = errors.New("product not found")
	// ErrInsufficientStock means a reservation asked for more stock than
	// is available. It is a business outcome, not a transient failure.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// StockStore applies stock reservations and releases.
type StockStore interface {
	Reserve(ctx context.Context, productID int64, qty int) error
	Release(ctx context.Context, productID int64, qty int) error
}

// SQLStockStore implements StockStore against the products table.
type SQLStockStore struct {
	db *sql.DB
}

func NewSQLStockStore(db *sql.DB) *SQLStockStore { return &SQLStockStore{db: db} }

// EnsureSchema creates the products table when it does not exist yet.
func (s *SQLStockStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS products (
  product_id BIGSERIAL PRIMARY KEY,
  name TEXT NOT NULL DEFAULT '',
  stock INT NOT NULL DEFAULT 0
);
`)
	return err
}

// Reserve decrements stock when enough is available. The row lock
// serializes concurrent reservations for the same product.
func (s *SQLStockStore) Reserve(ctx context.Context, productID int64, qty int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var stock int
	err = tx.QueryRowContext(ctx,
		`SELECT stock FROM products WHERE product_id = $1 FOR UPDATE`, productID).Scan(&stock)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %d", ErrNotFound, productID)
	}
	if err != nil {
		return err
	}
	if stock < qty {
		return fmt.Errorf("%w: product %d has %d, need %d", ErrInsufficientStock, productID, stock, qty)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE products SET stock = stock - $1 WHERE product_id = $2`, qty, productID); err != nil {
		return err
	}
	return tx.Commit()
}

// Release adds stock back unconditionally. It is not idempotent: a
// duplicate delivery of the same release message adds the quantity twice.
func (s *SQLStockStore) Release(ctx context.Context, productID int64, qty int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE products SET stock = stock + $1 WHERE product_id = $2`, qty, productID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, productID)
	}
	return tx.Commit()
}
