package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Filter narrows List results. Zero values mean "no constraint".
type Filter struct {
	UserID int64
	Status Status
}

// Store persists orders and line items. Transition is the only operation
// that writes the status column.
type Store interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id int64) (*Order, error)
	List(ctx context.Context, f Filter) ([]*Order, error)
	CountByStatus(ctx context.Context, s Status) (int64, error)
	// Transition moves the order to the target status inside one
	// transaction, serialized per order by a row lock. It returns the
	// updated order and the status it left.
	Transition(ctx context.Context, id int64, to Status) (*Order, Status, error)
}

// SQLStore implements Store on a relational database.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

// EnsureSchema creates the order tables when they do not exist yet.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS orders (
  order_id BIGSERIAL PRIMARY KEY,
  user_id BIGINT NOT NULL,
  order_date TIMESTAMPTZ NOT NULL DEFAULT now(),
  status TEXT NOT NULL,
  total_amount NUMERIC(12,2) NOT NULL,
  shipping_address TEXT,
  billing_address TEXT,
  notes TEXT
);
CREATE TABLE IF NOT EXISTS order_items (
  item_id BIGSERIAL PRIMARY KEY,
  order_id BIGINT NOT NULL REFERENCES orders(order_id),
  product_id BIGINT NOT NULL,
  quantity INT NOT NULL,
  unit_price NUMERIC(12,2) NOT NULL,
  product_name TEXT,
  product_description TEXT
);
`)
	return err
}

func (s *SQLStore) Create(ctx context.Context, o *Order) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
INSERT INTO orders (user_id, order_date, status, total_amount, shipping_address, billing_address, notes)
VALUES ($1,$2,$3,$4,$5,$6,$7)
RETURNING order_id`,
		o.UserID, o.OrderDate, o.Status, o.TotalAmount, o.ShippingAddress, o.BillingAddress, o.Notes,
	).Scan(&o.OrderID)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i := range o.Items {
		it := &o.Items[i]
		err = tx.QueryRowContext(ctx, `
INSERT INTO order_items (order_id, product_id, quantity, unit_price, product_name, product_description)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING item_id`,
			o.OrderID, it.ProductID, it.Quantity, it.UnitPrice, it.ProductName, it.ProductDescription,
		).Scan(&it.ItemID)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLStore) Get(ctx context.Context, id int64) (*Order, error) {
	o, err := scanOrder(s.db.QueryRowContext(ctx, selectOrder+` WHERE order_id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := s.loadItems(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *SQLStore) List(ctx context.Context, f Filter) ([]*Order, error) {
	q := selectOrder + ` WHERE 1=1`
	var args []any
	if f.UserID != 0 {
		args = append(args, f.UserID)
		q += fmt.Sprintf(" AND user_id = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		q += fmt.Sprintf(" AND status = $%d", len(args))
	}
	q += ` ORDER BY order_id`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, o := range list {
		if err := s.loadItems(ctx, o); err != nil {
			return nil, err
		}
	}
	return list, nil
}

func (s *SQLStore) CountByStatus(ctx context.Context, st Status) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE status = $1`, st).Scan(&n)
	return n, err
}

func (s *SQLStore) Transition(ctx context.Context, id int64, to Status) (*Order, Status, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, "", err
	}
	defer tx.Rollback()

	// the row lock serializes concurrent transitions for this order
	o, err := scanOrder(tx.QueryRowContext(ctx, selectOrder+` WHERE order_id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, "", err
	}
	old := o.Status
	if !CanTransition(old, to) {
		return nil, "", fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, old, to)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE orders SET status = $1 WHERE order_id = $2`, to, id); err != nil {
		return nil, "", fmt.Errorf("update status: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, "", err
	}

	o.Status = to
	if err := s.loadItems(ctx, o); err != nil {
		return nil, "", err
	}
	return o, old, nil
}

const selectOrder = `
SELECT order_id, user_id, order_date, status, total_amount,
       COALESCE(shipping_address,''), COALESCE(billing_address,''), COALESCE(notes,'')
FROM orders`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*Order, error) {
	var o Order
	err := row.Scan(&o.OrderID, &o.UserID, &o.OrderDate, &o.Status, &o.TotalAmount,
		&o.ShippingAddress, &o.BillingAddress, &o.Notes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *SQLStore) loadItems(ctx context.Context, o *Order) error {
	rows, err := s.db.QueryContext(ctx, `
SELECT item_id, product_id, quantity, unit_price, COALESCE(product_name,''), COALESCE(product_description,'')
FROM order_items WHERE order_id = $1 ORDER BY item_id`, o.OrderID)
	if err != nil {
		return err
	}
	defer rows.Close()

	o.Items = o.Items[:0]
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ItemID, &it.ProductID, &it.Quantity, &it.UnitPrice,
			&it.ProductName, &it.ProductDescription); err != nil {
			return err
		}
		o.Items = append(o.Items, it)
	}
	return rows.Err()
}
