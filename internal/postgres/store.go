package postgres

import (
	"context"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-roti-bot/internal/catalog"
	"github.com/ariefcatur/go-roti-bot/internal/orders"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB adalah bagian pgxpool.Pool yang dipakai Store.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store adalah backend Postgres untuk katalog dan order.
type Store struct{ DB DB }

const productCols = `key, name, description, unit_price, stock, image_ref`

const orderCols = `id, user_id, origin_chat, product_key, product_name, unit_price, quantity, total, status, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (catalog.Product, error) {
	var p catalog.Product
	err := row.Scan(&p.Key, &p.Name, &p.Description, &p.UnitPrice, &p.Stock, &p.ImageRef)
	if errors.Is(err, pgx.ErrNoRows) {
		return catalog.Product{}, catalog.ErrProductNotFound
	}
	return p, err
}

func scanOrder(row rowScanner) (orders.Order, error) {
	var o orders.Order
	err := row.Scan(&o.ID, &o.UserID, &o.OriginChat, &o.ProductKey, &o.ProductName,
		&o.UnitPrice, &o.Quantity, &o.Total, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.Order{}, orders.ErrOrderNotFound
	}
	return o, err
}

// ---- catalog.Store ----

func (s *Store) GetProduct(ctx context.Context, key string) (catalog.Product, error) {
	return scanProduct(s.DB.QueryRow(ctx, `SELECT `+productCols+` FROM products WHERE key=$1`, key))
}

func (s *Store) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+productCols+` FROM products ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []catalog.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// PutProduct upsert by key.
func (s *Store) PutProduct(ctx context.Context, p catalog.Product) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO products (key, name, description, unit_price, stock, image_ref)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (key) DO UPDATE SET
			name=EXCLUDED.name, description=EXCLUDED.description, unit_price=EXCLUDED.unit_price,
			stock=EXCLUDED.stock, image_ref=EXCLUDED.image_ref, updated_at=now()
	`, p.Key, p.Name, p.Description, p.UnitPrice, p.Stock, p.ImageRef)
	return err
}

// SeedProducts inserts products that do not exist yet; existing rows are untouched.
func (s *Store) SeedProducts(ctx context.Context, products []catalog.Product) error {
	for _, p := range products {
		if _, err := s.DB.Exec(ctx, `
			INSERT INTO products (key, name, description, unit_price, stock, image_ref)
			VALUES ($1,$2,$3,$4,$5,$6)
			ON CONFLICT (key) DO NOTHING
		`, p.Key, p.Name, p.Description, p.UnitPrice, p.Stock, p.ImageRef); err != nil {
			return fmt.Errorf("seed %s: %w", p.Key, err)
		}
	}
	return nil
}

func (s *Store) SetProductStock(ctx context.Context, key string, stock int) (catalog.Product, error) {
	return scanProduct(s.DB.QueryRow(ctx,
		`UPDATE products SET stock=$2, updated_at=now() WHERE key=$1 RETURNING `+productCols, key, stock))
}

func (s *Store) SetProductPrice(ctx context.Context, key string, price int) (catalog.Product, error) {
	return scanProduct(s.DB.QueryRow(ctx,
		`UPDATE products SET unit_price=$2, updated_at=now() WHERE key=$1 RETURNING `+productCols, key, price))
}

func (s *Store) DeleteProduct(ctx context.Context, key string) error {
	ct, err := s.DB.Exec(ctx, `DELETE FROM products WHERE key=$1`, key)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return catalog.ErrProductNotFound
	}
	return nil
}

// ---- orders.Store ----

func (s *Store) CreateOrder(ctx context.Context, o orders.Order) error {
	_, err := s.DB.Exec(ctx, `INSERT INTO orders (`+orderCols+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		o.ID, o.UserID, o.OriginChat, o.ProductKey, o.ProductName, o.UnitPrice, o.Quantity, o.Total, o.Status, o.CreatedAt, o.UpdatedAt)
	if isUniqueViolation(err) {
		return orders.ErrAlreadyExists
	}
	return err
}

func (s *Store) GetOrder(ctx context.Context, id string) (orders.Order, error) {
	return scanOrder(s.DB.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id=$1`, id))
}

func (s *Store) ListOrdersByUser(ctx context.Context, userID string, limit int) ([]orders.Order, error) {
	return s.listOrders(ctx, `SELECT `+orderCols+` FROM orders WHERE user_id=$1 ORDER BY created_at DESC, id DESC LIMIT $2`, userID, limit)
}

func (s *Store) ListOrdersByStatus(ctx context.Context, status orders.Status, limit int) ([]orders.Order, error) {
	return s.listOrders(ctx, `SELECT `+orderCols+` FROM orders WHERE status=$1 ORDER BY created_at, id LIMIT $2`, status, limit)
}

func (s *Store) listOrders(ctx context.Context, query string, arg any, limit int) ([]orders.Order, error) {
	var lim any // NULL = tanpa batas
	if limit > 0 {
		lim = limit
	}
	rows, err := s.DB.Query(ctx, query, arg, lim)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []orders.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// TransitionOrder: compare-and-set pada kolom status dalam satu UPDATE.
func (s *Store) TransitionOrder(ctx context.Context, id string, from, to orders.Status) (orders.Order, error) {
	if !orders.CanTransition(from, to) {
		o, err := s.GetOrder(ctx, id)
		if err != nil {
			return o, err
		}
		return o, &orders.TransitionError{OrderID: id, Current: o.Status, Wanted: to}
	}
	o, err := scanOrder(s.DB.QueryRow(ctx,
		`UPDATE orders SET status=$3, updated_at=now() WHERE id=$1 AND status=$2 RETURNING `+orderCols, id, from, to))
	if !errors.Is(err, orders.ErrOrderNotFound) {
		return o, err
	}
	// tidak ada baris: order tidak ada, atau statusnya sudah berubah
	cur, err := s.GetOrder(ctx, id)
	if err != nil {
		return cur, err
	}
	return cur, &orders.TransitionError{OrderID: id, Current: cur.Status, Wanted: to}
}

// ApproveOrder: lock order lalu stok produk (FOR UPDATE), kurangi stok dan
// set APPROVED dalam satu transaksi. Stok kurang -> REJECTED.
func (s *Store) ApproveOrder(ctx context.Context, id string) (orders.Order, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return orders.Order{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o, err := scanOrder(tx.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return orders.Order{}, err
	}
	if o.Status != orders.StatusPending {
		return o, &orders.TransitionError{OrderID: id, Current: o.Status, Wanted: orders.StatusApproved}
	}

	var stock int
	err = tx.QueryRow(ctx, `SELECT stock FROM products WHERE key=$1 FOR UPDATE`, o.ProductKey).Scan(&stock)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return orders.Order{}, err
	}
	// produk yang sudah dihapus dihitung stok 0

	if stock < o.Quantity {
		o, err = scanOrder(tx.QueryRow(ctx,
			`UPDATE orders SET status=$2, updated_at=now() WHERE id=$1 RETURNING `+orderCols, id, orders.StatusRejected))
		if err != nil {
			return orders.Order{}, err
		}
		if err := tx.Commit(ctx); err != nil {
			return orders.Order{}, err
		}
		return o, &orders.InsufficientStockError{
			ProductKey: o.ProductKey, Name: o.ProductName, Required: o.Quantity, Available: stock,
		}
	}

	if _, err := tx.Exec(ctx, `UPDATE products SET stock = stock - $2, updated_at=now() WHERE key=$1`, o.ProductKey, o.Quantity); err != nil {
		return orders.Order{}, err
	}
	o, err = scanOrder(tx.QueryRow(ctx,
		`UPDATE orders SET status=$2, updated_at=now() WHERE id=$1 RETURNING `+orderCols, id, orders.StatusApproved))
	if err != nil {
		return orders.Order{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return orders.Order{}, err
	}
	return o, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
