package inventory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/counterpos/counterpos/internal/units"
)

const itemColumns = `id, name, unit_type, quantity, cost_per_base_unit, selling_price, reorder_level, updated_at`

// Repository reads inventory rows from the products table.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns items ordered by name.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Item, error) {
	var (
		where []string
		args  []any
	)
	if filter.InStockOnly {
		where = append(where, "quantity > 0")
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+s+"%")
		where = append(where, fmt.Sprintf("name ILIKE $%d", len(args)))
	}
	query := `SELECT ` + itemColumns + ` FROM products`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY name"
	return r.query(ctx, query, args...)
}

// Get loads one item.
func (r *Repository) Get(ctx context.Context, id int64) (Item, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM products WHERE id = $1`, id)
	item, err := scanItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrItemNotFound
	}
	return item, err
}

// ListBelowReorder returns items at or under their reorder level.
func (r *Repository) ListBelowReorder(ctx context.Context) ([]Item, error) {
	return r.query(ctx, `SELECT `+itemColumns+` FROM products
WHERE reorder_level > 0 AND quantity <= reorder_level
ORDER BY quantity / NULLIF(reorder_level, 0), name`)
}

func (r *Repository) query(ctx context.Context, sql string, args ...any) ([]Item, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanItem(row pgx.Row) (Item, error) {
	var item Item
	err := row.Scan(&item.ID, &item.Name, &item.Unit, &item.Quantity, &item.CostPerBaseUnit,
		&item.SellingPrice, &item.ReorderLevel, &item.UpdatedAt)
	return item, err
}

// TxRepository applies stock mutations inside a caller-owned transaction.
type TxRepository interface {
	Decrement(ctx context.Context, d Decrement, allowNegative bool) (float64, error)
}

type txRepo struct {
	tx pgx.Tx
}

// NewTxRepository binds inventory mutations to tx so they commit together with
// whatever else the caller writes.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepo{tx: tx}
}

// Decrement subtracts d.Quantity storage units and returns the new on-hand
// quantity. Unless allowNegative is set the update is conditional, so two
// concurrent commits cannot both drain the same stock.
func (r *txRepo) Decrement(ctx context.Context, d Decrement, allowNegative bool) (float64, error) {
	if d.Quantity <= 0 || math.IsNaN(d.Quantity) || math.IsInf(d.Quantity, 0) {
		return 0, ErrInvalidQuantity
	}
	sql, args := decrementSQL(d, allowNegative)

	var remaining float64
	err := r.tx.QueryRow(ctx, sql, args...).Scan(&remaining)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := r.tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)`, d.ItemID).Scan(&exists); err != nil {
			return 0, err
		}
		if !exists {
			return 0, ErrItemNotFound
		}
		return 0, ErrNegativeStock
	}
	if err != nil {
		return 0, fmt.Errorf("inventory: decrement item %d: %w", d.ItemID, err)
	}
	return remaining, nil
}

// decrementSQL mirrors Settle: the guarded form accepts a shortfall of up to
// Epsilon and clamps the stored quantity at zero.
func decrementSQL(d Decrement, allowNegative bool) (string, []any) {
	if allowNegative {
		return `UPDATE products SET quantity = quantity - $2, updated_at = NOW()
			WHERE id = $1 RETURNING quantity`, []any{d.ItemID, d.Quantity}
	}
	return `UPDATE products SET quantity = GREATEST(quantity - $2, 0), updated_at = NOW()
		WHERE id = $1 AND quantity - $2 >= $3 RETURNING quantity`, []any{d.ItemID, d.Quantity, -units.Epsilon}
}
