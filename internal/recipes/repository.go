package recipes

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads finished_products and product_ingredients.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns every product with its recipe lines, ordered by name.
func (r *Repository) List(ctx context.Context) ([]Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, selling_price FROM finished_products ORDER BY name`)
	if err != nil {
		return nil, err
	}
	products, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Product, error) {
		var p Product
		err := row.Scan(&p.ID, &p.Name, &p.SellingPrice)
		return p, err
	})
	if err != nil {
		return nil, err
	}
	lines, err := r.lines(ctx, nil)
	if err != nil {
		return nil, err
	}
	for i := range products {
		products[i].Lines = lines[products[i].ID]
	}
	return products, nil
}

// Get loads one product with its lines.
func (r *Repository) Get(ctx context.Context, id int64) (Product, error) {
	var p Product
	err := r.pool.QueryRow(ctx, `SELECT id, name, selling_price FROM finished_products WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.SellingPrice)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrProductNotFound
	}
	if err != nil {
		return Product{}, err
	}
	lines, err := r.lines(ctx, []int64{id})
	if err != nil {
		return Product{}, err
	}
	p.Lines = lines[id]
	return p, nil
}

func (r *Repository) lines(ctx context.Context, productIDs []int64) (map[int64][]Line, error) {
	sql := `SELECT id, finished_product_id, ingredient_id, quantity_per_unit FROM product_ingredients`
	var args []any
	if productIDs != nil {
		sql += ` WHERE finished_product_id = ANY($1)`
		args = append(args, productIDs)
	}
	sql += ` ORDER BY finished_product_id, id`
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64][]Line)
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.ProductID, &l.IngredientID, &l.QuantityPerUnit); err != nil {
			return nil, err
		}
		out[l.ProductID] = append(out[l.ProductID], l)
	}
	return out, rows.Err()
}
