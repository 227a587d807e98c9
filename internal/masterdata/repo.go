package masterdata

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// repo implements Repository interface
type repo struct {
	db *pgxpool.Pool
}

// NewRepository creates a new master data repository
func NewRepository(db *pgxpool.Pool) Repository {
	return &repo{db: db}
}

// Payment method operations
func (r *repo) ListPaymentMethods(ctx context.Context, activeOnly bool) ([]PaymentMethod, error) {
	query := `SELECT id, name, active FROM payment_methods`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY name`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var methods []PaymentMethod
	for rows.Next() {
		var m PaymentMethod
		if err := rows.Scan(&m.ID, &m.Name, &m.Active); err != nil {
			return nil, err
		}
		methods = append(methods, m)
	}
	return methods, rows.Err()
}

func (r *repo) GetPaymentMethod(ctx context.Context, id int64) (PaymentMethod, error) {
	var m PaymentMethod
	err := r.db.QueryRow(ctx, `SELECT id, name, active FROM payment_methods WHERE id = $1`, id).Scan(&m.ID, &m.Name, &m.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return PaymentMethod{}, ErrPaymentMethodNotFound
	}
	return m, err
}

// Customer type operations
func (r *repo) ListCustomerTypes(ctx context.Context, activeOnly bool) ([]CustomerType, error) {
	query := `SELECT id, name, active FROM customer_types`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY name`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var types []CustomerType
	for rows.Next() {
		var c CustomerType
		if err := rows.Scan(&c.ID, &c.Name, &c.Active); err != nil {
			return nil, err
		}
		types = append(types, c)
	}
	return types, rows.Err()
}

func (r *repo) GetCustomerType(ctx context.Context, id int64) (CustomerType, error) {
	var c CustomerType
	err := r.db.QueryRow(ctx, `SELECT id, name, active FROM customer_types WHERE id = $1`, id).Scan(&c.ID, &c.Name, &c.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return CustomerType{}, ErrCustomerTypeNotFound
	}
	return c, err
}

// Settings
func (r *repo) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.QueryRow(ctx, `SELECT value FROM app_settings WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}
