package sales

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const recordColumns = `id, transaction_id, kind, product_id, product_name, quantity, unit_type,
	cost, selling_price, total, payment_method_id, payment_method, customer_type_id, customer_type,
	COALESCE(dine_option, ''), created_at, cancelled, cancelled_at, COALESCE(cancel_reason, '')`

// Repository provides PostgreSQL backed persistence for sale records.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the writes a checkout performs inside its transaction.
type TxRepository interface {
	InsertRecords(ctx context.Context, records []Record) ([]Record, error)
}

type txRepo struct {
	tx pgx.Tx
}

// NewTxRepository binds sale writes to tx.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepo{tx: tx}
}

// InsertRecords writes every line in one batch and fills in ID and CreatedAt.
func (r *txRepo) InsertRecords(ctx context.Context, records []Record) ([]Record, error) {
	if len(records) == 0 {
		return nil, ErrEmptyTransaction
	}
	const stmt = `INSERT INTO sales (transaction_id, kind, product_id, product_name, quantity, unit_type,
	cost, selling_price, total, payment_method_id, payment_method, customer_type_id, customer_type, dine_option)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NULLIF($14, ''))
RETURNING id, created_at`
	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(stmt, rec.TransactionID, rec.Kind, rec.ProductID, rec.ProductName, rec.Quantity, string(rec.UnitType),
			rec.Cost, rec.SellingPrice, rec.Total, rec.PaymentMethodID, rec.PaymentMethod, rec.CustomerTypeID, rec.CustomerType, rec.DineOption)
	}
	results := r.tx.SendBatch(ctx, batch)
	out := make([]Record, len(records))
	for i, rec := range records {
		if err := results.QueryRow().Scan(&rec.ID, &rec.CreatedAt); err != nil {
			_ = results.Close()
			return nil, fmt.Errorf("insert sale line %d: %w", i, err)
		}
		out[i] = rec
	}
	if err := results.Close(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListTransactions returns the lines of the transactions on the requested
// page (newest first) and the number of transactions in range.
func (r *Repository) ListTransactions(ctx context.Context, filter ListFilter, limit, offset int) ([]Record, int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(DISTINCT transaction_id) FROM sales
WHERE created_at >= $1 AND created_at < $2`, filter.From, filter.To).Scan(&total)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return nil, 0, nil
	}
	rows, err := r.pool.Query(ctx, `WITH page AS (
	SELECT transaction_id, MIN(created_at) AS opened
	FROM sales
	WHERE created_at >= $1 AND created_at < $2
	GROUP BY transaction_id
	ORDER BY opened DESC
	LIMIT $3 OFFSET $4
)
SELECT `+recordColumns+`
FROM sales JOIN page USING (transaction_id)
ORDER BY page.opened DESC, sales.id`, filter.From, filter.To, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	records, err := pgx.CollectRows(rows, scanRecord)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// GetTransaction loads every line of one transaction.
func (r *Repository) GetTransaction(ctx context.Context, id uuid.UUID) ([]Record, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+recordColumns+` FROM sales WHERE transaction_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	records, err := pgx.CollectRows(rows, scanRecord)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrTransactionNotFound
	}
	return records, nil
}

// CancelTransaction sets the cancellation marker on every open line and
// reports how many lines changed.
func (r *Repository) CancelTransaction(ctx context.Context, id uuid.UUID, reason string, at time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE sales SET cancelled = TRUE, cancelled_at = $2, cancel_reason = NULLIF($3, '')
WHERE transaction_id = $1 AND NOT cancelled`, id, at, reason)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListRange returns every line created in [from, to).
func (r *Repository) ListRange(ctx context.Context, from, to time.Time) ([]Record, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+recordColumns+` FROM sales
WHERE created_at >= $1 AND created_at < $2 ORDER BY created_at, id`, from, to)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanRecord)
}

func scanRecord(row pgx.CollectableRow) (Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.TransactionID, &rec.Kind, &rec.ProductID, &rec.ProductName, &rec.Quantity, &rec.UnitType,
		&rec.Cost, &rec.SellingPrice, &rec.Total, &rec.PaymentMethodID, &rec.PaymentMethod, &rec.CustomerTypeID, &rec.CustomerType,
		&rec.DineOption, &rec.CreatedAt, &rec.Cancelled, &rec.CancelledAt, &rec.CancelReason)
	return rec, err
}
