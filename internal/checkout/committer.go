package checkout

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/counterpos/counterpos/internal/inventory"
	"github.com/counterpos/counterpos/internal/platform/db"
	"github.com/counterpos/counterpos/internal/sales"
)

// PGCommitter writes sale lines and stock decrements in one RepeatableRead
// transaction. Either both land or neither does.
type PGCommitter struct {
	conn          db.Beginner
	allowNegative bool
}

// NewPGCommitter builds the committer. allowNegative lets decrements drive
// stock below zero instead of failing the checkout.
func NewPGCommitter(conn db.Beginner, allowNegative bool) *PGCommitter {
	return &PGCommitter{conn: conn, allowNegative: allowNegative}
}

// Commit implements Committer.
func (c *PGCommitter) Commit(ctx context.Context, records []sales.Record, decrements []inventory.Decrement) ([]sales.Record, map[int64]float64, error) {
	var (
		inserted  []sales.Record
		remaining map[int64]float64
	)
	err := db.WithTx(ctx, c.conn, func(tx pgx.Tx) error {
		var err error
		inserted, err = sales.NewTxRepository(tx).InsertRecords(ctx, records)
		if err != nil {
			return err
		}
		remaining, err = inventory.ApplyDecrements(ctx, inventory.NewTxRepository(tx), decrements, c.allowNegative)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return inserted, remaining, nil
}
