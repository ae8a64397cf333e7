package pgx

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Querier is the read side shared by connections, pools and transactions.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxBeginner starts transactions. Satisfied by *pgx.Conn and *pgxpool.Pool.
type TxBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

var snapshotTxOptions = pgx.TxOptions{
	IsoLevel:   pgx.RepeatableRead,
	AccessMode: pgx.ReadOnly,
}

// ReadSnapshot runs fn inside a REPEATABLE READ, READ ONLY transaction so
// that every query fn issues observes the same snapshot. The transaction is
// always ended: committed when fn succeeds, rolled back otherwise (including
// when ctx is cancelled mid-way).
func ReadSnapshot(ctx context.Context, db TxBeginner, fn func(Querier) error) error {
	tx, err := db.BeginTx(ctx, snapshotTxOptions)
	if err != nil {
		return fmt.Errorf("begin snapshot: %w", err)
	}

	if err := fn(tx); err != nil {
		// rollback must still reach the server after ctx is cancelled
		_ = tx.Rollback(context.WithoutCancel(ctx))
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// Snapshotter binds ReadSnapshot to a pool or connection.
type Snapshotter struct {
	db TxBeginner
}

func NewSnapshotter(db TxBeginner) *Snapshotter {
	return &Snapshotter{db: db}
}

func (s *Snapshotter) ReadSnapshot(ctx context.Context, fn func(Querier) error) error {
	return ReadSnapshot(ctx, s.db, fn)
}
