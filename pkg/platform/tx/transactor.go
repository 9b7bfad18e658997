package tx

import (
	"context"
	"database/sql"
	"fmt"
)

// Transactor runs fn inside a single unit of work. SQL-backed deployments
// get real transactions; in-memory deployments get a pass-through.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// SQLTransactor begins a database transaction and carries it through the
// context so every store touched by fn joins the same commit.
type SQLTransactor struct {
	db *sql.DB
}

func NewSQLTransactor(db *sql.DB) *SQLTransactor {
	return &SQLTransactor{db: db}
}

func (t *SQLTransactor) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := From(ctx); ok {
		// Already inside a transaction; join it.
		return fn(ctx)
	}
	sqlTx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(WithTx(ctx, sqlTx)); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// NoopTransactor satisfies Transactor for stores with no transaction
// support. fn runs directly against the caller's context.
type NoopTransactor struct{}

func (NoopTransactor) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
