package main

import (
	"context"
	"database/sql"
	"time"

	dErrors "carebridge/pkg/domain-errors"
	"carebridge/pkg/platform/tx"
)

const defaultOutboxTxTimeout = 5 * time.Second

// outboxPostgresTx runs a connection write and its outbox append inside one
// transaction. The transaction rides the context so the stores pick it up
// without a database/sql dependency in the service layer.
type outboxPostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newOutboxPostgresTx(db *sql.DB) *outboxPostgresTx {
	return &outboxPostgresTx{db: db}
}

func (t *outboxPostgresTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultOutboxTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	sqlTx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	if err := fn(tx.WithTx(ctx, sqlTx)); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return err
	}
	return nil
}
