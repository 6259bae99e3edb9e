package circulation

import (
	"context"
	"errors"
	"fmt"
)

// QueryExecutor runs a parameterized read and returns its rows in statement order.
type QueryExecutor interface {
	Query(ctx context.Context, key StatementKey, params ...any) ([]Row, error)
}

// CommandExecutor runs a parameterized write and returns the number of affected rows.
type CommandExecutor interface {
	Exec(ctx context.Context, key StatementKey, params ...any) (int64, error)
}

// Executor is the transaction-bound pair of executors every manager operation receives.
type Executor interface {
	QueryExecutor
	CommandExecutor
}

// Tx is an explicit transaction context.
// Rollback after a successful Commit must be a no-op returning nil.
type Tx interface {
	Executor
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TxOptions configure a transaction.
type TxOptions struct {
	Isolation IsolationLevel
	ReadOnly  bool
}

// TxBeginner opens transactions. Auto-commit is never used, every statement runs inside a Tx.
type TxBeginner interface {
	Begin(ctx context.Context, opts TxOptions) (Tx, error)
}

// WithinTransaction runs fn inside a new transaction.
// It commits when fn returns nil and rolls back on every other exit path, panics included.
func WithinTransaction(ctx context.Context, db TxBeginner, opts TxOptions, fn func(x Executor) error) (err error) {
	tx, err := db.Begin(ctx, opts)
	if err != nil {
		return asTransactionFailure("begin", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}

		if rollbackErr := tx.Rollback(context.WithoutCancel(ctx)); rollbackErr != nil {
			err = errors.Join(err, NewTransactionFailure("rollback", "", errors.Join(ErrRollbackFailed, rollbackErr)))
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return asTransactionFailure("commit", err)
	}

	committed = true

	return nil
}

// querySingle runs a query that must yield exactly one row.
func querySingle(ctx context.Context, q QueryExecutor, key StatementKey, params ...any) (Row, error) {
	rows, err := q.Query(ctx, key, params...)
	if err != nil {
		return nil, asTransactionFailure(key.String(), err)
	}

	if len(rows) != 1 {
		return nil, NewTransactionFailure(
			key.String(),
			"",
			fmt.Errorf("%w: expected exactly one row, got %d", ErrUnexpectedRowShape, len(rows)),
		)
	}

	return rows[0], nil
}

// queryScalar runs a query that yields one row with one integer column.
func queryScalar(ctx context.Context, q QueryExecutor, key StatementKey, params ...any) (int64, error) {
	row, err := querySingle(ctx, q, key, params...)
	if err != nil {
		return 0, err
	}

	count, err := row.Int64(0)
	if err != nil {
		return 0, NewTransactionFailure(key.String(), "", err)
	}

	return count, nil
}
