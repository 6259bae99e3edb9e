package adapters

import (
	"context"

	"github.com/AntonStoeckl/library-circulation-go/circulation"
)

// DBAdapter opens transactions on one of the supported database libraries.
type DBAdapter interface {
	BeginTx(ctx context.Context, opts circulation.TxOptions) (DBTx, error)
}

// DBTx is an open transaction. Rollback after Commit returns nil.
type DBTx interface {
	Query(ctx context.Context, query string, args ...any) (DBRows, error)
	Exec(ctx context.Context, query string, args ...any) (DBResult, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// DBRows defines the interface for query result rows.
type DBRows interface {
	Next() bool
	Values() ([]any, error)
	Err() error
	Close() error
}

// DBResult defines the interface for execution results.
type DBResult interface {
	RowsAffected() (int64, error)
}
