// Package postgresengine implements the circulation executors and transaction boundary on PostgreSQL.
//
// A Store resolves every circulation.StatementKey to SQL text built once with goqu and runs it
// with positional parameters inside an explicit transaction. It can be created from a pgx pool,
// a database/sql connection (lib/pq) or a sqlx connection:
//
//	store, err := postgresengine.NewStoreFromPGXPool(pool, postgresengine.WithLogger(slog.Default()))
//	if err != nil {
//		return err
//	}
//
//	if err = store.EnsureSchema(ctx); err != nil {
//		return err
//	}
//
//	desk, err := circulation.NewDesk(store)
//
// Statement failures are returned as *circulation.TransactionFailure carrying the PostgreSQL SQLSTATE,
// so callers can tell serialization failures (40001, 40P01) from other database errors.
package postgresengine
