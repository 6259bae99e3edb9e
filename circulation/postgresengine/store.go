package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/AntonStoeckl/library-circulation-go/circulation"
	"github.com/AntonStoeckl/library-circulation-go/circulation/postgresengine/internal/adapters"
)

// Store opens circulation transactions against PostgreSQL and resolves statement keys to SQL.
// It implements circulation.TxBeginner for pgx, database/sql and sqlx connections alike.
type Store struct {
	db               adapters.DBAdapter
	statements       catalog
	logger           circulation.Logger
	contextualLogger circulation.ContextualLogger
	metricsCollector circulation.MetricsCollector
	tracingCollector circulation.TracingCollector
}

// NewStoreFromPGXPool creates a new Store using a pgx Pool with optional configuration.
func NewStoreFromPGXPool(db *pgxpool.Pool, options ...Option) (Store, error) {
	if db == nil {
		return Store{}, circulation.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewPGXAdapter(db), options...)
}

// NewStoreFromSQLDB creates a new Store using a sql.DB with optional configuration.
func NewStoreFromSQLDB(db *sql.DB, options ...Option) (Store, error) {
	if db == nil {
		return Store{}, circulation.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLAdapter(db), options...)
}

// NewStoreFromSQLX creates a new Store using a sqlx.DB with optional configuration.
func NewStoreFromSQLX(db *sqlx.DB, options ...Option) (Store, error) {
	if db == nil {
		return Store{}, circulation.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLXAdapter(db), options...)
}

func newStore(db adapters.DBAdapter, options ...Option) (Store, error) {
	statements, err := buildCatalog()
	if err != nil {
		return Store{}, err
	}

	s := Store{
		db:         db,
		statements: statements,
	}

	for _, option := range options {
		if err := option(&s); err != nil {
			return Store{}, err
		}
	}

	return s, nil
}

// Begin opens a transaction with the requested isolation level and access mode.
func (s Store) Begin(ctx context.Context, opts circulation.TxOptions) (circulation.Tx, error) {
	if !opts.Isolation.Valid() {
		return nil, circulation.ErrInvalidIsolationLevel
	}

	dbTx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		s.logError(ctx, logMsgBeginFailed, logAttrError, err.Error(), logAttrIsolation, opts.Isolation.String())
		s.recordDatabaseError(ctx, operationBegin, err)

		return nil, circulation.NewTransactionFailure(operationBegin, sqlState(err), err)
	}

	return &storeTx{store: s, dbTx: dbTx}, nil
}

// storeTx binds the statement catalog to one open database transaction.
type storeTx struct {
	store Store
	dbTx  adapters.DBTx
}

// Query runs the statement of key and materializes all rows.
func (tx *storeTx) Query(ctx context.Context, key circulation.StatementKey, params ...any) ([]circulation.Row, error) {
	sqlQuery, err := tx.store.statements.resolve(key, params)
	if err != nil {
		return nil, circulation.NewTransactionFailure(key.String(), "", err)
	}

	ctx, span := tx.store.startStatementSpan(ctx, key)

	start := time.Now()
	rows, err := tx.collectRows(ctx, sqlQuery, params)
	duration := time.Since(start)

	tx.store.logQueryWithDuration(ctx, key, sqlQuery, duration)
	tx.store.recordStatementMetrics(ctx, operationQuery, key, duration, err)
	tx.store.finishStatementSpan(span, int64(len(rows)), duration, err)

	if err != nil {
		return nil, tx.failure(ctx, key, sqlQuery, err)
	}

	tx.store.recordRowsReturned(ctx, key, len(rows))

	return rows, nil
}

func (tx *storeTx) collectRows(ctx context.Context, sqlQuery string, params []any) ([]circulation.Row, error) {
	dbRows, err := tx.dbTx.Query(ctx, sqlQuery, params...)
	if err != nil {
		return nil, err
	}
	defer tx.closeRows(ctx, dbRows)

	rows := make([]circulation.Row, 0)
	for dbRows.Next() {
		values, valuesErr := dbRows.Values()
		if valuesErr != nil {
			return nil, valuesErr
		}

		rows = append(rows, values)
	}

	if err = dbRows.Err(); err != nil {
		return nil, err
	}

	return rows, nil
}

// closeRows closes database rows and logs any errors.
func (tx *storeTx) closeRows(ctx context.Context, rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		tx.store.logWarn(ctx, logMsgCloseRowsFailed, logAttrError, closeErr.Error())
	}
}

// Exec runs the write statement of key and returns the number of affected rows.
func (tx *storeTx) Exec(ctx context.Context, key circulation.StatementKey, params ...any) (int64, error) {
	sqlQuery, err := tx.store.statements.resolve(key, params)
	if err != nil {
		return 0, circulation.NewTransactionFailure(key.String(), "", err)
	}

	ctx, span := tx.store.startStatementSpan(ctx, key)

	start := time.Now()
	rowsAffected, err := tx.execute(ctx, sqlQuery, params)
	duration := time.Since(start)

	tx.store.logQueryWithDuration(ctx, key, sqlQuery, duration)
	tx.store.recordStatementMetrics(ctx, operationExec, key, duration, err)
	tx.store.finishStatementSpan(span, rowsAffected, duration, err)

	if err != nil {
		return 0, tx.failure(ctx, key, sqlQuery, err)
	}

	tx.store.logInfo(
		ctx,
		logMsgWriteCompleted,
		logAttrStatement, key.String(),
		logAttrRowsAffected, rowsAffected,
		logAttrDurationMS, circulation.ToMilliseconds(duration),
	)

	return rowsAffected, nil
}

func (tx *storeTx) execute(ctx context.Context, sqlQuery string, params []any) (int64, error) {
	result, err := tx.dbTx.Exec(ctx, sqlQuery, params...)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

// failure logs a failed statement and wraps it with its SQLSTATE.
func (tx *storeTx) failure(ctx context.Context, key circulation.StatementKey, sqlQuery string, err error) error {
	code := sqlState(err)

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		tx.store.logWarn(ctx, logMsgStatementFailed, logAttrStatement, key.String(), logAttrError, err.Error())
	} else {
		tx.store.logError(
			ctx,
			logMsgStatementFailed,
			logAttrStatement, key.String(),
			logAttrSQLState, code,
			logAttrError, err.Error(),
			logAttrQuery, sqlQuery,
		)
	}

	return circulation.NewTransactionFailure(key.String(), code, err)
}

// Commit commits the transaction. Serialization failures often surface here under SERIALIZABLE.
func (tx *storeTx) Commit(ctx context.Context) error {
	if err := tx.dbTx.Commit(ctx); err != nil {
		code := sqlState(err)
		tx.store.logError(ctx, logMsgCommitFailed, logAttrSQLState, code, logAttrError, err.Error())
		tx.store.recordDatabaseError(ctx, operationCommit, err)

		return circulation.NewTransactionFailure(operationCommit, code, err)
	}

	return nil
}

// Rollback aborts the transaction; after Commit it is a no-op.
func (tx *storeTx) Rollback(ctx context.Context) error {
	if err := tx.dbTx.Rollback(ctx); err != nil {
		tx.store.logWarn(ctx, logMsgRollbackFailed, logAttrError, err.Error())
		return err
	}

	return nil
}
