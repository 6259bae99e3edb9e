package postgresengine

import (
	"context"
	"errors"

	"github.com/AntonStoeckl/library-circulation-go/circulation"
)

// ErrEnsuringSchemaFailed is returned when the circulation tables cannot be created.
var ErrEnsuringSchemaFailed = errors.New("ensuring circulation schema failed")

// schemaDDL creates the circulation tables idempotently and adds columns missing in older schemas.
// At most one open borrow exists per copy, and a reservation is consumed by at most one borrow.
var schemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS media (
		media_id   BIGSERIAL PRIMARY KEY,
		title      TEXT NOT NULL,
		author     TEXT NOT NULL DEFAULT '',
		media_type TEXT NOT NULL,
		min_age    INTEGER
	)`,
	`ALTER TABLE media ADD COLUMN IF NOT EXISTS author TEXT NOT NULL DEFAULT ''`,
	`CREATE TABLE IF NOT EXISTS copies (
		copy_id     BIGSERIAL PRIMARY KEY,
		media_id    BIGINT NOT NULL REFERENCES media (media_id),
		is_borrowed BOOLEAN NOT NULL DEFAULT FALSE,
		version     BIGINT NOT NULL DEFAULT 0
	)`,
	`ALTER TABLE copies ADD COLUMN IF NOT EXISTS version BIGINT NOT NULL DEFAULT 0`,
	`CREATE TABLE IF NOT EXISTS customers (
		customer_id BIGSERIAL PRIMARY KEY,
		name        TEXT NOT NULL,
		birth_date  DATE NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS reservations (
		reservation_id  BIGSERIAL PRIMARY KEY,
		pickup_due_date DATE NOT NULL,
		copy_id         BIGINT NOT NULL REFERENCES copies (copy_id),
		media_id        BIGINT NOT NULL REFERENCES media (media_id),
		customer_id     BIGINT NOT NULL REFERENCES customers (customer_id),
		created_at      TIMESTAMPTZ NOT NULL,
		metadata        JSONB NOT NULL DEFAULT '{}'
	)`,
	`CREATE INDEX IF NOT EXISTS reservations_copy_due_idx ON reservations (copy_id, pickup_due_date)`,
	`CREATE TABLE IF NOT EXISTS borrows (
		borrow_id             BIGSERIAL PRIMARY KEY,
		estimated_return_date DATE NOT NULL,
		based_on_reservation  BOOLEAN NOT NULL,
		media_id              BIGINT NOT NULL REFERENCES media (media_id),
		copy_id               BIGINT NOT NULL REFERENCES copies (copy_id),
		customer_id           BIGINT NOT NULL REFERENCES customers (customer_id),
		reservation_id        BIGINT REFERENCES reservations (reservation_id),
		borrowed_at           TIMESTAMPTZ NOT NULL,
		returned_at           TIMESTAMPTZ,
		metadata              JSONB NOT NULL DEFAULT '{}',
		CHECK (based_on_reservation = (reservation_id IS NOT NULL))
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS borrows_one_open_per_copy ON borrows (copy_id) WHERE returned_at IS NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS borrows_reservation_consumed_once ON borrows (reservation_id) WHERE reservation_id IS NOT NULL`,
	`CREATE TABLE IF NOT EXISTS returns (
		return_id   BIGSERIAL PRIMARY KEY,
		borrow_id   BIGINT NOT NULL UNIQUE REFERENCES borrows (borrow_id),
		copy_id     BIGINT NOT NULL REFERENCES copies (copy_id),
		media_id    BIGINT NOT NULL REFERENCES media (media_id),
		customer_id BIGINT NOT NULL REFERENCES customers (customer_id),
		returned_at TIMESTAMPTZ NOT NULL,
		metadata    JSONB NOT NULL DEFAULT '{}'
	)`,
}

// EnsureSchema creates the circulation tables and indexes if they do not exist yet.
// It runs in a single transaction, so a partial schema is never left behind.
func (s Store) EnsureSchema(ctx context.Context) error {
	dbTx, err := s.db.BeginTx(ctx, circulation.TxOptions{Isolation: circulation.IsolationReadCommitted})
	if err != nil {
		return errors.Join(ErrEnsuringSchemaFailed, err)
	}

	for _, ddl := range schemaDDL {
		if _, execErr := dbTx.Exec(ctx, ddl); execErr != nil {
			s.logError(ctx, logMsgStatementFailed, logAttrError, execErr.Error(), logAttrQuery, ddl)
			_ = dbTx.Rollback(context.WithoutCancel(ctx))

			return errors.Join(ErrEnsuringSchemaFailed, execErr)
		}
	}

	if err = dbTx.Commit(ctx); err != nil {
		return errors.Join(ErrEnsuringSchemaFailed, err)
	}

	s.logInfo(ctx, logMsgSchemaEnsured, logAttrStatementCount, len(schemaDDL))

	return nil
}
