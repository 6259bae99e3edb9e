// Package adapters provide database adapter implementations for the PostgreSQL circulation store.
//
// This package implements the adapter pattern to support multiple PostgreSQL database libraries:
// pgxpool.Pool, sql.DB, and sqlx.DB. All adapters open explicit transactions and run
// positional-parameter statements inside them through the common DBAdapter and DBTx interfaces.
package adapters
