// Package memstore is an in-memory circulation.TxBeginner for unit tests.
//
// It implements every circulation.StatementKey with the semantics of the PostgreSQL engine.
// Each transaction works on its own snapshot of the committed state; write transactions
// are serialized and publish their snapshot on commit, read-only transactions never block.
// Statement, begin and commit failures can be injected to exercise rollback paths.
package memstore
