// Package spies provides test doubles that capture logs, metrics and spans
// emitted by the circulation Desk and the postgresengine Store.
package spies
