// Package circulation provides the transactional core of a library circulation
// workflow: reserving, borrowing and returning physical copies of media items.
//
// The package owns the state-machine logic that governs copy availability.
// It talks to the relational store only through two narrow contracts, a
// QueryExecutor (parameterized reads returning rows) and a CommandExecutor
// (parameterized writes returning affected-row counts), both bound to an
// explicit transaction. Statement text is resolved by the engine from a
// StatementKey, see the postgresengine package for the PostgreSQL implementation.
//
// Components, leaf to root:
//   - Availability: read-only predicates (reservable, borrowable, age check)
//   - ReservationManager, BorrowManager, ReturnManager: the state transitions
//   - LookupService: searches producing the (copy, media) pairs the managers consume
//   - Desk: runs every user action as one guarded state transition
//
// Common usage pattern:
//
//	store, _ := postgresengine.NewStoreFromPGXPool(pool)
//	desk, _ := circulation.NewDesk(store, circulation.WithLogger(slog.Default()))
//
//	refs, _ := desk.Find(ctx, circulation.ScopeReservable, circulation.ByTitle("dune"))
//	ref, ok := refs.Find(copyID)
//	if !ok {
//		// no match is a hard stop, not an error
//	}
//
//	request := circulation.BuildReserveRequest(ref.CopyID, ref.MediaID, customerID, pickupDueDate)
//	reservation, err := desk.Reserve(ctx, request)
//	switch {
//	case errors.Is(err, circulation.ErrPreconditionFailed):
//		// age check failed, copy taken meanwhile, ...
//	case errors.Is(err, circulation.ErrTransactionFailed):
//		// store rejected a statement, circulation.DiagnosticCode(err) has the SQLSTATE
//	}
package circulation
