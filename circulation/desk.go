package circulation

import (
	"context"
	"time"
)

// Desk runs the user actions of the circulation desk. Each reserve, borrow and return
// is one guarded state transition in its own transaction; lookups and predicates run
// in read-only transactions.
//
// A Desk holds no mutable state and is safe for concurrent use by many actors.
type Desk struct {
	db               TxBeginner
	availability     Availability
	reservations     ReservationManager
	borrows          BorrowManager
	returns          ReturnManager
	lookup           LookupService
	clock            func() time.Time
	isolation        IsolationLevel
	retryOptions     []RetryOption
	logger           Logger
	contextualLogger ContextualLogger
	metricsCollector MetricsCollector
	tracingCollector TracingCollector
}

// NewDesk creates a Desk on top of a transaction boundary, e.g. a postgresengine.Store.
func NewDesk(db TxBeginner, options ...Option) (*Desk, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	desk := &Desk{
		db:        db,
		clock:     time.Now,
		isolation: IsolationSerializable,
	}

	for _, option := range options {
		if err := option(desk); err != nil {
			return nil, err
		}
	}

	return desk, nil
}

// Reserve creates a reservation for a fully assembled request.
func (d *Desk) Reserve(ctx context.Context, request ReserveRequest) (Reservation, error) {
	return runGuarded[ReserveRequest, Reservation](ctx, d, reserveTransition{manager: d.reservations}, request, nil)
}

// ReserveInteractively checks the preconditions, lets collect complete the request
// (typically the pickup due date), and then reserves after checking again.
func (d *Desk) ReserveInteractively(
	ctx context.Context,
	request ReserveRequest,
	collect CollectFunc[ReserveRequest],
) (Reservation, error) {
	return runGuarded[ReserveRequest, Reservation](ctx, d, reserveTransition{manager: d.reservations}, request, collect)
}

// Borrow lends a copy for a fully assembled request, consuming its reservation if it is based on one.
func (d *Desk) Borrow(ctx context.Context, request BorrowRequest) (Borrow, error) {
	return runGuarded[BorrowRequest, Borrow](ctx, d, borrowTransition{manager: d.borrows}, request, nil)
}

// BorrowInteractively is Borrow with secondary input collected between two checks.
func (d *Desk) BorrowInteractively(
	ctx context.Context,
	request BorrowRequest,
	collect CollectFunc[BorrowRequest],
) (Borrow, error) {
	return runGuarded[BorrowRequest, Borrow](ctx, d, borrowTransition{manager: d.borrows}, request, collect)
}

// Return closes the open borrow of a copy and makes it available again.
func (d *Desk) Return(ctx context.Context, request ReturnRequest) (ReturnReceipt, error) {
	return runGuarded[ReturnRequest, ReturnReceipt](ctx, d, returnTransition{manager: d.returns}, request, nil)
}

// ReturnInteractively is Return with a confirmation collected between two checks.
func (d *Desk) ReturnInteractively(
	ctx context.Context,
	request ReturnRequest,
	collect CollectFunc[ReturnRequest],
) (ReturnReceipt, error) {
	return runGuarded[ReturnRequest, ReturnReceipt](ctx, d, returnTransition{manager: d.returns}, request, collect)
}

// Find runs a lookup. No match yields empty CopyRefs and a nil error.
func (d *Desk) Find(ctx context.Context, scope Scope, criterion Criterion) (CopyRefs, error) {
	var refs CopyRefs

	err := d.readOnly(ctx, func(x Executor) error {
		var findErr error
		refs, findErr = d.lookup.Find(ctx, x, scope, criterion, d.clock())

		return findErr
	})

	return refs, err
}

// IsReservable evaluates the reservable predicate at the current time.
func (d *Desk) IsReservable(ctx context.Context, copyID CopyID) (bool, error) {
	return d.predicate(ctx, func(x Executor) (bool, error) {
		return d.availability.IsReservable(ctx, x, copyID, d.clock())
	})
}

// IsBorrowable evaluates the borrowable predicate at the current time.
func (d *Desk) IsBorrowable(ctx context.Context, copyID CopyID) (bool, error) {
	return d.predicate(ctx, func(x Executor) (bool, error) {
		return d.availability.IsBorrowable(ctx, x, copyID, d.clock())
	})
}

// PassesAgeCheck evaluates the age check at the current time.
func (d *Desk) PassesAgeCheck(ctx context.Context, customerID CustomerID, copyID CopyID) (bool, error) {
	return d.predicate(ctx, func(x Executor) (bool, error) {
		return d.availability.PassesAgeCheck(ctx, x, customerID, copyID, d.clock())
	})
}

func (d *Desk) predicate(ctx context.Context, evaluate func(x Executor) (bool, error)) (bool, error) {
	var holds bool

	err := d.readOnly(ctx, func(x Executor) error {
		var evalErr error
		holds, evalErr = evaluate(x)

		return evalErr
	})

	return holds, err
}

func (d *Desk) readOnly(ctx context.Context, fn func(x Executor) error) error {
	opts := TxOptions{Isolation: GetIsolationLevel(ctx, d.isolation), ReadOnly: true}

	return WithinTransaction(ctx, d.db, opts, fn)
}

func (d *Desk) retryOptionsFor(actionType string) []RetryOption {
	options := append([]RetryOption{}, d.retryOptions...)

	if d.metricsCollector != nil {
		options = append(options, WithRetryMetrics(d.metricsCollector, actionType))
	}

	return options
}
