package circulation

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// CollectFunc gathers the secondary input of an action (pickup date, estimated return date,
// confirmation) after the advisory precondition check passed, and returns the completed request.
// Returning ErrActionAborted (or any error) ends the action without a single write.
type CollectFunc[R Request] func(ctx context.Context, request R) (R, error)

// guardedTransition is the shape shared by reserve, borrow and return:
// a target copy, a precondition check and a write.
type guardedTransition[R Request, T any] interface {
	target(request R) CopyRef
	check(ctx context.Context, q QueryExecutor, request R, asOf time.Time) error
	write(ctx context.Context, x Executor, request R, now time.Time) (T, error)
}

// runGuarded runs one user action:
//  1. advisory check in a read-only transaction, only if input is collected afterwards
//  2. collect the secondary input, without any transaction open
//  3. validate the completed request
//  4. write transaction: lock the copy row, check again, write, commit
//
// Any failure in step 4 rolls the whole write transaction back.
func runGuarded[R Request, T any](
	ctx context.Context,
	d *Desk,
	transition guardedTransition[R, T],
	request R,
	collect CollectFunc[R],
) (result T, err error) {
	start := time.Now()
	isolation := GetIsolationLevel(ctx, d.isolation)

	ctx, span := d.startActionSpan(ctx, request)
	d.logActionStarted(ctx, request, isolation)

	defer func() {
		d.finishAction(ctx, span, request, time.Since(start), err)
	}()

	if collect != nil {
		err = WithinTransaction(ctx, d.db, TxOptions{Isolation: isolation, ReadOnly: true}, func(x Executor) error {
			return transition.check(ctx, x, request, d.clock())
		})
		if err != nil {
			return result, err
		}

		request, err = collect(ctx, request)
		if err != nil {
			if errors.Is(err, ErrActionAborted) {
				return result, err
			}

			return result, errors.Join(ErrActionAborted, err)
		}
	}

	if err = request.Validate(); err != nil {
		return result, err
	}

	writeOnce := func(ctx context.Context) error {
		return WithinTransaction(ctx, d.db, TxOptions{Isolation: isolation}, func(x Executor) error {
			now := d.clock()
			ref := transition.target(request)

			copyState, lockErr := d.availability.LockCopy(ctx, x, ref.CopyID)
			if lockErr != nil {
				return lockErr
			}

			if copyState.MediaID != ref.MediaID {
				return fmt.Errorf("%w: copy %d belongs to media %d, not %d", ErrInvalidRequest, ref.CopyID, copyState.MediaID, ref.MediaID)
			}

			if checkErr := transition.check(ctx, x, request, now); checkErr != nil {
				return checkErr
			}

			var writeErr error
			result, writeErr = transition.write(ctx, x, request, now)

			return writeErr
		})
	}

	if d.retryOptions == nil {
		err = writeOnce(ctx)
	} else {
		err = RetryWithExponentialBackoff(ctx, writeOnce, d.retryOptionsFor(request.ActionType())...)
	}

	if err != nil {
		var zero T
		return zero, err
	}

	return result, nil
}

type reserveTransition struct {
	manager ReservationManager
}

func (t reserveTransition) target(request ReserveRequest) CopyRef {
	return CopyRef{CopyID: request.CopyID, MediaID: request.MediaID}
}

func (t reserveTransition) check(ctx context.Context, q QueryExecutor, request ReserveRequest, asOf time.Time) error {
	return t.manager.CheckPreconditions(ctx, q, request, asOf)
}

func (t reserveTransition) write(ctx context.Context, x Executor, request ReserveRequest, now time.Time) (Reservation, error) {
	return t.manager.CreateReservation(ctx, x, request, now)
}

type borrowTransition struct {
	manager BorrowManager
}

func (t borrowTransition) target(request BorrowRequest) CopyRef {
	return CopyRef{CopyID: request.CopyID, MediaID: request.MediaID}
}

func (t borrowTransition) check(ctx context.Context, q QueryExecutor, request BorrowRequest, asOf time.Time) error {
	return t.manager.CheckPreconditions(ctx, q, request, asOf)
}

func (t borrowTransition) write(ctx context.Context, x Executor, request BorrowRequest, now time.Time) (Borrow, error) {
	return t.manager.write(ctx, x, request, now)
}

type returnTransition struct {
	manager ReturnManager
}

func (t returnTransition) target(request ReturnRequest) CopyRef {
	return CopyRef{CopyID: request.CopyID, MediaID: request.MediaID}
}

func (t returnTransition) check(ctx context.Context, q QueryExecutor, request ReturnRequest, _ time.Time) error {
	return t.manager.CheckPreconditions(ctx, q, request)
}

func (t returnTransition) write(ctx context.Context, x Executor, request ReturnRequest, now time.Time) (ReturnReceipt, error) {
	return t.manager.ReturnTitle(ctx, x, request, now)
}
