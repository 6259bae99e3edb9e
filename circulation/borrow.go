package circulation

import (
	"context"
	"fmt"
	"time"
)

// BorrowManager lends copies to customers, optionally consuming a reservation.
type BorrowManager struct {
	availability Availability
}

// CheckPreconditions verifies, in this order, the age check, the reservation (for borrows based
// on one) and the availability of the copy. It returns the first violated precondition.
//
// A reservation qualifies if it exists, has not been consumed, is not expired at asOf and
// was made for this copy by this customer. No qualifying reservation fails closed with
// ErrNoReservationForPickup, the borrow is never downgraded to a walk-in.
func (m BorrowManager) CheckPreconditions(ctx context.Context, q QueryExecutor, request BorrowRequest, asOf time.Time) error {
	if !request.EstimatedReturnDate.IsZero() && Day(request.EstimatedReturnDate).Before(Day(asOf)) {
		return ErrReturnDateInPast
	}

	passes, err := m.availability.PassesAgeCheck(ctx, q, request.CustomerID, request.CopyID, asOf)
	if err != nil {
		return err
	}

	if !passes {
		return ErrAgeCheckFailed
	}

	excluded := noExcludedReservation

	if request.BasedOnReservation {
		reservation, found, findErr := m.availability.PickupReservation(ctx, q, request.ReservationID, asOf)
		if findErr != nil {
			return findErr
		}

		if !found || reservation.CopyID != request.CopyID || reservation.CustomerID != request.CustomerID {
			return ErrNoReservationForPickup
		}

		excluded = reservation.ID
	}

	borrowable, err := m.availability.isBorrowableFor(ctx, q, request.CopyID, excluded, asOf)
	if err != nil {
		return err
	}

	if !borrowable {
		return ErrCopyNotBorrowable
	}

	return nil
}

// CreateBorrow checks the preconditions, flags the copy as borrowed and inserts the borrow row.
// Both writes belong to the transaction of x; on any error the caller must roll it back,
// WithinTransaction and the Desk do so.
func (m BorrowManager) CreateBorrow(ctx context.Context, x Executor, request BorrowRequest, now time.Time) (Borrow, error) {
	if err := request.Validate(); err != nil {
		return Borrow{}, err
	}

	if err := m.CheckPreconditions(ctx, x, request, now); err != nil {
		return Borrow{}, err
	}

	return m.write(ctx, x, request, now)
}

// write performs the two writes of a borrow. Preconditions must have been checked in the same transaction.
func (m BorrowManager) write(ctx context.Context, x Executor, request BorrowRequest, now time.Time) (Borrow, error) {
	affected, err := x.Exec(ctx, StmtSetCopyBorrowStatus, true, request.CopyID)
	if err != nil {
		return Borrow{}, asTransactionFailure(StmtSetCopyBorrowStatus.String(), err)
	}

	if affected != 1 {
		// someone flipped the flag after our check
		return Borrow{}, fmt.Errorf("%w: copy %d was borrowed meanwhile", ErrCopyNotBorrowable, request.CopyID)
	}

	metadata, err := BuildActionMetadata(request.ActionID, request.ActionType()).JSON()
	if err != nil {
		return Borrow{}, NewTransactionFailure(StmtCreateBorrow.String(), "", err)
	}

	var reservationID any
	if request.BasedOnReservation {
		reservationID = request.ReservationID
	}

	row, err := querySingle(
		ctx,
		x,
		StmtCreateBorrow,
		Day(request.EstimatedReturnDate),
		request.BasedOnReservation,
		request.MediaID,
		request.CopyID,
		request.CustomerID,
		reservationID,
		now,
		metadata,
	)
	if err != nil {
		return Borrow{}, err
	}

	id, err := row.Int64(0)
	if err != nil {
		return Borrow{}, NewTransactionFailure(StmtCreateBorrow.String(), "", err)
	}

	return Borrow{
		ID:                  id,
		CopyID:              request.CopyID,
		MediaID:             request.MediaID,
		CustomerID:          request.CustomerID,
		ReservationID:       request.ReservationID,
		BasedOnReservation:  request.BasedOnReservation,
		EstimatedReturnDate: Day(request.EstimatedReturnDate),
		BorrowedAt:          now,
	}, nil
}

// LatestBorrowID returns the identity generated by the last borrow insert of the current session.
func (BorrowManager) LatestBorrowID(ctx context.Context, q QueryExecutor) (BorrowID, error) {
	return queryScalar(ctx, q, StmtLatestBorrowID)
}
