package circulation

import (
	"context"
	"time"
)

// noExcludedReservation disables the exclusion parameter of StmtCountBlockingState.
const noExcludedReservation ReservationID = 0

// Availability evaluates the read-only predicates that gate every state transition.
// It never writes. Callers must evaluate the predicates again inside the transaction
// that performs the write.
type Availability struct{}

// IsReservable reports whether no blocking state exists for the copy:
// the copy exists, is not borrowed and has no active, unconsumed reservation at asOf.
func (Availability) IsReservable(ctx context.Context, q QueryExecutor, copyID CopyID, asOf time.Time) (bool, error) {
	return isFree(ctx, q, copyID, noExcludedReservation, asOf)
}

// IsBorrowable is the same predicate as IsReservable: a copy eligible for a reservation
// is exactly the copy eligible for immediate borrowing.
func (Availability) IsBorrowable(ctx context.Context, q QueryExecutor, copyID CopyID, asOf time.Time) (bool, error) {
	return isFree(ctx, q, copyID, noExcludedReservation, asOf)
}

// isBorrowableFor is IsBorrowable ignoring the reservation that is consumed by the borrow.
func (Availability) isBorrowableFor(
	ctx context.Context,
	q QueryExecutor,
	copyID CopyID,
	reservationID ReservationID,
	asOf time.Time,
) (bool, error) {
	return isFree(ctx, q, copyID, reservationID, asOf)
}

// PassesAgeCheck reports whether the customer is at least as old as the media's minimum age at asOf.
// An unknown customer or copy fails the check.
func (Availability) PassesAgeCheck(
	ctx context.Context,
	q QueryExecutor,
	customerID CustomerID,
	copyID CopyID,
	asOf time.Time,
) (bool, error) {
	violations, err := queryScalar(ctx, q, StmtCountAgeViolations, customerID, copyID, Day(asOf))
	if err != nil {
		return false, err
	}

	return violations == 0, nil
}

// HasOpenBorrow reports whether the copy has a borrow without a return timestamp.
func (Availability) HasOpenBorrow(ctx context.Context, q QueryExecutor, copyID CopyID) (bool, error) {
	open, err := queryScalar(ctx, q, StmtCountOpenBorrows, copyID)
	if err != nil {
		return false, err
	}

	return open > 0, nil
}

// PickupReservation returns the reservation if it can still be picked up at asOf:
// it exists, is not consumed by a borrow and its pickup due date is not before asOf.
func (Availability) PickupReservation(
	ctx context.Context,
	q QueryExecutor,
	reservationID ReservationID,
	asOf time.Time,
) (Reservation, bool, error) {
	rows, err := q.Query(ctx, StmtFindPickupReservation, reservationID, Day(asOf))
	if err != nil {
		return Reservation{}, false, asTransactionFailure(StmtFindPickupReservation.String(), err)
	}

	if len(rows) == 0 {
		return Reservation{}, false, nil
	}

	reservation, err := reservationFromRow(rows[0])
	if err != nil {
		return Reservation{}, false, NewTransactionFailure(StmtFindPickupReservation.String(), "", err)
	}

	return reservation, true, nil
}

// FindCopy reads the copy without locking it.
func (Availability) FindCopy(ctx context.Context, q QueryExecutor, copyID CopyID) (Copy, error) {
	return findCopy(ctx, q, StmtFindCopy, copyID)
}

// LockCopy reads the copy and locks its row until the transaction ends,
// which serializes all actions on the same copy.
func (Availability) LockCopy(ctx context.Context, q QueryExecutor, copyID CopyID) (Copy, error) {
	return findCopy(ctx, q, StmtLockCopy, copyID)
}

func isFree(
	ctx context.Context,
	q QueryExecutor,
	copyID CopyID,
	excluded ReservationID,
	asOf time.Time,
) (bool, error) {
	blocking, err := queryScalar(ctx, q, StmtCountBlockingState, copyID, excluded, Day(asOf))
	if err != nil {
		return false, err
	}

	return blocking == 0, nil
}

func findCopy(ctx context.Context, q QueryExecutor, key StatementKey, copyID CopyID) (Copy, error) {
	rows, err := q.Query(ctx, key, copyID)
	if err != nil {
		return Copy{}, asTransactionFailure(key.String(), err)
	}

	if len(rows) == 0 {
		return Copy{}, ErrCopyNotFound
	}

	row := rows[0]
	id, idErr := row.Int64(0)
	mediaID, mediaErr := row.Int64(1)
	isBorrowed, flagErr := row.Bool(2)

	if err = firstError(idErr, mediaErr, flagErr); err != nil {
		return Copy{}, NewTransactionFailure(key.String(), "", err)
	}

	return Copy{ID: id, MediaID: mediaID, IsBorrowed: isBorrowed}, nil
}

func reservationFromRow(row Row) (Reservation, error) {
	id, idErr := row.Int64(0)
	copyID, copyErr := row.Int64(1)
	mediaID, mediaErr := row.Int64(2)
	customerID, customerErr := row.Int64(3)
	pickupDueDate, dateErr := row.Time(4)

	if err := firstError(idErr, copyErr, mediaErr, customerErr, dateErr); err != nil {
		return Reservation{}, err
	}

	return Reservation{
		ID:            id,
		CopyID:        copyID,
		MediaID:       mediaID,
		CustomerID:    customerID,
		PickupDueDate: Day(pickupDueDate),
	}, nil
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}

	return nil
}
