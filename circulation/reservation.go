package circulation

import (
	"context"
	"fmt"
	"time"
)

// ReservationManager creates reservation records.
type ReservationManager struct {
	availability Availability
}

// CreateReservation touches the copy row, inserts the reservation and returns it with its new identity.
// It does not check any precondition: callers run the age check and IsReservable
// inside the same transaction right before calling it.
//
// The copy row is written although a reservation does not change it, so a concurrent
// reservation of the same copy under REPEATABLE READ fails with a serialization failure.
func (ReservationManager) CreateReservation(
	ctx context.Context,
	x Executor,
	request ReserveRequest,
	now time.Time,
) (Reservation, error) {
	if err := request.Validate(); err != nil {
		return Reservation{}, err
	}

	touched, err := x.Exec(ctx, StmtTouchCopy, request.CopyID)
	if err != nil {
		return Reservation{}, asTransactionFailure(StmtTouchCopy.String(), err)
	}

	if touched != 1 {
		return Reservation{}, fmt.Errorf("%w: copy %d", ErrCopyNotFound, request.CopyID)
	}

	metadata, err := BuildActionMetadata(request.ActionID, request.ActionType()).JSON()
	if err != nil {
		return Reservation{}, NewTransactionFailure(StmtCreateReservation.String(), "", err)
	}

	row, err := querySingle(
		ctx,
		x,
		StmtCreateReservation,
		Day(request.PickupDueDate),
		request.CopyID,
		request.MediaID,
		request.CustomerID,
		now,
		metadata,
	)
	if err != nil {
		return Reservation{}, err
	}

	id, err := row.Int64(0)
	if err != nil {
		return Reservation{}, NewTransactionFailure(StmtCreateReservation.String(), "", err)
	}

	return Reservation{
		ID:            id,
		CopyID:        request.CopyID,
		MediaID:       request.MediaID,
		CustomerID:    request.CustomerID,
		PickupDueDate: Day(request.PickupDueDate),
		CreatedAt:     now,
	}, nil
}

// CheckPreconditions runs the age check and the reservable predicate for the request.
// A pickup due date that is not collected yet is not checked.
func (m ReservationManager) CheckPreconditions(ctx context.Context, q QueryExecutor, request ReserveRequest, asOf time.Time) error {
	if !request.PickupDueDate.IsZero() && Day(request.PickupDueDate).Before(Day(asOf)) {
		return ErrPickupDateInPast
	}

	passes, err := m.availability.PassesAgeCheck(ctx, q, request.CustomerID, request.CopyID, asOf)
	if err != nil {
		return err
	}

	if !passes {
		return ErrAgeCheckFailed
	}

	reservable, err := m.availability.IsReservable(ctx, q, request.CopyID, asOf)
	if err != nil {
		return err
	}

	if !reservable {
		return ErrCopyNotReservable
	}

	return nil
}

// LatestReservationID returns the identity generated by the last reservation insert of the
// current session. It must be called within the transaction that created the reservation;
// prefer the identity CreateReservation returns.
func (ReservationManager) LatestReservationID(ctx context.Context, q QueryExecutor) (ReservationID, error) {
	return queryScalar(ctx, q, StmtLatestReservationID)
}
