package circulation

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	ActionTypeReserve = "Reserve"
	ActionTypeBorrow  = "Borrow"
	ActionTypeReturn  = "Return"
)

// Request is a fully assembled user action. It is built before any manager call,
// so no manager depends on state collected across earlier prompts.
type Request interface {
	ActionType() string
	Validate() error
}

// ReserveRequest asks for a reservation of a copy to be picked up until PickupDueDate.
type ReserveRequest struct {
	ActionID      uuid.UUID
	CopyID        CopyID
	MediaID       MediaID
	CustomerID    CustomerID
	PickupDueDate time.Time
}

// BuildReserveRequest creates a ReserveRequest with a fresh action ID.
func BuildReserveRequest(copyID CopyID, mediaID MediaID, customerID CustomerID, pickupDueDate time.Time) ReserveRequest {
	return ReserveRequest{
		ActionID:      newActionID(),
		CopyID:        copyID,
		MediaID:       mediaID,
		CustomerID:    customerID,
		PickupDueDate: Day(pickupDueDate),
	}
}

func (r ReserveRequest) ActionType() string {
	return ActionTypeReserve
}

func (r ReserveRequest) Validate() error {
	return errors.Join(
		requirePositive("copyID", r.CopyID),
		requirePositive("mediaID", r.MediaID),
		requirePositive("customerID", r.CustomerID),
		requireDate("pickupDueDate", r.PickupDueDate),
	)
}

// BorrowRequest asks for a copy to be lent to a customer.
// A walk-in borrow has BasedOnReservation false and no ReservationID.
type BorrowRequest struct {
	ActionID            uuid.UUID
	CopyID              CopyID
	MediaID             MediaID
	CustomerID          CustomerID
	EstimatedReturnDate time.Time
	BasedOnReservation  bool
	ReservationID       ReservationID
}

// BuildWalkInBorrowRequest creates a BorrowRequest that does not consume a reservation.
func BuildWalkInBorrowRequest(
	copyID CopyID,
	mediaID MediaID,
	customerID CustomerID,
	estimatedReturnDate time.Time,
) BorrowRequest {
	return BorrowRequest{
		ActionID:            newActionID(),
		CopyID:              copyID,
		MediaID:             mediaID,
		CustomerID:          customerID,
		EstimatedReturnDate: Day(estimatedReturnDate),
	}
}

// BuildReservationBorrowRequest creates a BorrowRequest that consumes the given reservation.
func BuildReservationBorrowRequest(
	reservationID ReservationID,
	copyID CopyID,
	mediaID MediaID,
	customerID CustomerID,
	estimatedReturnDate time.Time,
) BorrowRequest {
	request := BuildWalkInBorrowRequest(copyID, mediaID, customerID, estimatedReturnDate)
	request.BasedOnReservation = true
	request.ReservationID = reservationID

	return request
}

func (r BorrowRequest) ActionType() string {
	return ActionTypeBorrow
}

func (r BorrowRequest) Validate() error {
	var reservationErr error

	switch {
	case r.BasedOnReservation && r.ReservationID <= 0:
		reservationErr = fmt.Errorf("%w: borrow based on a reservation needs a reservationID", ErrInvalidRequest)
	case !r.BasedOnReservation && r.ReservationID != 0:
		reservationErr = fmt.Errorf("%w: walk-in borrow must not reference a reservation", ErrInvalidRequest)
	}

	return errors.Join(
		requirePositive("copyID", r.CopyID),
		requirePositive("mediaID", r.MediaID),
		requirePositive("customerID", r.CustomerID),
		requireDate("estimatedReturnDate", r.EstimatedReturnDate),
		reservationErr,
	)
}

// ReturnRequest asks for the open borrow of a copy to be closed.
type ReturnRequest struct {
	ActionID   uuid.UUID
	CopyID     CopyID
	CustomerID CustomerID
	MediaID    MediaID
}

// BuildReturnRequest creates a ReturnRequest with a fresh action ID.
func BuildReturnRequest(copyID CopyID, customerID CustomerID, mediaID MediaID) ReturnRequest {
	return ReturnRequest{
		ActionID:   newActionID(),
		CopyID:     copyID,
		CustomerID: customerID,
		MediaID:    mediaID,
	}
}

func (r ReturnRequest) ActionType() string {
	return ActionTypeReturn
}

func (r ReturnRequest) Validate() error {
	return errors.Join(
		requirePositive("copyID", r.CopyID),
		requirePositive("customerID", r.CustomerID),
		requirePositive("mediaID", r.MediaID),
	)
}

func newActionID() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

func requirePositive(field string, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidRequest, field, id)
	}

	return nil
}

func requireDate(field string, date time.Time) error {
	if date.IsZero() {
		return fmt.Errorf("%w: %s is missing", ErrInvalidRequest, field)
	}

	return nil
}
