package circulation

import (
	"errors"
	"fmt"
)

// ErrPreconditionFailed classifies all failures of business preconditions.
// They are reported to the user, the transaction is rolled back, nothing is retried.
var ErrPreconditionFailed = errors.New("precondition failed")

// ErrTransactionFailed classifies failures where the store rejected a statement or the transaction itself.
var ErrTransactionFailed = errors.New("transaction failed")

var (
	ErrAgeCheckFailed         = fmt.Errorf("%w: customer does not meet the age rating of the media", ErrPreconditionFailed)
	ErrCopyNotFound           = fmt.Errorf("%w: copy does not exist", ErrPreconditionFailed)
	ErrCopyNotReservable      = fmt.Errorf("%w: copy is not available for reservation", ErrPreconditionFailed)
	ErrCopyNotBorrowable      = fmt.Errorf("%w: copy is not available for borrowing", ErrPreconditionFailed)
	ErrNoReservationForPickup = fmt.Errorf("%w: no reservation available for pickup today", ErrPreconditionFailed)
	ErrNoOpenBorrow           = fmt.Errorf("%w: copy has no open borrow to return", ErrPreconditionFailed)
	ErrPickupDateInPast       = fmt.Errorf("%w: pickup due date lies in the past", ErrPreconditionFailed)
	ErrReturnDateInPast       = fmt.Errorf("%w: estimated return date lies in the past", ErrPreconditionFailed)
	ErrInvalidRequest         = fmt.Errorf("%w: invalid request", ErrPreconditionFailed)
)

// ErrCopyStateInconsistent means the borrowed flag of a copy disagrees with its borrow records.
var ErrCopyStateInconsistent = fmt.Errorf("%w: copy borrow flag disagrees with borrow records", ErrTransactionFailed)

// ErrActionAborted is returned when the actor aborts while secondary input is collected. No writes happened.
var ErrActionAborted = errors.New("action aborted")

// ErrRollbackFailed marks a rollback the store could not complete. It is joined to the error that caused it.
var ErrRollbackFailed = errors.New("rollback failed")

var ErrUnsupportedLookup = errors.New("lookup criterion is not supported in this scope")
var ErrUnexpectedRowShape = errors.New("unexpected row shape")
var ErrNilDatabaseConnection = errors.New("database connection must not be nil")
var ErrInvalidIsolationLevel = errors.New("invalid isolation level")
var ErrNilClock = errors.New("clock must not be nil")

// TransactionFailure wraps an error of the underlying store together with its diagnostic code.
// For PostgreSQL the code is the SQLSTATE, e.g. "23505" for a unique violation.
type TransactionFailure struct {
	Op   string
	Code string
	Err  error
}

// NewTransactionFailure wraps err unless it already is a TransactionFailure.
func NewTransactionFailure(op, code string, err error) error {
	if err == nil {
		return nil
	}

	var existing *TransactionFailure
	if errors.As(err, &existing) {
		return err
	}

	return &TransactionFailure{Op: op, Code: code, Err: err}
}

func (e *TransactionFailure) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("%s: %s: %v", ErrTransactionFailed, e.Op, e.Err)
	}

	return fmt.Sprintf("%s: %s (code %s): %v", ErrTransactionFailed, e.Op, e.Code, e.Err)
}

// Unwrap exposes both the classification sentinel and the cause to errors.Is and errors.As.
func (e *TransactionFailure) Unwrap() []error {
	return []error{ErrTransactionFailed, e.Err}
}

// DiagnosticCode returns the store diagnostic code carried by err, or "" if there is none.
func DiagnosticCode(err error) string {
	var failure *TransactionFailure
	if errors.As(err, &failure) {
		return failure.Code
	}

	return ""
}

// IsSerializationFailure reports whether err was caused by a serialization failure or a deadlock,
// the only store errors where running the same action again can succeed.
func IsSerializationFailure(err error) bool {
	switch DiagnosticCode(err) {
	case "40001", "40P01":
		return true
	default:
		return false
	}
}

// asTransactionFailure classifies an executor error. Precondition failures and aborts pass through.
func asTransactionFailure(op string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrPreconditionFailed) || errors.Is(err, ErrTransactionFailed) || errors.Is(err, ErrActionAborted) {
		return err
	}

	return NewTransactionFailure(op, "", err)
}

// PreconditionReason returns a stable, low-cardinality label for a precondition failure.
func PreconditionReason(err error) string {
	switch {
	case errors.Is(err, ErrAgeCheckFailed):
		return "age_check_failed"
	case errors.Is(err, ErrCopyNotFound):
		return "copy_not_found"
	case errors.Is(err, ErrCopyNotReservable):
		return "copy_not_reservable"
	case errors.Is(err, ErrCopyNotBorrowable):
		return "copy_not_borrowable"
	case errors.Is(err, ErrNoReservationForPickup):
		return "no_reservation_for_pickup"
	case errors.Is(err, ErrNoOpenBorrow):
		return "no_open_borrow"
	case errors.Is(err, ErrPickupDateInPast), errors.Is(err, ErrReturnDateInPast):
		return "date_in_past"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, ErrPreconditionFailed):
		return "other"
	default:
		return ""
	}
}
