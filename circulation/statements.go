package circulation

// StatementKey names one parameterized statement of the fixed circulation schema.
// The engine resolves the key to statement text; the core only binds positional parameters.
type StatementKey string

func (k StatementKey) String() string {
	return string(k)
}

// Availability statements.
const (
	// StmtFindCopy params: copyID. Columns: copy_id, media_id, is_borrowed.
	StmtFindCopy StatementKey = "findCopy"

	// StmtLockCopy is StmtFindCopy taking a row lock until the transaction ends.
	StmtLockCopy StatementKey = "lockCopy"

	// StmtCountBlockingState params: copyID, excludedReservationID (0 = none), asOf.
	// Columns: count of blocking facts (borrowed flag, active unconsumed reservations, missing copy).
	StmtCountBlockingState StatementKey = "countBlockingState"

	// StmtCountAgeViolations params: customerID, copyID, asOf. Columns: violation count.
	StmtCountAgeViolations StatementKey = "countAgeViolations"

	// StmtCountOpenBorrows params: copyID. Columns: count.
	StmtCountOpenBorrows StatementKey = "countOpenBorrows"

	// StmtFindPickupReservation params: reservationID, asOf.
	// Columns: reservation_id, copy_id, media_id, customer_id, pickup_due_date.
	// Only unconsumed reservations whose pickup due date is not before asOf qualify.
	StmtFindPickupReservation StatementKey = "findPickupReservation"
)

// Write statements.
const (
	// StmtCreateReservation params: pickupDueDate, copyID, mediaID, customerID, createdAt, metadata.
	// Columns: reservation_id.
	StmtCreateReservation StatementKey = "createReservation"

	// StmtLatestReservationID has no params. Columns: the reservation_id most recently
	// generated in the current session.
	StmtLatestReservationID StatementKey = "latestReservationID"

	// StmtTouchCopy params: copyID. Bumps the row version of the copy, so that transactions
	// that read the copy before this one committed cannot write based on that read.
	StmtTouchCopy StatementKey = "touchCopy"

	// StmtSetCopyBorrowStatus params: isBorrowed, copyID.
	// Affects one row only if the flag currently holds the opposite value.
	StmtSetCopyBorrowStatus StatementKey = "setCopyBorrowStatus"

	// StmtCreateBorrow params: estimatedReturnDate, basedOnReservation, mediaID, copyID, customerID,
	// reservationID (nil for walk-ins), borrowedAt, metadata. Columns: borrow_id.
	StmtCreateBorrow StatementKey = "createBorrow"

	// StmtLatestBorrowID has no params. Columns: the borrow_id most recently generated in the current session.
	StmtLatestBorrowID StatementKey = "latestBorrowID"

	// StmtCloseOpenBorrow params: copyID, returnedAt. Columns: borrow_id, customer_id.
	StmtCloseOpenBorrow StatementKey = "closeOpenBorrow"

	// StmtRecordReturn params: borrowID, copyID, mediaID, customerID, returnedAt, metadata.
	StmtRecordReturn StatementKey = "recordReturn"
)

// Lookup statements. Params: the criterion value, followed by asOf for the reservable and
// borrowable scopes. Columns: copy_id, media_id ordered by copy_id.
const (
	StmtReservableFindByCopyID    StatementKey = "reservableFindByCopyID"
	StmtReservableFindByTitle     StatementKey = "reservableFindByTitle"
	StmtReservableFindByMediaID   StatementKey = "reservableFindByMediaID"
	StmtReservableFindByMediaType StatementKey = "reservableFindByMediaType"

	StmtBorrowableFindByCopyID        StatementKey = "borrowableFindByCopyID"
	StmtBorrowableFindByTitle         StatementKey = "borrowableFindByTitle"
	StmtBorrowableFindByMediaID       StatementKey = "borrowableFindByMediaID"
	StmtBorrowableFindByMediaType     StatementKey = "borrowableFindByMediaType"
	StmtBorrowableFindByReservationID StatementKey = "borrowableFindByReservationID"

	StmtReturnableFindByCopyID    StatementKey = "returnableFindByCopyID"
	StmtReturnableFindByTitle     StatementKey = "returnableFindByTitle"
	StmtReturnableFindByMediaID   StatementKey = "returnableFindByMediaID"
	StmtReturnableFindByMediaType StatementKey = "returnableFindByMediaType"
)

// StatementKeys lists every key an engine has to resolve.
func StatementKeys() []StatementKey {
	return []StatementKey{
		StmtFindCopy,
		StmtLockCopy,
		StmtCountBlockingState,
		StmtCountAgeViolations,
		StmtCountOpenBorrows,
		StmtFindPickupReservation,
		StmtCreateReservation,
		StmtLatestReservationID,
		StmtTouchCopy,
		StmtSetCopyBorrowStatus,
		StmtCreateBorrow,
		StmtLatestBorrowID,
		StmtCloseOpenBorrow,
		StmtRecordReturn,
		StmtReservableFindByCopyID,
		StmtReservableFindByTitle,
		StmtReservableFindByMediaID,
		StmtReservableFindByMediaType,
		StmtBorrowableFindByCopyID,
		StmtBorrowableFindByTitle,
		StmtBorrowableFindByMediaID,
		StmtBorrowableFindByMediaType,
		StmtBorrowableFindByReservationID,
		StmtReturnableFindByCopyID,
		StmtReturnableFindByTitle,
		StmtReturnableFindByMediaID,
		StmtReturnableFindByMediaType,
	}
}
