package circulation

import (
	"context"
	"fmt"
	"time"
)

// ReturnManager closes borrows and records the return.
type ReturnManager struct {
	availability Availability
}

// ReturnTitle performs the three ordered steps of a return:
//  1. close the open borrow of the copy
//  2. clear the borrowed flag of the copy
//  3. record the return row (copy, media, returning customer)
//
// Step 2 is not attempted when step 1 finds no open borrow. All steps belong to the
// transaction of x, which the caller rolls back on any error.
func (ReturnManager) ReturnTitle(ctx context.Context, x Executor, request ReturnRequest, now time.Time) (ReturnReceipt, error) {
	if err := request.Validate(); err != nil {
		return ReturnReceipt{}, err
	}

	rows, err := x.Query(ctx, StmtCloseOpenBorrow, request.CopyID, now)
	if err != nil {
		return ReturnReceipt{}, asTransactionFailure(StmtCloseOpenBorrow.String(), err)
	}

	if len(rows) == 0 {
		return ReturnReceipt{}, ErrNoOpenBorrow
	}

	if len(rows) > 1 {
		return ReturnReceipt{}, fmt.Errorf("%w: copy %d had %d open borrows", ErrCopyStateInconsistent, request.CopyID, len(rows))
	}

	borrowID, idErr := rows[0].Int64(0)
	borrowerID, borrowerErr := rows[0].Int64(1)

	if err = firstError(idErr, borrowerErr); err != nil {
		return ReturnReceipt{}, NewTransactionFailure(StmtCloseOpenBorrow.String(), "", err)
	}

	affected, err := x.Exec(ctx, StmtSetCopyBorrowStatus, false, request.CopyID)
	if err != nil {
		return ReturnReceipt{}, asTransactionFailure(StmtSetCopyBorrowStatus.String(), err)
	}

	if affected != 1 {
		return ReturnReceipt{}, fmt.Errorf("%w: copy %d had an open borrow but was not flagged", ErrCopyStateInconsistent, request.CopyID)
	}

	metadata, err := BuildActionMetadata(request.ActionID, request.ActionType()).JSON()
	if err != nil {
		return ReturnReceipt{}, NewTransactionFailure(StmtRecordReturn.String(), "", err)
	}

	affected, err = x.Exec(
		ctx,
		StmtRecordReturn,
		borrowID,
		request.CopyID,
		request.MediaID,
		request.CustomerID,
		now,
		metadata,
	)
	if err != nil {
		return ReturnReceipt{}, asTransactionFailure(StmtRecordReturn.String(), err)
	}

	if affected != 1 {
		return ReturnReceipt{}, NewTransactionFailure(
			StmtRecordReturn.String(),
			"",
			fmt.Errorf("%w: recording the return affected %d rows", ErrUnexpectedRowShape, affected),
		)
	}

	return ReturnReceipt{
		BorrowID:   borrowID,
		CopyID:     request.CopyID,
		MediaID:    request.MediaID,
		CustomerID: request.CustomerID,
		BorrowerID: borrowerID,
		ReturnedAt: now,
	}, nil
}

// CheckPreconditions verifies that the copy has an open borrow.
func (m ReturnManager) CheckPreconditions(ctx context.Context, q QueryExecutor, request ReturnRequest) error {
	open, err := m.availability.HasOpenBorrow(ctx, q, request.CopyID)
	if err != nil {
		return err
	}

	if !open {
		return ErrNoOpenBorrow
	}

	return nil
}
