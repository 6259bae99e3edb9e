package circulation_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-circulation-go/circulation"
	"github.com/AntonStoeckl/library-circulation-go/testutil/memstore"
)

func Test_ReservationManager_CreateReservation_ReturnsTheNewIdentity(t *testing.T) {
	// setup
	lib := seedLibrary()
	manager := circulation.ReservationManager{}
	request := circulation.BuildReserveRequest(lib.bookCopy, lib.bookID, lib.adult, daysFromToday(5))

	var reservation circulation.Reservation
	var latest circulation.ReservationID

	// act
	err := inWriteTx(t, lib.store, func(x circulation.Executor) error {
		var err error
		if reservation, err = manager.CreateReservation(context.Background(), x, request, today); err != nil {
			return err
		}

		latest, err = manager.LatestReservationID(context.Background(), x)

		return err
	})

	// assert
	require.NoError(t, err)
	assert.Positive(t, reservation.ID)
	assert.Equal(t, reservation.ID, latest)
	assert.Equal(t, daysFromToday(5), reservation.PickupDueDate)
	assert.Equal(t, today, reservation.CreatedAt)

	stored := lib.store.Snapshot().Reservations[reservation.ID]
	assert.Equal(t, lib.bookCopy, stored.CopyID)
	assert.Equal(t, lib.bookID, stored.MediaID)
	assert.Equal(t, lib.adult, stored.CustomerID)

	metadata, err := circulation.ParseActionMetadata([]byte(stored.Metadata))
	require.NoError(t, err)
	assert.Equal(t, request.ActionID.String(), metadata.ActionID)
	assert.Equal(t, circulation.ActionTypeReserve, metadata.ActionType)
}

func Test_ReservationManager_CreateReservation_WritesTheCopyRow(t *testing.T) {
	// setup
	lib := seedLibrary()
	request := circulation.BuildReserveRequest(lib.bookCopy, lib.bookID, lib.adult, daysFromToday(5))

	// act
	err := inWriteTx(t, lib.store, func(x circulation.Executor) error {
		_, err := circulation.ReservationManager{}.CreateReservation(context.Background(), x, request, today)
		return err
	})

	// assert
	require.NoError(t, err)
	assert.Equal(t, 1, lib.store.Calls(circulation.StmtTouchCopy))

	copies := lib.store.Snapshot().Copies
	assert.Equal(t, int64(1), copies[lib.bookCopy].Version)
	assert.Zero(t, copies[lib.bookCopy2].Version)
	assert.False(t, copies[lib.bookCopy].IsBorrowed)
}

func Test_ReservationManager_CreateReservation_When_CopyDoesNotExist(t *testing.T) {
	// setup
	lib := seedLibrary()
	request := circulation.BuildReserveRequest(424242, lib.bookID, lib.adult, daysFromToday(5))

	// act
	err := inWriteTx(t, lib.store, func(x circulation.Executor) error {
		_, err := circulation.ReservationManager{}.CreateReservation(context.Background(), x, request, today)
		return err
	})

	// assert
	assert.ErrorIs(t, err, circulation.ErrCopyNotFound)
	assert.Equal(t, 0, lib.store.Calls(circulation.StmtCreateReservation))
	assert.Empty(t, lib.store.Snapshot().Reservations)
}

func Test_ReservationManager_LatestReservationID_When_NothingWasInsertedInTheSession(t *testing.T) {
	// setup
	lib := seedLibrary()
	lib.store.AddReservation(lib.bookCopy, lib.adult, daysFromToday(1))

	// act
	err := inWriteTx(t, lib.store, func(x circulation.Executor) error {
		_, err := circulation.ReservationManager{}.LatestReservationID(context.Background(), x)
		return err
	})

	// assert
	assert.ErrorIs(t, err, circulation.ErrTransactionFailed)
	assert.Equal(t, "55000", circulation.DiagnosticCode(err))
}

func Test_ReservationManager_CheckPreconditions(t *testing.T) {
	tests := []struct {
		name    string
		request func(lib library) circulation.ReserveRequest
		wantErr error
	}{
		{
			name: "free copy",
			request: func(lib library) circulation.ReserveRequest {
				return circulation.BuildReserveRequest(lib.bookCopy, lib.bookID, lib.adult, daysFromToday(1))
			},
		},
		{
			name: "pickup date not collected yet",
			request: func(lib library) circulation.ReserveRequest {
				return circulation.ReserveRequest{CopyID: lib.bookCopy, MediaID: lib.bookID, CustomerID: lib.adult}
			},
		},
		{
			name: "pickup date in the past",
			request: func(lib library) circulation.ReserveRequest {
				return circulation.BuildReserveRequest(lib.bookCopy, lib.bookID, lib.adult, daysFromToday(-1))
			},
			wantErr: circulation.ErrPickupDateInPast,
		},
		{
			name: "too young",
			request: func(lib library) circulation.ReserveRequest {
				return circulation.BuildReserveRequest(lib.movieCopy, lib.movieID, lib.teen, daysFromToday(1))
			},
			wantErr: circulation.ErrAgeCheckFailed,
		},
		{
			name: "already reserved",
			request: func(lib library) circulation.ReserveRequest {
				lib.store.AddReservation(lib.bookCopy, lib.other, daysFromToday(2))
				return circulation.BuildReserveRequest(lib.bookCopy, lib.bookID, lib.adult, daysFromToday(1))
			},
			wantErr: circulation.ErrCopyNotReservable,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// setup
			lib := seedLibrary()
			request := tc.request(lib)

			// act & assert
			inReadTx(t, lib.store, func(x circulation.Executor) error {
				err := circulation.ReservationManager{}.CheckPreconditions(context.Background(), x, request, today)
				if tc.wantErr == nil {
					assert.NoError(t, err)
				} else {
					assert.ErrorIs(t, err, tc.wantErr)
					assert.ErrorIs(t, err, circulation.ErrPreconditionFailed)
				}

				return nil
			})
		})
	}
}

func Test_BorrowManager_CreateBorrow_When_WalkIn(t *testing.T) {
	// setup
	lib := seedLibrary()
	request := circulation.BuildWalkInBorrowRequest(lib.bookCopy, lib.bookID, lib.adult, daysFromToday(14))

	var borrow circulation.Borrow
	var latest circulation.BorrowID

	// act
	err := inWriteTx(t, lib.store, func(x circulation.Executor) error {
		var err error
		if borrow, err = (circulation.BorrowManager{}).CreateBorrow(context.Background(), x, request, today); err != nil {
			return err
		}

		latest, err = circulation.BorrowManager{}.LatestBorrowID(context.Background(), x)

		return err
	})

	// assert
	require.NoError(t, err)
	assert.Equal(t, borrow.ID, latest)
	assert.False(t, borrow.BasedOnReservation)
	assert.Zero(t, borrow.ReservationID)

	state := lib.store.Snapshot()
	assert.True(t, state.Copies[lib.bookCopy].IsBorrowed)
	assert.Len(t, state.Borrows, 1)
	assert.Zero(t, state.Borrows[borrow.ID].ReservationID, "walk-in borrows never link a reservation")
	assert.Equal(t, daysFromToday(14), state.Borrows[borrow.ID].EstimatedReturnDate)
}

func Test_BorrowManager_CreateBorrow_When_BasedOnReservation(t *testing.T) {
	// setup
	lib := seedLibrary()
	reservationID := lib.store.AddReservation(lib.bookCopy, lib.adult, daysFromToday(1))
	request := circulation.BuildReservationBorrowRequest(reservationID, lib.bookCopy, lib.bookID, lib.adult, daysFromToday(14))

	var borrow circulation.Borrow

	// act
	err := inWriteTx(t, lib.store, func(x circulation.Executor) error {
		var err error
		borrow, err = circulation.BorrowManager{}.CreateBorrow(context.Background(), x, request, today)

		return err
	})

	// assert
	require.NoError(t, err)
	assert.True(t, borrow.BasedOnReservation)
	assert.Equal(t, reservationID, borrow.ReservationID)

	state := lib.store.Snapshot()
	assert.Equal(t, reservationID, state.Borrows[borrow.ID].ReservationID)
	assert.Equal(t, state.Reservations[reservationID].CopyID, state.Borrows[borrow.ID].CopyID)
}

func Test_BorrowManager_CreateBorrow_Fails_Without_QualifyingReservation(t *testing.T) {
	tests := []struct {
		name    string
		request func(lib library) circulation.BorrowRequest
	}{
		{
			name: "reservation does not exist",
			request: func(lib library) circulation.BorrowRequest {
				return circulation.BuildReservationBorrowRequest(9999, lib.bookCopy, lib.bookID, lib.adult, daysFromToday(14))
			},
		},
		{
			name: "reservation expired",
			request: func(lib library) circulation.BorrowRequest {
				id := lib.store.AddReservation(lib.bookCopy, lib.adult, daysFromToday(-1))
				return circulation.BuildReservationBorrowRequest(id, lib.bookCopy, lib.bookID, lib.adult, daysFromToday(14))
			},
		},
		{
			name: "reservation for another copy",
			request: func(lib library) circulation.BorrowRequest {
				id := lib.store.AddReservation(lib.bookCopy2, lib.adult, daysFromToday(1))
				return circulation.BuildReservationBorrowRequest(id, lib.bookCopy, lib.bookID, lib.adult, daysFromToday(14))
			},
		},
		{
			name: "reservation of another customer",
			request: func(lib library) circulation.BorrowRequest {
				id := lib.store.AddReservation(lib.bookCopy, lib.other, daysFromToday(1))
				return circulation.BuildReservationBorrowRequest(id, lib.bookCopy, lib.bookID, lib.adult, daysFromToday(14))
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// setup
			lib := seedLibrary()
			request := tc.request(lib)
			before := lib.store.Snapshot()

			// act
			err := inWriteTx(t, lib.store, func(x circulation.Executor) error {
				_, err := circulation.BorrowManager{}.CreateBorrow(context.Background(), x, request, today)
				return err
			})

			// assert
			assert.ErrorIs(t, err, circulation.ErrNoReservationForPickup)
			assert.ErrorIs(t, err, circulation.ErrPreconditionFailed)
			assert.Equal(t, before, lib.store.Snapshot())
			assert.Zero(t, lib.store.Calls(circulation.StmtCreateBorrow))
		})
	}
}

func Test_BorrowManager_CreateBorrow_Fails_When_CopyIsAlreadyBorrowed(t *testing.T) {
	// setup
	lib := seedLibrary()
	desk := newDesk(t, lib.store)
	_, err := desk.Borrow(context.Background(), circulation.BuildWalkInBorrowRequest(lib.bookCopy, lib.bookID, lib.adult, daysFromToday(7)))
	require.NoError(t, err)

	before := lib.store.Snapshot()

	// act
	err = inWriteTx(t, lib.store, func(x circulation.Executor) error {
		request := circulation.BuildWalkInBorrowRequest(lib.bookCopy, lib.bookID, lib.other, daysFromToday(7))
		_, err := circulation.BorrowManager{}.CreateBorrow(context.Background(), x, request, today)

		return err
	})

	// assert
	assert.ErrorIs(t, err, circulation.ErrCopyNotBorrowable)
	assert.Equal(t, before, lib.store.Snapshot())
	assert.Len(t, lib.store.Snapshot().Borrows, 1)
}

func Test_BorrowManager_CreateBorrow_Fails_BeforeAnyWrite_When_CustomerIsTooYoung(t *testing.T) {
	// setup
	lib := seedLibrary()
	request := circulation.BuildWalkInBorrowRequest(lib.movieCopy, lib.movieID, lib.teen, daysFromToday(7))

	// act
	err := inWriteTx(t, lib.store, func(x circulation.Executor) error {
		_, err := circulation.BorrowManager{}.CreateBorrow(context.Background(), x, request, today)
		return err
	})

	// assert
	assert.ErrorIs(t, err, circulation.ErrAgeCheckFailed)
	assert.Zero(t, lib.store.Calls(circulation.StmtSetCopyBorrowStatus))
	assert.Zero(t, lib.store.Calls(circulation.StmtCreateBorrow))
}

func Test_BorrowManager_CreateBorrow_RollsBack_When_InsertFails(t *testing.T) {
	// setup
	lib := seedLibrary()
	lib.store.FailOn(circulation.StmtCreateBorrow, assert.AnError)
	before := lib.store.Snapshot()
	request := circulation.BuildWalkInBorrowRequest(lib.bookCopy, lib.bookID, lib.adult, daysFromToday(7))

	// act
	err := inWriteTx(t, lib.store, func(x circulation.Executor) error {
		_, err := circulation.BorrowManager{}.CreateBorrow(context.Background(), x, request, today)
		return err
	})

	// assert
	assert.ErrorIs(t, err, circulation.ErrTransactionFailed)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, lib.store.Calls(circulation.StmtSetCopyBorrowStatus), "the flag was flipped before the insert failed")
	assert.Equal(t, before, lib.store.Snapshot())
}

func Test_ReturnManager_ReturnTitle(t *testing.T) {
	// setup
	lib := seedLibrary()
	desk := newDesk(t, lib.store)
	borrow, err := desk.Borrow(context.Background(), circulation.BuildWalkInBorrowRequest(lib.bookCopy, lib.bookID, lib.adult, daysFromToday(7)))
	require.NoError(t, err)

	var receipt circulation.ReturnReceipt

	// act
	err = inWriteTx(t, lib.store, func(x circulation.Executor) error {
		var err error
		receipt, err = circulation.ReturnManager{}.ReturnTitle(
			context.Background(),
			x,
			circulation.BuildReturnRequest(lib.bookCopy, lib.other, lib.bookID),
			today,
		)

		return err
	})

	// assert
	require.NoError(t, err)
	assert.Equal(t, borrow.ID, receipt.BorrowID)
	assert.Equal(t, lib.adult, receipt.BorrowerID)
	assert.Equal(t, lib.other, receipt.CustomerID)

	state := lib.store.Snapshot()
	assert.False(t, state.Copies[lib.bookCopy].IsBorrowed)
	assert.Equal(t, today, state.Borrows[borrow.ID].ReturnedAt)
	require.Len(t, state.Returns, 1)

	for _, recorded := range state.Returns {
		assert.Equal(t, borrow.ID, recorded.BorrowID)
		assert.Equal(t, lib.other, recorded.CustomerID)
		assert.Equal(t, lib.bookID, recorded.MediaID)
	}
}

func Test_ReturnManager_ReturnTitle_When_NoOpenBorrow(t *testing.T) {
	// setup
	lib := seedLibrary()

	// act
	err := inWriteTx(t, lib.store, func(x circulation.Executor) error {
		_, err := circulation.ReturnManager{}.ReturnTitle(
			context.Background(),
			x,
			circulation.BuildReturnRequest(lib.bookCopy, lib.adult, lib.bookID),
			today,
		)

		return err
	})

	// assert
	assert.ErrorIs(t, err, circulation.ErrNoOpenBorrow)
	assert.Zero(t, lib.store.Calls(circulation.StmtSetCopyBorrowStatus), "the flag must not be touched without an open borrow")
	assert.Zero(t, lib.store.Calls(circulation.StmtRecordReturn))
}

func Test_ReturnManager_ReturnTitle_RollsBack_When_AnyStepFails(t *testing.T) {
	for _, key := range []circulation.StatementKey{
		circulation.StmtCloseOpenBorrow,
		circulation.StmtSetCopyBorrowStatus,
		circulation.StmtRecordReturn,
	} {
		t.Run(key.String(), func(t *testing.T) {
			// setup
			lib := seedLibrary()
			desk := newDesk(t, lib.store)
			_, err := desk.Borrow(context.Background(), circulation.BuildWalkInBorrowRequest(lib.bookCopy, lib.bookID, lib.adult, daysFromToday(7)))
			require.NoError(t, err)

			before := lib.store.Snapshot()
			lib.store.FailOn(key, memstore.SerializationFailure(key.String()))

			// act
			err = inWriteTx(t, lib.store, func(x circulation.Executor) error {
				_, err := circulation.ReturnManager{}.ReturnTitle(
					context.Background(),
					x,
					circulation.BuildReturnRequest(lib.bookCopy, lib.adult, lib.bookID),
					today,
				)

				return err
			})

			// assert
			assert.ErrorIs(t, err, circulation.ErrTransactionFailed)
			assert.Equal(t, "40001", circulation.DiagnosticCode(err))
			assert.Equal(t, before, lib.store.Snapshot())
		})
	}
}

func Test_ReturnManager_CheckPreconditions(t *testing.T) {
	// setup
	lib := seedLibrary()
	desk := newDesk(t, lib.store)
	_, err := desk.Borrow(context.Background(), circulation.BuildWalkInBorrowRequest(lib.bookCopy, lib.bookID, lib.adult, daysFromToday(7)))
	require.NoError(t, err)

	// act & assert
	inReadTx(t, lib.store, func(x circulation.Executor) error {
		err := circulation.ReturnManager{}.CheckPreconditions(context.Background(), x, circulation.BuildReturnRequest(lib.bookCopy, lib.adult, lib.bookID))
		assert.NoError(t, err)

		err = circulation.ReturnManager{}.CheckPreconditions(context.Background(), x, circulation.BuildReturnRequest(lib.bookCopy2, lib.adult, lib.bookID))
		assert.ErrorIs(t, err, circulation.ErrNoOpenBorrow)

		return nil
	})
}
