package circulation_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-circulation-go/circulation"
	"github.com/AntonStoeckl/library-circulation-go/testutil/memstore"
	"github.com/AntonStoeckl/library-circulation-go/testutil/spies"
)

func Test_Desk_Logs_CompletedAction(t *testing.T) {
	// setup
	lib := seedLibrary()
	logHandler := spies.NewLogHandlerSpy(false)
	desk := newDesk(t, lib.store, circulation.WithLogger(slog.New(logHandler)))

	// act
	_, err := desk.Borrow(context.Background(), circulation.BuildWalkInBorrowRequest(lib.bookCopy, lib.bookID, lib.adult, daysFromToday(7)))
	require.NoError(t, err)

	// assert
	assert.True(t, logHandler.HasInfoLog("circulation action started").
		WithAttr(circulation.LogAttrActionType, circulation.ActionTypeBorrow).
		WithAttr(circulation.LogAttrIsolation, "serializable").
		WithKey(circulation.LogAttrActionID).
		Assert())

	assert.True(t, logHandler.HasInfoLog("circulation action completed").
		WithAttr(circulation.LogAttrStatus, circulation.StatusSuccess).
		WithDurationMS().
		Assert())
}

func Test_Desk_Logs_RejectedAction(t *testing.T) {
	// setup
	lib := seedLibrary()
	logger := spies.NewContextualLoggerSpy()
	desk := newDesk(t, lib.store, circulation.WithContextualLogger(logger))

	// act
	_, err := desk.Return(context.Background(), circulation.BuildReturnRequest(lib.bookCopy, lib.adult, lib.bookID))
	require.ErrorIs(t, err, circulation.ErrNoOpenBorrow)

	// assert
	rejected, found := logger.Find("info", "circulation action rejected")
	require.True(t, found)

	status, _ := rejected.Arg(circulation.LogAttrStatus)
	assert.Equal(t, circulation.StatusPrecondition, status)

	_, isError := logger.Find("error", "circulation action failed")
	assert.False(t, isError, "precondition failures are no errors")
}

func Test_Desk_Logs_FailedAction_WithDiagnosticCode(t *testing.T) {
	// setup
	lib := seedLibrary()
	logHandler := spies.NewLogHandlerSpy(false)
	desk := newDesk(t, lib.store, circulation.WithLogger(slog.New(logHandler)))
	lib.store.FailOn(circulation.StmtCreateReservation, memstore.SerializationFailure("createReservation"))

	// act
	_, err := desk.Reserve(context.Background(), circulation.BuildReserveRequest(lib.bookCopy, lib.bookID, lib.adult, daysFromToday(1)))
	require.Error(t, err)

	// assert
	assert.True(t, logHandler.HasErrorLog("circulation action failed").
		WithAttr(circulation.LogAttrActionType, circulation.ActionTypeReserve).
		WithAttr(circulation.LogAttrDiagnosticCode, "40001").
		WithKey(circulation.LogAttrError).
		Assert())
}

func Test_Desk_Logs_RollbackFailure_AtWarnLevel(t *testing.T) {
	// setup
	lib := seedLibrary()
	logHandler := spies.NewLogHandlerSpy(false)
	desk := newDesk(t, lib.store, circulation.WithLogger(slog.New(logHandler)))
	lib.store.FailOn(circulation.StmtCreateReservation, memstore.SerializationFailure("createReservation"))
	lib.store.FailRollback(assert.AnError)

	// act
	_, err := desk.Reserve(context.Background(), circulation.BuildReserveRequest(lib.bookCopy, lib.bookID, lib.adult, daysFromToday(1)))

	// assert
	require.ErrorIs(t, err, circulation.ErrRollbackFailed)
	assert.True(t, logHandler.HasLog(slog.LevelWarn, "circulation rollback failed").
		WithAttr(circulation.LogAttrActionType, circulation.ActionTypeReserve).
		WithKey(circulation.LogAttrError).
		Assert())
	assert.True(t, logHandler.HasErrorLog("circulation action failed").Assert())
}

func Test_Desk_DoesNotLogAWarning_When_RollbackSucceeds(t *testing.T) {
	// setup
	lib := seedLibrary()
	logger := spies.NewContextualLoggerSpy()
	desk := newDesk(t, lib.store, circulation.WithContextualLogger(logger))
	lib.store.FailOn(circulation.StmtCreateReservation, memstore.SerializationFailure("createReservation"))

	// act
	_, err := desk.Reserve(context.Background(), circulation.BuildReserveRequest(lib.bookCopy, lib.bookID, lib.adult, daysFromToday(1)))

	// assert
	require.Error(t, err)
	assert.NotErrorIs(t, err, circulation.ErrRollbackFailed)

	_, warned := logger.Find("warn", "circulation rollback failed")
	assert.False(t, warned)
}

func Test_Desk_Logs_AbortedAction(t *testing.T) {
	// setup
	lib := seedLibrary()
	logger := spies.NewContextualLoggerSpy()
	desk := newDesk(t, lib.store, circulation.WithContextualLogger(logger))

	// act
	_, err := desk.ReserveInteractively(
		context.Background(),
		circulation.ReserveRequest{CopyID: lib.bookCopy, MediaID: lib.bookID, CustomerID: lib.adult},
		func(_ context.Context, r circulation.ReserveRequest) (circulation.ReserveRequest, error) {
			return r, circulation.ErrActionAborted
		},
	)
	require.ErrorIs(t, err, circulation.ErrActionAborted)

	// assert
	aborted, found := logger.Find("info", "circulation action aborted")
	require.True(t, found)

	status, _ := aborted.Arg(circulation.LogAttrStatus)
	assert.Equal(t, circulation.StatusAborted, status)
}

func Test_Desk_RecordsMetrics(t *testing.T) {
	// setup
	lib := seedLibrary()
	metrics := spies.NewMetricsCollectorSpy()
	desk := newDesk(t, lib.store, circulation.WithMetrics(metrics))

	// act
	_, err := desk.Borrow(context.Background(), circulation.BuildWalkInBorrowRequest(lib.bookCopy, lib.bookID, lib.adult, daysFromToday(7)))
	require.NoError(t, err)

	_, err = desk.Borrow(context.Background(), circulation.BuildWalkInBorrowRequest(lib.bookCopy, lib.bookID, lib.other, daysFromToday(7)))
	require.Error(t, err)

	lib.store.FailOn(circulation.StmtCloseOpenBorrow, memstore.SerializationFailure("closeOpenBorrow"))
	_, err = desk.Return(context.Background(), circulation.BuildReturnRequest(lib.bookCopy, lib.adult, lib.bookID))
	require.Error(t, err)

	// assert
	durations := metrics.Durations(circulation.ActionDurationMetric)
	assert.Len(t, durations, 3)

	assert.True(t, metrics.HasCounter(circulation.ActionCallsMetric, map[string]string{
		circulation.LogAttrActionType: circulation.ActionTypeBorrow,
		circulation.LogAttrStatus:     circulation.StatusSuccess,
	}))
	assert.True(t, metrics.HasCounter(circulation.ActionCallsMetric, map[string]string{
		circulation.LogAttrActionType: circulation.ActionTypeBorrow,
		circulation.LogAttrStatus:     circulation.StatusPrecondition,
	}))
	assert.True(t, metrics.HasCounter(circulation.PreconditionFailuresMetric, map[string]string{
		circulation.LogAttrActionType: circulation.ActionTypeBorrow,
		circulation.LogAttrReason:     "copy_not_borrowable",
	}))
	assert.True(t, metrics.HasCounter(circulation.TransactionFailuresMetric, map[string]string{
		circulation.LogAttrActionType:     circulation.ActionTypeReturn,
		circulation.LogAttrDiagnosticCode: "40001",
	}))
	assert.Zero(t, metrics.ContextualCalls())
}

func Test_Desk_PrefersContextualMetrics(t *testing.T) {
	// setup
	lib := seedLibrary()
	metrics := spies.NewContextualMetricsCollectorSpy()
	desk := newDesk(t, lib.store, circulation.WithMetrics(metrics))

	// act
	_, err := desk.Reserve(context.Background(), circulation.BuildReserveRequest(lib.bookCopy, lib.bookID, lib.adult, daysFromToday(2)))
	require.NoError(t, err)

	// assert
	assert.Equal(t, 2, metrics.ContextualCalls())
	assert.Len(t, metrics.Counters(circulation.ActionCallsMetric), 1)
}

func Test_Desk_RecordsRetryMetrics(t *testing.T) {
	// setup
	lib := seedLibrary()
	metrics := spies.NewMetricsCollectorSpy()
	desk := newDesk(
		t,
		lib.store,
		circulation.WithMetrics(metrics),
		circulation.WithRetry(circulation.WithMaxAttempts(2), circulation.WithBaseDelay(0)),
	)
	lib.store.FailNext(circulation.StmtCreateBorrow, memstore.SerializationFailure("createBorrow"), 1)

	// act
	_, err := desk.Borrow(context.Background(), circulation.BuildWalkInBorrowRequest(lib.bookCopy, lib.bookID, lib.adult, daysFromToday(7)))
	require.NoError(t, err)

	// assert
	assert.True(t, metrics.HasCounter(circulation.RetriesMetric, map[string]string{
		circulation.LogAttrActionType: circulation.ActionTypeBorrow,
		circulation.LogAttrAttempt:    "1",
	}))
	assert.Len(t, metrics.Durations(circulation.RetryDelayMetric), 1)
}

func Test_Desk_TracesActions(t *testing.T) {
	tests := []struct {
		name       string
		arrange    func(lib library)
		wantStatus string
		wantError  bool
	}{
		{
			name:       "success",
			arrange:    func(library) {},
			wantStatus: "ok",
		},
		{
			name: "precondition failure is not a span error",
			arrange: func(lib library) {
				lib.store.AddReservation(lib.bookCopy, lib.other, daysFromToday(1))
			},
			wantStatus: "ok",
			wantError:  true,
		},
		{
			name: "transaction failure",
			arrange: func(lib library) {
				lib.store.FailOn(circulation.StmtCreateReservation, memstore.SerializationFailure("createReservation"))
			},
			wantStatus: "error",
			wantError:  true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// setup
			lib := seedLibrary()
			tracing := spies.NewTracingCollectorSpy()
			desk := newDesk(t, lib.store, circulation.WithTracing(tracing))

			// arrange
			tc.arrange(lib)

			// act
			_, err := desk.Reserve(context.Background(), circulation.BuildReserveRequest(lib.bookCopy, lib.bookID, lib.adult, daysFromToday(2)))
			assert.Equal(t, tc.wantError, err != nil)

			// assert
			spans := tracing.Spans("circulation.Reserve")
			require.Len(t, spans, 1)
			assert.True(t, spans[0].Finished)
			assert.Equal(t, tc.wantStatus, spans[0].Status)
			assert.Equal(t, circulation.ActionTypeReserve, spans[0].StartAttributes[circulation.LogAttrActionType])
			assert.Equal(t, circulation.ClassifyOutcome(err), spans[0].EndAttributes[circulation.LogAttrStatus])
			assert.Zero(t, tracing.Unfinished())
		})
	}
}
