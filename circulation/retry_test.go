package circulation_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/AntonStoeckl/library-circulation-go/circulation"
	"github.com/AntonStoeckl/library-circulation-go/testutil/spies"
)

func serializationFailure() error {
	return circulation.NewTransactionFailure("commit", "40001", assert.AnError)
}

func Test_RetryWithExponentialBackoff_When_SucceedsAfterSerializationFailures(t *testing.T) {
	// setup
	calls := 0
	metrics := spies.NewMetricsCollectorSpy()

	// act
	err := circulation.RetryWithExponentialBackoff(
		context.Background(),
		func(context.Context) error {
			calls++
			if calls < 3 {
				return serializationFailure()
			}

			return nil
		},
		circulation.WithBaseDelay(time.Millisecond),
		circulation.WithJitterFactor(0),
		circulation.WithRetryMetrics(metrics, circulation.ActionTypeReturn),
	)

	// assert
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Len(t, metrics.Counters(circulation.RetriesMetric), 2)

	delays := metrics.Durations(circulation.RetryDelayMetric)
	if assert.Len(t, delays, 2) {
		assert.Equal(t, time.Millisecond, delays[0].Duration)
		assert.Equal(t, 2*time.Millisecond, delays[1].Duration)
	}
}

func Test_RetryWithExponentialBackoff_FailsFast_When_ErrorIsNotRetryable(t *testing.T) {
	for name, failure := range map[string]error{
		"precondition": circulation.ErrCopyNotBorrowable,
		"aborted":      circulation.ErrActionAborted,
		"constraint":   circulation.NewTransactionFailure("createBorrow", "23505", assert.AnError),
	} {
		t.Run(name, func(t *testing.T) {
			calls := 0

			err := circulation.RetryWithExponentialBackoff(context.Background(), func(context.Context) error {
				calls++
				return failure
			})

			assert.ErrorIs(t, err, failure)
			assert.Equal(t, 1, calls)
		})
	}
}

func Test_RetryWithExponentialBackoff_When_AttemptsAreExhausted(t *testing.T) {
	calls := 0

	err := circulation.RetryWithExponentialBackoff(
		context.Background(),
		func(context.Context) error {
			calls++
			return serializationFailure()
		},
		circulation.WithMaxAttempts(2),
		circulation.WithBaseDelay(0),
	)

	assert.True(t, circulation.IsSerializationFailure(err))
	assert.Equal(t, 2, calls)
}

func Test_RetryWithExponentialBackoff_When_ContextIsCanceledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	err := circulation.RetryWithExponentialBackoff(
		ctx,
		func(context.Context) error {
			calls++
			cancel()

			return serializationFailure()
		},
		circulation.WithBaseDelay(time.Hour),
	)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func Test_RetryOptions_Validation(t *testing.T) {
	tests := []struct {
		name    string
		option  circulation.RetryOption
		wantErr error
	}{
		{name: "max attempts", option: circulation.WithMaxAttempts(0), wantErr: circulation.ErrInvalidMaxAttempts},
		{name: "base delay", option: circulation.WithBaseDelay(-time.Second), wantErr: circulation.ErrNegativeBaseDelay},
		{name: "jitter", option: circulation.WithJitterFactor(1.5), wantErr: circulation.ErrInvalidJitterFactor},
		{name: "nil collector", option: circulation.WithRetryMetrics(nil, "Borrow"), wantErr: circulation.ErrNilMetricsCollector},
		{
			name:    "empty action type",
			option:  circulation.WithRetryMetrics(spies.NewMetricsCollectorSpy(), ""),
			wantErr: circulation.ErrEmptyActionType,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			called := false

			err := circulation.RetryWithExponentialBackoff(context.Background(), func(context.Context) error {
				called = true
				return nil
			}, tc.option)

			assert.ErrorIs(t, err, tc.wantErr)
			assert.False(t, called)
		})
	}
}
