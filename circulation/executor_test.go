package circulation_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-circulation-go/circulation"
)

func Test_WithinTransaction_Commits_When_FnSucceeds(t *testing.T) {
	// setup
	lib := seedLibrary()

	// act
	err := circulation.WithinTransaction(context.Background(), lib.store, circulation.TxOptions{}, func(x circulation.Executor) error {
		_, err := x.Exec(context.Background(), circulation.StmtSetCopyBorrowStatus, true, lib.bookCopy)
		return err
	})

	// assert
	require.NoError(t, err)
	assert.Equal(t, 1, lib.store.Commits())
	assert.Zero(t, lib.store.Rollbacks())
	assert.True(t, lib.store.Snapshot().Copies[lib.bookCopy].IsBorrowed)
}

func Test_WithinTransaction_RollsBack_When_FnFails(t *testing.T) {
	// setup
	lib := seedLibrary()
	before := lib.store.Snapshot()

	// act
	err := circulation.WithinTransaction(context.Background(), lib.store, circulation.TxOptions{}, func(x circulation.Executor) error {
		if _, err := x.Exec(context.Background(), circulation.StmtSetCopyBorrowStatus, true, lib.bookCopy); err != nil {
			return err
		}

		return circulation.ErrCopyNotBorrowable
	})

	// assert
	assert.ErrorIs(t, err, circulation.ErrCopyNotBorrowable)
	assert.Zero(t, lib.store.Commits())
	assert.Equal(t, 1, lib.store.Rollbacks())
	assert.Equal(t, before, lib.store.Snapshot())
}

func Test_WithinTransaction_RollsBack_When_FnPanics(t *testing.T) {
	// setup
	lib := seedLibrary()
	before := lib.store.Snapshot()

	// act & assert
	assert.Panics(t, func() {
		_ = circulation.WithinTransaction(context.Background(), lib.store, circulation.TxOptions{}, func(x circulation.Executor) error {
			_, _ = x.Exec(context.Background(), circulation.StmtSetCopyBorrowStatus, true, lib.bookCopy)
			panic("prompt crashed")
		})
	})

	assert.Equal(t, 1, lib.store.Rollbacks())
	assert.Equal(t, before, lib.store.Snapshot())

	// the write slot was released, so the next write transaction can begin
	err := circulation.WithinTransaction(context.Background(), lib.store, circulation.TxOptions{}, func(circulation.Executor) error {
		return nil
	})
	assert.NoError(t, err)
}

func Test_WithinTransaction_RollsBack_When_RollbackFails(t *testing.T) {
	// setup
	lib := seedLibrary()
	before := lib.store.Snapshot()
	lib.store.FailRollback(assert.AnError)

	// act
	err := circulation.WithinTransaction(context.Background(), lib.store, circulation.TxOptions{}, func(x circulation.Executor) error {
		if _, err := x.Exec(context.Background(), circulation.StmtSetCopyBorrowStatus, true, lib.bookCopy); err != nil {
			return err
		}

		return circulation.ErrCopyNotBorrowable
	})

	// assert
	assert.ErrorIs(t, err, circulation.ErrCopyNotBorrowable)
	assert.ErrorIs(t, err, circulation.ErrRollbackFailed)
	assert.ErrorIs(t, err, circulation.ErrTransactionFailed)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, lib.store.Rollbacks())
	assert.Equal(t, before, lib.store.Snapshot())
}

func Test_WithinTransaction_When_BeginFails(t *testing.T) {
	// setup
	lib := seedLibrary()
	lib.store.FailBegin(assert.AnError)
	called := false

	// act
	err := circulation.WithinTransaction(context.Background(), lib.store, circulation.TxOptions{}, func(circulation.Executor) error {
		called = true
		return nil
	})

	// assert
	assert.ErrorIs(t, err, circulation.ErrTransactionFailed)
	assert.ErrorIs(t, err, assert.AnError)
	assert.False(t, called)
}

func Test_WithinTransaction_ReadOnly_RejectsWrites(t *testing.T) {
	// setup
	lib := seedLibrary()

	// act
	err := circulation.WithinTransaction(
		context.Background(),
		lib.store,
		circulation.TxOptions{ReadOnly: true},
		func(x circulation.Executor) error {
			_, err := x.Exec(context.Background(), circulation.StmtSetCopyBorrowStatus, true, lib.bookCopy)
			return err
		},
	)

	// assert
	assert.ErrorIs(t, err, circulation.ErrTransactionFailed)
	assert.Equal(t, "25006", circulation.DiagnosticCode(err))
}

func Test_IsolationLevel_FromContext(t *testing.T) {
	ctx := context.Background()

	assert.Equal(t, circulation.IsolationSerializable, circulation.GetIsolationLevel(ctx, circulation.IsolationSerializable))

	ctx = circulation.WithIsolationLevel(ctx, circulation.IsolationRepeatableRead)
	assert.Equal(t, circulation.IsolationRepeatableRead, circulation.GetIsolationLevel(ctx, circulation.IsolationSerializable))

	invalid := circulation.WithIsolationLevel(context.Background(), circulation.IsolationLevel(7))
	assert.Equal(t, circulation.IsolationReadCommitted, circulation.GetIsolationLevel(invalid, circulation.IsolationReadCommitted))

	assert.Equal(t, "serializable", circulation.IsolationSerializable.String())
	assert.Equal(t, "unknown", circulation.IsolationLevel(7).String())
	assert.False(t, circulation.IsolationLevel(-1).Valid())
}
