package memstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AntonStoeckl/library-circulation-go/circulation"
)

const (
	seqMedia        = "media"
	seqCopies       = "copies"
	seqCustomers    = "customers"
	seqReservations = "reservations"
	seqBorrows      = "borrows"
	seqReturns      = "returns"

	codeForeignKeyViolation = "23503"
	codeUniqueViolation     = "23505"
	codeCheckViolation      = "23514"
	codeReadOnlyTransaction = "25006"
	codeObjectNotInState    = "55000"
	codeSerialization       = "40001"
)

var (
	// ErrTxDone is returned when a finished transaction is used again.
	ErrTxDone = errors.New("memstore: transaction has already been committed or rolled back")

	// ErrUnknownStatement is returned for keys the store does not implement.
	ErrUnknownStatement = errors.New("memstore: unknown statement key")

	// ErrBadParameters is returned when a statement is bound with the wrong number or types of parameters.
	ErrBadParameters = errors.New("memstore: bad statement parameters")
)

// Store is the in-memory transaction boundary.
type Store struct {
	mu        sync.Mutex
	committed State
	writeSlot chan struct{}

	failures    map[circulation.StatementKey]*injection
	beginErr    error
	commitErr   error
	rollbackErr error

	calls     map[circulation.StatementKey]int
	commits   int
	rollbacks int
}

type injection struct {
	err       error
	remaining int // < 0 means forever
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		committed: newState(),
		writeSlot: make(chan struct{}, 1),
		failures:  make(map[circulation.StatementKey]*injection),
		calls:     make(map[circulation.StatementKey]int),
	}
}

// SerializationFailure builds the error a serializable transaction reports when it loses a conflict.
func SerializationFailure(op string) error {
	return circulation.NewTransactionFailure(op, codeSerialization, errors.New("could not serialize access due to concurrent update"))
}

// AddMedia adds a title to the committed catalog.
func (s *Store) AddMedia(title, author, mediaType string, minAge int) circulation.MediaID {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.committed.next(seqMedia)
	s.committed.Media[id] = Media{ID: id, Title: title, Author: author, Type: mediaType, MinAge: minAge}

	return id
}

// AddCopy adds a copy of a title to the committed catalog.
func (s *Store) AddCopy(mediaID circulation.MediaID) circulation.CopyID {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.committed.next(seqCopies)
	s.committed.Copies[id] = Copy{ID: id, MediaID: mediaID}

	return id
}

// AddCustomer adds a customer to the committed state.
func (s *Store) AddCustomer(name string, birthDate time.Time) circulation.CustomerID {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.committed.next(seqCustomers)
	s.committed.Customers[id] = Customer{ID: id, Name: name, BirthDate: circulation.Day(birthDate)}

	return id
}

// AddReservation stores a reservation directly, bypassing all checks, e.g. to set up an expired one.
func (s *Store) AddReservation(copyID circulation.CopyID, customerID circulation.CustomerID, pickupDueDate time.Time) circulation.ReservationID {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.committed.next(seqReservations)
	s.committed.Reservations[id] = Reservation{
		ID:            id,
		PickupDueDate: circulation.Day(pickupDueDate),
		CopyID:        copyID,
		MediaID:       s.committed.Copies[copyID].MediaID,
		CustomerID:    customerID,
		Metadata:      "{}",
	}

	return id
}

// Snapshot returns a deep copy of the committed state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.committed.clone()
}

// FailOn makes every execution of key fail with err until ClearFailures is called.
func (s *Store) FailOn(key circulation.StatementKey, err error) {
	s.FailNext(key, err, -1)
}

// FailNext makes the next n executions of key fail with err.
func (s *Store) FailNext(key circulation.StatementKey, err error, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failures[key] = &injection{err: err, remaining: n}
}

// FailBegin makes Begin fail with err until ClearFailures is called.
func (s *Store) FailBegin(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.beginErr = err
}

// FailCommit makes Commit fail with err until ClearFailures is called. The transaction is rolled back.
func (s *Store) FailCommit(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.commitErr = err
}

// FailRollback makes Rollback report err until ClearFailures is called. The snapshot is discarded anyway.
func (s *Store) FailRollback(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rollbackErr = err
}

// ClearFailures removes all injected failures.
func (s *Store) ClearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failures = make(map[circulation.StatementKey]*injection)
	s.beginErr = nil
	s.commitErr = nil
	s.rollbackErr = nil
}

// Calls returns how often key was executed.
func (s *Store) Calls(key circulation.StatementKey) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls[key]
}

// Commits returns the number of committed transactions.
func (s *Store) Commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.commits
}

// Rollbacks returns the number of rolled back transactions.
func (s *Store) Rollbacks() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.rollbacks
}

// Begin opens a transaction on a snapshot of the committed state.
// Write transactions wait until no other write transaction is open.
func (s *Store) Begin(ctx context.Context, opts circulation.TxOptions) (circulation.Tx, error) {
	s.mu.Lock()
	beginErr := s.beginErr
	s.mu.Unlock()

	if beginErr != nil {
		return nil, beginErr
	}

	if !opts.Isolation.Valid() {
		return nil, circulation.ErrInvalidIsolationLevel
	}

	if !opts.ReadOnly {
		select {
		case s.writeSlot <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return &Tx{store: s, state: s.committed.clone(), readOnly: opts.ReadOnly}, nil
}

func (s *Store) injected(key circulation.StatementKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls[key]++

	failure, ok := s.failures[key]
	if !ok || failure.remaining == 0 {
		return nil
	}

	if failure.remaining > 0 {
		failure.remaining--
	}

	return failure.err
}

// Tx is a memstore transaction.
type Tx struct {
	store    *Store
	state    State
	readOnly bool
	done     bool

	lastReservationID int64
	lastBorrowID      int64
}

// Query runs a reading statement, or a writing statement with a RETURNING clause.
func (tx *Tx) Query(ctx context.Context, key circulation.StatementKey, params ...any) ([]circulation.Row, error) {
	if err := tx.usable(ctx, key); err != nil {
		return nil, err
	}

	return tx.query(key, params)
}

// Exec runs a writing statement and returns the number of affected rows.
func (tx *Tx) Exec(ctx context.Context, key circulation.StatementKey, params ...any) (int64, error) {
	if err := tx.usable(ctx, key); err != nil {
		return 0, err
	}

	return tx.exec(key, params)
}

func (tx *Tx) usable(ctx context.Context, key circulation.StatementKey) error {
	if tx.done {
		return ErrTxDone
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	return tx.store.injected(key)
}

// Commit publishes the snapshot of a write transaction.
func (tx *Tx) Commit(_ context.Context) error {
	if tx.done {
		return ErrTxDone
	}

	tx.store.mu.Lock()
	commitErr := tx.store.commitErr
	tx.store.mu.Unlock()

	if commitErr != nil {
		tx.finish(false)
		return commitErr
	}

	tx.finish(true)

	return nil
}

// Rollback discards the snapshot. After Commit it is a no-op.
func (tx *Tx) Rollback(_ context.Context) error {
	if tx.done {
		return nil
	}

	tx.finish(false)

	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()

	return tx.store.rollbackErr
}

func (tx *Tx) finish(commit bool) {
	tx.done = true

	tx.store.mu.Lock()
	if commit {
		if !tx.readOnly {
			tx.store.committed = tx.state
		}
		tx.store.commits++
	} else {
		tx.store.rollbacks++
	}
	tx.store.mu.Unlock()

	if !tx.readOnly {
		<-tx.store.writeSlot
	}
}

func (tx *Tx) writable(key circulation.StatementKey) error {
	if tx.readOnly {
		return circulation.NewTransactionFailure(
			key.String(),
			codeReadOnlyTransaction,
			errors.New("cannot execute statement in a read-only transaction"),
		)
	}

	return nil
}

func constraintViolation(key circulation.StatementKey, code, format string, args ...any) error {
	return circulation.NewTransactionFailure(key.String(), code, fmt.Errorf(format, args...))
}
