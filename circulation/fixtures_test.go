package circulation_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-circulation-go/circulation"
	"github.com/AntonStoeckl/library-circulation-go/testutil/memstore"
)

var today = time.Date(2026, time.March, 15, 10, 30, 0, 0, time.UTC)

func fixedClock() time.Time {
	return today
}

func daysFromToday(days int) time.Time {
	return circulation.Day(today).AddDate(0, 0, days)
}

// library is a small catalog: an unrestricted book, an 18-rated movie and customers of various ages.
type library struct {
	store *memstore.Store

	bookID       circulation.MediaID
	bookCopy     circulation.CopyID
	bookCopy2    circulation.CopyID
	movieID      circulation.MediaID
	movieCopy    circulation.CopyID
	magazineID   circulation.MediaID
	magazineCopy circulation.CopyID

	adult    circulation.CustomerID
	other    circulation.CustomerID
	teen     circulation.CustomerID
	eighteen circulation.CustomerID
}

func seedLibrary() library {
	store := memstore.New()

	l := library{store: store}
	l.bookID = store.AddMedia("Dune", "Frank Herbert", string(circulation.MediaTypeBook), 0)
	l.bookCopy = store.AddCopy(l.bookID)
	l.bookCopy2 = store.AddCopy(l.bookID)
	l.movieID = store.AddMedia("Alien", "Ridley Scott", string(circulation.MediaTypeMovie), 18)
	l.movieCopy = store.AddCopy(l.movieID)
	l.magazineID = store.AddMedia("Dune Fan Monthly", "Arrakis Press", string(circulation.MediaTypeMagazine), 0)
	l.magazineCopy = store.AddCopy(l.magazineID)

	l.adult = store.AddCustomer("Ada Adult", time.Date(1980, time.May, 4, 0, 0, 0, 0, time.UTC))
	l.other = store.AddCustomer("Otto Other", time.Date(1975, time.January, 9, 0, 0, 0, 0, time.UTC))
	l.teen = store.AddCustomer("Tim Teen", time.Date(2010, time.June, 1, 0, 0, 0, 0, time.UTC))
	l.eighteen = store.AddCustomer("Bea Birthday", time.Date(2008, time.March, 15, 0, 0, 0, 0, time.UTC))

	return l
}

func newDesk(t *testing.T, store *memstore.Store, options ...circulation.Option) *circulation.Desk {
	t.Helper()

	desk, err := circulation.NewDesk(store, append([]circulation.Option{circulation.WithClock(fixedClock)}, options...)...)
	require.NoError(t, err)

	return desk
}

// inWriteTx runs fn in a write transaction of the store that commits when fn succeeds.
func inWriteTx(t *testing.T, store *memstore.Store, fn func(x circulation.Executor) error) error {
	t.Helper()

	return circulation.WithinTransaction(context.Background(), store, circulation.TxOptions{}, fn)
}

// inReadTx runs fn in a read-only transaction of the store.
func inReadTx(t *testing.T, store *memstore.Store, fn func(x circulation.Executor) error) {
	t.Helper()

	err := circulation.WithinTransaction(context.Background(), store, circulation.TxOptions{ReadOnly: true}, fn)
	require.NoError(t, err)
}
