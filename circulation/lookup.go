package circulation

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Scope selects which copies a lookup considers.
type Scope string

const (
	// ScopeReservable matches copies that are currently available for a reservation.
	ScopeReservable Scope = "reservable"
	// ScopeBorrowable matches copies that are available for borrowing; by reservation ID it matches
	// the copy of a reservation that can be picked up.
	ScopeBorrowable Scope = "borrowable"
	// ScopeReturnable matches copies with an open borrow.
	ScopeReturnable Scope = "returnable"
)

// Criterion is the search key of a lookup.
type Criterion struct {
	name  string
	value any
}

// ByCopyID matches one copy.
func ByCopyID(copyID CopyID) Criterion {
	return Criterion{name: "CopyID", value: copyID}
}

// ByTitle matches copies whose media title contains the fragment, case-insensitively.
func ByTitle(fragment string) Criterion {
	return Criterion{name: "Title", value: strings.TrimSpace(fragment)}
}

// ByMediaID matches all copies of one media item.
func ByMediaID(mediaID MediaID) Criterion {
	return Criterion{name: "MediaID", value: mediaID}
}

// ByMediaType matches all copies of media of the given type.
func ByMediaType(mediaType MediaType) Criterion {
	return Criterion{name: "MediaType", value: string(mediaType)}
}

// ByReservationID matches the copy of a reservation. Only supported in ScopeBorrowable.
func ByReservationID(reservationID ReservationID) Criterion {
	return Criterion{name: "ReservationID", value: reservationID}
}

// Name identifies the kind of criterion, for example "CopyID".
func (c Criterion) Name() string {
	return c.name
}

// Value is the bound search value.
func (c Criterion) Value() any {
	return c.value
}

func (c Criterion) String() string {
	return fmt.Sprintf("%s=%v", c.name, c.value)
}

var lookupStatements = map[Scope]map[string]StatementKey{
	ScopeReservable: {
		"CopyID":    StmtReservableFindByCopyID,
		"Title":     StmtReservableFindByTitle,
		"MediaID":   StmtReservableFindByMediaID,
		"MediaType": StmtReservableFindByMediaType,
	},
	ScopeBorrowable: {
		"CopyID":        StmtBorrowableFindByCopyID,
		"Title":         StmtBorrowableFindByTitle,
		"MediaID":       StmtBorrowableFindByMediaID,
		"MediaType":     StmtBorrowableFindByMediaType,
		"ReservationID": StmtBorrowableFindByReservationID,
	},
	ScopeReturnable: {
		"CopyID":    StmtReturnableFindByCopyID,
		"Title":     StmtReturnableFindByTitle,
		"MediaID":   StmtReturnableFindByMediaID,
		"MediaType": StmtReturnableFindByMediaType,
	},
}

// LookupStatement resolves the statement key of a scope and criterion.
func LookupStatement(scope Scope, criterion Criterion) (StatementKey, error) {
	key, ok := lookupStatements[scope][criterion.name]
	if !ok {
		return "", fmt.Errorf("%w: scope %q, criterion %q", ErrUnsupportedLookup, scope, criterion.name)
	}

	return key, nil
}

// LookupService resolves the (copy, media) pairs the managers consume.
// An empty result is a normal negative outcome, never an error.
type LookupService struct{}

// Find runs the lookup for the scope and criterion and returns the matches ordered by copy ID.
func (LookupService) Find(ctx context.Context, q QueryExecutor, scope Scope, criterion Criterion, asOf time.Time) (CopyRefs, error) {
	key, err := LookupStatement(scope, criterion)
	if err != nil {
		return nil, err
	}

	params := []any{criterion.value}
	if scope != ScopeReturnable {
		params = append(params, Day(asOf))
	}

	rows, err := q.Query(ctx, key, params...)
	if err != nil {
		return nil, asTransactionFailure(key.String(), err)
	}

	refs := make(CopyRefs, 0, len(rows))
	for _, row := range rows {
		copyID, copyErr := row.Int64(0)
		mediaID, mediaErr := row.Int64(1)

		if err = firstError(copyErr, mediaErr); err != nil {
			return nil, NewTransactionFailure(key.String(), "", err)
		}

		refs = append(refs, CopyRef{CopyID: copyID, MediaID: mediaID})
	}

	return refs, nil
}

func (s LookupService) FindByCopyID(ctx context.Context, q QueryExecutor, scope Scope, copyID CopyID, asOf time.Time) (CopyRefs, error) {
	return s.Find(ctx, q, scope, ByCopyID(copyID), asOf)
}

func (s LookupService) FindByTitle(ctx context.Context, q QueryExecutor, scope Scope, fragment string, asOf time.Time) (CopyRefs, error) {
	return s.Find(ctx, q, scope, ByTitle(fragment), asOf)
}

func (s LookupService) FindByMediaID(ctx context.Context, q QueryExecutor, scope Scope, mediaID MediaID, asOf time.Time) (CopyRefs, error) {
	return s.Find(ctx, q, scope, ByMediaID(mediaID), asOf)
}

func (s LookupService) FindByMediaType(
	ctx context.Context,
	q QueryExecutor,
	scope Scope,
	mediaType MediaType,
	asOf time.Time,
) (CopyRefs, error) {
	return s.Find(ctx, q, scope, ByMediaType(mediaType), asOf)
}

// FindByReservationID returns the copy of a reservation that can be picked up at asOf.
func (s LookupService) FindByReservationID(
	ctx context.Context,
	q QueryExecutor,
	reservationID ReservationID,
	asOf time.Time,
) (CopyRefs, error) {
	return s.Find(ctx, q, ScopeBorrowable, ByReservationID(reservationID), asOf)
}
