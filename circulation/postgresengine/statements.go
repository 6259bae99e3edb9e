package postgresengine

import (
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/AntonStoeckl/library-circulation-go/circulation"
)

const (
	dialectPostgres = "postgres"

	tableMedia        = "media"
	tableCopies       = "copies"
	tableCustomers    = "customers"
	tableReservations = "reservations"
	tableBorrows      = "borrows"
	tableReturns      = "returns"

	colMediaID             = "media_id"
	colMediaType           = "media_type"
	colTitle               = "title"
	colMinAge              = "min_age"
	colCopyID              = "copy_id"
	colIsBorrowed          = "is_borrowed"
	colVersion             = "version"
	colCustomerID          = "customer_id"
	colBirthDate           = "birth_date"
	colReservationID       = "reservation_id"
	colPickupDueDate       = "pickup_due_date"
	colCreatedAt           = "created_at"
	colBorrowID            = "borrow_id"
	colBasedOnReservation  = "based_on_reservation"
	colEstimatedReturnDate = "estimated_return_date"
	colBorrowedAt          = "borrowed_at"
	colReturnedAt          = "returned_at"
	colMetadata            = "metadata"

	aliasCopy        = "c"
	aliasMedia       = "m"
	aliasCustomer    = "cu"
	aliasReservation = "r"
	aliasBorrow      = "b"
	aliasAnchor      = "anchor"

	typeBigint      = "bigint"
	typeBoolean     = "boolean"
	typeDate        = "date"
	typeText        = "text"
	typeTimestamptz = "timestamptz"
)

var (
	// ErrBuildingStatementFailed is returned when the statement catalog cannot be rendered.
	ErrBuildingStatementFailed = errors.New("building statement failed")

	// ErrUnknownStatement is returned for a statement key the catalog does not know.
	ErrUnknownStatement = errors.New("unknown statement key")

	// ErrParameterCountMismatch is returned when a statement is bound with the wrong number of parameters.
	ErrParameterCountMismatch = errors.New("statement parameter count mismatch")
)

// statement is the rendered SQL of one key and the number of positional parameters it binds.
type statement struct {
	sql    string
	params int
}

type sqlRenderer interface {
	ToSQL() (string, []any, error)
}

// catalog resolves statement keys to SQL text.
type catalog map[circulation.StatementKey]statement

// param renders the n-th positional parameter with an explicit type cast,
// so that all drivers bind it the same way.
func param(n int, sqlType string) exp.LiteralExpression {
	return goqu.L(fmt.Sprintf("$%d::%s", n, sqlType))
}

func col(alias, column string) exp.IdentifierExpression {
	return goqu.I(alias + "." + column)
}

func table(name, alias string) exp.AliasedExpression {
	return goqu.T(name).As(alias)
}

// buildCatalog renders the SQL text of every statement key.
func buildCatalog() (catalog, error) {
	builder := goqu.Dialect(dialectPostgres)

	datasets := map[circulation.StatementKey]struct {
		ds     sqlRenderer
		params int
	}{
		circulation.StmtFindCopy:              {findCopy(builder), 1},
		circulation.StmtLockCopy:              {findCopy(builder).ForUpdate(exp.Wait), 1},
		circulation.StmtCountBlockingState:    {countBlockingState(builder), 3},
		circulation.StmtCountAgeViolations:    {countAgeViolations(builder), 3},
		circulation.StmtCountOpenBorrows:      {countOpenBorrows(builder), 1},
		circulation.StmtFindPickupReservation: {findPickupReservation(builder), 2},
		circulation.StmtCreateReservation:     {createReservation(builder), 6},
		circulation.StmtLatestReservationID:   {latestID(builder, tableReservations, colReservationID), 0},
		circulation.StmtTouchCopy:             {touchCopy(builder), 1},
		circulation.StmtSetCopyBorrowStatus:   {setCopyBorrowStatus(builder), 2},
		circulation.StmtCreateBorrow:          {createBorrow(builder), 8},
		circulation.StmtLatestBorrowID:        {latestID(builder, tableBorrows, colBorrowID), 0},
		circulation.StmtCloseOpenBorrow:       {closeOpenBorrow(builder), 2},
		circulation.StmtRecordReturn:          {recordReturn(builder), 6},
	}

	for _, scope := range []circulation.Scope{circulation.ScopeReservable, circulation.ScopeBorrowable, circulation.ScopeReturnable} {
		for _, criterion := range lookupCriteria() {
			key, err := circulation.LookupStatement(scope, criterion)
			if err != nil {
				continue // not offered in this scope
			}

			ds, params := lookup(builder, scope, criterion)
			datasets[key] = struct {
				ds     sqlRenderer
				params int
			}{ds, params}
		}
	}

	statements := make(catalog, len(datasets))
	for key, entry := range datasets {
		sqlText, _, err := entry.ds.ToSQL()
		if err != nil {
			return nil, errors.Join(ErrBuildingStatementFailed, fmt.Errorf("statement %s", key), err)
		}

		statements[key] = statement{sql: sqlText, params: entry.params}
	}

	for _, key := range circulation.StatementKeys() {
		if _, ok := statements[key]; !ok {
			return nil, errors.Join(ErrBuildingStatementFailed, fmt.Errorf("%w: %s", ErrUnknownStatement, key))
		}
	}

	return statements, nil
}

// resolve returns the SQL text for key and verifies the number of bound parameters.
func (c catalog) resolve(key circulation.StatementKey, params []any) (string, error) {
	stmt, ok := c[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownStatement, key)
	}

	if stmt.params != len(params) {
		return "", fmt.Errorf("%w: %s binds %d, got %d", ErrParameterCountMismatch, key, stmt.params, len(params))
	}

	return stmt.sql, nil
}

func findCopy(builder goqu.DialectWrapper) *goqu.SelectDataset {
	return builder.
		From(tableCopies).
		Select(colCopyID, colMediaID, colIsBorrowed).
		Where(goqu.C(colCopyID).Eq(param(1, typeBigint)))
}

// activeReservations selects the unconsumed reservations of the outer copy whose pickup
// due date is not before the asOf parameter.
func activeReservations(builder goqu.DialectWrapper, copyRef exp.Expression, asOfParam int) *goqu.SelectDataset {
	return builder.
		From(table(tableReservations, aliasReservation)).
		Select(goqu.L("1")).
		Where(
			col(aliasReservation, colCopyID).Eq(copyRef),
			col(aliasReservation, colPickupDueDate).Gte(param(asOfParam, typeDate)),
			goqu.L("NOT EXISTS ?", consumingBorrows(builder)),
		)
}

func consumingBorrows(builder goqu.DialectWrapper) *goqu.SelectDataset {
	return builder.
		From(table(tableBorrows, aliasBorrow)).
		Select(goqu.L("1")).
		Where(col(aliasBorrow, colReservationID).Eq(col(aliasReservation, colReservationID)))
}

// countBlockingState sums the facts that block a copy: its borrowed flag, active reservations
// other than the excluded one, and the copy not existing at all.
func countBlockingState(builder goqu.DialectWrapper) *goqu.SelectDataset {
	borrowed := builder.
		From(tableCopies).
		Select(goqu.COUNT(goqu.Star())).
		Where(goqu.C(colCopyID).Eq(param(1, typeBigint)), goqu.C(colIsBorrowed).IsTrue())

	reserved := builder.
		From(table(tableReservations, aliasReservation)).
		Select(goqu.COUNT(goqu.Star())).
		Where(
			col(aliasReservation, colCopyID).Eq(param(1, typeBigint)),
			col(aliasReservation, colReservationID).Neq(param(2, typeBigint)),
			col(aliasReservation, colPickupDueDate).Gte(param(3, typeDate)),
			goqu.L("NOT EXISTS ?", consumingBorrows(builder)),
		)

	exists := builder.
		From(tableCopies).
		Select(goqu.L("1")).
		Where(goqu.C(colCopyID).Eq(param(1, typeBigint)))

	return builder.Select(
		goqu.L("? + ? + ?", borrowed, reserved, goqu.L("CASE WHEN EXISTS ? THEN 0 ELSE 1 END", exists)),
	)
}

// countAgeViolations yields 1 if the customer is younger than the minimum age of the copy's media,
// or if the customer or the copy does not exist, else 0. Media without a rating never violate.
func countAgeViolations(builder goqu.DialectWrapper) *goqu.SelectDataset {
	anchor := builder.Select(goqu.L("1")).As(aliasAnchor)
	age := goqu.L(fmt.Sprintf(`EXTRACT(YEAR FROM age($3::date, "%s"."%s"))`, aliasCustomer, colBirthDate))

	return builder.
		From(anchor).
		Select(goqu.COUNT(goqu.Star())).
		LeftJoin(table(tableCustomers, aliasCustomer), goqu.On(col(aliasCustomer, colCustomerID).Eq(param(1, typeBigint)))).
		LeftJoin(table(tableCopies, aliasCopy), goqu.On(col(aliasCopy, colCopyID).Eq(param(2, typeBigint)))).
		LeftJoin(table(tableMedia, aliasMedia), goqu.On(col(aliasMedia, colMediaID).Eq(col(aliasCopy, colMediaID)))).
		Where(goqu.Or(
			col(aliasCustomer, colCustomerID).IsNull(),
			col(aliasCopy, colCopyID).IsNull(),
			col(aliasMedia, colMinAge).Gt(age),
		))
}

func countOpenBorrows(builder goqu.DialectWrapper) *goqu.SelectDataset {
	return builder.
		From(tableBorrows).
		Select(goqu.COUNT(goqu.Star())).
		Where(goqu.C(colCopyID).Eq(param(1, typeBigint)), goqu.C(colReturnedAt).IsNull())
}

func findPickupReservation(builder goqu.DialectWrapper) *goqu.SelectDataset {
	return builder.
		From(table(tableReservations, aliasReservation)).
		Select(
			col(aliasReservation, colReservationID),
			col(aliasReservation, colCopyID),
			col(aliasReservation, colMediaID),
			col(aliasReservation, colCustomerID),
			col(aliasReservation, colPickupDueDate),
		).
		Where(
			col(aliasReservation, colReservationID).Eq(param(1, typeBigint)),
			col(aliasReservation, colPickupDueDate).Gte(param(2, typeDate)),
			goqu.L("NOT EXISTS ?", consumingBorrows(builder)),
		)
}

func createReservation(builder goqu.DialectWrapper) *goqu.InsertDataset {
	return builder.
		Insert(tableReservations).
		Cols(colPickupDueDate, colCopyID, colMediaID, colCustomerID, colCreatedAt, colMetadata).
		Vals(goqu.Vals{
			param(1, typeDate),
			param(2, typeBigint),
			param(3, typeBigint),
			param(4, typeBigint),
			param(5, typeTimestamptz),
			goqu.L("$6::text::jsonb"),
		}).
		Returning(colReservationID)
}

// latestID reads the identity most recently generated for the table in this session.
func latestID(builder goqu.DialectWrapper, tableName, idColumn string) *goqu.SelectDataset {
	return builder.Select(goqu.L(fmt.Sprintf("currval(pg_get_serial_sequence('%s', '%s'))", tableName, idColumn)))
}

func touchCopy(builder goqu.DialectWrapper) *goqu.UpdateDataset {
	return builder.
		Update(tableCopies).
		Set(goqu.Record{colVersion: goqu.L("? + 1", goqu.C(colVersion))}).
		Where(goqu.C(colCopyID).Eq(param(1, typeBigint)))
}

// setCopyBorrowStatus only flips the flag from the opposite value, so a concurrent flip shows as zero affected rows.
func setCopyBorrowStatus(builder goqu.DialectWrapper) *goqu.UpdateDataset {
	return builder.
		Update(tableCopies).
		Set(goqu.Record{colIsBorrowed: param(1, typeBoolean)}).
		Where(goqu.C(colCopyID).Eq(param(2, typeBigint)), goqu.C(colIsBorrowed).Neq(param(1, typeBoolean)))
}

func createBorrow(builder goqu.DialectWrapper) *goqu.InsertDataset {
	return builder.
		Insert(tableBorrows).
		Cols(
			colEstimatedReturnDate,
			colBasedOnReservation,
			colMediaID,
			colCopyID,
			colCustomerID,
			colReservationID,
			colBorrowedAt,
			colMetadata,
		).
		Vals(goqu.Vals{
			param(1, typeDate),
			param(2, typeBoolean),
			param(3, typeBigint),
			param(4, typeBigint),
			param(5, typeBigint),
			param(6, typeBigint),
			param(7, typeTimestamptz),
			goqu.L("$8::text::jsonb"),
		}).
		Returning(colBorrowID)
}

func closeOpenBorrow(builder goqu.DialectWrapper) *goqu.UpdateDataset {
	return builder.
		Update(tableBorrows).
		Set(goqu.Record{colReturnedAt: param(2, typeTimestamptz)}).
		Where(goqu.C(colCopyID).Eq(param(1, typeBigint)), goqu.C(colReturnedAt).IsNull()).
		Returning(colBorrowID, colCustomerID)
}

func recordReturn(builder goqu.DialectWrapper) *goqu.InsertDataset {
	return builder.
		Insert(tableReturns).
		Cols(colBorrowID, colCopyID, colMediaID, colCustomerID, colReturnedAt, colMetadata).
		Vals(goqu.Vals{
			param(1, typeBigint),
			param(2, typeBigint),
			param(3, typeBigint),
			param(4, typeBigint),
			param(5, typeTimestamptz),
			goqu.L("$6::text::jsonb"),
		})
}

func lookupCriteria() []circulation.Criterion {
	return []circulation.Criterion{
		circulation.ByCopyID(0),
		circulation.ByTitle(""),
		circulation.ByMediaID(0),
		circulation.ByMediaType(""),
		circulation.ByReservationID(0),
	}
}

// lookup renders the search of one scope and criterion. The criterion value is $1,
// the reservable and borrowable scopes bind asOf as $2.
func lookup(builder goqu.DialectWrapper, scope circulation.Scope, criterion circulation.Criterion) (*goqu.SelectDataset, int) {
	ds := builder.
		From(table(tableCopies, aliasCopy)).
		Join(table(tableMedia, aliasMedia), goqu.On(col(aliasMedia, colMediaID).Eq(col(aliasCopy, colMediaID)))).
		Select(col(aliasCopy, colCopyID), col(aliasCopy, colMediaID)).
		Order(col(aliasCopy, colCopyID).Asc())

	switch criterion.Name() {
	case circulation.ByReservationID(0).Name():
		ds = ds.Where(
			col(aliasCopy, colIsBorrowed).IsFalse(),
			goqu.L("EXISTS ?", builder.
				From(table(tableReservations, aliasReservation)).
				Select(goqu.L("1")).
				Where(
					col(aliasReservation, colReservationID).Eq(param(1, typeBigint)),
					col(aliasReservation, colCopyID).Eq(col(aliasCopy, colCopyID)),
					col(aliasReservation, colPickupDueDate).Gte(param(2, typeDate)),
					goqu.L("NOT EXISTS ?", consumingBorrows(builder)),
				)),
		)

		return ds, 2
	case circulation.ByCopyID(0).Name():
		ds = ds.Where(col(aliasCopy, colCopyID).Eq(param(1, typeBigint)))
	case circulation.ByTitle("").Name():
		ds = ds.Where(goqu.L(fmt.Sprintf(`strpos(lower("%s"."%s"), lower($1::text)) > 0`, aliasMedia, colTitle)))
	case circulation.ByMediaID(0).Name():
		ds = ds.Where(col(aliasCopy, colMediaID).Eq(param(1, typeBigint)))
	case circulation.ByMediaType("").Name():
		ds = ds.Where(col(aliasMedia, colMediaType).Eq(param(1, typeText)))
	}

	if scope == circulation.ScopeReturnable {
		ds = ds.Where(goqu.L("EXISTS ?", builder.
			From(table(tableBorrows, aliasBorrow)).
			Select(goqu.L("1")).
			Where(col(aliasBorrow, colCopyID).Eq(col(aliasCopy, colCopyID)), col(aliasBorrow, colReturnedAt).IsNull())))

		return ds, 1
	}

	ds = ds.Where(
		col(aliasCopy, colIsBorrowed).IsFalse(),
		goqu.L("NOT EXISTS ?", activeReservations(builder, col(aliasCopy, colCopyID), 2)),
	)

	return ds, 2
}
