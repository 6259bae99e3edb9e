package fixtures

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrSeedingFailed is returned when a fixture row cannot be written.
var ErrSeedingFailed = errors.New("seeding fixture failed")

var builder = goqu.Dialect("postgres")

// Catalog writes fixture rows straight into the circulation tables.
type Catalog struct {
	pool *pgxpool.Pool
}

// NewCatalog creates a Catalog on pool.
func NewCatalog(pool *pgxpool.Pool) Catalog {
	return Catalog{pool: pool}
}

// Reset empties all circulation tables and restarts their identities.
func (c Catalog) Reset(ctx context.Context) error {
	_, err := c.pool.Exec(ctx, "TRUNCATE returns, borrows, reservations, copies, customers, media RESTART IDENTITY CASCADE")
	if err != nil {
		return errors.Join(ErrSeedingFailed, err)
	}

	return nil
}

// AddMedia inserts a title. A minAge of 0 stores no age restriction.
func (c Catalog) AddMedia(ctx context.Context, title, author, mediaType string, minAge int) (int64, error) {
	var age any
	if minAge > 0 {
		age = minAge
	}

	return c.insert(ctx, builder.Insert("media").
		Rows(goqu.Record{"title": title, "author": author, "media_type": mediaType, "min_age": age}).
		Returning("media_id"))
}

// AddCopy inserts an available copy of a title.
func (c Catalog) AddCopy(ctx context.Context, mediaID int64) (int64, error) {
	return c.insert(ctx, builder.Insert("copies").
		Rows(goqu.Record{"media_id": mediaID, "is_borrowed": false}).
		Returning("copy_id"))
}

// AddCustomer inserts a customer.
func (c Catalog) AddCustomer(ctx context.Context, name string, birthDate time.Time) (int64, error) {
	return c.insert(ctx, builder.Insert("customers").
		Rows(goqu.Record{"name": name, "birth_date": birthDate.Format(time.DateOnly)}).
		Returning("customer_id"))
}

// AddReservation inserts a reservation directly, e.g. one that is already past its pickup due date.
func (c Catalog) AddReservation(ctx context.Context, copyID, customerID int64, pickupDueDate time.Time) (int64, error) {
	mediaID := builder.From("copies").Select("media_id").Where(goqu.C("copy_id").Eq(copyID))

	return c.insert(ctx, builder.Insert("reservations").
		Rows(goqu.Record{
			"pickup_due_date": pickupDueDate.Format(time.DateOnly),
			"copy_id":         copyID,
			"media_id":        mediaID,
			"customer_id":     customerID,
			"created_at":      time.Now().UTC(),
		}).
		Returning("reservation_id"))
}

// CopyIsBorrowed reads the borrow flag of a copy.
func (c Catalog) CopyIsBorrowed(ctx context.Context, copyID int64) (bool, error) {
	sqlQuery, _, err := builder.From("copies").Select("is_borrowed").Where(goqu.C("copy_id").Eq(copyID)).ToSQL()
	if err != nil {
		return false, err
	}

	var isBorrowed bool
	err = c.pool.QueryRow(ctx, sqlQuery).Scan(&isBorrowed)

	return isBorrowed, err
}

// MediaAuthor reads the author of a title.
func (c Catalog) MediaAuthor(ctx context.Context, mediaID int64) (string, error) {
	sqlQuery, _, err := builder.From("media").Select("author").Where(goqu.C("media_id").Eq(mediaID)).ToSQL()
	if err != nil {
		return "", err
	}

	var author string
	err = c.pool.QueryRow(ctx, sqlQuery).Scan(&author)

	return author, err
}

// CountRows returns the number of rows in one of the circulation tables.
func (c Catalog) CountRows(ctx context.Context, table string) (int64, error) {
	sqlQuery, _, err := builder.From(table).Select(goqu.COUNT(goqu.Star())).ToSQL()
	if err != nil {
		return 0, err
	}

	var count int64
	err = c.pool.QueryRow(ctx, sqlQuery).Scan(&count)

	return count, err
}

func (c Catalog) insert(ctx context.Context, ds *goqu.InsertDataset) (int64, error) {
	sqlQuery, _, err := ds.ToSQL()
	if err != nil {
		return 0, errors.Join(ErrSeedingFailed, err)
	}

	var id int64
	if err = c.pool.QueryRow(ctx, sqlQuery).Scan(&id); err != nil {
		return 0, errors.Join(ErrSeedingFailed, fmt.Errorf("%s", sqlQuery), err)
	}

	return id, nil
}
