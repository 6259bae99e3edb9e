package memstore

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/AntonStoeckl/library-circulation-go/circulation"
)

type lookupTarget struct {
	scope     circulation.Scope
	criterion string
}

// lookups maps every lookup statement key to its scope and criterion.
var lookups = func() map[circulation.StatementKey]lookupTarget {
	criteria := []circulation.Criterion{
		circulation.ByCopyID(0),
		circulation.ByTitle(""),
		circulation.ByMediaID(0),
		circulation.ByMediaType(""),
		circulation.ByReservationID(0),
	}

	targets := make(map[circulation.StatementKey]lookupTarget)
	for _, scope := range []circulation.Scope{circulation.ScopeReservable, circulation.ScopeBorrowable, circulation.ScopeReturnable} {
		for _, criterion := range criteria {
			if key, err := circulation.LookupStatement(scope, criterion); err == nil {
				targets[key] = lookupTarget{scope: scope, criterion: criterion.Name()}
			}
		}
	}

	return targets
}()

func (tx *Tx) query(key circulation.StatementKey, params []any) ([]circulation.Row, error) {
	p := binder{key: key, params: params}
	st := tx.state

	switch key {
	case circulation.StmtFindCopy, circulation.StmtLockCopy:
		copyID := p.int64(0)
		if err := p.done(1); err != nil {
			return nil, err
		}

		c, ok := st.Copies[copyID]
		if !ok {
			return []circulation.Row{}, nil
		}

		return []circulation.Row{{c.ID, c.MediaID, c.IsBorrowed}}, nil

	case circulation.StmtCountBlockingState:
		copyID, excluded, asOf := p.int64(0), p.int64(1), p.date(2)
		if err := p.done(3); err != nil {
			return nil, err
		}

		var count int64
		c, ok := st.Copies[copyID]
		if !ok {
			count++
		} else if c.IsBorrowed {
			count++
		}
		count += st.activeReservations(copyID, excluded, asOf)

		return []circulation.Row{{count}}, nil

	case circulation.StmtCountAgeViolations:
		customerID, copyID, asOf := p.int64(0), p.int64(1), p.date(2)
		if err := p.done(3); err != nil {
			return nil, err
		}

		customer, customerOK := st.Customers[customerID]
		c, copyOK := st.Copies[copyID]
		if !customerOK || !copyOK {
			return []circulation.Row{{int64(1)}}, nil
		}

		if media, ok := st.Media[c.MediaID]; ok && media.MinAge > ageInYears(customer.BirthDate, asOf) {
			return []circulation.Row{{int64(1)}}, nil
		}

		return []circulation.Row{{int64(0)}}, nil

	case circulation.StmtCountOpenBorrows:
		copyID := p.int64(0)
		if err := p.done(1); err != nil {
			return nil, err
		}

		var count int64
		for _, b := range st.Borrows {
			if b.CopyID == copyID && b.ReturnedAt.IsZero() {
				count++
			}
		}

		return []circulation.Row{{count}}, nil

	case circulation.StmtFindPickupReservation:
		reservationID, asOf := p.int64(0), p.date(1)
		if err := p.done(2); err != nil {
			return nil, err
		}

		r, ok := st.Reservations[reservationID]
		if !ok || r.PickupDueDate.Before(asOf) || st.consumed(r.ID) {
			return []circulation.Row{}, nil
		}

		return []circulation.Row{{r.ID, r.CopyID, r.MediaID, r.CustomerID, r.PickupDueDate}}, nil

	case circulation.StmtCreateReservation:
		return tx.createReservation(p)

	case circulation.StmtCreateBorrow:
		return tx.createBorrow(p)

	case circulation.StmtCloseOpenBorrow:
		return tx.closeOpenBorrow(p)

	case circulation.StmtLatestReservationID:
		return latest(key, p, tx.lastReservationID)

	case circulation.StmtLatestBorrowID:
		return latest(key, p, tx.lastBorrowID)
	}

	if target, ok := lookups[key]; ok {
		return tx.lookup(target, p)
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownStatement, key)
}

func (tx *Tx) exec(key circulation.StatementKey, params []any) (int64, error) {
	p := binder{key: key, params: params}

	switch key {
	case circulation.StmtTouchCopy:
		return tx.touchCopy(p)
	case circulation.StmtSetCopyBorrowStatus:
		return tx.setCopyBorrowStatus(p)
	case circulation.StmtRecordReturn:
		return tx.recordReturn(p)
	case circulation.StmtCreateReservation, circulation.StmtCreateBorrow, circulation.StmtCloseOpenBorrow:
		rows, err := tx.query(key, params)
		return int64(len(rows)), err
	default:
		return 0, fmt.Errorf("%w: %s is not a write statement", ErrUnknownStatement, key)
	}
}

func latest(key circulation.StatementKey, p binder, id int64) ([]circulation.Row, error) {
	if err := p.done(0); err != nil {
		return nil, err
	}

	if id == 0 {
		return nil, constraintViolation(key, codeObjectNotInState, "currval of sequence is not yet defined in this session")
	}

	return []circulation.Row{{id}}, nil
}

func (tx *Tx) createReservation(p binder) ([]circulation.Row, error) {
	pickupDueDate, copyID, mediaID, customerID, createdAt, metadata :=
		p.date(0), p.int64(1), p.int64(2), p.int64(3), p.time(4), p.string(5)
	if err := p.done(6); err != nil {
		return nil, err
	}

	if err := tx.writable(p.key); err != nil {
		return nil, err
	}

	if err := tx.references(p.key, copyID, mediaID, customerID); err != nil {
		return nil, err
	}

	id := tx.state.next(seqReservations)
	tx.state.Reservations[id] = Reservation{
		ID:            id,
		PickupDueDate: pickupDueDate,
		CopyID:        copyID,
		MediaID:       mediaID,
		CustomerID:    customerID,
		CreatedAt:     createdAt,
		Metadata:      metadata,
	}
	tx.lastReservationID = id

	return []circulation.Row{{id}}, nil
}

func (tx *Tx) createBorrow(p binder) ([]circulation.Row, error) {
	estimatedReturnDate, basedOnReservation, mediaID, copyID, customerID, reservationID, borrowedAt, metadata :=
		p.date(0), p.bool(1), p.int64(2), p.int64(3), p.int64(4), p.nullableInt64(5), p.time(6), p.string(7)
	if err := p.done(8); err != nil {
		return nil, err
	}

	if err := tx.writable(p.key); err != nil {
		return nil, err
	}

	if err := tx.references(p.key, copyID, mediaID, customerID); err != nil {
		return nil, err
	}

	if basedOnReservation != (reservationID != 0) {
		return nil, constraintViolation(p.key, codeCheckViolation, "based_on_reservation does not match reservation_id")
	}

	if reservationID != 0 {
		if _, ok := tx.state.Reservations[reservationID]; !ok {
			return nil, constraintViolation(p.key, codeForeignKeyViolation, "reservation %d does not exist", reservationID)
		}

		if tx.state.consumed(reservationID) {
			return nil, constraintViolation(p.key, codeUniqueViolation, "reservation %d is already consumed", reservationID)
		}
	}

	if _, open := tx.state.OpenBorrow(copyID); open {
		return nil, constraintViolation(p.key, codeUniqueViolation, "copy %d already has an open borrow", copyID)
	}

	id := tx.state.next(seqBorrows)
	tx.state.Borrows[id] = Borrow{
		ID:                  id,
		EstimatedReturnDate: estimatedReturnDate,
		BasedOnReservation:  basedOnReservation,
		MediaID:             mediaID,
		CopyID:              copyID,
		CustomerID:          customerID,
		ReservationID:       reservationID,
		BorrowedAt:          borrowedAt,
		Metadata:            metadata,
	}
	tx.lastBorrowID = id

	return []circulation.Row{{id}}, nil
}

func (tx *Tx) closeOpenBorrow(p binder) ([]circulation.Row, error) {
	copyID, returnedAt := p.int64(0), p.time(1)
	if err := p.done(2); err != nil {
		return nil, err
	}

	if err := tx.writable(p.key); err != nil {
		return nil, err
	}

	rows := make([]circulation.Row, 0, 1)
	for id, b := range tx.state.Borrows {
		if b.CopyID == copyID && b.ReturnedAt.IsZero() {
			b.ReturnedAt = returnedAt
			tx.state.Borrows[id] = b
			rows = append(rows, circulation.Row{b.ID, b.CustomerID})
		}
	}

	return rows, nil
}

func (tx *Tx) touchCopy(p binder) (int64, error) {
	copyID := p.int64(0)
	if err := p.done(1); err != nil {
		return 0, err
	}

	if err := tx.writable(p.key); err != nil {
		return 0, err
	}

	c, ok := tx.state.Copies[copyID]
	if !ok {
		return 0, nil
	}

	c.Version++
	tx.state.Copies[copyID] = c

	return 1, nil
}

func (tx *Tx) setCopyBorrowStatus(p binder) (int64, error) {
	isBorrowed, copyID := p.bool(0), p.int64(1)
	if err := p.done(2); err != nil {
		return 0, err
	}

	if err := tx.writable(p.key); err != nil {
		return 0, err
	}

	c, ok := tx.state.Copies[copyID]
	if !ok || c.IsBorrowed == isBorrowed {
		return 0, nil
	}

	c.IsBorrowed = isBorrowed
	tx.state.Copies[copyID] = c

	return 1, nil
}

func (tx *Tx) recordReturn(p binder) (int64, error) {
	borrowID, copyID, mediaID, customerID, returnedAt, metadata :=
		p.int64(0), p.int64(1), p.int64(2), p.int64(3), p.time(4), p.string(5)
	if err := p.done(6); err != nil {
		return 0, err
	}

	if err := tx.writable(p.key); err != nil {
		return 0, err
	}

	if _, ok := tx.state.Borrows[borrowID]; !ok {
		return 0, constraintViolation(p.key, codeForeignKeyViolation, "borrow %d does not exist", borrowID)
	}

	if err := tx.references(p.key, copyID, mediaID, customerID); err != nil {
		return 0, err
	}

	for _, r := range tx.state.Returns {
		if r.BorrowID == borrowID {
			return 0, constraintViolation(p.key, codeUniqueViolation, "borrow %d is already returned", borrowID)
		}
	}

	id := tx.state.next(seqReturns)
	tx.state.Returns[id] = Return{
		ID:         id,
		BorrowID:   borrowID,
		CopyID:     copyID,
		MediaID:    mediaID,
		CustomerID: customerID,
		ReturnedAt: returnedAt,
		Metadata:   metadata,
	}

	return 1, nil
}

// references checks the foreign keys shared by all circulation rows.
func (tx *Tx) references(key circulation.StatementKey, copyID, mediaID, customerID int64) error {
	if _, ok := tx.state.Copies[copyID]; !ok {
		return constraintViolation(key, codeForeignKeyViolation, "copy %d does not exist", copyID)
	}

	if _, ok := tx.state.Media[mediaID]; !ok {
		return constraintViolation(key, codeForeignKeyViolation, "media %d does not exist", mediaID)
	}

	if _, ok := tx.state.Customers[customerID]; !ok {
		return constraintViolation(key, codeForeignKeyViolation, "customer %d does not exist", customerID)
	}

	return nil
}

func (tx *Tx) lookup(target lookupTarget, p binder) ([]circulation.Row, error) {
	var asOf time.Time

	expected := 1
	if target.scope != circulation.ScopeReturnable {
		asOf = p.date(1)
		expected = 2
	}

	match := tx.criterion(target.criterion, &p)
	if err := p.done(expected); err != nil {
		return nil, err
	}

	ids := make([]int64, 0)
	for id, c := range tx.state.Copies {
		if !match(c) {
			continue
		}

		switch {
		case target.scope == circulation.ScopeReturnable:
			if _, open := tx.state.OpenBorrow(id); !open {
				continue
			}
		case target.criterion == circulation.ByReservationID(0).Name():
			if c.IsBorrowed {
				continue
			}
		default:
			if !tx.state.isFree(id, asOf) {
				continue
			}
		}

		ids = append(ids, id)
	}

	slices.Sort(ids)

	rows := make([]circulation.Row, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, circulation.Row{id, tx.state.Copies[id].MediaID})
	}

	return rows, nil
}

func (tx *Tx) criterion(name string, p *binder) func(Copy) bool {
	switch name {
	case circulation.ByCopyID(0).Name():
		copyID := p.int64(0)
		return func(c Copy) bool { return c.ID == copyID }
	case circulation.ByTitle("").Name():
		fragment := strings.ToLower(p.string(0))
		return func(c Copy) bool {
			return strings.Contains(strings.ToLower(tx.state.Media[c.MediaID].Title), fragment)
		}
	case circulation.ByMediaID(0).Name():
		mediaID := p.int64(0)
		return func(c Copy) bool { return c.MediaID == mediaID }
	case circulation.ByMediaType("").Name():
		mediaType := p.string(0)
		return func(c Copy) bool { return tx.state.Media[c.MediaID].Type == mediaType }
	case circulation.ByReservationID(0).Name():
		reservationID, asOf := p.int64(0), p.date(1)
		r, ok := tx.state.Reservations[reservationID]
		pickable := ok && !r.PickupDueDate.Before(asOf) && !tx.state.consumed(reservationID)
		return func(c Copy) bool { return pickable && c.ID == r.CopyID }
	default:
		return func(Copy) bool { return false }
	}
}
