package memstore

import (
	"maps"
	"time"
)

// Media is a catalog title. MinAge 0 means the title is not age restricted.
type Media struct {
	ID     int64
	Title  string
	Author string
	Type   string
	MinAge int
}

// Copy is a physical copy of a media title. Version counts the writes to the row.
type Copy struct {
	ID         int64
	MediaID    int64
	IsBorrowed bool
	Version    int64
}

// Customer is a library customer.
type Customer struct {
	ID        int64
	Name      string
	BirthDate time.Time
}

// Reservation is a stored reservation row.
type Reservation struct {
	ID            int64
	PickupDueDate time.Time
	CopyID        int64
	MediaID       int64
	CustomerID    int64
	CreatedAt     time.Time
	Metadata      string
}

// Borrow is a stored borrow row. ReservationID 0 stands for NULL, a zero ReturnedAt for an open borrow.
type Borrow struct {
	ID                  int64
	EstimatedReturnDate time.Time
	BasedOnReservation  bool
	MediaID             int64
	CopyID              int64
	CustomerID          int64
	ReservationID       int64
	BorrowedAt          time.Time
	ReturnedAt          time.Time
	Metadata            string
}

// Return is a stored return row.
type Return struct {
	ID         int64
	BorrowID   int64
	CopyID     int64
	MediaID    int64
	CustomerID int64
	ReturnedAt time.Time
	Metadata   string
}

// State is the full content of the store. Snapshots are deep copies and can be compared with assert.Equal.
type State struct {
	Media        map[int64]Media
	Copies       map[int64]Copy
	Customers    map[int64]Customer
	Reservations map[int64]Reservation
	Borrows      map[int64]Borrow
	Returns      map[int64]Return
	Sequences    map[string]int64
}

func newState() State {
	return State{
		Media:        make(map[int64]Media),
		Copies:       make(map[int64]Copy),
		Customers:    make(map[int64]Customer),
		Reservations: make(map[int64]Reservation),
		Borrows:      make(map[int64]Borrow),
		Returns:      make(map[int64]Return),
		Sequences:    make(map[string]int64),
	}
}

func (s State) clone() State {
	return State{
		Media:        maps.Clone(s.Media),
		Copies:       maps.Clone(s.Copies),
		Customers:    maps.Clone(s.Customers),
		Reservations: maps.Clone(s.Reservations),
		Borrows:      maps.Clone(s.Borrows),
		Returns:      maps.Clone(s.Returns),
		Sequences:    maps.Clone(s.Sequences),
	}
}

// next draws the next value of a sequence. Unlike PostgreSQL, a rolled back transaction
// also rolls back its sequence draws, which keeps snapshots comparable.
func (s State) next(sequence string) int64 {
	s.Sequences[sequence]++
	return s.Sequences[sequence]
}

// OpenBorrow returns the open borrow of a copy.
func (s State) OpenBorrow(copyID int64) (Borrow, bool) {
	for _, b := range s.Borrows {
		if b.CopyID == copyID && b.ReturnedAt.IsZero() {
			return b, true
		}
	}

	return Borrow{}, false
}

func (s State) consumed(reservationID int64) bool {
	for _, b := range s.Borrows {
		if b.ReservationID == reservationID {
			return true
		}
	}

	return false
}

// activeReservations counts the unconsumed reservations of a copy that are due at or after asOf.
func (s State) activeReservations(copyID, excluded int64, asOf time.Time) int64 {
	var count int64
	for _, r := range s.Reservations {
		if r.CopyID == copyID && r.ID != excluded && !r.PickupDueDate.Before(asOf) && !s.consumed(r.ID) {
			count++
		}
	}

	return count
}

func (s State) isFree(copyID int64, asOf time.Time) bool {
	c, ok := s.Copies[copyID]

	return ok && !c.IsBorrowed && s.activeReservations(copyID, 0, asOf) == 0
}

// ageInYears mirrors EXTRACT(YEAR FROM age(asOf, birthDate)).
func ageInYears(birthDate, asOf time.Time) int {
	years := asOf.Year() - birthDate.Year()
	if asOf.Month() < birthDate.Month() || (asOf.Month() == birthDate.Month() && asOf.Day() < birthDate.Day()) {
		years--
	}

	return years
}
