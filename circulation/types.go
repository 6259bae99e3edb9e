package circulation

import (
	"errors"
	"strings"
	"time"
)

// Identities of the schema-backed entities. Zero is never a valid identity.
type (
	CopyID        = int64
	MediaID       = int64
	CustomerID    = int64
	ReservationID = int64
	BorrowID      = int64
)

// MediaType is the kind of catalog item a copy belongs to.
type MediaType string

const (
	MediaTypeBook     MediaType = "Book"
	MediaTypeMovie    MediaType = "Movie"
	MediaTypeMagazine MediaType = "Magazine"
	MediaTypeAudio    MediaType = "Audio"
)

var ErrUnknownMediaType = errors.New("unknown media type")

// ParseMediaType accepts the media type names case-insensitively.
func ParseMediaType(input string) (MediaType, error) {
	for _, mediaType := range []MediaType{MediaTypeBook, MediaTypeMovie, MediaTypeMagazine, MediaTypeAudio} {
		if strings.EqualFold(strings.TrimSpace(input), string(mediaType)) {
			return mediaType, nil
		}
	}

	return "", errors.Join(ErrUnknownMediaType, errors.New(input))
}

func (m MediaType) String() string {
	return string(m)
}

// Copy is one physical instance of a media item.
type Copy struct {
	ID         CopyID
	MediaID    MediaID
	IsBorrowed bool
}

// CopyRef is the (copy, media) pair a lookup yields and the managers consume.
type CopyRef struct {
	CopyID  CopyID
	MediaID MediaID
}

// CopyRefs is an ordered lookup result. Empty means "no match".
type CopyRefs []CopyRef

// Find returns the pair of the copy the actor picked from the result.
func (refs CopyRefs) Find(copyID CopyID) (CopyRef, bool) {
	for _, ref := range refs {
		if ref.CopyID == copyID {
			return ref, true
		}
	}

	return CopyRef{}, false
}

// Empty reports whether the lookup matched nothing.
func (refs CopyRefs) Empty() bool {
	return len(refs) == 0
}

// Reservation is a point-in-time intent record. It is never mutated after creation.
type Reservation struct {
	ID            ReservationID
	CopyID        CopyID
	MediaID       MediaID
	CustomerID    CustomerID
	PickupDueDate time.Time
	CreatedAt     time.Time
}

// Borrow is a lending record. ReservationID is zero for walk-in borrows.
type Borrow struct {
	ID                  BorrowID
	CopyID              CopyID
	MediaID             MediaID
	CustomerID          CustomerID
	ReservationID       ReservationID
	BasedOnReservation  bool
	EstimatedReturnDate time.Time
	BorrowedAt          time.Time
}

// ReturnReceipt is the outcome of a return. BorrowerID is the customer of the closed borrow,
// CustomerID the one who brought the copy back.
type ReturnReceipt struct {
	BorrowID   BorrowID
	CopyID     CopyID
	MediaID    MediaID
	CustomerID CustomerID
	BorrowerID CustomerID
	ReturnedAt time.Time
}
