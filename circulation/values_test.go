package circulation_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-circulation-go/circulation"
)

func Test_ParseDate(t *testing.T) {
	date, err := circulation.ParseDate(" 01-01-2030 ")

	require.NoError(t, err)
	assert.Equal(t, time.Date(2030, time.January, 1, 0, 0, 0, 0, time.UTC), date)
	assert.Equal(t, "01-01-2030", circulation.FormatDate(date))
}

func Test_ParseDate_When_InputIsMalformed(t *testing.T) {
	for _, input := range []string{"", "2030-01-01", "32-01-2030", "1-1-30"} {
		t.Run(input, func(t *testing.T) {
			_, err := circulation.ParseDate(input)

			assert.ErrorIs(t, err, circulation.ErrInvalidDate)
		})
	}
}

func Test_Day_KeepsTheCalendarDayOfTheLocation(t *testing.T) {
	berlin := time.FixedZone("CET", 3600)
	newYork := time.FixedZone("EST", -5*3600)

	tests := []struct {
		name string
		at   time.Time
		want time.Time
	}{
		{
			name: "just after midnight east of UTC",
			at:   time.Date(2026, time.March, 15, 0, 30, 0, 0, berlin),
			want: time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "late evening west of UTC",
			at:   time.Date(2026, time.March, 15, 23, 30, 0, 0, newYork),
			want: time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "UTC",
			at:   time.Date(2026, time.March, 15, 23, 59, 59, 0, time.UTC),
			want: time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, circulation.Day(tc.at))
		})
	}
}

func Test_BuildRequests_KeepTheCalendarDayOfLocalDates(t *testing.T) {
	berlin := time.FixedZone("CET", 3600)
	localNewYear := time.Date(2030, time.January, 1, 0, 0, 0, 0, berlin)

	reserve := circulation.BuildReserveRequest(1, 1, 1, localNewYear)
	borrow := circulation.BuildWalkInBorrowRequest(1, 1, 1, localNewYear)

	assert.Equal(t, "01-01-2030", circulation.FormatDate(reserve.PickupDueDate))
	assert.Equal(t, "01-01-2030", circulation.FormatDate(borrow.EstimatedReturnDate))
}

func Test_ParseMediaType(t *testing.T) {
	mediaType, err := circulation.ParseMediaType(" movie ")
	require.NoError(t, err)
	assert.Equal(t, circulation.MediaTypeMovie, mediaType)

	_, err = circulation.ParseMediaType("vinyl")
	assert.ErrorIs(t, err, circulation.ErrUnknownMediaType)
}

func Test_CopyRefs(t *testing.T) {
	refs := circulation.CopyRefs{{CopyID: 3, MediaID: 1}, {CopyID: 4, MediaID: 1}}

	ref, found := refs.Find(4)
	assert.True(t, found)
	assert.Equal(t, circulation.CopyRef{CopyID: 4, MediaID: 1}, ref)

	_, found = refs.Find(5)
	assert.False(t, found)

	assert.False(t, refs.Empty())
	assert.True(t, circulation.CopyRefs{}.Empty())
}

func Test_Requests_Validate(t *testing.T) {
	due := time.Date(2030, time.January, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		request circulation.Request
		valid   bool
	}{
		{name: "reserve", request: circulation.BuildReserveRequest(1, 2, 3, due), valid: true},
		{name: "reserve without pickup date", request: circulation.BuildReserveRequest(1, 2, 3, time.Time{}), valid: false},
		{name: "reserve without customer", request: circulation.BuildReserveRequest(1, 2, 0, due), valid: false},
		{name: "walk-in borrow", request: circulation.BuildWalkInBorrowRequest(1, 2, 3, due), valid: true},
		{name: "reservation borrow", request: circulation.BuildReservationBorrowRequest(9, 1, 2, 3, due), valid: true},
		{name: "reservation borrow without reservation", request: circulation.BuildReservationBorrowRequest(0, 1, 2, 3, due), valid: false},
		{
			name:    "walk-in borrow referencing a reservation",
			request: circulation.BorrowRequest{CopyID: 1, MediaID: 2, CustomerID: 3, EstimatedReturnDate: due, ReservationID: 9},
			valid:   false,
		},
		{name: "return", request: circulation.BuildReturnRequest(1, 3, 2), valid: true},
		{name: "return without copy", request: circulation.BuildReturnRequest(0, 3, 2), valid: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.request.Validate()

			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, circulation.ErrInvalidRequest)
			}
		})
	}
}

func Test_BuildRequests_AssignActionIDs(t *testing.T) {
	first := circulation.BuildReturnRequest(1, 2, 3)
	second := circulation.BuildReturnRequest(1, 2, 3)

	assert.NotEqual(t, uuid.Nil, first.ActionID)
	assert.NotEqual(t, first.ActionID, second.ActionID)
	assert.Equal(t, uuid.Version(7), first.ActionID.Version())
	assert.Equal(t, circulation.ActionTypeReturn, first.ActionType())
	assert.Equal(t, circulation.ActionTypeReserve, circulation.ReserveRequest{}.ActionType())
	assert.Equal(t, circulation.ActionTypeBorrow, circulation.BorrowRequest{}.ActionType())
}

func Test_ActionMetadata_JSON(t *testing.T) {
	actionID := uuid.MustParse("01912f4e-8f6a-7c3d-9b2e-2a1c5d7e9f00")

	data, err := circulation.BuildActionMetadata(actionID, circulation.ActionTypeBorrow).JSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"ActionID":"01912f4e-8f6a-7c3d-9b2e-2a1c5d7e9f00","ActionType":"Borrow"}`, data)

	_, err = circulation.ParseActionMetadata([]byte("{not json"))
	assert.ErrorIs(t, err, circulation.ErrMarshalingMetadataFailed)
}

func Test_Row_Accessors(t *testing.T) {
	date := time.Date(2030, time.January, 1, 0, 0, 0, 0, time.UTC)
	row := circulation.Row{int32(7), []byte("42"), "Dune", date, true, 1.5, nil, "t"}

	id, err := row.Int64(0)
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)

	fromBytes, err := row.Int64(1)
	require.NoError(t, err)
	assert.Equal(t, int64(42), fromBytes)

	title, err := row.String(2)
	require.NoError(t, err)
	assert.Equal(t, "Dune", title)

	readDate, err := row.Time(3)
	require.NoError(t, err)
	assert.Equal(t, date, readDate)

	flag, err := row.Bool(4)
	require.NoError(t, err)
	assert.True(t, flag)

	value, err := row.Float64(5)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, value, 0.0001)

	nullable, err := row.NullableInt64(6)
	require.NoError(t, err)
	assert.Zero(t, nullable)

	textFlag, err := row.Bool(7)
	require.NoError(t, err)
	assert.True(t, textFlag)
}

func Test_Row_Accessors_When_ShapeIsUnexpected(t *testing.T) {
	row := circulation.Row{"Dune", int64(1)}

	_, err := row.Int64(5)
	assert.ErrorIs(t, err, circulation.ErrUnexpectedRowShape)

	_, err = row.Time(0)
	assert.ErrorIs(t, err, circulation.ErrUnexpectedRowShape)

	_, err = row.String(1)
	assert.ErrorIs(t, err, circulation.ErrUnexpectedRowShape)

	_, err = row.Bool(1)
	assert.ErrorIs(t, err, circulation.ErrUnexpectedRowShape)
}
