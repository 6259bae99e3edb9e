package circulation

import (
	"errors"
	"strings"
	"time"
)

// DateLayout is the day-month-year input format used at the circulation desk, e.g. "01-01-2030".
const DateLayout = "02-01-2006"

var ErrInvalidDate = errors.New("invalid date, expected DD-MM-YYYY")

// ParseDate parses a DD-MM-YYYY date as a UTC calendar day.
func ParseDate(input string) (time.Time, error) {
	date, err := time.ParseInLocation(DateLayout, strings.TrimSpace(input), time.UTC)
	if err != nil {
		return time.Time{}, errors.Join(ErrInvalidDate, err)
	}

	return date, nil
}

// FormatDate formats a calendar day as DD-MM-YYYY.
func FormatDate(date time.Time) string {
	return date.Format(DateLayout)
}

// Day returns the calendar day of t in t's own location, as midnight UTC.
// A clock in Europe/Berlin at 00:30 is already on the next day.
func Day(t time.Time) time.Time {
	year, month, day := t.Date()

	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
