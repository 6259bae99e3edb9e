package circulation

import (
	"fmt"
	"strconv"
	"time"
)

// Row is one result row. Values are positional in the column order the statement key documents.
// Engines hand over driver values; the accessors normalise the usual representations.
type Row []any

func (r Row) value(i int) (any, error) {
	if i < 0 || i >= len(r) {
		return nil, fmt.Errorf("%w: column %d of %d", ErrUnexpectedRowShape, i, len(r))
	}

	return r[i], nil
}

// Int64 reads an integer column.
func (r Row) Int64(i int) (int64, error) {
	v, err := r.value(i)
	if err != nil {
		return 0, err
	}

	switch typed := v.(type) {
	case int64:
		return typed, nil
	case int32:
		return int64(typed), nil
	case int:
		return int64(typed), nil
	case int16:
		return int64(typed), nil
	case float64:
		return int64(typed), nil
	case []byte:
		return strconv.ParseInt(string(typed), 10, 64)
	case string:
		return strconv.ParseInt(typed, 10, 64)
	default:
		return 0, fmt.Errorf("%w: column %d holds %T, want integer", ErrUnexpectedRowShape, i, v)
	}
}

// NullableInt64 reads an integer column that may be NULL; NULL reads as zero.
func (r Row) NullableInt64(i int) (int64, error) {
	v, err := r.value(i)
	if err != nil {
		return 0, err
	}

	if v == nil {
		return 0, nil
	}

	return r.Int64(i)
}

// String reads a text column.
func (r Row) String(i int) (string, error) {
	v, err := r.value(i)
	if err != nil {
		return "", err
	}

	switch typed := v.(type) {
	case string:
		return typed, nil
	case []byte:
		return string(typed), nil
	default:
		return "", fmt.Errorf("%w: column %d holds %T, want text", ErrUnexpectedRowShape, i, v)
	}
}

// Time reads a date or timestamp column.
func (r Row) Time(i int) (time.Time, error) {
	v, err := r.value(i)
	if err != nil {
		return time.Time{}, err
	}

	typed, ok := v.(time.Time)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: column %d holds %T, want date", ErrUnexpectedRowShape, i, v)
	}

	return typed, nil
}

// Bool reads a boolean column.
func (r Row) Bool(i int) (bool, error) {
	v, err := r.value(i)
	if err != nil {
		return false, err
	}

	switch typed := v.(type) {
	case bool:
		return typed, nil
	case []byte:
		return strconv.ParseBool(string(typed))
	case string:
		return strconv.ParseBool(typed)
	default:
		return false, fmt.Errorf("%w: column %d holds %T, want boolean", ErrUnexpectedRowShape, i, v)
	}
}

// Float64 reads a floating-point column.
func (r Row) Float64(i int) (float64, error) {
	v, err := r.value(i)
	if err != nil {
		return 0, err
	}

	switch typed := v.(type) {
	case float64:
		return typed, nil
	case float32:
		return float64(typed), nil
	case int64:
		return float64(typed), nil
	case []byte:
		return strconv.ParseFloat(string(typed), 64)
	case string:
		return strconv.ParseFloat(typed, 64)
	default:
		return 0, fmt.Errorf("%w: column %d holds %T, want floating-point", ErrUnexpectedRowShape, i, v)
	}
}
