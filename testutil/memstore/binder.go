package memstore

import (
	"fmt"
	"time"

	"github.com/AntonStoeckl/library-circulation-go/circulation"
)

// binder reads positional parameters with the casts the PostgreSQL statements apply.
// The first type or count mismatch is kept and reported by done.
type binder struct {
	key    circulation.StatementKey
	params []any
	err    error
}

func (b *binder) at(i int) any {
	if i >= len(b.params) {
		b.fail("missing parameter $%d", i+1)
		return nil
	}

	return b.params[i]
}

func (b *binder) fail(format string, args ...any) {
	if b.err == nil {
		b.err = fmt.Errorf("%w: %s: %s", ErrBadParameters, b.key, fmt.Sprintf(format, args...))
	}
}

func (b *binder) int64(i int) int64 {
	switch v := b.at(i).(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case nil:
		if i < len(b.params) {
			b.fail("parameter $%d is NULL", i+1)
		}
	default:
		b.fail("parameter $%d is %T, not an integer", i+1, v)
	}

	return 0
}

// nullableInt64 maps NULL to 0.
func (b *binder) nullableInt64(i int) int64 {
	if i < len(b.params) && b.params[i] == nil {
		return 0
	}

	return b.int64(i)
}

func (b *binder) bool(i int) bool {
	v, ok := b.at(i).(bool)
	if !ok && b.err == nil {
		b.fail("parameter $%d is %T, not a boolean", i+1, b.params[i])
	}

	return v
}

func (b *binder) string(i int) string {
	v, ok := b.at(i).(string)
	if !ok && b.err == nil {
		b.fail("parameter $%d is %T, not text", i+1, b.params[i])
	}

	return v
}

func (b *binder) time(i int) time.Time {
	v, ok := b.at(i).(time.Time)
	if !ok && b.err == nil {
		b.fail("parameter $%d is %T, not a timestamp", i+1, b.params[i])
	}

	return v
}

// date truncates like a ::date cast.
func (b *binder) date(i int) time.Time {
	return circulation.Day(b.time(i))
}

func (b *binder) done(expected int) error {
	if b.err != nil {
		return b.err
	}

	if len(b.params) != expected {
		return fmt.Errorf("%w: %s binds %d parameters, got %d", ErrBadParameters, b.key, expected, len(b.params))
	}

	return nil
}
