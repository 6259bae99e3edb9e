package circulation

import "context"

// IsolationLevel defines the transaction isolation the store runs an action with.
type IsolationLevel int

const (
	// IsolationSerializable is the default. Together with the copy row lock and the re-check
	// inside the write transaction it rules out two actors taking the same copy.
	IsolationSerializable IsolationLevel = iota

	// IsolationRepeatableRead runs the action on one snapshot.
	IsolationRepeatableRead

	// IsolationReadCommitted is the minimum the guarded transition supports. The copy row lock
	// and the compare-and-set flag update keep the final re-check sound at this level.
	IsolationReadCommitted
)

// contextKey is a private type to prevent context key collisions.
type contextKey string

// IsolationLevelKey is the context key used to override the isolation level of a single action.
const IsolationLevelKey contextKey = "circulation.isolation_level"

// WithIsolationLevel returns a context that makes the next action run with the given isolation level.
//
// Example usage:
//
//	ctx = circulation.WithIsolationLevel(ctx, circulation.IsolationReadCommitted)
//	borrow, err := desk.Borrow(ctx, request)
func WithIsolationLevel(ctx context.Context, level IsolationLevel) context.Context {
	return context.WithValue(ctx, IsolationLevelKey, level)
}

// GetIsolationLevel extracts the isolation level from the context, falling back to the given default.
func GetIsolationLevel(ctx context.Context, fallback IsolationLevel) IsolationLevel {
	if level, ok := ctx.Value(IsolationLevelKey).(IsolationLevel); ok && level.Valid() {
		return level
	}

	return fallback
}

// Valid reports whether l is one of the defined levels.
func (l IsolationLevel) Valid() bool {
	return l >= IsolationSerializable && l <= IsolationReadCommitted
}

// String provides a string representation of IsolationLevel for logging and debugging.
func (l IsolationLevel) String() string {
	switch l {
	case IsolationSerializable:
		return "serializable"
	case IsolationRepeatableRead:
		return "repeatable_read"
	case IsolationReadCommitted:
		return "read_committed"
	default:
		return "unknown"
	}
}
