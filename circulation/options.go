package circulation

import "time"

// Option defines a functional option for configuring a Desk.
type Option func(*Desk) error

// WithLogger sets the logger for the Desk.
//
// Info level: started and completed actions, rejected preconditions, aborts
// Warn level: rollback failures
// Error level: transaction failures with their diagnostic code.
func WithLogger(logger Logger) Option {
	return func(d *Desk) error {
		d.logger = logger
		return nil
	}
}

// WithContextualLogger sets a context-aware logger; it takes precedence over WithLogger.
func WithContextualLogger(logger ContextualLogger) Option {
	return func(d *Desk) error {
		d.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for action durations, outcomes and retries.
func WithMetrics(collector MetricsCollector) Option {
	return func(d *Desk) error {
		d.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector; every action gets a span named circulation.<ActionType>.
func WithTracing(collector TracingCollector) Option {
	return func(d *Desk) error {
		d.tracingCollector = collector
		return nil
	}
}

// WithClock replaces time.Now, which decides "today" for due dates, expiry and age.
func WithClock(clock func() time.Time) Option {
	return func(d *Desk) error {
		if clock == nil {
			return ErrNilClock
		}

		d.clock = clock

		return nil
	}
}

// WithIsolation sets the default isolation level of all transactions.
func WithIsolation(level IsolationLevel) Option {
	return func(d *Desk) error {
		if !level.Valid() {
			return ErrInvalidIsolationLevel
		}

		d.isolation = level

		return nil
	}
}

// WithRetry retries the write transaction of an action on serialization failures.
// Without this option a failed transaction is reported and never retried.
func WithRetry(options ...RetryOption) Option {
	return func(d *Desk) error {
		validated := &retryConfig{}
		for _, option := range options {
			if err := option(validated); err != nil {
				return err
			}
		}

		d.retryOptions = append([]RetryOption{}, options...)

		return nil
	}
}
