package circulation

import (
	"context"
	"errors"
	"time"
)

// Logger interface for action outcomes, warnings and error reporting. *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// ContextualLogger interface for context-aware logging with automatic trace correlation.
type ContextualLogger interface {
	DebugContext(ctx context.Context, msg string, args ...any)
	InfoContext(ctx context.Context, msg string, args ...any)
	WarnContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)
}

// MetricsCollector interface for collecting circulation performance and operational metrics.
type MetricsCollector interface {
	RecordDuration(metric string, duration time.Duration, labels map[string]string)
	IncrementCounter(metric string, labels map[string]string)
	RecordValue(metric string, value float64, labels map[string]string)
}

// ContextualMetricsCollector extends MetricsCollector with context-aware methods for trace correlation.
// It is optional: the context-aware methods are used when available.
type ContextualMetricsCollector interface {
	MetricsCollector
	RecordDurationContext(ctx context.Context, metric string, duration time.Duration, labels map[string]string)
	IncrementCounterContext(ctx context.Context, metric string, labels map[string]string)
	RecordValueContext(ctx context.Context, metric string, value float64, labels map[string]string)
}

// SpanContext represents an active tracing span that can be finished and updated with attributes.
type SpanContext interface {
	SetStatus(status string)
	AddAttribute(key, value string)
}

// TracingCollector interface for distributed tracing of circulation actions and statements.
// It is dependency-free; the oteladapters package implements it for OpenTelemetry.
type TracingCollector interface {
	StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, SpanContext)
	FinishSpan(spanCtx SpanContext, status string, attrs map[string]string)
}

const (
	// ActionDurationMetric tracks the duration of reserve, borrow and return actions.
	ActionDurationMetric = "circulation_action_duration_seconds"
	// ActionCallsMetric counts actions by type and status.
	ActionCallsMetric = "circulation_actions_total"
	// PreconditionFailuresMetric counts actions rejected by a business precondition.
	PreconditionFailuresMetric = "circulation_precondition_failures_total"
	// TransactionFailuresMetric counts actions the store rejected, labeled with the diagnostic code.
	TransactionFailuresMetric = "circulation_transaction_failures_total"
	// RetriesMetric counts retried serialization failures.
	RetriesMetric = "circulation_retries_total"
	// RetryDelayMetric tracks the backoff before each retry.
	RetryDelayMetric = "circulation_retry_delay_seconds"

	StatusSuccess      = "success"
	StatusPrecondition = "precondition_failed"
	StatusError        = "error"
	StatusAborted      = "aborted"
	StatusCanceled     = "canceled"

	LogAttrActionType     = "action_type"
	LogAttrActionID       = "action_id"
	LogAttrCopyID         = "copy_id"
	LogAttrCustomerID     = "customer_id"
	LogAttrStatus         = "status"
	LogAttrDurationMS     = "duration_ms"
	LogAttrError          = "error"
	LogAttrReason         = "reason"
	LogAttrDiagnosticCode = "diagnostic_code"
	LogAttrAttempt        = "attempt_number"
	LogAttrIsolation      = "isolation_level"

	SpanNamePrefixAction = "circulation."
)

// ClassifyOutcome maps an action error to the status used in logs, metrics and spans.
func ClassifyOutcome(err error) string {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, ErrActionAborted):
		return StatusAborted
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return StatusCanceled
	case errors.Is(err, ErrPreconditionFailed):
		return StatusPrecondition
	default:
		return StatusError
	}
}

// ToMilliseconds converts a time.Duration to float64 milliseconds.
func ToMilliseconds(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1e6
}

func recordCounter(ctx context.Context, collector MetricsCollector, metric string, labels map[string]string) {
	if collector == nil {
		return
	}

	if contextual, ok := collector.(ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(ctx, metric, labels)
		return
	}

	collector.IncrementCounter(metric, labels)
}

func recordDuration(ctx context.Context, collector MetricsCollector, metric string, d time.Duration, labels map[string]string) {
	if collector == nil {
		return
	}

	if contextual, ok := collector.(ContextualMetricsCollector); ok {
		contextual.RecordDurationContext(ctx, metric, d, labels)
		return
	}

	collector.RecordDuration(metric, d, labels)
}
