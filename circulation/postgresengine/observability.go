package postgresengine

import (
	"context"
	"fmt"
	"time"

	"github.com/AntonStoeckl/library-circulation-go/circulation"
)

const (
	// StatementDurationMetric tracks the execution time of every statement.
	StatementDurationMetric = "circulation_statement_duration_seconds"
	// StatementCallsMetric counts statements by key and status.
	StatementCallsMetric = "circulation_statements_total"
	// StatementErrorsMetric counts failed statements, begins and commits by SQLSTATE.
	StatementErrorsMetric = "circulation_statement_errors_total"
	// RowsReturnedMetric records the number of rows each query returned.
	RowsReturnedMetric = "circulation_rows_returned"

	logMsgSQLExecuted      = "executed sql for: "
	logMsgStatementFailed  = "database statement failed"
	logMsgCloseRowsFailed  = "failed to close database rows"
	logMsgBeginFailed      = "failed to begin transaction"
	logMsgCommitFailed     = "failed to commit transaction"
	logMsgSchemaEnsured    = "circulation schema ensured"
	logMsgWriteCompleted   = "write statement completed"
	logMsgRollbackFailed   = "failed to roll back transaction"
	logAttrQuery           = "query"
	logAttrStatement       = "statement"
	logAttrStatementCount  = "statement_count"
	logAttrRowsAffected    = "rows_affected"
	logAttrDurationMS      = "duration_ms"
	logAttrError           = "error"
	logAttrSQLState        = "sqlstate"
	logAttrIsolation       = "isolation_level"
	spanNameStatement      = "circulation.statement"
	spanAttrStatement      = "db.statement_key"
	spanAttrSystem         = "db.system"
	spanAttrRowCount       = "db.row_count"
	spanAttrSQLState       = "db.sqlstate"
	spanAttrDurationMS     = "duration_ms"
	spanValueSystem        = "postgresql"
	labelStatement         = "statement"
	labelStatus            = "status"
	labelSQLState          = "sqlstate"
	labelOperation         = "operation"
	statusSuccess          = "success"
	statusError            = "error"
	operationBegin         = "begin"
	operationCommit        = "commit"
	operationQuery         = "query"
	operationExec          = "exec"
	sqlStateUnknown        = "unknown"
)

// logQueryWithDuration logs SQL statements with execution time at debug level.
func (s Store) logQueryWithDuration(ctx context.Context, key circulation.StatementKey, sqlQuery string, duration time.Duration) {
	s.logDebug(ctx, logMsgSQLExecuted+key.String(), logAttrQuery, sqlQuery, logAttrDurationMS, circulation.ToMilliseconds(duration))
}

func (s Store) logDebug(ctx context.Context, msg string, args ...any) {
	if s.contextualLogger != nil {
		s.contextualLogger.DebugContext(ctx, msg, args...)
		return
	}

	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s Store) logWarn(ctx context.Context, msg string, args ...any) {
	if s.contextualLogger != nil {
		s.contextualLogger.WarnContext(ctx, msg, args...)
		return
	}

	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}

func (s Store) logError(ctx context.Context, msg string, args ...any) {
	if s.contextualLogger != nil {
		s.contextualLogger.ErrorContext(ctx, msg, args...)
		return
	}

	if s.logger != nil {
		s.logger.Error(msg, args...)
	}
}

// recordStatementMetrics records duration and outcome of one statement.
func (s Store) recordStatementMetrics(ctx context.Context, operation string, key circulation.StatementKey, duration time.Duration, err error) {
	if s.metricsCollector == nil {
		return
	}

	status := statusSuccess
	if err != nil {
		status = statusError
	}

	labels := map[string]string{labelStatement: key.String(), labelOperation: operation, labelStatus: status}

	if contextual, ok := s.metricsCollector.(circulation.ContextualMetricsCollector); ok {
		contextual.RecordDurationContext(ctx, StatementDurationMetric, duration, labels)
		contextual.IncrementCounterContext(ctx, StatementCallsMetric, labels)
	} else {
		s.metricsCollector.RecordDuration(StatementDurationMetric, duration, labels)
		s.metricsCollector.IncrementCounter(StatementCallsMetric, labels)
	}

	if err != nil {
		s.recordDatabaseError(ctx, operation, err)
	}
}

// recordRowsReturned records the result size of a successful query.
func (s Store) recordRowsReturned(ctx context.Context, key circulation.StatementKey, count int) {
	if s.metricsCollector == nil {
		return
	}

	labels := map[string]string{labelStatement: key.String()}

	if contextual, ok := s.metricsCollector.(circulation.ContextualMetricsCollector); ok {
		contextual.RecordValueContext(ctx, RowsReturnedMetric, float64(count), labels)
		return
	}

	s.metricsCollector.RecordValue(RowsReturnedMetric, float64(count), labels)
}

func (s Store) logInfo(ctx context.Context, msg string, args ...any) {
	if s.contextualLogger != nil {
		s.contextualLogger.InfoContext(ctx, msg, args...)
		return
	}

	if s.logger != nil {
		s.logger.Info(msg, args...)
	}
}

// recordDatabaseError counts a failed database call by SQLSTATE.
func (s Store) recordDatabaseError(ctx context.Context, operation string, err error) {
	if s.metricsCollector == nil {
		return
	}

	code := sqlState(err)
	if code == "" {
		code = sqlStateUnknown
	}

	labels := map[string]string{labelOperation: operation, labelSQLState: code}

	if contextual, ok := s.metricsCollector.(circulation.ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(ctx, StatementErrorsMetric, labels)
		return
	}

	s.metricsCollector.IncrementCounter(StatementErrorsMetric, labels)
}

// startStatementSpan starts a tracing span for one statement if tracing is configured.
func (s Store) startStatementSpan(ctx context.Context, key circulation.StatementKey) (context.Context, circulation.SpanContext) {
	if s.tracingCollector == nil {
		return ctx, nil
	}

	return s.tracingCollector.StartSpan(ctx, spanNameStatement, map[string]string{
		spanAttrStatement: key.String(),
		spanAttrSystem:    spanValueSystem,
	})
}

// finishStatementSpan finishes a statement span with its outcome.
func (s Store) finishStatementSpan(span circulation.SpanContext, count int64, duration time.Duration, err error) {
	if s.tracingCollector == nil || span == nil {
		return
	}

	attrs := map[string]string{
		spanAttrRowCount:   fmt.Sprintf("%d", count),
		spanAttrDurationMS: fmt.Sprintf("%.2f", circulation.ToMilliseconds(duration)),
	}

	status := statusSuccess
	if err != nil {
		status = statusError
		if code := sqlState(err); code != "" {
			attrs[spanAttrSQLState] = code
		}
	}

	s.tracingCollector.FinishSpan(span, status, attrs)
}
