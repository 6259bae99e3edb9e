package circulation

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	logMsgActionStarted   = "circulation action started"
	logMsgActionCompleted = "circulation action completed"
	logMsgActionRejected  = "circulation action rejected"
	logMsgActionAborted   = "circulation action aborted"
	logMsgActionFailed    = "circulation action failed"
	logMsgRollbackFailed  = "circulation rollback failed"
)

// actionSubject extracts the attributes shared by all action logs and spans.
func actionSubject(request Request) []any {
	switch r := request.(type) {
	case ReserveRequest:
		return []any{LogAttrActionID, r.ActionID.String(), LogAttrCopyID, r.CopyID, LogAttrCustomerID, r.CustomerID}
	case BorrowRequest:
		return []any{LogAttrActionID, r.ActionID.String(), LogAttrCopyID, r.CopyID, LogAttrCustomerID, r.CustomerID}
	case ReturnRequest:
		return []any{LogAttrActionID, r.ActionID.String(), LogAttrCopyID, r.CopyID, LogAttrCustomerID, r.CustomerID}
	default:
		return nil
	}
}

func (d *Desk) logActionStarted(ctx context.Context, request Request, isolation IsolationLevel) {
	args := append([]any{LogAttrActionType, request.ActionType(), LogAttrIsolation, isolation.String()}, actionSubject(request)...)

	d.logInfo(ctx, logMsgActionStarted, args...)
}

func (d *Desk) finishAction(ctx context.Context, span SpanContext, request Request, duration time.Duration, err error) {
	status := ClassifyOutcome(err)
	args := append(
		[]any{LogAttrActionType, request.ActionType(), LogAttrStatus, status, LogAttrDurationMS, ToMilliseconds(duration)},
		actionSubject(request)...,
	)

	switch status {
	case StatusSuccess:
		d.logInfo(ctx, logMsgActionCompleted, args...)
	case StatusPrecondition:
		d.logInfo(ctx, logMsgActionRejected, append(args, LogAttrError, err.Error())...)
	case StatusAborted, StatusCanceled:
		d.logInfo(ctx, logMsgActionAborted, append(args, LogAttrError, err.Error())...)
	default:
		d.logError(ctx, logMsgActionFailed, append(args, LogAttrError, err.Error(), LogAttrDiagnosticCode, DiagnosticCode(err))...)
	}

	if errors.Is(err, ErrRollbackFailed) {
		d.logWarn(ctx, logMsgRollbackFailed, append(args, LogAttrError, err.Error())...)
	}

	d.recordActionMetrics(ctx, request.ActionType(), status, duration, err)
	d.finishActionSpan(span, status, duration, err)
}

func (d *Desk) recordActionMetrics(ctx context.Context, actionType, status string, duration time.Duration, err error) {
	if d.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		LogAttrActionType: actionType,
		LogAttrStatus:     status,
	}

	recordDuration(ctx, d.metricsCollector, ActionDurationMetric, duration, labels)
	recordCounter(ctx, d.metricsCollector, ActionCallsMetric, labels)

	switch status {
	case StatusPrecondition:
		recordCounter(ctx, d.metricsCollector, PreconditionFailuresMetric, map[string]string{
			LogAttrActionType: actionType,
			LogAttrReason:     PreconditionReason(err),
		})
	case StatusError:
		recordCounter(ctx, d.metricsCollector, TransactionFailuresMetric, map[string]string{
			LogAttrActionType:     actionType,
			LogAttrDiagnosticCode: DiagnosticCode(err),
		})
	}
}

func (d *Desk) startActionSpan(ctx context.Context, request Request) (context.Context, SpanContext) {
	if d.tracingCollector == nil {
		return ctx, nil
	}

	attrs := map[string]string{LogAttrActionType: request.ActionType()}

	subject := actionSubject(request)
	for i := 0; i+1 < len(subject); i += 2 {
		attrs[fmt.Sprint(subject[i])] = fmt.Sprint(subject[i+1])
	}

	return d.tracingCollector.StartSpan(ctx, SpanNamePrefixAction+request.ActionType(), attrs)
}

func (d *Desk) finishActionSpan(span SpanContext, status string, duration time.Duration, err error) {
	if d.tracingCollector == nil || span == nil {
		return
	}

	attrs := map[string]string{
		LogAttrStatus:     status,
		LogAttrDurationMS: fmt.Sprintf("%.2f", ToMilliseconds(duration)),
	}

	if err != nil {
		attrs[LogAttrError] = err.Error()

		if code := DiagnosticCode(err); code != "" {
			attrs[LogAttrDiagnosticCode] = code
		}
	}

	d.tracingCollector.FinishSpan(span, spanStatus(status), attrs)
}

// spanStatus maps outcomes to the status vocabulary span adapters understand.
func spanStatus(status string) string {
	switch status {
	case StatusSuccess, StatusPrecondition, StatusAborted:
		return "ok"
	case StatusCanceled:
		return "canceled"
	default:
		return "error"
	}
}

func (d *Desk) logInfo(ctx context.Context, msg string, args ...any) {
	if d.contextualLogger != nil {
		d.contextualLogger.InfoContext(ctx, msg, args...)
	} else if d.logger != nil {
		d.logger.Info(msg, args...)
	}
}

func (d *Desk) logWarn(ctx context.Context, msg string, args ...any) {
	if d.contextualLogger != nil {
		d.contextualLogger.WarnContext(ctx, msg, args...)
	} else if d.logger != nil {
		d.logger.Warn(msg, args...)
	}
}

func (d *Desk) logError(ctx context.Context, msg string, args ...any) {
	if d.contextualLogger != nil {
		d.contextualLogger.ErrorContext(ctx, msg, args...)
	} else if d.logger != nil {
		d.logger.Error(msg, args...)
	}
}
