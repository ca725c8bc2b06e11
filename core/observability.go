package core

import (
	"context"
	"sort"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	outcomeSuccess  = "success"
	outcomeRejected = "rejected"
	outcomeFailure  = "failure"
)

// observeOperation emits one counter, one duration histogram and one log
// line per service call. Caller mistakes (bad code, unknown device, missing
// identity, throttling) are "rejected" and logged at warn; anything else that
// fails is a "failure" logged at error. Device ids and uids go to the log
// only, never to metric tags.
func (s *Service) observeOperation(
	ctx context.Context,
	startedAt time.Time,
	operation string,
	err error,
	fields map[string]any,
) {
	if s == nil {
		return
	}
	operation = strings.TrimSpace(operation)
	if operation == "" {
		operation = "unknown"
	}
	elapsed := time.Since(startedAt)
	code := errorTextCode(err)
	outcome := operationOutcome(err, code)

	tags := map[string]string{
		"operation": operation,
		"status":    outcome,
	}
	if code != "" {
		tags["error_code"] = code
	}
	s.recordCounter(ctx, "devices."+operation+".total", 1, tags)
	s.recordHistogram(ctx, "devices."+operation+".duration_ms", float64(elapsed.Milliseconds()), tags)

	logFields := cloneFields(fields)
	logFields["operation"] = operation
	logFields["status"] = outcome
	logFields["duration_ms"] = elapsed.Milliseconds()
	if code != "" {
		logFields["error_code"] = code
	}

	switch outcome {
	case outcomeSuccess:
		s.log(ctx, "info", operation+" succeeded", logFields)
	case outcomeRejected:
		logFields["reason"] = err.Error()
		s.log(ctx, "warn", operation+" rejected", logFields)
	default:
		logFields["error"] = err.Error()
		s.log(ctx, "error", operation+" failed", logFields)
	}
}

func operationOutcome(err error, code string) string {
	if err == nil {
		return outcomeSuccess
	}
	switch code {
	case ServiceErrorUnauthenticated,
		ServiceErrorInvalidArgument,
		ServiceErrorNotFound,
		ServiceErrorPermissionDenied,
		ServiceErrorAlreadyExists,
		ServiceErrorFailedPrecondition,
		ServiceErrorResourceExhausted:
		return outcomeRejected
	}
	return outcomeFailure
}

func (s *Service) log(ctx context.Context, level string, message string, fields map[string]any) {
	if s == nil || s.logger == nil {
		return
	}
	logger := s.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if fieldsLogger, ok := logger.(FieldsLogger); ok {
		logger = fieldsLogger.WithFields(cloneFields(fields))
	}
	args := flattenFields(fields)
	switch level {
	case "error":
		logger.Error(message, args...)
	case "warn":
		logger.Warn(message, args...)
	default:
		logger.Info(message, args...)
	}
}

func (s *Service) recordCounter(ctx context.Context, name string, value int64, tags map[string]string) {
	if s == nil || s.metricsRecorder == nil {
		return
	}
	s.metricsRecorder.IncCounter(ctx, name, value, cloneTags(tags))
}

func (s *Service) recordHistogram(ctx context.Context, name string, value float64, tags map[string]string) {
	if s == nil || s.metricsRecorder == nil {
		return
	}
	s.metricsRecorder.ObserveHistogram(ctx, name, value, cloneTags(tags))
}

func cloneFields(fields map[string]any) map[string]any {
	copied := make(map[string]any, len(fields)+4)
	for key, value := range fields {
		copied[key] = value
	}
	return copied
}

// flattenFields renders fields as sorted key/value pairs for loggers without
// WithFields support.
func flattenFields(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}
	return args
}

func errorTextCode(err error) string {
	if err == nil {
		return ""
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return strings.TrimSpace(richErr.TextCode)
	}
	return ""
}
