package logs

import (
	"runtime/debug"
	"time"

	"github.com/lumenwork/telemetry/trace"
)

// ErrorInfo carries an error payload attached to a log record.
type ErrorInfo struct {
	Message    string
	StackTrace string
}

// NewErrorInfo builds an ErrorInfo from an error, capturing the current
// goroutine's stack.
func NewErrorInfo(err error) *ErrorInfo {
	if err == nil {
		return nil
	}
	return &ErrorInfo{
		Message:    err.Error(),
		StackTrace: string(debug.Stack()),
	}
}

// Record is a single immutable log record. Created per call and never
// mutated afterwards; ownership passes to the export pipeline.
type Record struct {
	Time     time.Time
	Severity Severity
	Message  string
	Error    *ErrorInfo
	TraceID  trace.TraceID
	SpanID   trace.SpanID
}

// Correlated reports whether the record is stamped with span identity.
func (r Record) Correlated() bool {
	return r.TraceID.IsValid() && r.SpanID.IsValid()
}
