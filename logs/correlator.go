// Package logs correlates log records with active spans and forwards
// them to the export pipeline.
package logs

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/lumenwork/telemetry/internal/diag"
	"github.com/lumenwork/telemetry/trace"
)

// ErrInvalidSeverity marks a rejected severity string at the API boundary.
var ErrInvalidSeverity = errors.New("logs: invalid severity")

// LogSink receives finished log records. Implemented by the export
// pipeline; Enqueue must be non-blocking.
type LogSink interface {
	EnqueueLog(Record)
}

// Correlator builds log records, stamps them with the active span's
// identifiers and forwards them to its sink. With no sink configured
// (telemetry not initialized) records go to a stderr fallback logger
// instead of being dropped silently.
type Correlator struct {
	sink     LogSink
	stack    *trace.Stack
	fallback *zap.Logger
	now      func() time.Time
}

// CorrelatorOption configures a Correlator.
type CorrelatorOption func(*Correlator)

// WithCorrelatorStack resolves the implicit span from the given
// current-span stack.
func WithCorrelatorStack(stack *trace.Stack) CorrelatorOption {
	return func(c *Correlator) { c.stack = stack }
}

// WithFallback overrides the logger used when no sink is configured.
func WithFallback(logger *zap.Logger) CorrelatorOption {
	return func(c *Correlator) { c.fallback = logger }
}

// WithNow overrides the clock. Test hook.
func WithNow(now func() time.Time) CorrelatorOption {
	return func(c *Correlator) { c.now = now }
}

// NewCorrelator creates a correlator delivering records to sink. A nil
// sink selects fallback-only mode.
func NewCorrelator(sink LogSink, opts ...CorrelatorOption) *Correlator {
	c := &Correlator{
		sink: sink,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.stack == nil {
		c.stack = trace.NewStack()
	}
	if c.fallback == nil {
		c.fallback = diag.Logger()
	}
	return c
}

// WriteOption configures a single Write call.
type WriteOption func(*writeConfig)

type writeConfig struct {
	errInfo *ErrorInfo
	span    *trace.Span
}

// WithError attaches an error payload, capturing the caller's stack.
func WithError(err error) WriteOption {
	return func(c *writeConfig) { c.errInfo = NewErrorInfo(err) }
}

// WithErrorInfo attaches a pre-built error payload.
func WithErrorInfo(info *ErrorInfo) WriteOption {
	return func(c *writeConfig) { c.errInfo = info }
}

// WithSpan correlates the record with an explicit span instead of the
// context or current span.
func WithSpan(span *trace.Span) WriteOption {
	return func(c *writeConfig) { c.span = span }
}

// Write builds a record and forwards it. The associated span defaults
// to the context span, then the current span; records are emitted
// uncorrelated when neither exists.
func (c *Correlator) Write(ctx context.Context, severity Severity, message string, opts ...WriteOption) {
	var cfg writeConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	record := Record{
		Time:     c.now(),
		Severity: severity,
		Message:  message,
		Error:    cfg.errInfo,
	}

	span := cfg.span
	if span == nil {
		span = trace.SpanFromContext(ctx)
	}
	if span == nil {
		span = c.stack.Current()
	}
	if span != nil && !span.IsNoop() {
		record.TraceID = span.TraceID()
		record.SpanID = span.SpanID()
	}

	if c.sink == nil {
		c.writeFallback(record)
		return
	}
	c.sink.EnqueueLog(record)
}

// writeFallback emits the record to the local logger.
func (c *Correlator) writeFallback(record Record) {
	fields := make([]zap.Field, 0, 4)
	if record.Correlated() {
		fields = append(fields,
			zap.String("trace_id", record.TraceID.String()),
			zap.String("span_id", record.SpanID.String()),
		)
	}
	if record.Error != nil {
		fields = append(fields, zap.String("error", record.Error.Message))
	}
	if record.Severity == SeverityCritical {
		fields = append(fields, zap.String("severity", record.Severity.String()))
	}

	if ce := c.fallback.Check(record.Severity.zapLevel(), record.Message); ce != nil {
		ce.Write(fields...)
	}
}
