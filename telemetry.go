// Package telemetry is the application-facing facade over the trace,
// logs and export packages. A process holds at most one active
// pipeline; Initialize swaps it atomically and operations before
// Initialize degrade to no-ops with a one-time warning, so
// instrumented code never crashes on SDK state.
package telemetry

import (
	"context"
	"sync"

	"github.com/lumenwork/telemetry/export"
	"github.com/lumenwork/telemetry/internal/diag"
	"github.com/lumenwork/telemetry/logs"
	"github.com/lumenwork/telemetry/trace"
)

// sdk bundles the components built by one Initialize call.
type sdk struct {
	cfg        Config
	pipeline   *export.Pipeline
	tracer     *trace.Tracer
	correlator *logs.Correlator
	stack      *trace.Stack
}

var (
	mu     sync.RWMutex
	active *sdk

	fallbackOnce sync.Once
	fallback     *logs.Correlator
)

// Initialize builds and starts the export pipeline and installs it as
// the process-wide SDK, shutting down the previous one first when
// re-initializing. Returns a *ConfigError for rejected configuration,
// leaving any running SDK untouched.
func Initialize(cfg Config) error {
	return initialize(cfg)
}

func initialize(cfg Config, opts ...export.Option) error {
	pipeline, err := export.New(cfg.toExport(), opts...)
	if err != nil {
		return err
	}

	stack := trace.NewStack()
	next := &sdk{
		cfg:        cfg,
		pipeline:   pipeline,
		tracer:     trace.NewTracer(pipeline, trace.WithStack(stack)),
		correlator: logs.NewCorrelator(pipeline, logs.WithCorrelatorStack(stack)),
		stack:      stack,
	}

	mu.Lock()
	defer mu.Unlock()

	if prev := active; prev != nil {
		ctx, cancel := context.WithTimeout(context.Background(), prev.cfg.ShutdownTimeout)
		_ = prev.pipeline.Shutdown(ctx)
		cancel()
	}

	next.pipeline.Start()
	active = next
	return nil
}

// Shutdown drains buffered records, stops the pipeline and uninstalls
// the SDK. Bounded by ctx; undelivered records are dropped at the
// deadline. Safe to call without a prior Initialize.
func Shutdown(ctx context.Context) error {
	mu.Lock()
	current := active
	active = nil
	mu.Unlock()

	if current == nil {
		return nil
	}
	return current.pipeline.Shutdown(ctx)
}

// Flush forces an immediate export of buffered records, blocking until
// delivery is attempted or ctx expires.
func Flush(ctx context.Context) error {
	if s := current(); s != nil {
		return s.pipeline.Flush(ctx)
	}
	return nil
}

func current() *sdk {
	mu.RLock()
	defer mu.RUnlock()
	return active
}

// fallbackCorrelator serves WriteLog before Initialize.
func fallbackCorrelator() *logs.Correlator {
	fallbackOnce.Do(func() {
		fallback = logs.NewCorrelator(nil)
	})
	return fallback
}

// StartSpan starts a span and makes it the current span. The parent
// defaults to the current span; pass WithParent to override. Returns a
// no-op span before Initialize.
func StartSpan(name string, kind Kind, opts ...trace.SpanOption) *Span {
	s := current()
	if s == nil {
		diag.WarnUninitialized()
		return trace.NewNoop()
	}
	return s.tracer.StartSpan(name, kind, opts...)
}

// StartSpanContext starts a span parented from ctx and returns a child
// context carrying it. The current-span stack is not touched, so
// concurrent request handlers do not interleave.
func StartSpanContext(ctx context.Context, name string, kind Kind, opts ...trace.SpanOption) (context.Context, *Span) {
	s := current()
	if s == nil {
		diag.WarnUninitialized()
		if ctx == nil {
			ctx = context.Background()
		}
		return ctx, trace.NewNoop()
	}
	return s.tracer.Start(ctx, name, kind, opts...)
}

// SetTag sets a tag on span. No-op for nil, no-op and stopped spans.
func SetTag(span *Span, key, value string) {
	if span == nil {
		return
	}
	span.SetTag(key, value)
}

// StopSpan stops span, or the current span when span is nil. Stopping
// an already stopped span is a no-op.
func StopSpan(span *Span) {
	if span == nil {
		span = CurrentSpan()
	}
	if span == nil {
		return
	}
	span.End()
}

// Tracer returns the tracer behind the process-wide pipeline, for
// wiring middleware and other instrumentation helpers. Nil before
// Initialize; the middleware package passes requests through untraced
// when given a nil tracer.
func Tracer() *trace.Tracer {
	s := current()
	if s == nil {
		return nil
	}
	return s.tracer
}

// CurrentSpan returns the active span, or nil when none is active or
// the SDK is uninitialized.
func CurrentSpan() *Span {
	s := current()
	if s == nil {
		return nil
	}
	return s.stack.Current()
}

// WriteLog records a log message stamped with the current span's trace
// and span identifiers. Before Initialize the record goes to the local
// stderr logger instead of being lost.
func WriteLog(severity Severity, message string, opts ...logs.WriteOption) {
	WriteLogContext(context.Background(), severity, message, opts...)
}

// WriteLogContext records a log message correlated with the span in
// ctx, falling back to the current span.
func WriteLogContext(ctx context.Context, severity Severity, message string, opts ...logs.WriteOption) {
	s := current()
	if s == nil {
		diag.WarnUninitialized()
		fallbackCorrelator().Write(ctx, severity, message, opts...)
		return
	}
	s.correlator.Write(ctx, severity, message, opts...)
}
