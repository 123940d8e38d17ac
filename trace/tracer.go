package trace

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lumenwork/telemetry/internal/diag"
	"github.com/lumenwork/telemetry/internal/idgen"
)

// SpanSink receives finished span snapshots. Implemented by the export
// pipeline; Enqueue must be non-blocking.
type SpanSink interface {
	EnqueueSpan(SpanData)
}

// Tracer creates spans, links them to parents and hands finished spans
// to its sink. Safe for concurrent use.
type Tracer struct {
	sink  SpanSink
	stack *Stack
	ids   *idgen.Generator
	now   func() time.Time
}

// TracerOption configures a Tracer.
type TracerOption func(*Tracer)

// WithStack shares an existing current-span stack, letting a facade
// observe the tracer's current span.
func WithStack(stack *Stack) TracerOption {
	return func(t *Tracer) { t.stack = stack }
}

// WithTimeSource overrides the clock. Test hook.
func WithTimeSource(now func() time.Time) TracerOption {
	return func(t *Tracer) { t.now = now }
}

// NewTracer creates a tracer delivering finished spans to sink.
func NewTracer(sink SpanSink, opts ...TracerOption) *Tracer {
	t := &Tracer{
		sink: sink,
		ids:  idgen.Default(),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.stack == nil {
		t.stack = NewStack()
	}
	return t
}

// Stack returns the tracer's current-span stack.
func (t *Tracer) Stack() *Stack {
	return t.stack
}

// SpanOption configures span creation.
type SpanOption func(*startConfig)

type startConfig struct {
	parent        *Span
	remoteTraceID TraceID
	remoteSpanID  SpanID
}

// WithParent links the new span under an explicit parent instead of the
// current span.
func WithParent(parent *Span) SpanOption {
	return func(c *startConfig) { c.parent = parent }
}

// WithRemoteParent links the new span under identifiers extracted from
// an incoming request (see Traceparent helpers).
func WithRemoteParent(traceID TraceID, spanID SpanID) SpanOption {
	return func(c *startConfig) {
		c.remoteTraceID = traceID
		c.remoteSpanID = spanID
	}
}

// StartSpan creates and starts a span, making it current. The parent
// defaults to the current span; pass WithParent to override. An invalid
// kind yields a no-op span so instrumented code never crashes; string
// kinds should be validated with ParseKind first.
func (t *Tracer) StartSpan(name string, kind Kind, opts ...SpanOption) *Span {
	span := t.newSpan(nil, name, kind, opts...)
	if span.IsNoop() {
		return span
	}
	t.stack.Push(span)
	return span
}

// Start creates a span parented from ctx and returns a child context
// carrying it. The current-span stack is not touched; context
// propagation carries the lineage instead.
func (t *Tracer) Start(ctx context.Context, name string, kind Kind, opts ...SpanOption) (context.Context, *Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	span := t.newSpan(ctx, name, kind, opts...)
	if span.IsNoop() {
		return ctx, span
	}
	return ContextWithSpan(ctx, span), span
}

func (t *Tracer) newSpan(ctx context.Context, name string, kind Kind, opts ...SpanOption) *Span {
	if !kind.Valid() {
		diag.Logger().Error("rejected span with invalid kind",
			zap.String("name", name),
			zap.Int("kind", int(kind)),
		)
		return NewNoop()
	}

	var cfg startConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	parent := cfg.parent
	if parent == nil {
		if ctx != nil {
			parent = SpanFromContext(ctx)
		} else {
			parent = t.stack.Current()
		}
	}
	if parent != nil && parent.IsNoop() {
		parent = nil
	}

	span := &Span{
		tracer:    t,
		spanID:    t.ids.SpanID(),
		name:      name,
		kind:      kind,
		startTime: t.now(),
	}

	switch {
	case parent != nil:
		span.traceID = parent.TraceID()
		span.parentID = parent.SpanID()
	case cfg.remoteTraceID.IsValid():
		span.traceID = cfg.remoteTraceID
		span.parentID = cfg.remoteSpanID
	default:
		span.traceID = t.ids.TraceID()
	}

	return span
}

// finish is called once per span from Span.End.
func (t *Tracer) finish(span *Span, data SpanData) {
	t.stack.Pop(span)
	if t.sink != nil {
		t.sink.EnqueueSpan(data)
	}
}
