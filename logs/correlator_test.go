package logs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/lumenwork/telemetry/trace"
)

type captureLogSink struct {
	mu      sync.Mutex
	records []Record
}

func (c *captureLogSink) EnqueueLog(r Record) {
	c.mu.Lock()
	c.records = append(c.records, r)
	c.mu.Unlock()
}

func (c *captureLogSink) all() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Record, len(c.records))
	copy(out, c.records)
	return out
}

func TestWriteUncorrelated(t *testing.T) {
	sink := &captureLogSink{}
	c := NewCorrelator(sink)

	c.Write(context.Background(), SeverityInformation, "hello")

	require.Len(t, sink.all(), 1)
	record := sink.all()[0]
	assert.Equal(t, "hello", record.Message)
	assert.Equal(t, SeverityInformation, record.Severity)
	assert.False(t, record.Correlated())
	assert.False(t, record.Time.IsZero())
}

func TestWriteStampsContextSpan(t *testing.T) {
	sink := &captureLogSink{}
	c := NewCorrelator(sink)
	tracer := trace.NewTracer(nil)

	ctx, span := tracer.Start(context.Background(), "op", trace.KindInternal)
	c.Write(ctx, SeverityDebug, "inside span")

	require.Len(t, sink.all(), 1)
	record := sink.all()[0]
	assert.Equal(t, span.TraceID(), record.TraceID)
	assert.Equal(t, span.SpanID(), record.SpanID)
	assert.True(t, record.Correlated())
}

func TestWriteStampsCurrentSpanFromStack(t *testing.T) {
	sink := &captureLogSink{}
	stack := trace.NewStack()
	tracer := trace.NewTracer(nil, trace.WithStack(stack))
	c := NewCorrelator(sink, WithCorrelatorStack(stack))

	span := tracer.StartSpan("op", trace.KindInternal)
	c.Write(context.Background(), SeverityWarning, "implicit")
	span.End()
	c.Write(context.Background(), SeverityWarning, "after stop")

	records := sink.all()
	require.Len(t, records, 2)
	assert.Equal(t, span.SpanID(), records[0].SpanID)
	assert.False(t, records[1].Correlated())
}

func TestWriteExplicitSpanWins(t *testing.T) {
	sink := &captureLogSink{}
	c := NewCorrelator(sink)
	tracer := trace.NewTracer(nil)

	ctx, ctxSpan := tracer.Start(context.Background(), "ctx", trace.KindInternal)
	explicit := tracer.StartSpan("explicit", trace.KindInternal)

	c.Write(ctx, SeverityInformation, "msg", WithSpan(explicit))

	require.Len(t, sink.all(), 1)
	assert.Equal(t, explicit.SpanID(), sink.all()[0].SpanID)
	assert.NotEqual(t, ctxSpan.SpanID(), sink.all()[0].SpanID)
}

func TestWriteErrorPayload(t *testing.T) {
	sink := &captureLogSink{}
	c := NewCorrelator(sink)

	c.Write(context.Background(), SeverityError, "failed", WithError(errors.New("disk full")))

	require.Len(t, sink.all(), 1)
	record := sink.all()[0]
	require.NotNil(t, record.Error)
	assert.Equal(t, "disk full", record.Error.Message)
	assert.NotEmpty(t, record.Error.StackTrace)
}

func TestFallbackSinkWhenUninitialized(t *testing.T) {
	core, observed := observer.New(zap.DebugLevel)
	c := NewCorrelator(nil, WithFallback(zap.New(core)))

	c.Write(context.Background(), SeverityCritical, "not lost", WithError(errors.New("boom")))

	require.Equal(t, 1, observed.Len())
	entry := observed.All()[0]
	assert.Equal(t, "not lost", entry.Message)
	assert.Equal(t, zap.ErrorLevel, entry.Level)
	assert.Equal(t, "critical", entry.ContextMap()["severity"])
	assert.Equal(t, "boom", entry.ContextMap()["error"])
}

func TestSeverityOrdering(t *testing.T) {
	assert.True(t, SeverityTrace < SeverityDebug)
	assert.True(t, SeverityDebug < SeverityInformation)
	assert.True(t, SeverityInformation < SeverityWarning)
	assert.True(t, SeverityWarning < SeverityError)
	assert.True(t, SeverityError < SeverityCritical)
}

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		in      string
		want    Severity
		wantErr bool
	}{
		{in: "trace", want: SeverityTrace},
		{in: "Debug", want: SeverityDebug},
		{in: "information", want: SeverityInformation},
		{in: "info", want: SeverityInformation},
		{in: "WARN", want: SeverityWarning},
		{in: "error", want: SeverityError},
		{in: "critical", want: SeverityCritical},
		{in: "loud", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSeverity(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSeverity)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRecordTimestampUsesClock(t *testing.T) {
	sink := &captureLogSink{}
	fixed := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	c := NewCorrelator(sink, WithNow(func() time.Time { return fixed }))

	c.Write(context.Background(), SeverityInformation, "t")
	require.Len(t, sink.all(), 1)
	assert.Equal(t, fixed, sink.all()[0].Time)
}
