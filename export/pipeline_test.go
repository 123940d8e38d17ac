package export

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	"go.uber.org/zap"

	"github.com/lumenwork/telemetry/internal/idgen"
	"github.com/lumenwork/telemetry/logs"
	"github.com/lumenwork/telemetry/trace"
)

// mockTransport records export requests and can be scripted to fail.
type mockTransport struct {
	mu           sync.Mutex
	spanReqs     []*coltracepb.ExportTraceServiceRequest
	logReqs      []*collogspb.ExportLogsServiceRequest
	attempts     int
	failFirst    int  // fail this many attempts before succeeding
	permanent    bool // classify failures as permanent
	closed       bool
	started      chan struct{} // closed-ish signal: receives once per attempt if non-nil
	proceed      chan struct{} // attempt blocks until it can receive, if non-nil
}

func (m *mockTransport) fail() error {
	return &TransportError{Op: "test", Permanent: m.permanent, Err: errors.New("scripted failure")}
}

func (m *mockTransport) attempt() error {
	if m.started != nil {
		m.started <- struct{}{}
	}
	if m.proceed != nil {
		<-m.proceed
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts++
	if m.attempts <= m.failFirst {
		return m.fail()
	}
	return nil
}

func (m *mockTransport) SendSpans(_ context.Context, req *coltracepb.ExportTraceServiceRequest) error {
	if err := m.attempt(); err != nil {
		return err
	}
	m.mu.Lock()
	m.spanReqs = append(m.spanReqs, req)
	m.mu.Unlock()
	return nil
}

func (m *mockTransport) SendLogs(_ context.Context, req *collogspb.ExportLogsServiceRequest) error {
	if err := m.attempt(); err != nil {
		return err
	}
	m.mu.Lock()
	m.logReqs = append(m.logReqs, req)
	m.mu.Unlock()
	return nil
}

func (m *mockTransport) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func (m *mockTransport) attemptCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// spanCount tallies spans across all received requests.
func (m *mockTransport) spanCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, req := range m.spanReqs {
		for _, rs := range req.ResourceSpans {
			for _, ss := range rs.ScopeSpans {
				n += len(ss.Spans)
			}
		}
	}
	return n
}

func (m *mockTransport) uniqueSpanIDs() map[string]bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make(map[string]bool)
	for _, req := range m.spanReqs {
		for _, rs := range req.ResourceSpans {
			for _, ss := range rs.ScopeSpans {
				for _, s := range ss.Spans {
					ids[string(s.SpanId)] = true
				}
			}
		}
	}
	return ids
}

func testConfig() Config {
	return Config{
		ServiceName:          "test-svc",
		Endpoint:             "http://localhost:4317",
		Protocol:             ProtocolGRPC,
		FlushInterval:        time.Minute, // tests drive flushes explicitly
		RetryInitialInterval: time.Millisecond,
		BreakerFailures:      1000, // breaker exercised in its own tests
	}
}

func newTestPipeline(t *testing.T, cfg Config, transport Transport) *Pipeline {
	t.Helper()
	p, err := New(cfg,
		WithTransport(transport),
		WithMetrics(NewMetrics(prometheus.NewRegistry())),
		WithLogger(zap.NewNop()),
	)
	require.NoError(t, err)
	return p
}

func spanData(gen *idgen.Generator) trace.SpanData {
	now := time.Now()
	return trace.SpanData{
		TraceID:   gen.TraceID(),
		SpanID:    gen.SpanID(),
		Name:      "op",
		Kind:      trace.KindInternal,
		StartTime: now,
		EndTime:   now.Add(time.Millisecond),
	}
}

func TestPipelineStateMachine(t *testing.T) {
	mock := &mockTransport{}
	p := newTestPipeline(t, testConfig(), mock)
	assert.Equal(t, StateConfigured, p.State())

	p.Start()
	assert.Equal(t, StateRunning, p.State())
	p.Start() // idempotent
	assert.Equal(t, StateRunning, p.State())

	require.NoError(t, p.Shutdown(context.Background()))
	assert.Equal(t, StateStopped, p.State())
	require.NoError(t, p.Shutdown(context.Background()))
	assert.True(t, mock.closed)
}

func TestShutdownWithoutStartClosesTransport(t *testing.T) {
	mock := &mockTransport{}
	p := newTestPipeline(t, testConfig(), mock)
	require.NoError(t, p.Shutdown(context.Background()))
	assert.Equal(t, StateStopped, p.State())
	assert.True(t, mock.closed)
}

func TestConcurrentProducersDeliverExactly(t *testing.T) {
	const producers = 8
	const perProducer = 50

	mock := &mockTransport{}
	cfg := testConfig()
	cfg.QueueSize = producers * perProducer
	p := newTestPipeline(t, cfg, mock)
	p.Start()

	gen := idgen.NewGenerator()
	datas := make([][]trace.SpanData, producers)
	for i := range datas {
		datas[i] = make([]trace.SpanData, perProducer)
		for j := range datas[i] {
			datas[i][j] = spanData(gen)
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func(batch []trace.SpanData) {
			defer wg.Done()
			for _, d := range batch {
				p.EnqueueSpan(d)
			}
		}(datas[i])
	}
	wg.Wait()

	require.NoError(t, p.Shutdown(context.Background()))

	assert.Equal(t, producers*perProducer, mock.spanCount(), "no loss")
	assert.Len(t, mock.uniqueSpanIDs(), producers*perProducer, "no duplication")
}

func TestRetryThenSuccessWithinBudget(t *testing.T) {
	mock := &mockTransport{failFirst: 2}
	cfg := testConfig()
	cfg.MaxAttempts = 5
	p := newTestPipeline(t, cfg, mock)
	p.Start()

	gen := idgen.NewGenerator()
	p.EnqueueSpan(spanData(gen))

	require.NoError(t, p.Flush(context.Background()))
	assert.Equal(t, 3, mock.attemptCount(), "two failures plus the delivering attempt")
	assert.Equal(t, 1, mock.spanCount())
	assert.Zero(t, p.LostRecords())
}

func TestRetryBudgetExhaustedDropsBatch(t *testing.T) {
	mock := &mockTransport{failFirst: 1 << 30}
	cfg := testConfig()
	cfg.MaxAttempts = 3
	p := newTestPipeline(t, cfg, mock)
	p.Start()

	gen := idgen.NewGenerator()
	p.EnqueueSpan(spanData(gen))
	p.EnqueueSpan(spanData(gen))

	err := p.Flush(context.Background())
	require.Error(t, err)
	assert.Equal(t, 3, mock.attemptCount(), "attempt cap honored")
	assert.Equal(t, uint64(2), p.LostRecords())

	// A later flush starts with a fresh budget.
	p.EnqueueSpan(spanData(gen))
	_ = p.Flush(context.Background())
	assert.Equal(t, 6, mock.attemptCount())
}

func TestPermanentFailureIsNotRetried(t *testing.T) {
	mock := &mockTransport{failFirst: 1 << 30, permanent: true}
	cfg := testConfig()
	cfg.MaxAttempts = 5
	p := newTestPipeline(t, cfg, mock)
	p.Start()

	gen := idgen.NewGenerator()
	p.EnqueueSpan(spanData(gen))

	require.Error(t, p.Flush(context.Background()))
	assert.Equal(t, 1, mock.attemptCount())
	assert.Equal(t, uint64(1), p.LostRecords())
}

func TestBatchSizeThresholdTriggersFlush(t *testing.T) {
	mock := &mockTransport{}
	cfg := testConfig()
	cfg.BatchSize = 5
	p := newTestPipeline(t, cfg, mock)
	p.Start()
	defer func() { _ = p.Shutdown(context.Background()) }()

	gen := idgen.NewGenerator()
	for i := 0; i < 5; i++ {
		p.EnqueueSpan(spanData(gen))
	}

	require.Eventually(t, func() bool {
		return mock.spanCount() == 5
	}, 2*time.Second, 5*time.Millisecond, "threshold flush did not fire")
}

func TestDropNewWhenBufferFull(t *testing.T) {
	mock := &mockTransport{
		started: make(chan struct{}, 1),
		proceed: make(chan struct{}),
	}
	metrics := NewMetrics(prometheus.NewRegistry())
	cfg := testConfig()
	cfg.QueueSize = 10
	p, err := New(cfg, WithTransport(mock), WithMetrics(metrics), WithLogger(zap.NewNop()))
	require.NoError(t, err)
	p.Start()

	// Park a flush inside the transport so the loop cannot drain the
	// buffer while we overfill it.
	gen := idgen.NewGenerator()
	p.EnqueueSpan(spanData(gen))
	go func() { _ = p.Flush(context.Background()) }()
	<-mock.started

	for i := 0; i < 15; i++ {
		p.EnqueueSpan(spanData(gen))
	}

	dropped := testutil.ToFloat64(metrics.RecordsDropped.WithLabelValues(DropReasonBufferFull))
	assert.Equal(t, float64(5), dropped)
	assert.Equal(t, float64(11), testutil.ToFloat64(metrics.SpansEnqueued))

	close(mock.proceed)
	require.NoError(t, p.Shutdown(context.Background()))
	assert.Equal(t, 11, mock.spanCount())
}

func TestEnqueueAfterShutdownIsDiscarded(t *testing.T) {
	mock := &mockTransport{}
	p := newTestPipeline(t, testConfig(), mock)
	p.Start()
	require.NoError(t, p.Shutdown(context.Background()))

	gen := idgen.NewGenerator()
	assert.NotPanics(t, func() {
		p.EnqueueSpan(spanData(gen))
		p.EnqueueLog(logs.Record{Time: time.Now(), Severity: logs.SeverityInformation, Message: "late"})
	})
	assert.Zero(t, mock.spanCount())
}

func TestShutdownPerformsFinalFlush(t *testing.T) {
	mock := &mockTransport{}
	p := newTestPipeline(t, testConfig(), mock)
	p.Start()

	gen := idgen.NewGenerator()
	p.EnqueueSpan(spanData(gen))
	p.EnqueueLog(logs.Record{Time: time.Now(), Severity: logs.SeverityWarning, Message: "draining"})

	require.NoError(t, p.Shutdown(context.Background()))
	assert.Equal(t, 1, mock.spanCount())

	mock.mu.Lock()
	logReqs := len(mock.logReqs)
	mock.mu.Unlock()
	assert.Equal(t, 1, logReqs)
}

func TestBreakerShortCircuitsDeadCollector(t *testing.T) {
	mock := &mockTransport{failFirst: 1 << 30}
	cfg := testConfig()
	cfg.MaxAttempts = 1
	cfg.BreakerFailures = 2
	cfg.BreakerCooldown = time.Hour
	p := newTestPipeline(t, cfg, mock)
	p.Start()

	gen := idgen.NewGenerator()
	for i := 0; i < 3; i++ {
		p.EnqueueSpan(spanData(gen))
		_ = p.Flush(context.Background())
	}

	// Two batches hit the transport; the third was rejected by the open
	// circuit without an attempt.
	assert.Equal(t, 2, mock.attemptCount())
	assert.Equal(t, uint64(3), p.LostRecords())
}

// stuckTransport blocks every send until its context is canceled, like
// a collector that accepted the connection but never answers.
type stuckTransport struct {
	started chan struct{}
	mu      sync.Mutex
	closed  bool
}

func (s *stuckTransport) block(ctx context.Context, op string) error {
	select {
	case s.started <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return &TransportError{Op: op, Err: ctx.Err()}
}

func (s *stuckTransport) SendSpans(ctx context.Context, _ *coltracepb.ExportTraceServiceRequest) error {
	return s.block(ctx, "spans")
}

func (s *stuckTransport) SendLogs(ctx context.Context, _ *collogspb.ExportLogsServiceRequest) error {
	return s.block(ctx, "logs")
}

func (s *stuckTransport) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func TestShutdownDeadlineReleasesStuckFlush(t *testing.T) {
	mock := &stuckTransport{started: make(chan struct{}, 1)}
	cfg := testConfig()
	cfg.BatchSize = 1 // threshold kick parks a timed flush in the transport
	cfg.MaxAttempts = 5
	p := newTestPipeline(t, cfg, mock)
	p.Start()

	gen := idgen.NewGenerator()
	p.EnqueueSpan(spanData(gen))
	<-mock.started

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := p.Shutdown(ctx)
	elapsed := time.Since(start)

	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, elapsed, time.Second, "shutdown must not wait out the retry budget")
	assert.Equal(t, StateStopped, p.State())
	assert.Equal(t, uint64(1), p.LostRecords())

	mock.mu.Lock()
	defer mock.mu.Unlock()
	assert.True(t, mock.closed)
}

func TestRetryMetricCountsOnlyRetriedAttempts(t *testing.T) {
	mock := &mockTransport{failFirst: 1 << 30}
	metrics := NewMetrics(prometheus.NewRegistry())
	cfg := testConfig()
	cfg.MaxAttempts = 3
	p, err := New(cfg, WithTransport(mock), WithMetrics(metrics), WithLogger(zap.NewNop()))
	require.NoError(t, err)
	p.Start()

	gen := idgen.NewGenerator()
	p.EnqueueSpan(spanData(gen))
	require.Error(t, p.Flush(context.Background()))

	// Three attempts; only the first two were followed by a retry.
	assert.Equal(t, 3, mock.attemptCount())
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.ExportRetries))
}

func TestRetryMetricIgnoresPermanentFailure(t *testing.T) {
	mock := &mockTransport{failFirst: 1 << 30, permanent: true}
	metrics := NewMetrics(prometheus.NewRegistry())
	cfg := testConfig()
	cfg.MaxAttempts = 5
	p, err := New(cfg, WithTransport(mock), WithMetrics(metrics), WithLogger(zap.NewNop()))
	require.NoError(t, err)
	p.Start()

	gen := idgen.NewGenerator()
	p.EnqueueSpan(spanData(gen))
	require.Error(t, p.Flush(context.Background()))
	assert.Zero(t, testutil.ToFloat64(metrics.ExportRetries))
}

func TestFlushIsSerializedWithInFlightFlush(t *testing.T) {
	mock := &mockTransport{
		started: make(chan struct{}, 1),
		proceed: make(chan struct{}),
	}
	p := newTestPipeline(t, testConfig(), mock)
	p.Start()

	gen := idgen.NewGenerator()
	p.EnqueueSpan(spanData(gen))

	go func() { _ = p.Flush(context.Background()) }()
	<-mock.started // first flush is now inside the transport

	done := make(chan struct{})
	go func() {
		p.EnqueueSpan(spanData(gen))
		_ = p.Flush(context.Background())
		close(done)
	}()

	close(mock.proceed) // let both flushes run to completion
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("second flush never completed")
	}
	assert.Equal(t, 2, mock.spanCount())
	_ = p.Shutdown(context.Background())
}
