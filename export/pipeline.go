package export

import (
	"context"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/lumenwork/telemetry/internal/breaker"
	"github.com/lumenwork/telemetry/internal/diag"
	"github.com/lumenwork/telemetry/logs"
	"github.com/lumenwork/telemetry/trace"
)

// State is the pipeline lifecycle state.
type State int32

const (
	StateUninitialized State = iota
	StateConfigured
	StateRunning
	StateDraining
	StateStopped
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConfigured:
		return "configured"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// sharedMetrics registers the default metrics exactly once; pipelines
// come and go across re-initialization but collectors must not be
// registered twice.
func sharedMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		defaultMetrics = NewMetrics(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// Pipeline batches finished spans and log records and ships them to a
// collector. Enqueue operations are non-blocking best-effort: telemetry
// must never stall or crash the host program, so a full buffer drops
// the new record and counts it.
type Pipeline struct {
	cfg       Config
	resource  Resource
	transport Transport
	metrics   *Metrics
	logger    *zap.Logger
	brk       *breaker.Breaker
	echo      *consoleEcho

	spanBuf *bounded[trace.SpanData]
	logBuf  *bounded[logs.Record]

	state    atomic.Int32
	kick     chan struct{}
	stopCh   chan struct{}
	loopDone chan struct{}

	lifecycleMu sync.Mutex
	// flushSem serializes flush attempts; a channel rather than a mutex
	// so Shutdown can race acquisition against its deadline.
	flushSem chan struct{}

	// drainCtx parents every timed flush. Shutdown cancels it when its
	// deadline expires so a flush stuck in its retry budget releases the
	// flush slot promptly.
	drainCtx    context.Context
	drainCancel context.CancelFunc

	dropWarn    *diag.Throttle
	lostRecords atomic.Uint64
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTransport injects a transport, bypassing endpoint construction.
// Test hook.
func WithTransport(t Transport) Option {
	return func(p *Pipeline) { p.transport = t }
}

// WithMetrics overrides the pipeline metrics.
func WithMetrics(m *Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithLogger overrides the diagnostic logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithEchoWriter redirects console echo output. Test hook.
func WithEchoWriter(w io.Writer) Option {
	return func(p *Pipeline) { p.echo = newConsoleEcho(w) }
}

// New validates the configuration and builds a pipeline in the
// Configured state. Nothing is accepted until Start.
func New(cfg Config, opts ...Option) (*Pipeline, error) {
	cfg = cfg.withDefaults()
	if cfg.ServiceName == "" {
		return nil, &ConfigError{Field: "serviceName", Value: "", Reason: "must not be empty"}
	}
	if !cfg.Protocol.Valid() {
		return nil, &ConfigError{Field: "protocol", Value: cfg.Protocol.String(), Reason: `must be "grpc" or "http-protobuf"`}
	}

	p := &Pipeline{
		cfg:      cfg,
		resource: NewResource(cfg.ServiceName),
		spanBuf:  newBounded[trace.SpanData](cfg.QueueSize),
		logBuf:   newBounded[logs.Record](cfg.QueueSize),
		kick:     make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		loopDone: make(chan struct{}),
		flushSem: make(chan struct{}, 1),
		dropWarn: diag.NewThrottle(5*time.Second, 1),
	}
	p.drainCtx, p.drainCancel = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = diag.Logger()
	}
	if p.metrics == nil {
		p.metrics = sharedMetrics()
	}
	if cfg.ConsoleEcho && p.echo == nil {
		p.echo = newConsoleEcho(os.Stdout)
	}

	if p.transport == nil {
		endpoint, err := parseEndpoint(cfg.Endpoint)
		if err != nil {
			return nil, err
		}
		switch cfg.Protocol {
		case ProtocolGRPC:
			p.transport, err = newGRPCTransport(endpoint.Host, cfg.ExportTimeout)
			if err != nil {
				return nil, err
			}
		case ProtocolHTTP:
			p.transport = newHTTPTransport(endpoint, cfg.ExportTimeout)
		}
	}

	p.brk = breaker.New(breaker.Settings{
		FailureThreshold: cfg.BreakerFailures,
		OpenTimeout:      cfg.BreakerCooldown,
		OnStateChange: func(from, to breaker.State) {
			p.logger.Warn("export circuit state changed",
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		},
	})

	p.state.Store(int32(StateConfigured))
	return p, nil
}

// State returns the current lifecycle state.
func (p *Pipeline) State() State {
	return State(p.state.Load())
}

// LostRecords returns how many records were abandoned after export
// retries were exhausted.
func (p *Pipeline) LostRecords() uint64 {
	return p.lostRecords.Load()
}

// Start moves the pipeline to Running and launches the background
// flush task. Calling Start more than once is a no-op.
func (p *Pipeline) Start() {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if !p.state.CompareAndSwap(int32(StateConfigured), int32(StateRunning)) {
		return
	}
	go p.loop()
}

// EnqueueSpan accepts a finished span. Non-blocking; drops when the
// pipeline is not running or the buffer is full.
func (p *Pipeline) EnqueueSpan(data trace.SpanData) {
	if p.State() != StateRunning {
		p.metrics.RecordsDropped.WithLabelValues(DropReasonNotRunning).Inc()
		return
	}
	if !p.spanBuf.add(data) {
		p.metrics.RecordsDropped.WithLabelValues(DropReasonBufferFull).Inc()
		p.warnDrop("span")
		return
	}
	p.metrics.SpansEnqueued.Inc()
	size := p.spanBuf.size()
	p.metrics.QueueLength.WithLabelValues("spans").Set(float64(size))
	if size >= p.cfg.BatchSize {
		p.requestFlush()
	}
}

// EnqueueLog accepts a log record. Same policy as EnqueueSpan.
func (p *Pipeline) EnqueueLog(record logs.Record) {
	if p.State() != StateRunning {
		p.metrics.RecordsDropped.WithLabelValues(DropReasonNotRunning).Inc()
		return
	}
	if !p.logBuf.add(record) {
		p.metrics.RecordsDropped.WithLabelValues(DropReasonBufferFull).Inc()
		p.warnDrop("log")
		return
	}
	p.metrics.LogsEnqueued.Inc()
	size := p.logBuf.size()
	p.metrics.QueueLength.WithLabelValues("logs").Set(float64(size))
	if size >= p.cfg.BatchSize {
		p.requestFlush()
	}
}

// requestFlush wakes the flush task; a pending request is coalesced.
func (p *Pipeline) requestFlush() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

func (p *Pipeline) warnDrop(signal string) {
	if p.dropWarn.Allow() {
		p.logger.Warn("telemetry buffer full, dropping records",
			zap.String("signal", signal),
			zap.Int("capacity", p.cfg.QueueSize),
		)
	}
}

// loop is the background flush task. It is the only goroutine that
// initiates timed flushes, so flush attempts never overlap: a timer
// tick arriving while a flush is in flight finds TryLock contended and
// is skipped, not queued.
func (p *Pipeline) loop() {
	defer close(p.loopDone)

	ticker := time.NewTicker(p.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.tryFlush()
		case <-p.kick:
			p.tryFlush()
		}
	}
}

func (p *Pipeline) tryFlush() {
	select {
	case p.flushSem <- struct{}{}:
	default:
		return
	}
	defer func() { <-p.flushSem }()
	p.flush(p.drainCtx)
}

// Flush drains the buffers and transmits them now, waiting for any
// in-flight flush first.
func (p *Pipeline) Flush(ctx context.Context) error {
	select {
	case p.flushSem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-p.flushSem }()
	return p.flush(ctx)
}

// flush drains and transmits the buffered batch. Caller holds the
// flush slot.
func (p *Pipeline) flush(ctx context.Context) error {
	spans := p.spanBuf.drain()
	records := p.logBuf.drain()
	p.metrics.QueueLength.WithLabelValues("spans").Set(0)
	p.metrics.QueueLength.WithLabelValues("logs").Set(0)

	if p.echo != nil {
		p.echo.spans(spans)
		p.echo.logs(records)
	}
	if len(spans) == 0 && len(records) == 0 {
		return nil
	}

	started := time.Now()
	defer func() {
		p.metrics.ExportDuration.Observe(time.Since(started).Seconds())
	}()

	var firstErr error
	if len(spans) > 0 {
		req := buildTraceRequest(p.resource, spans)
		if err := p.send(ctx, func(ctx context.Context) error {
			return p.transport.SendSpans(ctx, req)
		}); err != nil {
			p.abandon("spans", len(spans), err)
			firstErr = err
		} else {
			p.delivered(len(spans))
		}
	}
	if len(records) > 0 {
		req := buildLogsRequest(p.resource, records)
		if err := p.send(ctx, func(ctx context.Context) error {
			return p.transport.SendLogs(ctx, req)
		}); err != nil {
			p.abandon("logs", len(records), err)
			if firstErr == nil {
				firstErr = err
			}
		} else {
			p.delivered(len(records))
		}
	}
	return firstErr
}

// send runs one batch transmission through the circuit breaker and the
// bounded exponential retry policy.
func (p *Pipeline) send(ctx context.Context, fn func(context.Context) error) error {
	return p.brk.Do(func() error {
		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = p.cfg.RetryInitialInterval
		bo.MaxElapsedTime = 0

		policy := backoff.WithContext(
			backoff.WithMaxRetries(bo, uint64(p.cfg.MaxAttempts-1)),
			ctx,
		)
		attempts := 0
		return backoff.Retry(func() error {
			attempts++
			err := fn(ctx)
			if err == nil {
				return nil
			}
			if isPermanent(err) {
				return backoff.Permanent(err)
			}
			// Permanent failures and the final exhausted attempt are not
			// retried, so they do not count as retries.
			if attempts < p.cfg.MaxAttempts {
				p.metrics.ExportRetries.Inc()
			}
			return err
		}, policy)
	})
}

func (p *Pipeline) delivered(count int) {
	p.metrics.BatchesExported.Inc()
	p.metrics.RecordsExported.Add(float64(count))
}

func (p *Pipeline) abandon(signal string, count int, err error) {
	p.metrics.ExportFailures.Inc()
	p.metrics.RecordsDropped.WithLabelValues(DropReasonExportFailed).Add(float64(count))
	p.lostRecords.Add(uint64(count))
	p.logger.Warn("export failed, dropping batch",
		zap.String("signal", signal),
		zap.Int("records", count),
		zap.Error(err),
	)
}

// Shutdown stops flush scheduling, performs one final flush bounded by
// ctx and releases the transport. Safe to call while a flush is in
// progress: a flush still holding the slot at the deadline is canceled
// and its records are dropped. Enqueues after Shutdown are discarded.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	switch p.State() {
	case StateStopped, StateDraining:
		return nil
	case StateConfigured:
		p.drainCancel()
		p.state.Store(int32(StateStopped))
		return p.transport.Close()
	case StateUninitialized:
		p.drainCancel()
		p.state.Store(int32(StateStopped))
		return nil
	}

	p.state.Store(int32(StateDraining))
	close(p.stopCh)
	select {
	case <-p.loopDone:
	case <-ctx.Done():
	}

	var flushErr error
	select {
	case p.flushSem <- struct{}{}:
		flushErr = p.flush(ctx)
		<-p.flushSem
	case <-ctx.Done():
		// A flush stuck in its retry budget holds the slot past the
		// caller's deadline. Cancel the pipeline context to release it;
		// the stuck batch is counted lost by abandon.
		p.drainCancel()
		p.flushSem <- struct{}{}
		<-p.flushSem
		flushErr = ctx.Err()
	}
	p.drainCancel()

	closeErr := p.transport.Close()
	p.state.Store(int32(StateStopped))

	if flushErr != nil {
		return flushErr
	}
	return closeErr
}
