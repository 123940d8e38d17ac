// Package diag provides the SDK's self-diagnostic logging.
//
// The telemetry pipeline must never report its own problems through
// itself, so everything here writes to a plain zap console logger on
// stderr. Noisy conditions (record drops under backpressure) go through
// a rate limiter, and the uninitialized-use warning fires once per
// process rather than once per call.
package diag

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"
)

var (
	mu     sync.RWMutex
	logger *zap.Logger

	uninitOnce sync.Once
)

// Logger returns the diagnostic logger, building the default stderr
// console logger on first use.
func Logger() *zap.Logger {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		logger = newDefault()
	}
	return logger
}

// SetLogger replaces the diagnostic logger. Pass nil to restore the default.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	logger = l
}

func newDefault() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	l, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return l.Named("telemetry")
}

// WarnUninitialized logs the uninitialized-use warning exactly once per
// process, no matter how many instrumentation calls arrive before
// Initialize.
func WarnUninitialized() {
	uninitOnce.Do(func() {
		Logger().Warn("telemetry used before Initialize; spans are no-ops and logs go to stderr")
	})
}

// Throttle rate-limits a recurring diagnostic message.
type Throttle struct {
	lim *rate.Limiter
}

// NewThrottle allows one event per interval with the given burst.
func NewThrottle(interval time.Duration, burst int) *Throttle {
	return &Throttle{lim: rate.NewLimiter(rate.Every(interval), burst)}
}

// Allow reports whether the message should be emitted now.
func (t *Throttle) Allow() bool {
	return t.lim.Allow()
}
