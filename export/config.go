package export

import (
	"net/url"
	"time"
)

// Defaults applied by Config.withDefaults.
const (
	DefaultFlushInterval   = 5 * time.Second
	DefaultBatchSize       = 512
	DefaultQueueSize       = 2048
	DefaultMaxAttempts     = 5
	DefaultRetryInterval   = 100 * time.Millisecond
	DefaultExportTimeout   = 10 * time.Second
	DefaultBreakerFailures = 3
	DefaultBreakerCooldown = 30 * time.Second
)

// Config holds export pipeline configuration.
type Config struct {
	// ServiceName identifies the producing service in the OTLP resource.
	ServiceName string
	// Endpoint is the collector address, e.g. "http://localhost:4317"
	// or "localhost:4318".
	Endpoint string
	// Protocol selects OTLP over gRPC or HTTP/protobuf.
	Protocol Protocol
	// ConsoleEcho additionally writes finished records to stdout as
	// JSON lines.
	ConsoleEcho bool

	// FlushInterval is the timer period of the background flush task.
	FlushInterval time.Duration
	// BatchSize triggers an early flush once this many records are
	// buffered.
	BatchSize int
	// QueueSize bounds each buffer; records beyond it are dropped
	// (drop-new) and counted.
	QueueSize int
	// MaxAttempts caps transmissions per batch, first try included.
	MaxAttempts int
	// RetryInitialInterval seeds the exponential backoff between
	// attempts.
	RetryInitialInterval time.Duration
	// ExportTimeout bounds a single transport attempt.
	ExportTimeout time.Duration
	// BreakerFailures is the run of failed batches that opens the
	// transport circuit breaker.
	BreakerFailures int
	// BreakerCooldown is how long the breaker stays open.
	BreakerCooldown time.Duration
}

// withDefaults fills unset knobs.
func (c Config) withDefaults() Config {
	if c.FlushInterval <= 0 {
		c.FlushInterval = DefaultFlushInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.BatchSize > c.QueueSize {
		c.BatchSize = c.QueueSize
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.RetryInitialInterval <= 0 {
		c.RetryInitialInterval = DefaultRetryInterval
	}
	if c.ExportTimeout <= 0 {
		c.ExportTimeout = DefaultExportTimeout
	}
	if c.BreakerFailures <= 0 {
		c.BreakerFailures = DefaultBreakerFailures
	}
	if c.BreakerCooldown <= 0 {
		c.BreakerCooldown = DefaultBreakerCooldown
	}
	return c
}

// parseEndpoint validates the collector address and normalizes it to a
// URL. Bare "host:port" addresses are accepted and assumed plaintext.
func parseEndpoint(endpoint string) (*url.URL, error) {
	if endpoint == "" {
		return nil, &ConfigError{Field: "endpoint", Value: endpoint, Reason: "must not be empty"}
	}

	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		u, err = url.Parse("http://" + endpoint)
		if err != nil || u.Host == "" {
			return nil, &ConfigError{Field: "endpoint", Value: endpoint, Reason: "not a valid URI"}
		}
	}
	if u.Port() == "" {
		return nil, &ConfigError{Field: "endpoint", Value: endpoint, Reason: "missing port"}
	}
	return u, nil
}
