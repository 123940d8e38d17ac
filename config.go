package telemetry

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/lumenwork/telemetry/export"
)

// Config holds SDK configuration. Every field can come from the
// environment under the TELEMETRY_ prefix.
type Config struct {
	// ServiceName identifies this service on exported telemetry.
	ServiceName string `envconfig:"SERVICE_NAME"`
	// Endpoint is the collector address, e.g. "http://localhost:4317".
	Endpoint string `envconfig:"ENDPOINT" default:"localhost:4317"`
	// Protocol is "grpc" or "http-protobuf".
	Protocol export.Protocol `envconfig:"PROTOCOL" default:"grpc"`
	// ConsoleEcho mirrors finished records to stdout as JSON lines.
	ConsoleEcho bool `envconfig:"CONSOLE_ECHO" default:"false"`

	FlushInterval     time.Duration `envconfig:"FLUSH_INTERVAL" default:"5s"`
	BatchSize         int           `envconfig:"BATCH_SIZE" default:"512"`
	QueueSize         int           `envconfig:"QUEUE_SIZE" default:"2048"`
	MaxExportAttempts int           `envconfig:"MAX_EXPORT_ATTEMPTS" default:"5"`
	ExportTimeout     time.Duration `envconfig:"EXPORT_TIMEOUT" default:"10s"`
	ShutdownTimeout   time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"5s"`
}

// Load loads configuration from TELEMETRY_* environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("TELEMETRY", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load telemetry config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from the environment or returns
// defaults.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration. ServiceName is left empty and
// must be set before Initialize.
func Default() *Config {
	return &Config{
		Endpoint:          "localhost:4317",
		Protocol:          export.ProtocolGRPC,
		FlushInterval:     5 * time.Second,
		BatchSize:         512,
		QueueSize:         2048,
		MaxExportAttempts: 5,
		ExportTimeout:     10 * time.Second,
		ShutdownTimeout:   5 * time.Second,
	}
}

// toExport maps the public config onto the pipeline's.
func (c Config) toExport() export.Config {
	return export.Config{
		ServiceName:   c.ServiceName,
		Endpoint:      c.Endpoint,
		Protocol:      c.Protocol,
		ConsoleEcho:   c.ConsoleEcho,
		FlushInterval: c.FlushInterval,
		BatchSize:     c.BatchSize,
		QueueSize:     c.QueueSize,
		MaxAttempts:   c.MaxExportAttempts,
		ExportTimeout: c.ExportTimeout,
	}
}
