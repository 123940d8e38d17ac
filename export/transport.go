package export

import (
	"context"
	"errors"
	"fmt"

	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
)

// Transport ships encoded OTLP batches to a collector. Implementations
// perform a single attempt per call; retry policy lives in the
// pipeline.
type Transport interface {
	SendSpans(ctx context.Context, req *coltracepb.ExportTraceServiceRequest) error
	SendLogs(ctx context.Context, req *collogspb.ExportLogsServiceRequest) error
	Close() error
}

// TransportError wraps a failed export attempt. Permanent errors (for
// example a collector rejecting the payload outright) are not retried;
// everything else is considered transient. Transport errors never reach
// instrumentation callers.
type TransportError struct {
	Op        string
	Permanent bool
	Err       error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	kind := "transient"
	if e.Permanent {
		kind = "permanent"
	}
	return fmt.Sprintf("telemetry export: %s: %s: %v", e.Op, kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// isPermanent reports whether err is a non-retryable transport failure.
func isPermanent(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Permanent
}
