package export

import (
	"context"
	"time"

	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// grpcTransport exports OTLP batches over gRPC using the standard
// collector trace and logs services.
type grpcTransport struct {
	conn    *grpc.ClientConn
	traces  coltracepb.TraceServiceClient
	logsSvc collogspb.LogsServiceClient
	timeout time.Duration
}

// newGRPCTransport dials the collector lazily; connection failures
// surface on the first export attempt, not here.
func newGRPCTransport(target string, timeout time.Duration) (*grpcTransport, error) {
	conn, err := grpc.NewClient(target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, &ConfigError{Field: "endpoint", Value: target, Reason: err.Error()}
	}
	return &grpcTransport{
		conn:    conn,
		traces:  coltracepb.NewTraceServiceClient(conn),
		logsSvc: collogspb.NewLogsServiceClient(conn),
		timeout: timeout,
	}, nil
}

func (t *grpcTransport) SendSpans(ctx context.Context, req *coltracepb.ExportTraceServiceRequest) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	if _, err := t.traces.Export(ctx, req); err != nil {
		return t.wrap("export spans", err)
	}
	return nil
}

func (t *grpcTransport) SendLogs(ctx context.Context, req *collogspb.ExportLogsServiceRequest) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	if _, err := t.logsSvc.Export(ctx, req); err != nil {
		return t.wrap("export logs", err)
	}
	return nil
}

func (t *grpcTransport) Close() error {
	return t.conn.Close()
}

// wrap classifies a gRPC failure. Codes that indicate a malformed or
// rejected request will fail identically on every retry.
func (t *grpcTransport) wrap(op string, err error) error {
	permanent := false
	switch status.Code(err) {
	case codes.InvalidArgument, codes.Unauthenticated, codes.PermissionDenied,
		codes.Unimplemented, codes.FailedPrecondition:
		permanent = true
	}
	return &TransportError{Op: op, Permanent: permanent, Err: err}
}
