package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	"google.golang.org/protobuf/proto"
)

// OTLP/HTTP request paths per the protocol spec.
const (
	tracesPath = "/v1/traces"
	logsPath   = "/v1/logs"
)

// httpTransport exports OTLP protobuf over HTTP with gzip-compressed
// request bodies.
type httpTransport struct {
	client    *http.Client
	tracesURL string
	logsURL   string

	gzPool sync.Pool
}

func newHTTPTransport(base *url.URL, timeout time.Duration) *httpTransport {
	root := &url.URL{Scheme: base.Scheme, Host: base.Host}
	return &httpTransport{
		client:    &http.Client{Timeout: timeout},
		tracesURL: root.JoinPath(tracesPath).String(),
		logsURL:   root.JoinPath(logsPath).String(),
		gzPool: sync.Pool{
			New: func() any { return gzip.NewWriter(io.Discard) },
		},
	}
}

func (t *httpTransport) SendSpans(ctx context.Context, req *coltracepb.ExportTraceServiceRequest) error {
	return t.post(ctx, "export spans", t.tracesURL, req)
}

func (t *httpTransport) SendLogs(ctx context.Context, req *collogspb.ExportLogsServiceRequest) error {
	return t.post(ctx, "export logs", t.logsURL, req)
}

func (t *httpTransport) Close() error {
	t.client.CloseIdleConnections()
	return nil
}

func (t *httpTransport) post(ctx context.Context, op, endpoint string, msg proto.Message) error {
	body, err := proto.Marshal(msg)
	if err != nil {
		return &TransportError{Op: op, Permanent: true, Err: err}
	}

	var buf bytes.Buffer
	gz := t.gzPool.Get().(*gzip.Writer)
	gz.Reset(&buf)
	if _, err := gz.Write(body); err == nil {
		err = gz.Close()
	}
	t.gzPool.Put(gz)
	if err != nil {
		return &TransportError{Op: op, Permanent: true, Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return &TransportError{Op: op, Permanent: true, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/x-protobuf")
	httpReq.Header.Set("Content-Encoding", "gzip")

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return &TransportError{Op: op, Permanent: false, Err: err}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return &TransportError{
		Op:        op,
		Permanent: !retryableStatus(resp.StatusCode),
		Err:       fmt.Errorf("collector returned %s", resp.Status),
	}
}

// retryableStatus follows the OTLP/HTTP spec: throttling and server
// errors may be retried, other client errors may not.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}
	return code >= 500
}
