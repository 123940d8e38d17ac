package export

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lumenwork/telemetry/internal/idgen"
	"github.com/lumenwork/telemetry/logs"
	"github.com/lumenwork/telemetry/trace"
)

func TestConsoleEchoWritesJSONLines(t *testing.T) {
	var out bytes.Buffer
	mock := &mockTransport{}
	cfg := testConfig()
	cfg.ConsoleEcho = true
	p, err := New(cfg,
		WithTransport(mock),
		WithMetrics(NewMetrics(prometheus.NewRegistry())),
		WithLogger(zap.NewNop()),
		WithEchoWriter(&out),
	)
	require.NoError(t, err)
	p.Start()

	gen := idgen.NewGenerator()
	data := spanData(gen)
	data.Tags = []trace.Tag{{Key: "k", Value: "v"}}
	p.EnqueueSpan(data)
	p.EnqueueLog(logs.Record{
		Time:     time.Now(),
		Severity: logs.SeverityWarning,
		Message:  "careful",
		TraceID:  data.TraceID,
		SpanID:   data.SpanID,
	})
	require.NoError(t, p.Shutdown(context.Background()))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)

	var span echoSpan
	require.NoError(t, sonic.Unmarshal([]byte(lines[0]), &span))
	assert.Equal(t, "span", span.Type)
	assert.Equal(t, data.TraceID.String(), span.TraceID)
	assert.Equal(t, data.SpanID.String(), span.SpanID)
	assert.Equal(t, "internal", span.Kind)
	assert.Equal(t, map[string]string{"k": "v"}, span.Tags)

	var log echoLog
	require.NoError(t, sonic.Unmarshal([]byte(lines[1]), &log))
	assert.Equal(t, "log", log.Type)
	assert.Equal(t, "careful", log.Message)
	assert.Equal(t, "warning", log.Severity)
	assert.Equal(t, data.TraceID.String(), log.TraceID)
}

func TestEchoStillWrittenWhenExportFails(t *testing.T) {
	var out bytes.Buffer
	mock := &mockTransport{failFirst: 1 << 30}
	cfg := testConfig()
	cfg.ConsoleEcho = true
	cfg.MaxAttempts = 1
	p, err := New(cfg,
		WithTransport(mock),
		WithMetrics(NewMetrics(prometheus.NewRegistry())),
		WithLogger(zap.NewNop()),
		WithEchoWriter(&out),
	)
	require.NoError(t, err)
	p.Start()

	gen := idgen.NewGenerator()
	p.EnqueueSpan(spanData(gen))
	require.Error(t, p.Flush(context.Background()))

	assert.NotEmpty(t, out.String(), "echo output is independent of transport outcome")
	_ = p.Shutdown(context.Background())
}
