package export

import (
	"io"
	"sync"

	"github.com/bytedance/sonic"

	"github.com/lumenwork/telemetry/logs"
	"github.com/lumenwork/telemetry/trace"
)

// consoleEcho mirrors finished records to a writer as JSON lines for
// local development. Echo output is best-effort and independent of
// transport success.
type consoleEcho struct {
	mu sync.Mutex
	w  io.Writer
}

func newConsoleEcho(w io.Writer) *consoleEcho {
	return &consoleEcho{w: w}
}

type echoSpan struct {
	Type     string            `json:"type"`
	TraceID  string            `json:"traceId"`
	SpanID   string            `json:"spanId"`
	ParentID string            `json:"parentId,omitempty"`
	Name     string            `json:"name"`
	Kind     string            `json:"kind"`
	Start    int64             `json:"startUnixNano"`
	End      int64             `json:"endUnixNano"`
	Duration string            `json:"duration"`
	Status   string            `json:"status"`
	Message  string            `json:"statusMessage,omitempty"`
	Tags     map[string]string `json:"tags,omitempty"`
}

type echoLog struct {
	Type     string `json:"type"`
	Time     int64  `json:"timeUnixNano"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	TraceID  string `json:"traceId,omitempty"`
	SpanID   string `json:"spanId,omitempty"`
	Error    string `json:"error,omitempty"`
}

func (c *consoleEcho) spans(spans []trace.SpanData) {
	for i := range spans {
		s := &spans[i]
		line := echoSpan{
			Type:     "span",
			TraceID:  s.TraceID.String(),
			SpanID:   s.SpanID.String(),
			Name:     s.Name,
			Kind:     s.Kind.String(),
			Start:    s.StartTime.UnixNano(),
			End:      s.EndTime.UnixNano(),
			Duration: s.EndTime.Sub(s.StartTime).String(),
			Status:   s.Status.String(),
			Message:  s.StatusMessage,
		}
		if s.ParentID.IsValid() {
			line.ParentID = s.ParentID.String()
		}
		if len(s.Tags) > 0 {
			line.Tags = make(map[string]string, len(s.Tags))
			for _, tag := range s.Tags {
				line.Tags[tag.Key] = tag.Value
			}
		}
		c.write(line)
	}
}

func (c *consoleEcho) logs(records []logs.Record) {
	for i := range records {
		r := &records[i]
		line := echoLog{
			Type:     "log",
			Time:     r.Time.UnixNano(),
			Severity: r.Severity.String(),
			Message:  r.Message,
		}
		if r.Correlated() {
			line.TraceID = r.TraceID.String()
			line.SpanID = r.SpanID.String()
		}
		if r.Error != nil {
			line.Error = r.Error.Message
		}
		c.write(line)
	}
}

func (c *consoleEcho) write(v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		return
	}
	c.mu.Lock()
	_, _ = c.w.Write(append(data, '\n'))
	c.mu.Unlock()
}
