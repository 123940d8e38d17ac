package trace

import (
	"errors"
	"sync"
	"time"
)

// ErrInvalidArgument marks a rejected value at the API boundary, such as
// an unrecognized span kind.
var ErrInvalidArgument = errors.New("trace: invalid argument")

// Tag is a single key/value annotation on a span. Keys are unique per
// span; writes to an existing key replace its value in place, preserving
// first-write ordering.
type Tag struct {
	Key   string
	Value string
}

// Span is a timed unit of work. Handles returned by a Tracer are safe
// for concurrent use; all mutating calls become silent no-ops once the
// span has ended.
type Span struct {
	tracer *Tracer // nil for no-op spans

	mu            sync.Mutex
	traceID       TraceID
	spanID        SpanID
	parentID      SpanID
	name          string
	kind          Kind
	startTime     time.Time
	endTime       time.Time
	tags          []Tag
	status        Status
	statusMessage string
	ended         bool
}

// NewNoop returns a span handle whose operations all do nothing. Used
// when instrumentation runs before Initialize so callers never receive a
// nil handle.
func NewNoop() *Span {
	return &Span{}
}

// IsNoop reports whether the span discards all operations.
func (s *Span) IsNoop() bool {
	return s.tracer == nil
}

// TraceID returns the span's trace identifier.
func (s *Span) TraceID() TraceID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.traceID
}

// SpanID returns the span's identifier.
func (s *Span) SpanID() SpanID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spanID
}

// ParentID returns the parent span identifier, zero for root spans.
func (s *Span) ParentID() SpanID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.parentID
}

// Name returns the span's display name.
func (s *Span) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// Kind returns the span kind.
func (s *Span) Kind() Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kind
}

// StartTime returns when the span was started.
func (s *Span) StartTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startTime
}

// EndTime returns when the span ended, zero while still open.
func (s *Span) EndTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endTime
}

// Duration returns the elapsed time of a finished span, zero while open.
func (s *Span) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.endTime.IsZero() {
		return 0
	}
	return s.endTime.Sub(s.startTime)
}

// Ended reports whether End has been called.
func (s *Span) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// Status returns the recorded status and its message.
func (s *Span) Status() (Status, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, s.statusMessage
}

// Tags returns a copy of the span's tags in insertion order.
func (s *Span) Tags() []Tag {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Tag, len(s.tags))
	copy(out, s.tags)
	return out
}

// SetTag inserts or overwrites a tag. Calls after End are dropped
// silently; instrumented code paths must never crash on a closed span.
func (s *Span) SetTag(key, value string) {
	if s.IsNoop() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	for i := range s.tags {
		if s.tags[i].Key == key {
			s.tags[i].Value = value
			return
		}
	}
	s.tags = append(s.tags, Tag{Key: key, Value: value})
}

// SetStatus records the span outcome. No-op after End.
func (s *Span) SetStatus(status Status, message string) {
	if s.IsNoop() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.status = status
	s.statusMessage = message
}

// RecordError marks the span failed and tags the error message.
func (s *Span) RecordError(err error) {
	if err == nil || s.IsNoop() {
		return
	}
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.status = StatusError
	s.statusMessage = err.Error()
	s.mu.Unlock()
	s.SetTag("error.message", err.Error())
}

// End finalizes the span and hands it to the export pipeline. Idempotent:
// only the first call records the end timestamp and enqueues the span.
func (s *Span) End() {
	if s.IsNoop() {
		return
	}
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	s.endTime = s.tracer.now()
	data := s.snapshotLocked()
	s.mu.Unlock()

	s.tracer.finish(s, data)
}

// snapshotLocked builds an immutable copy for export. Caller holds s.mu.
func (s *Span) snapshotLocked() SpanData {
	tags := make([]Tag, len(s.tags))
	copy(tags, s.tags)
	return SpanData{
		TraceID:       s.traceID,
		SpanID:        s.spanID,
		ParentID:      s.parentID,
		Name:          s.name,
		Kind:          s.kind,
		StartTime:     s.startTime,
		EndTime:       s.endTime,
		Tags:          tags,
		Status:        s.status,
		StatusMessage: s.statusMessage,
	}
}

// SpanData is the immutable snapshot of a finished span, owned by the
// export pipeline after End.
type SpanData struct {
	TraceID       TraceID
	SpanID        SpanID
	ParentID      SpanID
	Name          string
	Kind          Kind
	StartTime     time.Time
	EndTime       time.Time
	Tags          []Tag
	Status        Status
	StatusMessage string
}
