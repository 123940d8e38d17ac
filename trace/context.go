package trace

import (
	"context"
	"sync"
)

type contextKey struct{}

var spanKey contextKey

// ContextWithSpan returns a context carrying the span. Explicit context
// propagation is the concurrency-safe path: each goroutine threads its
// own context, so nesting restores parents naturally.
func ContextWithSpan(ctx context.Context, span *Span) context.Context {
	return context.WithValue(ctx, spanKey, span)
}

// SpanFromContext returns the span carried by the context, or nil.
func SpanFromContext(ctx context.Context) *Span {
	if ctx == nil {
		return nil
	}
	span, _ := ctx.Value(spanKey).(*Span)
	return span
}

// Stack tracks the current span for callers that do not thread a
// context. It is a single guarded reference, not a true stack: Push
// replaces the current span, and Pop clears it only when the finishing
// span is the current one. Stopping an ancestor out of order therefore
// never corrupts the pointer, and the parent of a popped span is not
// restored (use contexts for that).
type Stack struct {
	mu      sync.Mutex
	current *Span
}

// NewStack creates an empty stack.
func NewStack() *Stack {
	return &Stack{}
}

// Push makes span the current span.
func (s *Stack) Push(span *Span) {
	s.mu.Lock()
	s.current = span
	s.mu.Unlock()
}

// Pop clears the current span only if span is current; otherwise no-op.
func (s *Stack) Pop(span *Span) {
	s.mu.Lock()
	if s.current == span {
		s.current = nil
	}
	s.mu.Unlock()
}

// Current returns the current span, or nil.
func (s *Stack) Current() *Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}
