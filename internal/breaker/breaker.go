// Package breaker implements a small circuit breaker guarding the
// export transport. When the collector is down, the breaker opens after
// a run of consecutive failures so flush attempts fail fast instead of
// burning their whole retry budget against a dead endpoint.
package breaker

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned when the breaker rejects a call outright.
var ErrOpen = errors.New("breaker: circuit open")

// State represents the breaker state.
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Settings configures trip and recovery behavior.
type Settings struct {
	// FailureThreshold is the run of consecutive failures that opens the
	// circuit. Defaults to 3.
	FailureThreshold int
	// OpenTimeout is how long the circuit stays open before a probe call
	// is allowed through. Defaults to 30s.
	OpenTimeout time.Duration
	// OnStateChange is invoked on every transition, outside the lock.
	OnStateChange func(from, to State)
}

// Breaker tracks consecutive transport outcomes.
// Safe for concurrent use, though the export pipeline calls it from a
// single flush goroutine.
type Breaker struct {
	settings Settings

	mu          sync.Mutex
	state       State
	failures    int
	generation  uint64
	openedAt    time.Time
	now         func() time.Time
	transitions []func()
}

// New creates a breaker in the closed state.
func New(settings Settings) *Breaker {
	if settings.FailureThreshold <= 0 {
		settings.FailureThreshold = 3
	}
	if settings.OpenTimeout <= 0 {
		settings.OpenTimeout = 30 * time.Second
	}
	return &Breaker{
		settings: settings,
		state:    StateClosed,
		now:      time.Now,
	}
}

// WithClock overrides the time source. Test hook.
func (b *Breaker) WithClock(now func() time.Time) *Breaker {
	b.now = now
	return b
}

// State returns the current state, accounting for open-timeout expiry.
func (b *Breaker) State() State {
	b.mu.Lock()
	s := b.currentState()
	b.mu.Unlock()
	b.fireTransitions()
	return s
}

// Do runs fn if the circuit admits it. While open, fn is not invoked and
// ErrOpen is returned. In half-open state a single probe runs; its
// outcome closes or re-opens the circuit.
func (b *Breaker) Do(fn func() error) error {
	gen, err := b.before()
	if err != nil {
		b.fireTransitions()
		return err
	}

	err = fn()
	b.after(gen, err == nil)
	b.fireTransitions()
	return err
}

func (b *Breaker) before() (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.currentState() == StateOpen {
		return b.generation, ErrOpen
	}
	return b.generation, nil
}

func (b *Breaker) after(gen uint64, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// A transition happened while the call was in flight; its outcome
	// belongs to the previous generation and is discarded.
	if gen != b.generation {
		return
	}

	state := b.currentState()
	if success {
		b.failures = 0
		if state == StateHalfOpen {
			b.setState(StateClosed)
		}
		return
	}

	switch state {
	case StateClosed:
		b.failures++
		if b.failures >= b.settings.FailureThreshold {
			b.setState(StateOpen)
		}
	case StateHalfOpen:
		b.setState(StateOpen)
	}
}

// currentState resolves open→half-open expiry. Caller holds the lock.
func (b *Breaker) currentState() State {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.settings.OpenTimeout {
		b.setState(StateHalfOpen)
	}
	return b.state
}

// setState transitions and records the callback. Caller holds the lock.
func (b *Breaker) setState(to State) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	b.generation++
	if to == StateOpen {
		b.openedAt = b.now()
	}
	if to == StateClosed {
		b.failures = 0
	}
	if cb := b.settings.OnStateChange; cb != nil {
		b.transitions = append(b.transitions, func() { cb(from, to) })
	}
}

// fireTransitions invokes queued OnStateChange callbacks outside the lock.
func (b *Breaker) fireTransitions() {
	b.mu.Lock()
	pending := b.transitions
	b.transitions = nil
	b.mu.Unlock()

	for _, fn := range pending {
		fn()
	}
}
