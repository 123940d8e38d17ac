// Package idgen provides centralized trace and span ID generation.
//
// IDs follow the W3C trace-context sizes: 128-bit trace IDs and 64-bit
// span IDs drawn from a cryptographically secure source. Entropy is read
// in blocks to amortize the cost of crypto/rand under high span churn.
package idgen

import (
	"crypto/rand"
	"sync"
)

// entropyBlock is the number of random bytes fetched per refill.
const entropyBlock = 1024

// Generator produces random trace and span IDs.
// Safe for concurrent use by multiple goroutines.
type Generator struct {
	mu  sync.Mutex
	buf []byte
	off int
}

// NewGenerator creates a generator backed by crypto/rand.
func NewGenerator() *Generator {
	return &Generator{buf: make([]byte, entropyBlock), off: entropyBlock}
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the process-wide generator instance.
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// TraceID returns 16 random bytes, never all zero.
func (g *Generator) TraceID() [16]byte {
	var id [16]byte
	g.fill(id[:])
	return id
}

// SpanID returns 8 random bytes, never all zero.
func (g *Generator) SpanID() [8]byte {
	var id [8]byte
	g.fill(id[:])
	return id
}

// fill copies random bytes into dst, refilling the entropy block as needed.
// A zero result is re-drawn so callers can use the zero value as "unset".
func (g *Generator) fill(dst []byte) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for {
		if g.off+len(dst) > len(g.buf) {
			if _, err := rand.Read(g.buf); err != nil {
				// crypto/rand never fails on supported platforms; if it
				// somehow does, a panic here beats emitting colliding IDs.
				panic("idgen: entropy source failed: " + err.Error())
			}
			g.off = 0
		}
		copy(dst, g.buf[g.off:g.off+len(dst)])
		g.off += len(dst)

		if !isZero(dst) {
			return
		}
	}
}

func isZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
