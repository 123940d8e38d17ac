package idgen

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTraceIDNonZero(t *testing.T) {
	g := NewGenerator()
	for i := 0; i < 1000; i++ {
		id := g.TraceID()
		assert.False(t, isZero(id[:]))
	}
}

func TestSpanIDUniqueness(t *testing.T) {
	g := NewGenerator()
	seen := make(map[[8]byte]bool, 10000)
	for i := 0; i < 10000; i++ {
		id := g.SpanID()
		assert.False(t, seen[id], "duplicate span ID generated")
		seen[id] = true
	}
}

func TestConcurrentGeneration(t *testing.T) {
	g := NewGenerator()

	var wg sync.WaitGroup
	results := make(chan [16]byte, 100*50)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				results <- g.TraceID()
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[[16]byte]bool, 100*50)
	for id := range results {
		assert.False(t, seen[id], "duplicate trace ID under concurrency")
		seen[id] = true
	}
}

func TestDefaultSingleton(t *testing.T) {
	assert.Same(t, Default(), Default())
}
