package testfixtures

import (
	"fmt"
	"sync"
)

// IDGenerator hands out deterministic identifiers such as "session-1" or
// "gesture-3". Every kind counts on its own.
type IDGenerator struct {
	mu       sync.Mutex
	fallback string
	counters map[string]int
}

// NewIDGenerator returns a generator whose Next uses the fallback kind, "id" when empty.
func NewIDGenerator(fallback string) *IDGenerator {
	if fallback == "" {
		fallback = "id"
	}
	return &IDGenerator{fallback: fallback, counters: make(map[string]int)}
}

// Next returns the next identifier of the fallback kind.
func (g *IDGenerator) Next() string {
	return g.next(g.fallback)
}

// NextFunc exposes Next for injection.
func (g *IDGenerator) NextFunc() func() string {
	if g == nil {
		return func() string { return "" }
	}
	return g.Next
}

// KindFunc returns a source of identifiers of kind.
func (g *IDGenerator) KindFunc(kind string) func() string {
	if g == nil {
		return func() string { return "" }
	}
	return func() string { return g.next(kind) }
}

func (g *IDGenerator) next(kind string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counters[kind]++
	return fmt.Sprintf("%s-%d", kind, g.counters[kind])
}
