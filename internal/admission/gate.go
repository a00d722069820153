package admission

import "sync"

// Gate bounds the number of submissions in flight at once. Every successful
// TryEnter must be paired with exactly one Exit, including on failure paths;
// callers defer Exit immediately after a successful TryEnter.
type Gate struct {
	mu       sync.Mutex
	inflight int
	max      int
}

// NewGate creates a Gate admitting at most max concurrent units of work.
func NewGate(max int) *Gate {
	return &Gate{max: max}
}

// TryEnter attempts to claim a unit of capacity. It never blocks.
func (g *Gate) TryEnter() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inflight >= g.max {
		return false
	}
	g.inflight++
	return true
}

// Exit releases a unit of capacity claimed by TryEnter. Releasing below zero
// is clamped rather than panicking; a double release indicates a caller bug
// but must not take the pipeline down.
func (g *Gate) Exit() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inflight > 0 {
		g.inflight--
	}
}

// Inflight returns the current number of claimed units.
func (g *Gate) Inflight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inflight
}
