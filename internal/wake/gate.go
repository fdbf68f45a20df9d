// Package wake provides the signal-gate primitive shared by the in-memory
// and file-backed scrivener variants: a single per-journal completion gate
// that a write (or, for the file variant, a directory notification) closes
// and atomically replaces, waking every current tailer and waiter without
// requiring them to have registered individually.
package wake

import "sync"

// Gate is a rotatable completion primitive. Wait returns a channel that is
// closed by the next Broadcast; a waiter that observes the close rotates
// nothing itself, so it never consumes a wake-up meant for a concurrent
// waiter, and never misses one that was already in flight when it called
// Wait.
type Gate struct {
	mu sync.Mutex
	ch chan struct{}
}

// New constructs a ready-to-use Gate.
func New() *Gate {
	return &Gate{ch: make(chan struct{})}
}

// Wait returns the current generation's channel; it closes exactly once,
// on the next call to Broadcast.
func (g *Gate) Wait() <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ch
}

// Broadcast closes the current generation, waking everyone blocked on Wait,
// then installs a fresh generation for subsequent waiters.
func (g *Gate) Broadcast() {
	g.mu.Lock()
	old := g.ch
	g.ch = make(chan struct{})
	g.mu.Unlock()
	close(old)
}
