package engine

import "sync"

// outcome is the terminal state of one supervision.
type outcome int

const (
	outcomePending outcome = iota
	outcomeInitialTimeout
	outcomeInactivityTimeout
	outcomeExited
)

// gate arbitrates the race between a timeout kill and the natural
// process-closed event. Exactly one transition out of pending ever
// succeeds; late arrivals are rejected, so a supervision can never
// resolve twice.
type gate struct {
	mu  sync.Mutex
	out outcome
}

// resolve attempts the pending -> o transition. It reports whether this
// caller won; the loser must not act on the process.
func (g *gate) resolve(o outcome) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.out != outcomePending {
		return false
	}
	g.out = o
	return true
}

// state returns the current terminal state, or outcomePending.
func (g *gate) state() outcome {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.out
}
