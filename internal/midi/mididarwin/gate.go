package mididarwin

import "sync"

// deliveryGate admits concurrent deliveries until it is closed. close waits
// for the deliveries in flight; deliveries attempted afterwards are refused.
type deliveryGate struct {
	mu     sync.RWMutex
	closed bool
}

// enter reports whether a delivery may start. A true result must be paired
// with leave.
func (g *deliveryGate) enter() bool {
	g.mu.RLock()
	if g.closed {
		g.mu.RUnlock()
		return false
	}
	return true
}

func (g *deliveryGate) leave() {
	g.mu.RUnlock()
}

// close shuts the gate and reports whether this call was the one that did.
func (g *deliveryGate) close() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return false
	}
	g.closed = true
	return true
}

func (g *deliveryGate) isClosed() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.closed
}
