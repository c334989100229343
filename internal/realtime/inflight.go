package realtime

import "sync"

// InflightGuard tracks actions that have been submitted but not yet resolved,
// so a double-tapped button submits once. Keys are caller-chosen, typically
// "transition:<order-id>".
type InflightGuard struct {
	mu      sync.Mutex
	pending map[string]struct{}
}

func NewInflightGuard() *InflightGuard {
	return &InflightGuard{pending: make(map[string]struct{})}
}

// Begin marks a key in flight. It returns false when the key is already in
// flight, in which case the caller must drop the action.
func (g *InflightGuard) Begin(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.pending[key]; ok {
		return false
	}
	g.pending[key] = struct{}{}
	return true
}

// End clears a key regardless of whether the action succeeded; the next
// submission is decided by the authoritative state, not by the guard.
func (g *InflightGuard) End(key string) {
	g.mu.Lock()
	delete(g.pending, key)
	g.mu.Unlock()
}

// Inflight reports whether a key is currently held.
func (g *InflightGuard) Inflight(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.pending[key]
	return ok
}
