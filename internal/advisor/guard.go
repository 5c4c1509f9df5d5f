package advisor

import "sync"

// guard admits one in-flight answer per conversation.
type guard struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func newGuard() *guard {
	return &guard{active: make(map[string]struct{})}
}

// acquire claims id and reports whether it was free.
func (g *guard) acquire(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.active[id]; busy {
		return false
	}
	g.active[id] = struct{}{}
	return true
}

func (g *guard) release(id string) {
	g.mu.Lock()
	delete(g.active, id)
	g.mu.Unlock()
}
