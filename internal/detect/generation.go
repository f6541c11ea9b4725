package detect

import "sync"

// Generation discards results computed under an outdated configuration. Every configuration
// change calls Begin; a result is committed only when it carries the current generation.
type Generation[T any] struct {
	mu      sync.Mutex
	current uint64
	value   T
	set     bool
}

// Begin starts a new generation and returns it.
func (g *Generation[T]) Begin() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.current++
	g.set = false
	var zero T
	g.value = zero
	return g.current
}

// Current returns the active generation.
func (g *Generation[T]) Current() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.current
}

// Commit stores v if gen is still the active generation and reports whether it did.
func (g *Generation[T]) Commit(gen uint64, v T) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if gen != g.current {
		return false
	}
	g.value = v
	g.set = true
	return true
}

// Latest returns the last committed value of the active generation.
func (g *Generation[T]) Latest() (T, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.value, g.set
}
