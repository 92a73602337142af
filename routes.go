package wsengine

import (
	"strings"
	"sync"
)

// routeTable maps a path to a handler. A repeated path replaces the
// handler but keeps its original registration position.
type routeTable[T any] struct {
	mu      sync.RWMutex
	entries map[string]T
	order   []string
}

func (t *routeTable[T]) set(path string, v T) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.entries == nil {
		t.entries = make(map[string]T)
	}
	if _, ok := t.entries[path]; !ok {
		t.order = append(t.order, path)
	}
	t.entries[path] = v
}

func (t *routeTable[T]) lookup(path string) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	v, ok := t.entries[path]
	return v, ok
}

// first returns the handler registered first.
func (t *routeTable[T]) first() (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var zero T
	if len(t.order) == 0 {
		return zero, false
	}
	return t.entries[t.order[0]], true
}

func (t *routeTable[T]) len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.order)
}

// handlerPath cuts path after its last '/': "/api/v1/items" becomes
// "/api/v1/".
func handlerPath(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[:i+1]
	}
	return path
}
