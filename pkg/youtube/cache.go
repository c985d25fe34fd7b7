package youtube

import "sync"

// idCache memoizes detail payloads by resource id so repeated lookups in
// one run cost no additional quota.
type idCache[T any] struct {
	mu sync.RWMutex
	m  map[string]T
}

func newIDCache[T any]() *idCache[T] {
	return &idCache[T]{m: make(map[string]T)}
}

func (c *idCache[T]) get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.m[id]
	return v, ok
}

func (c *idCache[T]) put(id string, v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[id] = v
}

// misses returns the subset of ids not yet cached, preserving order.
func (c *idCache[T]) misses(ids []string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []string
	for _, id := range ids {
		if _, ok := c.m[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
