package orchestrator

import "sync"

type registry[T any] struct {
	mu    sync.RWMutex
	items map[string]T
}

func newRegistry[T any]() *registry[T] {
	return &registry[T]{items: make(map[string]T)}
}

func (r *registry[T]) put(id string, v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[id] = v
}

func (r *registry[T]) get(id string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.items[id]
	return v, ok
}

func (r *registry[T]) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
}
