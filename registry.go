package ambient

import "sync"

// registry owns the per-root stores. Every operation keys by root id, so a
// single guard over the map is the only coordination roots ever share.
type registry struct {
	mu    sync.RWMutex
	roots map[TaskID]*Store
}

func newRegistry() *registry {
	return &registry{roots: map[TaskID]*Store{}}
}

func (r *registry) createRoot(id TaskID) *Store {
	store := newStore(id)
	r.mu.Lock()
	r.roots[id] = store
	r.mu.Unlock()
	return store
}

func (r *registry) storeFor(id TaskID) (*Store, bool) {
	r.mu.RLock()
	store, ok := r.roots[id]
	r.mu.RUnlock()
	return store, ok
}

// deleteRoot tears down a root's store. Deleting an absent root is a no-op.
func (r *registry) deleteRoot(id TaskID) {
	r.mu.Lock()
	delete(r.roots, id)
	r.mu.Unlock()
}

func (r *registry) rootCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.roots)
}
