package ambient

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Store holds the ambient values for one scope root, keyed by context key
// name. Values are caller-owned pointers; the store references them and never
// copies. Each store carries a correlation id stamped on logs and traces.
type Store struct {
	root TaskID
	id   string

	mu     sync.Mutex
	values map[string]any
}

func newStore(root TaskID) *Store {
	return &Store{
		root:   root,
		id:     uuid.NewString(),
		values: map[string]any{},
	}
}

// ID returns the store's correlation id.
func (s *Store) ID() string {
	return s.id
}

// Root returns the task id anchoring this store.
func (s *Store) Root() TaskID {
	return s.root
}

func (s *Store) lookup(name string) (any, bool) {
	s.mu.Lock()
	value, ok := s.values[name]
	s.mu.Unlock()
	return value, ok
}

func (s *Store) set(name string, value any) {
	s.mu.Lock()
	s.values[name] = value
	s.mu.Unlock()
}

// swap installs value under name and returns what it displaced so a nested
// override can put it back.
func (s *Store) swap(name string, value any) (prev any, existed bool) {
	s.mu.Lock()
	prev, existed = s.values[name]
	s.values[name] = value
	s.mu.Unlock()
	return prev, existed
}

// restore reinstates the value swap displaced, removing the entry when there
// was none.
func (s *Store) restore(name string, prev any, existed bool) {
	s.mu.Lock()
	if existed {
		s.values[name] = prev
	} else {
		delete(s.values, name)
	}
	s.mu.Unlock()
}

// Keys returns the bound key names, sorted.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.values))
	for name := range s.values {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Snapshot returns a point-in-time JSON view of the bound values, keyed by
// key name. Guards and traces read snapshots so they can never mutate live
// state through an expression.
func (s *Store) Snapshot() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.values))
	for name, value := range s.values {
		out[name] = snapshotValue(value)
	}
	return out
}

func snapshotValue(value any) any {
	payload, err := json.Marshal(value)
	if err != nil {
		return value
	}
	var out any
	if err := json.Unmarshal(payload, &out); err != nil {
		return value
	}
	return out
}
