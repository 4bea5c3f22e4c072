package ambient

import (
	"fmt"
	"sort"
	"sync"
)

// Accessor is the untyped view of a context key. Components receive one
// through a Binder or as a constructor parameter and read the live ambient
// value without knowing anything about scopes or the concrete key type.
type Accessor interface {
	Name() string
	Load() (any, error)
}

// Binder stores accessors keyed by name.
type Binder struct {
	mu        sync.RWMutex
	accessors map[string]Accessor
}

// NewBinder constructs an empty binder.
func NewBinder() *Binder {
	return &Binder{accessors: map[string]Accessor{}}
}

// Register stores accessor under its name. Re-registering the same accessor
// is an idempotent no-op; a different accessor under a taken name fails.
func (b *Binder) Register(accessor Accessor) error {
	if accessor == nil {
		return fmt.Errorf("ambient: accessor must not be nil")
	}
	name := accessor.Name()
	if name == "" {
		return ErrKeyNameRequired
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.accessors == nil {
		b.accessors = map[string]Accessor{}
	}
	if existing, ok := b.accessors[name]; ok {
		if existing == accessor {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrKeyRegistered, name)
	}
	b.accessors[name] = accessor
	return nil
}

// Resolve returns the accessor registered under name.
func (b *Binder) Resolve(name string) (Accessor, error) {
	if b == nil {
		return nil, fmt.Errorf("%w: %s", ErrAccessorNotFound, name)
	}
	b.mu.RLock()
	accessor := b.accessors[name]
	b.mu.RUnlock()
	if accessor == nil {
		return nil, fmt.Errorf("%w: %s", ErrAccessorNotFound, name)
	}
	return accessor, nil
}

// Names returns registered key names sorted alphabetically.
func (b *Binder) Names() []string {
	if b == nil {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.accessors))
	for name := range b.accessors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a shallow copy of the binder.
func (b *Binder) Clone() *Binder {
	if b == nil {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	clone := &Binder{accessors: make(map[string]Accessor, len(b.accessors))}
	for name, accessor := range b.accessors {
		clone.accessors[name] = accessor
	}
	return clone
}

var defaultBinder = NewBinder()

// Resolve looks up an accessor in the default binder, where NewKey registers
// every key.
func Resolve(name string) (Accessor, error) {
	return defaultBinder.Resolve(name)
}

// RegisteredKeys returns the key names in the default binder, sorted.
func RegisteredKeys() []string {
	return defaultBinder.Names()
}
