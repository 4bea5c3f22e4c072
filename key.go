package ambient

import "fmt"

// Key names one kind of ambient context and reads or mutates the value bound
// to it in the active scope. Value returns the live pointer, so field access
// and method receivers behave like any other Go value, and mutation is
// observed by every task under the same scope root. Independent keys nest
// independently.
type Key[T any] struct {
	name string
}

// NewKey registers name and returns its typed accessor. Key names are
// process-wide unique; a second registration of a taken name fails with
// ErrKeyRegistered.
func NewKey[T any](name string) (*Key[T], error) {
	key := &Key[T]{name: name}
	if err := defaultBinder.Register(key); err != nil {
		return nil, err
	}
	return key, nil
}

// MustKey is NewKey, panicking on registration failure. Intended for
// package-level key declarations.
func MustKey[T any](name string) *Key[T] {
	key, err := NewKey[T](name)
	if err != nil {
		panic(err)
	}
	return key
}

// Name returns the key's registered name.
func (k *Key[T]) Name() string {
	return k.name
}

// Value resolves the live value bound to k in the calling goroutine's scope.
// It fails with OutsideScopeError when no scope is active and with
// UninitializedContextError when the scope never entered this key. A field
// the caller never populated simply reads as its zero value.
func (k *Key[T]) Value() (*T, error) {
	store, ok := currentStore()
	if !ok {
		return nil, &OutsideScopeError{Key: k.name}
	}
	raw, ok := store.lookup(k.name)
	if !ok {
		return nil, &UninitializedContextError{Key: k.name}
	}
	value, ok := raw.(*T)
	if !ok {
		return nil, fmt.Errorf("ambient: key %q holds %T, want %T", k.name, raw, value)
	}
	return value, nil
}

// Update applies fn to the live value in place.
func (k *Key[T]) Update(fn func(*T)) error {
	value, err := k.Value()
	if err != nil {
		return err
	}
	if fn != nil {
		fn(value)
	}
	return nil
}

// Bound reports whether k currently resolves to a value. It is false both
// outside any scope and inside scopes that never entered this key.
func (k *Key[T]) Bound() bool {
	store, ok := currentStore()
	if !ok {
		return false
	}
	_, ok = store.lookup(k.name)
	return ok
}

// Load implements Accessor, exposing the live value untyped so components
// resolved through a Binder stay unaware of the concrete key type.
func (k *Key[T]) Load() (any, error) {
	value, err := k.Value()
	if err != nil {
		return nil, err
	}
	return value, nil
}
