// Package ambient attaches "current request" style state to an execution
// flow so code running deeper or later in that flow, including goroutines
// spawned through Go, reads it without threading values through every
// function signature. It serves request middleware, auth/session layers, and
// log/trace correlation.
package ambient

import (
	"fmt"

	"github.com/petermattis/goid"

	"github.com/goliatone/go-ambient/pkg/lifecycle"
)

// Run binds value to key and executes fn inside that scope.
//
// With no scope active on the calling goroutine, Run opens a new root: a
// fresh store seeded with the key/value pair, released only once fn has
// returned and every goroutine spawned through Go under this root has
// finished, regardless of completion order. With a scope already active, Run
// overwrites key for the duration of fn and restores the previous value (or
// removes the entry when there was none) on the way out. Both paths clean up
// on panic too, and fn's error or panic propagates unchanged.
//
// Two caveats: concurrently racing nested overrides of the same key inside
// one scope are undefined, so join spawned work before a nested call
// returns; and a tracked goroutine that never finishes leaks its store and
// tracker entries for good.
func Run[T any](key *Key[T], value *T, fn func() error) error {
	if key == nil {
		return fmt.Errorf("ambient: key must not be nil")
	}
	if fn == nil {
		return fmt.Errorf("ambient: handler must not be nil")
	}
	gid := goid.Get()
	if entry, ok := defaultTracker.current(gid); ok {
		return runNested(entry.store, key.name, value, fn)
	}
	return runRoot(gid, key.name, value, fn)
}

func runRoot(gid int64, name string, value any, fn func() error) (err error) {
	entry := defaultTracker.beginRoot()
	entry.store.set(name, value)
	defaultTracker.bind(gid, entry.id)
	notify(lifecycle.Event{
		Kind:    lifecycle.KindEnter,
		ScopeID: entry.store.ID(),
		Root:    uint64(entry.root),
		Task:    uint64(entry.id),
		Key:     name,
	})
	defer func() {
		defaultTracker.unbind(gid)
		released, _ := defaultTracker.finish(entry.id)
		notify(lifecycle.Event{
			Kind:    lifecycle.KindExit,
			ScopeID: entry.store.ID(),
			Root:    uint64(entry.root),
			Task:    uint64(entry.id),
			Key:     name,
			Err:     err,
		})
		if released {
			notify(lifecycle.Event{
				Kind:    lifecycle.KindRelease,
				ScopeID: entry.store.ID(),
				Root:    uint64(entry.root),
			})
		}
	}()
	return fn()
}

func runNested(store *Store, name string, value any, fn func() error) error {
	prev, existed := store.swap(name, value)
	defer store.restore(name, prev, existed)
	return fn()
}

// Go runs fn on a new goroutine attributed to the caller's scope, so ambient
// values resolve inside fn exactly as they do in the caller. Outside any
// scope fn runs as a plain goroutine.
func Go(fn func()) {
	if fn == nil {
		return
	}
	parent, ok := defaultTracker.current(goid.Get())
	if !ok {
		go fn()
		return
	}
	child, ok := defaultTracker.adopt(parent.id)
	if !ok {
		go fn()
		return
	}
	notify(lifecycle.Event{
		Kind:    lifecycle.KindSpawn,
		ScopeID: child.store.ID(),
		Root:    uint64(child.root),
		Task:    uint64(child.id),
	})
	go func() {
		gid := goid.Get()
		defaultTracker.bind(gid, child.id)
		defer func() {
			defaultTracker.unbind(gid)
			released, _ := defaultTracker.finish(child.id)
			notify(lifecycle.Event{
				Kind:    lifecycle.KindSettle,
				ScopeID: child.store.ID(),
				Root:    uint64(child.root),
				Task:    uint64(child.id),
			})
			if released {
				notify(lifecycle.Event{
					Kind:    lifecycle.KindRelease,
					ScopeID: child.store.ID(),
					Root:    uint64(child.root),
				})
			}
		}()
		fn()
	}()
}

// InScope reports whether the calling goroutine runs under an active scope.
func InScope() bool {
	_, ok := currentStore()
	return ok
}

// ScopeID returns the active scope's correlation id, or empty outside any
// scope.
func ScopeID() string {
	store, ok := currentStore()
	if !ok {
		return ""
	}
	return store.ID()
}
