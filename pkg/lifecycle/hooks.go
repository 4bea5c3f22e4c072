// Package lifecycle describes scope lifecycle transitions and fans them out
// to registered hooks.
package lifecycle

import (
	"errors"
	"strings"
	"time"
)

// Kind names one scope lifecycle transition.
type Kind string

const (
	// KindEnter fires when a root scope begins.
	KindEnter Kind = "enter"
	// KindExit fires when a root handler returns or panics.
	KindExit Kind = "exit"
	// KindSpawn fires when a goroutine is adopted under a scope.
	KindSpawn Kind = "spawn"
	// KindSettle fires when a tracked goroutine finishes.
	KindSettle Kind = "settle"
	// KindRelease fires when a scope's store is torn down.
	KindRelease Kind = "release"
)

// Event describes one scope lifecycle occurrence. Root and Task are plain
// integers to avoid coupling hook implementations to the core task id type.
type Event struct {
	Kind       Kind
	ScopeID    string
	Root       uint64
	Task       uint64
	Key        string
	Err        error
	Metadata   map[string]any
	OccurredAt time.Time
}

// Hook receives normalized lifecycle events.
type Hook interface {
	Notify(event Event) error
}

// HookFunc allows plain functions to satisfy Hook.
type HookFunc func(event Event) error

// Notify dispatches to the underlying function.
func (fn HookFunc) Notify(event Event) error {
	if fn == nil {
		return nil
	}
	return fn(event)
}

// Hooks fans out events to zero or more hooks.
type Hooks []Hook

// Enabled reports whether there are any hooks to notify.
func (h Hooks) Enabled() bool {
	return len(h) > 0
}

// Notify forwards the event to all hooks, returning a joined error if any
// fail. It normalizes the event and drops events without a kind.
func (h Hooks) Notify(event Event) error {
	if len(h) == 0 {
		return nil
	}

	normalized := NormalizeEvent(event)
	if normalized.Kind == "" {
		return nil
	}

	var errs []error
	for _, hook := range h {
		if hook == nil {
			continue
		}
		if err := hook.Notify(normalized); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}

// NormalizeEvent trims identifiers, clones metadata, and ensures a timestamp
// is present.
func NormalizeEvent(event Event) Event {
	normalized := event
	normalized.Kind = Kind(strings.TrimSpace(string(event.Kind)))
	normalized.ScopeID = strings.TrimSpace(event.ScopeID)
	normalized.Key = strings.TrimSpace(event.Key)
	normalized.Metadata = cloneMap(event.Metadata)
	if normalized.OccurredAt.IsZero() {
		normalized.OccurredAt = time.Now()
	}
	return normalized
}

func cloneMap(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]any, len(src))
	for key, value := range src {
		dst[key] = value
	}
	return dst
}
