package ambient

import (
	"sync"

	"github.com/goliatone/go-ambient/pkg/lifecycle"
)

var (
	observerMu sync.RWMutex
	observers  lifecycle.Hooks
)

// Observe registers hooks notified on scope lifecycle transitions: root
// enter/exit, tracked spawns and settles, and store release. Hook failures
// are dropped; bookkeeping never raises into handlers.
func Observe(hooks ...lifecycle.Hook) {
	observerMu.Lock()
	defer observerMu.Unlock()
	for _, hook := range hooks {
		if hook != nil {
			observers = append(observers, hook)
		}
	}
}

// ResetObservers drops every registered hook.
func ResetObservers() {
	observerMu.Lock()
	observers = nil
	observerMu.Unlock()
}

func notify(event lifecycle.Event) {
	observerMu.RLock()
	hooks := observers
	observerMu.RUnlock()
	if !hooks.Enabled() {
		return
	}
	_ = hooks.Notify(event)
}
