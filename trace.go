package ambient

import (
	"encoding/json"

	"github.com/petermattis/goid"
)

// Trace captures a diagnostic snapshot of the active scope: its correlation
// id, the live tasks under its root, and how each registered key resolves.
type Trace struct {
	ScopeID string     `json:"scope_id"`
	Root    TaskID     `json:"root"`
	Tasks   []TaskID   `json:"tasks"`
	Keys    []KeyState `json:"keys"`
}

// KeyState reports one key's state in a traced scope. Keys registered but
// never entered on this path appear with Bound false.
type KeyState struct {
	Name  string `json:"name"`
	Value any    `json:"value,omitempty"`
	Bound bool   `json:"bound"`
}

// CaptureTrace snapshots the calling goroutine's scope. Values are JSON
// views, detached from the live objects.
func CaptureTrace() (Trace, error) {
	entry, ok := defaultTracker.current(goid.Get())
	if !ok {
		return Trace{}, ErrOutsideScope
	}
	snapshot := entry.store.Snapshot()
	seen := map[string]struct{}{}
	names := defaultBinder.Names()
	keys := make([]KeyState, 0, len(names))
	for _, name := range names {
		value, bound := snapshot[name]
		keys = append(keys, KeyState{Name: name, Value: value, Bound: bound})
		seen[name] = struct{}{}
	}
	for _, name := range entry.store.Keys() {
		if _, ok := seen[name]; ok {
			continue
		}
		keys = append(keys, KeyState{Name: name, Value: snapshot[name], Bound: true})
	}
	return Trace{
		ScopeID: entry.store.ID(),
		Root:    entry.root,
		Tasks:   defaultTracker.tasksUnder(entry.root),
		Keys:    keys,
	}, nil
}

// ToJSON serialises the trace into JSON for logging or transport helpers.
func (t Trace) ToJSON() ([]byte, error) {
	type alias Trace
	return json.Marshal(alias(t))
}

// TraceFromJSON deserialises a JSON payload that was previously generated via
// ToJSON.
func TraceFromJSON(payload []byte) (Trace, error) {
	type alias Trace
	var trace alias
	if err := json.Unmarshal(payload, &trace); err != nil {
		return Trace{}, err
	}
	return Trace(trace), nil
}
