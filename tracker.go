package ambient

import (
	"sort"
	"sync"

	"github.com/petermattis/goid"
)

// TaskID identifies one tracked unit of concurrently scheduled work. IDs are
// allocated monotonically and never reused while the task is live.
type TaskID uint64

type taskEntry struct {
	id    TaskID
	root  TaskID
	store *Store
}

// tracker answers "which scope is this goroutine running under". It owns the
// task entries, the per-root membership sets, and the goroutine binding table
// that stands in for a host-provided current-task query.
type tracker struct {
	mu      sync.Mutex
	nextID  TaskID
	entries map[TaskID]*taskEntry
	members map[TaskID]map[TaskID]struct{}
	binding map[int64]TaskID
	stores  *registry
}

func newTracker() *tracker {
	return &tracker{
		entries: map[TaskID]*taskEntry{},
		members: map[TaskID]map[TaskID]struct{}{},
		binding: map[int64]TaskID{},
		stores:  newRegistry(),
	}
}

var defaultTracker = newTracker()

// beginRoot allocates a root task with a fresh store. The root handler's own
// span counts as the first member of its set, so release cannot fire before
// the handler has returned.
func (t *tracker) beginRoot() *taskEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	id := t.nextID
	entry := &taskEntry{id: id, root: id, store: t.stores.createRoot(id)}
	t.entries[id] = entry
	t.members[id] = map[TaskID]struct{}{id: {}}
	return entry
}

// adopt creates a child task inheriting the parent's root and store. An
// untracked parent is reported as absence, never an error.
func (t *tracker) adopt(parent TaskID) (*taskEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	from, ok := t.entries[parent]
	if !ok {
		return nil, false
	}
	t.nextID++
	id := t.nextID
	entry := &taskEntry{id: id, root: from.root, store: from.store}
	t.entries[id] = entry
	if set := t.members[from.root]; set != nil {
		set[id] = struct{}{}
	}
	return entry, true
}

// finish drops a task from its root's member set. Draining the set releases
// the root's store regardless of the order descendants completed in.
// Finishing an unknown task is a no-op.
func (t *tracker) finish(id TaskID) (released bool, store *Store) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.entries[id]
	if !ok {
		return false, nil
	}
	delete(t.entries, id)
	if set := t.members[entry.root]; set != nil {
		delete(set, id)
		if len(set) > 0 {
			return false, entry.store
		}
	}
	delete(t.members, entry.root)
	t.stores.deleteRoot(entry.root)
	return true, entry.store
}

func (t *tracker) bind(gid int64, id TaskID) {
	t.mu.Lock()
	t.binding[gid] = id
	t.mu.Unlock()
}

func (t *tracker) unbind(gid int64) {
	t.mu.Lock()
	delete(t.binding, gid)
	t.mu.Unlock()
}

// current resolves a goroutine to its task entry, or reports none.
func (t *tracker) current(gid int64) (*taskEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.binding[gid]
	if !ok {
		return nil, false
	}
	entry, ok := t.entries[id]
	return entry, ok
}

// tasksUnder returns the live task ids below root, sorted.
func (t *tracker) tasksUnder(root TaskID) []TaskID {
	t.mu.Lock()
	defer t.mu.Unlock()
	set, ok := t.members[root]
	if !ok {
		return nil
	}
	out := make([]TaskID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// currentStore resolves the calling goroutine's active store, or reports
// none. Absence is the caller's decision to escalate.
func currentStore() (*Store, bool) {
	entry, ok := defaultTracker.current(goid.Get())
	if !ok {
		return nil, false
	}
	return entry.store, true
}
