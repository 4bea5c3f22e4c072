package ambient

import "testing"

func TestStoreSwapRestore(t *testing.T) {
	store := newStore(1)

	prev, existed := store.swap("request", "a")
	if existed || prev != nil {
		t.Fatalf("expected empty slot, got %v (existed=%v)", prev, existed)
	}
	prev, existed = store.swap("request", "b")
	if !existed || prev != "a" {
		t.Fatalf("expected displaced value a, got %v (existed=%v)", prev, existed)
	}
	store.restore("request", prev, existed)
	if value, ok := store.lookup("request"); !ok || value != "a" {
		t.Fatalf("expected a restored, got %v (ok=%v)", value, ok)
	}

	store.restore("request", nil, false)
	if _, ok := store.lookup("request"); ok {
		t.Fatalf("expected entry removed when previous was absent")
	}
}

func TestStoreSnapshotDetached(t *testing.T) {
	store := newStore(2)
	value := &requestInfo{RequestID: "snap"}
	store.set("request", value)

	snapshot := store.Snapshot()
	value.RequestID = "changed"

	request, ok := snapshot["request"].(map[string]any)
	if !ok {
		t.Fatalf("expected JSON view, got %T", snapshot["request"])
	}
	if request["request_id"] != "snap" {
		t.Fatalf("snapshot observed live mutation: %v", request["request_id"])
	}
}

func TestStoreKeysSorted(t *testing.T) {
	store := newStore(3)
	store.set("b", 1)
	store.set("a", 2)
	store.set("c", 3)

	keys := store.Keys()
	want := []string{"a", "b", "c"}
	for i, name := range want {
		if keys[i] != name {
			t.Fatalf("expected %v, got %v", want, keys)
		}
	}
}

func TestStoreCorrelationIDsUnique(t *testing.T) {
	first := newStore(4)
	second := newStore(5)
	if first.ID() == "" || first.ID() == second.ID() {
		t.Fatalf("expected distinct non-empty correlation ids, got %q and %q", first.ID(), second.ID())
	}
}
