package zerologsink

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/goliatone/go-ambient/pkg/lifecycle"
)

func TestNotifyWritesEvent(t *testing.T) {
	var buf bytes.Buffer
	hook := New(zerolog.New(&buf))

	err := hook.Notify(lifecycle.Event{
		Kind:       lifecycle.KindEnter,
		ScopeID:    "scope-1",
		Root:       7,
		Task:       9,
		Key:        "request",
		Err:        errors.New("boom"),
		Metadata:   map[string]any{"attempt": 1},
		OccurredAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if entry["kind"] != "enter" || entry["scope_id"] != "scope-1" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if entry["root"] != float64(7) || entry["task"] != float64(9) {
		t.Fatalf("unexpected ids: %v", entry)
	}
	if entry["key"] != "request" || entry["error"] != "boom" {
		t.Fatalf("unexpected detail fields: %v", entry)
	}
}

func TestNotifyOmitsEmptyFields(t *testing.T) {
	var buf bytes.Buffer
	hook := New(zerolog.New(&buf))

	if err := hook.Notify(lifecycle.Event{Kind: lifecycle.KindRelease, ScopeID: "scope-2", Root: 3}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	for _, field := range []string{"task", "key", "error", "metadata"} {
		if _, ok := entry[field]; ok {
			t.Fatalf("expected %s omitted, got %v", field, entry)
		}
	}
}
