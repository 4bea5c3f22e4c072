package ambient

import (
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-ambient/pkg/lifecycle"
)

func TestObserversReceiveScopeLifecycle(t *testing.T) {
	ResetObservers()
	defer ResetObservers()

	var mu sync.Mutex
	seen := map[lifecycle.Kind]int{}
	var first lifecycle.Kind
	Observe(lifecycle.HookFunc(func(event lifecycle.Event) error {
		mu.Lock()
		defer mu.Unlock()
		if first == "" {
			first = event.Kind
		}
		seen[event.Kind]++
		return nil
	}))

	done := make(chan struct{})
	err := Run(reqKey, &requestInfo{RequestID: "observed"}, func() error {
		Go(func() { close(done) })
		<-done
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitForRelease(t)

	waitUntil(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, kind := range []lifecycle.Kind{
			lifecycle.KindEnter,
			lifecycle.KindSpawn,
			lifecycle.KindSettle,
			lifecycle.KindExit,
			lifecycle.KindRelease,
		} {
			if seen[kind] == 0 {
				return false
			}
		}
		return true
	})

	mu.Lock()
	defer mu.Unlock()
	if first != lifecycle.KindEnter {
		t.Fatalf("expected enter first, got %q", first)
	}
	if seen[lifecycle.KindRelease] != 1 {
		t.Fatalf("expected a single release, got %d", seen[lifecycle.KindRelease])
	}
}

func TestObserverFailureDoesNotRaise(t *testing.T) {
	ResetObservers()
	defer ResetObservers()

	Observe(lifecycle.HookFunc(func(lifecycle.Event) error {
		return errTestSink
	}))

	err := Run(reqKey, &requestInfo{RequestID: "faulty-sink"}, func() error {
		return nil
	})
	if err != nil {
		t.Fatalf("hook failure leaked into handler result: %v", err)
	}
	waitForRelease(t)
}
