package ambient

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type requestInfo struct {
	RequestID string `json:"request_id"`
	UserID    string `json:"user_id,omitempty"`
	Hops      int    `json:"hops"`
}

type sessionInfo struct {
	UserID string `json:"user_id"`
	Role   string `json:"role,omitempty"`
}

var (
	reqKey     = MustKey[requestInfo]("request")
	sessionKey = MustKey[sessionInfo]("session")
)

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func waitForRelease(t *testing.T) {
	t.Helper()
	waitUntil(t, 2*time.Second, func() bool {
		return defaultTracker.stores.rootCount() == 0
	})
}

func TestRunSeedsRootValue(t *testing.T) {
	var got string
	err := Run(reqKey, &requestInfo{RequestID: "r1"}, func() error {
		value, err := reqKey.Value()
		if err != nil {
			return err
		}
		got = value.RequestID
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "r1" {
		t.Fatalf("expected r1, got %q", got)
	}
	waitForRelease(t)
}

func TestValueOutsideScope(t *testing.T) {
	_, err := reqKey.Value()
	if !errors.Is(err, ErrOutsideScope) {
		t.Fatalf("expected outside-scope error, got %v", err)
	}
	var outside *OutsideScopeError
	if !errors.As(err, &outside) || outside.Key != "request" {
		t.Fatalf("expected typed error carrying key name, got %v", err)
	}
}

func TestUnsetFieldVersusUnenteredKey(t *testing.T) {
	err := Run(reqKey, &requestInfo{RequestID: "r1"}, func() error {
		value, err := reqKey.Value()
		if err != nil {
			return err
		}
		if value.UserID != "" {
			return fmt.Errorf("expected zero user id, got %q", value.UserID)
		}
		_, err = sessionKey.Value()
		if !errors.Is(err, ErrUninitializedContext) {
			return fmt.Errorf("expected uninitialized error for unentered key, got %v", err)
		}
		var uninitialized *UninitializedContextError
		if !errors.As(err, &uninitialized) || uninitialized.Key != "session" {
			return fmt.Errorf("expected typed error carrying key name, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitForRelease(t)
}

func TestConcurrentRootsIsolated(t *testing.T) {
	var wg sync.WaitGroup
	for i, id := range []string{"a", "b"} {
		wg.Add(1)
		delay := time.Duration(5+i*5) * time.Millisecond
		id := id
		go func() {
			defer wg.Done()
			err := Run(reqKey, &requestInfo{RequestID: id}, func() error {
				time.Sleep(delay)
				value, err := reqKey.Value()
				if err != nil {
					return err
				}
				if value.RequestID != id {
					return fmt.Errorf("scope cross-talk: expected %q, got %q", id, value.RequestID)
				}
				return nil
			})
			if err != nil {
				t.Errorf("root %q: %v", id, err)
			}
		}()
	}
	wg.Wait()
	waitForRelease(t)
}

func TestNestedOverrideRestores(t *testing.T) {
	err := Run(reqKey, &requestInfo{RequestID: "outer"}, func() error {
		if err := Run(reqKey, &requestInfo{RequestID: "inner"}, func() error {
			value, err := reqKey.Value()
			if err != nil {
				return err
			}
			if value.RequestID != "inner" {
				return fmt.Errorf("expected inner value, got %q", value.RequestID)
			}
			return nil
		}); err != nil {
			return err
		}
		value, err := reqKey.Value()
		if err != nil {
			return err
		}
		if value.RequestID != "outer" {
			return fmt.Errorf("expected outer value restored, got %q", value.RequestID)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitForRelease(t)
}

func TestNestedAbsentKeyRemovedAfterRestore(t *testing.T) {
	err := Run(reqKey, &requestInfo{RequestID: "r"}, func() error {
		if err := Run(sessionKey, &sessionInfo{UserID: "u1"}, func() error {
			value, err := sessionKey.Value()
			if err != nil {
				return err
			}
			if value.UserID != "u1" {
				return fmt.Errorf("expected u1, got %q", value.UserID)
			}
			return nil
		}); err != nil {
			return err
		}
		if _, err := sessionKey.Value(); !errors.Is(err, ErrUninitializedContext) {
			return fmt.Errorf("expected session entry removed after restore, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitForRelease(t)
}

func TestHandlerErrorPropagatesAfterCleanup(t *testing.T) {
	boom := errors.New("boom")
	err := Run(reqKey, &requestInfo{RequestID: "fail"}, func() error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected handler error unchanged, got %v", err)
	}
	waitForRelease(t)

	err = Run(reqKey, &requestInfo{RequestID: "fresh"}, func() error {
		value, err := reqKey.Value()
		if err != nil {
			return err
		}
		if value.RequestID != "fresh" {
			return fmt.Errorf("fresh scope contaminated: %q", value.RequestID)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("fresh scope after failure: %v", err)
	}
	waitForRelease(t)
}

func TestNestedErrorStillRestores(t *testing.T) {
	boom := errors.New("inner boom")
	err := Run(reqKey, &requestInfo{RequestID: "outer"}, func() error {
		if err := Run(reqKey, &requestInfo{RequestID: "inner"}, func() error {
			return boom
		}); !errors.Is(err, boom) {
			return fmt.Errorf("expected inner error unchanged, got %v", err)
		}
		value, err := reqKey.Value()
		if err != nil {
			return err
		}
		if value.RequestID != "outer" {
			return fmt.Errorf("expected outer restored after inner failure, got %q", value.RequestID)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitForRelease(t)
}

func TestHandlerPanicStillCleansUp(t *testing.T) {
	func() {
		defer func() {
			if recover() == nil {
				t.Fatalf("expected panic to propagate")
			}
		}()
		_ = Run(reqKey, &requestInfo{RequestID: "p"}, func() error {
			panic("kaboom")
		})
	}()
	if InScope() {
		t.Fatalf("scope still active after panic")
	}
	waitForRelease(t)
}

func TestNestedPanicRestoresOuterValue(t *testing.T) {
	err := Run(reqKey, &requestInfo{RequestID: "outer"}, func() error {
		func() {
			defer func() { _ = recover() }()
			_ = Run(reqKey, &requestInfo{RequestID: "inner"}, func() error {
				panic("inner kaboom")
			})
		}()
		value, err := reqKey.Value()
		if err != nil {
			return err
		}
		if value.RequestID != "outer" {
			return fmt.Errorf("expected outer restored after panic, got %q", value.RequestID)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitForRelease(t)
}

func TestGoInheritsScope(t *testing.T) {
	done := make(chan error, 1)
	err := Run(reqKey, &requestInfo{RequestID: "spawned"}, func() error {
		Go(func() {
			value, err := reqKey.Value()
			if err != nil {
				done <- err
				return
			}
			if value.RequestID != "spawned" {
				done <- fmt.Errorf("expected spawned, got %q", value.RequestID)
				return
			}
			done <- nil
		})
		return <-done
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitForRelease(t)
}

func TestMutationVisibleAcrossHops(t *testing.T) {
	err := Run(reqKey, &requestInfo{RequestID: "hops"}, func() error {
		for i := 0; i < 3; i++ {
			hop := make(chan error, 1)
			want := i
			Go(func() {
				hop <- reqKey.Update(func(value *requestInfo) {
					if value.Hops != want {
						return
					}
					value.Hops++
				})
			})
			if err := <-hop; err != nil {
				return err
			}
		}
		value, err := reqKey.Value()
		if err != nil {
			return err
		}
		if value.Hops != 3 {
			return fmt.Errorf("expected 3 hops applied, got %d", value.Hops)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitForRelease(t)
}

func TestStoreHeldUntilSpawnedWorkSettles(t *testing.T) {
	block := make(chan struct{})
	read := make(chan string, 1)
	err := Run(reqKey, &requestInfo{RequestID: "late"}, func() error {
		Go(func() {
			<-block
			value, err := reqKey.Value()
			if err != nil {
				read <- err.Error()
				return
			}
			read <- value.RequestID
		})
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if defaultTracker.stores.rootCount() == 0 {
		t.Fatalf("store released while spawned work still pending")
	}
	close(block)
	if got := <-read; got != "late" {
		t.Fatalf("expected late, got %q", got)
	}
	waitForRelease(t)
}

func TestGoOutsideScopeRunsPlain(t *testing.T) {
	done := make(chan bool, 1)
	Go(func() { done <- InScope() })
	if <-done {
		t.Fatalf("expected plain goroutine outside any scope")
	}
}

func TestScopeID(t *testing.T) {
	if got := ScopeID(); got != "" {
		t.Fatalf("expected empty scope id outside any scope, got %q", got)
	}
	err := Run(reqKey, &requestInfo{RequestID: "sid"}, func() error {
		if ScopeID() == "" {
			return fmt.Errorf("expected scope id inside scope")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitForRelease(t)
}

func TestRunArgumentValidation(t *testing.T) {
	if err := Run[requestInfo](nil, &requestInfo{}, func() error { return nil }); err == nil {
		t.Fatalf("expected error for nil key")
	}
	if err := Run(reqKey, &requestInfo{}, nil); err == nil {
		t.Fatalf("expected error for nil handler")
	}
}
