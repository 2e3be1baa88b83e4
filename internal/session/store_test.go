package session

import (
	"sync"
	"testing"
	"time"
)

func TestCreateGetDelete(t *testing.T) {
	t.Parallel()
	store := NewStore(nil)

	err := store.With("whatsapp:+56911111111", func(v View) error {
		if _, ok := v.Get(); ok {
			t.Fatal("Get on empty store reported a session")
		}
		sess, err := v.Create()
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if sess.State != StateInit {
			t.Fatalf("new session state = %s, want init", sess.State)
		}
		if _, err := v.Create(); err != ErrSessionExists {
			t.Fatalf("second Create err = %v, want ErrSessionExists", err)
		}
		v.Delete()
		if _, ok := v.Get(); ok {
			t.Fatal("session still present after Delete")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("With: %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("Len = %d, want 0", store.Len())
	}
}

func TestPerKeySerialization(t *testing.T) {
	t.Parallel()
	store := NewStore(nil)
	const key = "whatsapp:+56922222222"
	const workers = 32

	if err := store.With(key, func(v View) error {
		_, err := v.Create()
		return err
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// Each goroutine does a read-modify-write; with per-key exclusion the
	// final count is exact.
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.With(key, func(v View) error {
				sess, ok := v.Get()
				if !ok {
					t.Error("session missing mid-test")
					return nil
				}
				n := sess.ReceivedDocuments
				time.Sleep(time.Millisecond)
				sess.ReceivedDocuments = n + 1
				return nil
			})
		}()
	}
	wg.Wait()

	_ = store.With(key, func(v View) error {
		sess, _ := v.Get()
		if sess.ReceivedDocuments != workers {
			t.Fatalf("ReceivedDocuments = %d, want %d", sess.ReceivedDocuments, workers)
		}
		return nil
	})
}

func TestIndependentKeysDoNotBlock(t *testing.T) {
	t.Parallel()
	store := NewStore(nil)
	release := make(chan struct{})
	held := make(chan struct{})

	go func() {
		_ = store.With("a", func(v View) error {
			close(held)
			<-release
			return nil
		})
	}()

	<-held
	done := make(chan struct{})
	go func() {
		_ = store.With("b", func(v View) error { return nil })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("update for unrelated key blocked behind another key's lock")
	}
	close(release)
}

func TestSweep(t *testing.T) {
	t.Parallel()
	store := NewStore(nil)

	seed := func(key string, last time.Time) {
		_ = store.With(key, func(v View) error {
			sess, err := v.Create()
			if err != nil {
				return err
			}
			sess.LastEventAt = last
			return nil
		})
	}
	seed("stale", time.Now().Add(-2*time.Hour))
	seed("fresh", time.Now())

	if removed := store.Sweep(time.Hour); removed != 1 {
		t.Fatalf("Sweep removed %d, want 1", removed)
	}
	if store.Len() != 1 {
		t.Fatalf("Len after sweep = %d, want 1", store.Len())
	}

	if removed := store.Sweep(0); removed != 0 {
		t.Fatalf("Sweep with zero ttl removed %d, want 0", removed)
	}
}

func TestStateString(t *testing.T) {
	t.Parallel()
	if got := StateReconcilePending.String(); got != "reconcile_pending" {
		t.Fatalf("String = %q", got)
	}
	if got := State(99).String(); got != "unknown" {
		t.Fatalf("String(99) = %q", got)
	}
}
