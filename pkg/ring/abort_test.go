package ring

import (
	"testing"
	"time"
)

func TestAbortFlag(t *testing.T) {
	f := NewAbortFlag()
	if f.IsSet() {
		t.Fatal("expected a new flag to be unset")
	}

	var calls int
	f.onSet(func() { calls++ })

	f.Set()
	f.Set()

	if !f.IsSet() {
		t.Fatal("expected flag to be set")
	}
	if calls != 1 {
		t.Fatalf("expected hook to run once, ran %d times", calls)
	}

	select {
	case <-f.Done():
	case <-time.After(time.Second):
		t.Fatal("expected Done to be closed")
	}

	// Hooks registered after Set run immediately.
	f.onSet(func() { calls++ })
	if calls != 2 {
		t.Fatalf("expected late hook to run, calls=%d", calls)
	}
}
