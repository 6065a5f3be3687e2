package singleton_test

import (
	"errors"
	"path/filepath"
	"testing"

	"uploadr/internal/services"
	"uploadr/internal/singleton"
)

func TestAcquireIsExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "uploadr.lock")
	first, err := singleton.Acquire(path)
	if err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	defer first.Release()

	second, err := singleton.Acquire(path)
	if !errors.Is(err, services.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got handle=%v err=%v", second, err)
	}
	if services.Classify(err) != services.ScopeProcess {
		t.Fatalf("expected process scope, got %s", services.Classify(err))
	}

	held, err := singleton.Held(path)
	if err != nil || !held {
		t.Fatalf("expected lock reported held, got %v (err=%v)", held, err)
	}
}

func TestReleaseAllowsReacquire(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uploadr.lock")
	first, err := singleton.Acquire(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := first.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := first.Release(); err != nil {
		t.Fatalf("second Release: %v", err)
	}

	second, err := singleton.Acquire(path)
	if err != nil {
		t.Fatalf("reacquire: %v", err)
	}
	defer second.Release()
	if second.Path() != path {
		t.Fatalf("unexpected lock path %q", second.Path())
	}
}

func TestHeldWithoutLockFile(t *testing.T) {
	held, err := singleton.Held(filepath.Join(t.TempDir(), "absent.lock"))
	if err != nil || held {
		t.Fatalf("expected not held, got %v (err=%v)", held, err)
	}
}
