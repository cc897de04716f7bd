package lockfile

import (
	"context"
	"path/filepath"
	"testing"
)

func TestWithLockRunsFn(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".lock")
	ran := false
	err := WithLock(context.Background(), path, func() error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("WithLock: %v", err)
	}
	if !ran {
		t.Error("expected fn to run")
	}
}

func TestLockHeldByAnotherHandle(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".lock")

	holder := New(path)
	if err := holder.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer holder.Release()

	contender := New(path)
	err := contender.Acquire(context.Background())
	if err == nil {
		contender.Release()
		t.Fatal("expected LockHeldError while the first handle holds the lock")
	}
	if _, ok := err.(*LockHeldError); !ok {
		t.Errorf("expected *LockHeldError, got %T", err)
	}
}

func TestReleaseThenReacquire(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".lock")
	l := New(path)
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := l.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}

	l2 := New(path)
	if err := l2.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	l2.Release()
}
