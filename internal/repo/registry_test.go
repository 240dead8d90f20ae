package repo

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/convoforge/go-assistant-backend/internal/domain"
)

func testURL(t *testing.T) string {
	t.Helper()
	return "sqlite:" + filepath.Join(t.TempDir(), "registry_test.db")
}

func TestAcquire_SameURLSharesEngine(t *testing.T) {
	reg := NewSessionFactoryRegistry()
	url := testURL(t)

	db1, err := reg.Acquire(url)
	if err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	db2, err := reg.Acquire(url)
	if err != nil {
		t.Fatalf("second Acquire: %v", err)
	}
	if db1 != db2 {
		t.Fatal("same URL must return the same engine")
	}
	if got := reg.Refs(url); got != 2 {
		t.Fatalf("refs = %d, want 2", got)
	}
	if got := reg.Len(); got != 1 {
		t.Fatalf("engines = %d, want 1", got)
	}

	reg.Release(url)
	if got := reg.Refs(url); got != 1 {
		t.Fatalf("refs after one release = %d, want 1", got)
	}
	reg.Release(url)
	if got := reg.Len(); got != 0 {
		t.Fatalf("engines after final release = %d, want 0", got)
	}

	// A released engine's pool is closed.
	sqlDB, err := db1.DB()
	if err != nil {
		t.Fatalf("DB(): %v", err)
	}
	if err := sqlDB.Ping(); err == nil {
		t.Fatal("expected closed pool after final release")
	}
}

func TestAcquire_DistinctURLsIsolated(t *testing.T) {
	reg := NewSessionFactoryRegistry()
	urlA := "sqlite:" + filepath.Join(t.TempDir(), "a.db")
	urlB := "sqlite:" + filepath.Join(t.TempDir(), "b.db")

	dbA, err := reg.Acquire(urlA)
	if err != nil {
		t.Fatalf("Acquire a: %v", err)
	}
	dbB, err := reg.Acquire(urlB)
	if err != nil {
		t.Fatalf("Acquire b: %v", err)
	}
	if dbA == dbB {
		t.Fatal("distinct URLs must get distinct engines")
	}
	if got := reg.Len(); got != 2 {
		t.Fatalf("engines = %d, want 2", got)
	}
	reg.DisposeAll()
}

func TestRelease_UnknownURLIsNoop(t *testing.T) {
	reg := NewSessionFactoryRegistry()
	url := testURL(t)

	if _, err := reg.Acquire(url); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	reg.Release(url)
	reg.Release(url) // extra release must not panic or underflow
	if got := reg.Refs(url); got != 0 {
		t.Fatalf("refs = %d, want 0", got)
	}
	reg.Release("sqlite:/nowhere/never-acquired.db")
}

func TestAcquire_EmptyURLRejected(t *testing.T) {
	reg := NewSessionFactoryRegistry()
	_, err := reg.Acquire("")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAcquire_FailedOpenLeavesNoEntry(t *testing.T) {
	reg := NewSessionFactoryRegistry()
	url := "sqlite:" + filepath.Join(t.TempDir(), "missing", "nested", "no.db")

	_, err := reg.Acquire(url)
	if !errors.Is(err, domain.ErrInfrastructure) {
		t.Fatalf("expected infrastructure error, got %v", err)
	}
	if got := reg.Refs(url); got != 0 {
		t.Fatalf("refs after failed open = %d, want 0", got)
	}
	if got := reg.Len(); got != 0 {
		t.Fatalf("engines after failed open = %d, want 0", got)
	}
}

func TestAcquire_ConcurrentBalancedByRelease(t *testing.T) {
	reg := NewSessionFactoryRegistry()
	url := testURL(t)

	const n = 16
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := reg.Acquire(url); err != nil {
				errs <- err
				return
			}
			reg.Release(url)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent acquire: %v", err)
	}

	if got := reg.Refs(url); got != 0 {
		t.Fatalf("refs after balanced releases = %d, want 0", got)
	}
}

func TestDisposeAll_ClearsRegistry(t *testing.T) {
	reg := NewSessionFactoryRegistry()
	for i := 0; i < 3; i++ {
		url := fmt.Sprintf("sqlite:%s", filepath.Join(t.TempDir(), fmt.Sprintf("d%d.db", i)))
		if _, err := reg.Acquire(url); err != nil {
			t.Fatalf("Acquire: %v", err)
		}
	}
	reg.DisposeAll()
	if got := reg.Len(); got != 0 {
		t.Fatalf("engines after DisposeAll = %d, want 0", got)
	}
}
