package repo

import (
	"sync"

	"gorm.io/gorm"

	"github.com/convoforge/go-assistant-backend/internal/domain"
)

// SessionFactoryRegistry is a process-wide, reference-counted pool of
// database engines keyed by connection URL. Many unit-of-work instances
// share one engine per URL; the engine is disposed when the last holder
// releases it. Tests pointing at distinct sqlite URLs get isolated engines.
//
// All map mutation happens under a single mutex; engine construction and
// disposal run outside it, so the lock is never held across IO. Concurrent
// acquirers of a URL being opened wait on the entry's ready channel and
// never observe a half-built engine.
type SessionFactoryRegistry struct {
	mu      sync.Mutex
	entries map[string]*registryEntry
}

type registryEntry struct {
	refs  int
	ready chan struct{}
	db    *gorm.DB
	err   error
}

// NewSessionFactoryRegistry returns an empty registry.
func NewSessionFactoryRegistry() *SessionFactoryRegistry {
	return &SessionFactoryRegistry{entries: make(map[string]*registryEntry)}
}

// Sessions is the process-wide registry. Dispose it at shutdown.
var Sessions = NewSessionFactoryRegistry()

// Acquire returns the engine for url, creating it on first use, and
// increments the URL's reference count. A failed open leaves no entry and
// no incremented count behind.
func (r *SessionFactoryRegistry) Acquire(url string) (*gorm.DB, error) {
	if url == "" {
		return nil, domain.Validationf("database URL must be provided")
	}

	r.mu.Lock()
	if e, ok := r.entries[url]; ok {
		e.refs++
		r.mu.Unlock()
		<-e.ready
		if e.err != nil {
			r.Release(url)
			return nil, domain.Infraf(e.err, "open database engine")
		}
		return e.db, nil
	}
	e := &registryEntry{refs: 1, ready: make(chan struct{})}
	r.entries[url] = e
	r.mu.Unlock()

	db, err := Open(url)
	e.db, e.err = db, err
	close(e.ready)
	if err != nil {
		r.Release(url)
		return nil, domain.Infraf(err, "open database engine")
	}

	// DisposeAll may have cleared the registry while the engine was being
	// opened; in that case this engine is already orphaned and must go too.
	r.mu.Lock()
	orphaned := r.entries[url] != e
	r.mu.Unlock()
	if orphaned {
		dispose(db)
		return nil, domain.Infraf(gorm.ErrInvalidDB, "registry disposed during open")
	}
	return db, nil
}

// Release decrements the URL's reference count. When it reaches zero the
// engine is disposed and the entry removed. Releasing an unknown URL is a
// no-op.
func (r *SessionFactoryRegistry) Release(url string) {
	r.mu.Lock()
	e, ok := r.entries[url]
	if !ok {
		r.mu.Unlock()
		return
	}
	e.refs--
	if e.refs > 0 {
		r.mu.Unlock()
		return
	}
	delete(r.entries, url)
	r.mu.Unlock()

	dispose(e.db)
}

// Refs returns the current reference count for url, 0 when absent.
func (r *SessionFactoryRegistry) Refs(url string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[url]; ok {
		return e.refs
	}
	return 0
}

// Len returns the number of live engines.
func (r *SessionFactoryRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// DisposeAll disposes every engine and clears the registry, used at process
// shutdown.
func (r *SessionFactoryRegistry) DisposeAll() {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*registryEntry)
	r.mu.Unlock()

	for _, e := range entries {
		// Entries still being opened are disposed by their opener once it
		// notices the registry no longer holds them.
		select {
		case <-e.ready:
			dispose(e.db)
		default:
		}
	}
}

func dispose(db *gorm.DB) {
	if db == nil {
		return
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
