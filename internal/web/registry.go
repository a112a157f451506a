package web

// registry.go tracks in-flight ingestions between API calls. An upload
// creates an entry; mapping, confirm, and record requests look it up by ID.
// Entries idle past the configured TTL are evicted by a background sweep so
// abandoned sessions do not pin file contents in memory.

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dealdesk/dealdesk/internal/ingest"
)

// ingestEntry is one tracked ingestion. The mutex guards the eviction
// clock; the ingestion and its session carry their own synchronization.
type ingestEntry struct {
	mu sync.Mutex

	in            *ingest.Ingestion
	presetApplied bool
	lastAccess    time.Time
}

type registry struct {
	mu      sync.RWMutex
	entries map[string]*ingestEntry
	ttl     time.Duration
	done    chan struct{}
	once    sync.Once
}

func newRegistry(ttl time.Duration) *registry {
	r := &registry{
		entries: make(map[string]*ingestEntry),
		ttl:     ttl,
		done:    make(chan struct{}),
	}
	go r.sweep()
	return r
}

// Put registers an ingestion and returns its ID together with the entry,
// so the caller never has to re-look-up something a concurrent sweep could
// already have evicted.
func (r *registry) Put(in *ingest.Ingestion, presetApplied bool) (string, *ingestEntry) {
	id := uuid.NewString()
	e := &ingestEntry{
		in:            in,
		presetApplied: presetApplied,
		lastAccess:    time.Now(),
	}

	r.mu.Lock()
	r.entries[id] = e
	r.mu.Unlock()

	return id, e
}

// Get looks up an ingestion and refreshes its eviction clock.
func (r *registry) Get(id string) (*ingestEntry, bool) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}

	e.mu.Lock()
	e.lastAccess = time.Now()
	e.mu.Unlock()
	return e, true
}

// Len returns the number of tracked ingestions.
func (r *registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Close stops the eviction sweep.
func (r *registry) Close() {
	r.once.Do(func() { close(r.done) })
}

// sweep periodically drops entries idle past the TTL.
func (r *registry) sweep() {
	interval := r.ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.evictStale()
		}
	}
}

func (r *registry) evictStale() {
	cutoff := time.Now().Add(-r.ttl)

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, e := range r.entries {
		e.mu.Lock()
		stale := e.lastAccess.Before(cutoff)
		e.mu.Unlock()
		if stale {
			delete(r.entries, id)
		}
	}
}
