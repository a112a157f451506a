// Package preset persists confirmed column mappings so a returning export
// shape can skip reconciliation.
//
// Presets are keyed by the header-row signature (see ingest.HeaderSignature):
// when an upload's signature matches a stored preset, its mapping is applied
// to the new session automatically. The storage contract is a small
// get/put interface so the backing technology stays swappable; this package
// ships a Postgres implementation and an in-memory one.
package preset

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no preset exists for a signature or ID.
var ErrNotFound = errors.New("preset not found")

// Preset is a saved header -> canonical-field mapping for one file shape.
type Preset struct {
	ID        string            `json:"id"`
	Signature string            `json:"signature"`
	Name      string            `json:"name"`
	Headers   []string          `json:"headers"`
	Mapping   map[string]string `json:"mapping"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// Store is the persistence contract for mapping presets.
type Store interface {
	// GetBySignature returns the preset for a header signature, or
	// ErrNotFound.
	GetBySignature(ctx context.Context, signature string) (*Preset, error)

	// Put inserts or replaces the preset for its signature and returns
	// the stored copy with ID and timestamps populated.
	Put(ctx context.Context, p Preset) (*Preset, error)

	// List returns all presets, newest first.
	List(ctx context.Context) ([]Preset, error)

	// Delete removes a preset by ID. Deleting a missing preset returns
	// ErrNotFound.
	Delete(ctx context.Context, id string) error
}

// MemoryStore is an in-memory Store for tests and DB-less deployments.
type MemoryStore struct {
	mu    sync.RWMutex
	bySig map[string]Preset
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{bySig: make(map[string]Preset)}
}

// GetBySignature implements Store.
func (s *MemoryStore) GetBySignature(_ context.Context, signature string) (*Preset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.bySig[signature]
	if !ok {
		return nil, ErrNotFound
	}
	out := clonePreset(p)
	return &out, nil
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, p Preset) (*Preset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if existing, ok := s.bySig[p.Signature]; ok {
		p.ID = existing.ID
		p.CreatedAt = existing.CreatedAt
	} else {
		p.ID = uuid.NewString()
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	s.bySig[p.Signature] = clonePreset(p)
	out := clonePreset(p)
	return &out, nil
}

// List implements Store.
func (s *MemoryStore) List(_ context.Context) ([]Preset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Preset, 0, len(s.bySig))
	for _, p := range s.bySig {
		out = append(out, clonePreset(p))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for sig, p := range s.bySig {
		if p.ID == id {
			delete(s.bySig, sig)
			return nil
		}
	}
	return ErrNotFound
}

// clonePreset deep-copies a preset so callers cannot mutate stored state.
func clonePreset(p Preset) Preset {
	out := p
	out.Headers = append([]string(nil), p.Headers...)
	out.Mapping = make(map[string]string, len(p.Mapping))
	for k, v := range p.Mapping {
		out.Mapping[k] = v
	}
	return out
}
