// Package storage defines persistence for adapter configurations. The
// engine itself never writes configuration; stores exist so the service can
// load a model's adapter per invocation and let operators manage them.
package storage

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/connorbell133/agentflow/internal/adapter"
)

// ErrNotFound is returned when no adapter is stored for a model.
var ErrNotFound = errors.New("adapter config not found")

// Record is one stored adapter configuration, keyed by model.
type Record struct {
	ModelID   string         `json:"model_id"`
	Name      string         `json:"name"`
	Config    adapter.Config `json:"config"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Store persists adapter configurations.
type Store interface {
	// Put inserts or replaces the record for rec.ModelID.
	Put(ctx context.Context, rec *Record) error

	// Get returns the record for modelID, or ErrNotFound.
	Get(ctx context.Context, modelID string) (*Record, error)

	// List returns all records ordered by model id.
	List(ctx context.Context) ([]*Record, error)

	// Delete removes the record for modelID, or returns ErrNotFound.
	Delete(ctx context.Context, modelID string) error

	// Close releases store resources.
	Close() error
}

// MemoryStore is an in-memory Store for tests and single-process setups.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Record)}
}

func (s *MemoryStore) Put(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *rec
	now := time.Now().UTC()
	if existing, ok := s.records[rec.ModelID]; ok {
		stored.CreatedAt = existing.CreatedAt
	} else {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	s.records[rec.ModelID] = &stored
	return nil
}

func (s *MemoryStore) Get(_ context.Context, modelID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[modelID]
	if !ok {
		return nil, ErrNotFound
	}
	out := *rec
	return &out, nil
}

func (s *MemoryStore) List(_ context.Context) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Record, 0, len(s.records))
	for _, rec := range s.records {
		copied := *rec
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ModelID < out[j].ModelID })
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, modelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[modelID]; !ok {
		return ErrNotFound
	}
	delete(s.records, modelID)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
