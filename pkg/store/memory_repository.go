package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kalamgit143/validAIte-sub004/pkg/contracts"
)

// MemoryRepository keeps JSON snapshots in memory. Storing serialized
// documents gives the same isolation and round-trip behavior as the SQL store.
type MemoryRepository struct {
	mu    sync.RWMutex
	docs  map[string][]byte
	clock func() time.Time
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{docs: make(map[string][]byte), clock: time.Now}
}

func (m *MemoryRepository) Create(ctx context.Context, rec *Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[rec.ID()]; ok {
		return fmt.Errorf("%w: %s", ErrExists, rec.ID())
	}
	return m.put(rec, 1)
}

func (m *MemoryRepository) Load(ctx context.Context, id string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	doc, ok := m.docs[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("request %s: %w", id, contracts.ErrNotFound)
	}
	return decode(doc)
}

func (m *MemoryRepository) Save(ctx context.Context, rec *Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[rec.ID()]
	if !ok {
		return fmt.Errorf("request %s: %w", rec.ID(), contracts.ErrNotFound)
	}
	current, err := decode(doc)
	if err != nil {
		return err
	}
	if current.Version != rec.Version {
		return fmt.Errorf("%w: request %s at version %d, have %d", ErrConflict, rec.ID(), current.Version, rec.Version)
	}
	return m.put(rec, rec.Version+1)
}

func (m *MemoryRepository) List(ctx context.Context, filter ListFilter) ([]*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Record, 0, len(m.docs))
	for _, doc := range m.docs {
		rec, err := decode(doc)
		if err != nil {
			return nil, err
		}
		if filter.matches(rec) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID() < out[j].ID()
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// put must be called with mu held.
func (m *MemoryRepository) put(rec *Record, version int64) error {
	prevVersion, prevUpdated := rec.Version, rec.UpdatedAt
	rec.Version = version
	rec.UpdatedAt = m.clock().UTC()
	doc, err := json.Marshal(rec)
	if err != nil {
		rec.Version, rec.UpdatedAt = prevVersion, prevUpdated
		return fmt.Errorf("store: failed to encode request %s: %w", rec.ID(), err)
	}
	m.docs[rec.ID()] = doc
	return nil
}

func decode(doc []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(doc, &rec); err != nil {
		return nil, fmt.Errorf("store: failed to decode record: %w", err)
	}
	return &rec, nil
}
