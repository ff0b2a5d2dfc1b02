// Package store provides an in-memory facts.Store.
package store

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/warp/workfacts/facts"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps one slot per (user, data type). The map lock is held only to
// find or create a slot; a slot's own mutex serializes writers of that pair
// and readers load an immutable record through an atomic pointer, so a read
// never observes a half-written record.
type Memory struct {
	mu    sync.RWMutex
	users map[string]map[string]*slot
}

type slot struct {
	mu  sync.Mutex
	rec atomic.Pointer[facts.Record]
}

var _ facts.Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{users: make(map[string]map[string]*slot)}
}

// SeedIfEmpty inserts records when the user has no slots at all.
func (m *Memory) SeedIfEmpty(_ context.Context, userID string, records []facts.Record) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.users[userID]) > 0 {
		return false, nil
	}
	slots := make(map[string]*slot, len(records))
	for _, r := range records {
		r := r
		s := &slot{}
		s.rec.Store(&r)
		slots[r.DataType] = s
	}
	m.users[userID] = slots
	return true, nil
}

func (m *Memory) Upsert(_ context.Context, rec facts.Record) error {
	s := m.slotFor(rec.UserID, rec.DataType)

	s.mu.Lock()
	defer s.mu.Unlock()
	if old := s.rec.Load(); old != nil {
		rec.CreatedAt = old.CreatedAt
	}
	s.rec.Store(&rec)
	return nil
}

func (m *Memory) slotFor(userID, dataType string) *slot {
	m.mu.RLock()
	s, ok := m.users[userID][dataType]
	m.mu.RUnlock()
	if ok {
		return s
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	byType, ok := m.users[userID]
	if !ok {
		byType = make(map[string]*slot)
		m.users[userID] = byType
	}
	if s, ok := byType[dataType]; ok {
		return s
	}
	s = &slot{}
	byType[dataType] = s
	return s
}

func (m *Memory) Get(_ context.Context, userID, dataType string) (facts.Record, error) {
	m.mu.RLock()
	s, ok := m.users[userID][dataType]
	m.mu.RUnlock()
	if ok {
		if rec := s.rec.Load(); rec != nil {
			return *rec, nil
		}
	}
	return facts.Record{}, &facts.NotFoundError{Kind: "fact", ID: userID + "/" + dataType}
}

func (m *Memory) List(_ context.Context, userID string) ([]facts.Record, error) {
	m.mu.RLock()
	slots := make([]*slot, 0, len(m.users[userID]))
	for _, s := range m.users[userID] {
		slots = append(slots, s)
	}
	m.mu.RUnlock()

	result := make([]facts.Record, 0, len(slots))
	for _, s := range slots {
		if rec := s.rec.Load(); rec != nil {
			result = append(result, *rec)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].DataType < result[j].DataType })
	return result, nil
}

func (m *Memory) Ping(context.Context) error { return nil }
func (m *Memory) Close() error               { return nil }
