package store

import (
	"context"
	"sync"

	"github.com/dreamsprouts/eventcore/pkg/eventcore/event"
)

// MemoryStore is an in-memory event store for testing and for
// deployments that want replay without a database file.
// Data is lost when the process exits.
type MemoryStore struct {
	mu     sync.RWMutex
	byID   map[string]struct{}
	events []*event.Event // append order
	closed bool
}

// NewMemoryStore creates a new in-memory event store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID: make(map[string]struct{}),
	}
}

// Append implements Store. Duplicate ids are silently skipped.
func (m *MemoryStore) Append(_ context.Context, evt *event.Event) error {
	if err := event.Validate(evt); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	if _, ok := m.byID[evt.ID]; ok {
		return nil
	}
	m.byID[evt.ID] = struct{}{}
	m.events = append(m.events, evt)
	return nil
}

// Query implements Store.
func (m *MemoryStore) Query(_ context.Context, f Filter) ([]*event.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	results := make([]*event.Event, 0)
	for _, evt := range m.events {
		if !f.matches(evt) {
			continue
		}
		results = append(results, evt)
		if f.Limit > 0 && len(results) >= f.Limit {
			break
		}
	}
	return results, nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.byID = nil
	m.events = nil
	return nil
}

// Len returns the number of stored events. Useful for testing.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events)
}
