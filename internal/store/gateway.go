// Package store persists bundle source records. The engine only ever
// talks to the Gateway interface; the SQLite implementation lives next
// to it, and a memory implementation backs tests.
package store

import (
	"sort"
	"sync"

	"patchbay/internal/entities/bundle"
)

// Gateway is a transactional ordered record store keyed by uid.
type Gateway interface {
	// ListAll returns every record ordered by sort order.
	ListAll() ([]bundle.Source, error)
	// GetProperties returns one record, nil when absent.
	GetProperties(uid int64) (*bundle.Source, error)
	Upsert(record bundle.Source) error
	// UpsertAll writes a batch of records in one transaction.
	UpsertAll(records []bundle.Source) error
	Remove(uid int64) error
	UpdateSortOrder(uid int64, index int) error
	// MaxSortOrder returns the highest sort order in use; ok is false
	// when no records exist.
	MaxSortOrder() (order int, ok bool, err error)
}

// Memory is an in-memory Gateway for tests and ephemeral runs.
type Memory struct {
	mu      sync.Mutex
	records map[int64]bundle.Source
}

func NewMemory() *Memory {
	return &Memory{records: make(map[int64]bundle.Source)}
}

func (m *Memory) ListAll() ([]bundle.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]bundle.Source, 0, len(m.records))
	for _, record := range m.records {
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

func (m *Memory) GetProperties(uid int64) (*bundle.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[uid]
	if !ok {
		return nil, nil
	}
	return &record, nil
}

func (m *Memory) Upsert(record bundle.Source) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[record.UID] = record
	return nil
}

func (m *Memory) UpsertAll(records []bundle.Source) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, record := range records {
		m.records[record.UID] = record
	}
	return nil
}

func (m *Memory) Remove(uid int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, uid)
	return nil
}

func (m *Memory) UpdateSortOrder(uid int64, index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[uid]
	if !ok {
		return nil
	}
	record.SortOrder = index
	m.records[uid] = record
	return nil
}

func (m *Memory) MaxSortOrder() (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.records) == 0 {
		return 0, false, nil
	}
	max := 0
	first := true
	for _, record := range m.records {
		if first || record.SortOrder > max {
			max = record.SortOrder
			first = false
		}
	}
	return max, true, nil
}
