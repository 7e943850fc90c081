package usage

import (
	"context"
	"sync"
)

// recentCap bounds the in-memory ring of recent records.
const recentCap = 100

// MemoryStore is an in-memory usage store for demo/development mode.
type MemoryStore struct {
	mu       sync.RWMutex
	total    int64
	paid     int64
	byMode   map[string]int64
	byLang   map[string]int64
	bySignal map[string]int64
	recent   []Record // ring buffer, next points at the oldest slot
	next     int
}

// Compile-time check that MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a new in-memory usage store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byMode:   make(map[string]int64),
		byLang:   make(map[string]int64),
		bySignal: make(map[string]int64),
	}
}

func (m *MemoryStore) Insert(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.total++
	if rec.Paid {
		m.paid++
	}
	m.byMode[rec.Mode]++
	m.byLang[rec.Lang]++
	for _, id := range rec.SignalIDs {
		m.bySignal[id]++
	}

	if len(m.recent) < recentCap {
		m.recent = append(m.recent, *rec)
	} else {
		m.recent[m.next] = *rec
		m.next = (m.next + 1) % recentCap
	}
	return nil
}

func (m *MemoryStore) Snapshot(_ context.Context) (*Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &Stats{
		TotalRequests: m.total,
		PaidRequests:  m.paid,
		ByMode:        make(map[string]int64, len(m.byMode)),
		ByLang:        make(map[string]int64, len(m.byLang)),
		BySignal:      make(map[string]int64, len(m.bySignal)),
		Recent:        make([]Record, 0, len(m.recent)),
	}
	for k, v := range m.byMode {
		stats.ByMode[k] = v
	}
	for k, v := range m.byLang {
		stats.ByLang[k] = v
	}
	for k, v := range m.bySignal {
		stats.BySignal[k] = v
	}

	// Oldest first.
	for i := 0; i < len(m.recent); i++ {
		stats.Recent = append(stats.Recent, m.recent[(m.next+i)%len(m.recent)])
	}
	return stats, nil
}
