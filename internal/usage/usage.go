// Package usage records analyze-call activity for the operator dashboard.
package usage

import (
	"context"
	"time"
)

// Record is one analyze call.
type Record struct {
	Time        time.Time `json:"time"`
	Mode        string    `json:"mode"`
	Lang        string    `json:"lang"`
	SignalCount int       `json:"signalCount"`
	SignalIDs   []string  `json:"signalIds,omitempty"`
	Paid        bool      `json:"paid"`
}

// Stats is an aggregate snapshot of recorded activity.
type Stats struct {
	TotalRequests int64            `json:"totalRequests"`
	PaidRequests  int64            `json:"paidRequests"`
	ByMode        map[string]int64 `json:"byMode"`
	ByLang        map[string]int64 `json:"byLang"`
	BySignal      map[string]int64 `json:"bySignal"`
	Recent        []Record         `json:"recent"`
}

// Store persists usage records.
type Store interface {
	Insert(ctx context.Context, rec *Record) error
	Snapshot(ctx context.Context) (*Stats, error)
}

// Service wraps a store with a convenience recording API. Recording is
// best-effort; failures must never affect the analyze response.
type Service struct {
	store Store
}

// NewService creates a usage service over the given store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Record stores one analyze call.
func (s *Service) Record(ctx context.Context, mode, lang string, signalIDs []string, paid bool) error {
	return s.store.Insert(ctx, &Record{
		Time:        time.Now().UTC(),
		Mode:        mode,
		Lang:        lang,
		SignalCount: len(signalIDs),
		SignalIDs:   signalIDs,
		Paid:        paid,
	})
}

// Snapshot returns aggregate stats.
func (s *Service) Snapshot(ctx context.Context) (*Stats, error) {
	return s.store.Snapshot(ctx)
}
