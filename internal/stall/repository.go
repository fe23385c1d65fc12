package stall

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/MikeSquared-Agency/dealwatch/internal/apperr"
)

// SignalRepository persists stall signals.
type SignalRepository interface {
	SaveSignals(ctx context.Context, signals []Signal) error
	ListSignals(ctx context.Context, dealID string) ([]Signal, error)
	MarkProcessed(ctx context.Context, ids []string, at time.Time) error
}

// StatusRepository keeps the latest status per deal.
type StatusRepository interface {
	PutStatus(ctx context.Context, s Status) error
	GetStatus(ctx context.Context, dealID string) (Status, error)
}

// DealDirectory resolves deal metadata.
type DealDirectory interface {
	GetDeal(ctx context.Context, dealID string) (Deal, error)
}

// MemorySignalRepository keeps signals in process.
type MemorySignalRepository struct {
	mu     sync.Mutex
	byDeal map[string][]Signal
}

func NewMemorySignalRepository() *MemorySignalRepository {
	return &MemorySignalRepository{byDeal: make(map[string][]Signal)}
}

func (r *MemorySignalRepository) SaveSignals(_ context.Context, signals []Signal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range signals {
		r.byDeal[s.DealID] = append(r.byDeal[s.DealID], s)
	}
	return nil
}

// ListSignals returns the deal's signals oldest source first.
func (r *MemorySignalRepository) ListSignals(_ context.Context, dealID string) ([]Signal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Signal, len(r.byDeal[dealID]))
	copy(out, r.byDeal[dealID])
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SourceTimestamp.Before(out[j].SourceTimestamp)
	})
	return out, nil
}

func (r *MemorySignalRepository) MarkProcessed(_ context.Context, ids []string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	for deal, signals := range r.byDeal {
		for i := range signals {
			if want[signals[i].ID] && signals[i].ProcessedAt == nil {
				ts := at
				r.byDeal[deal][i].ProcessedAt = &ts
			}
		}
	}
	return nil
}

// MemoryStatusRepository is a last-write-wins map of statuses.
type MemoryStatusRepository struct {
	mu       sync.Mutex
	statuses map[string]Status
}

func NewMemoryStatusRepository() *MemoryStatusRepository {
	return &MemoryStatusRepository{statuses: make(map[string]Status)}
}

func (r *MemoryStatusRepository) PutStatus(_ context.Context, s Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses[s.DealID] = s
	return nil
}

func (r *MemoryStatusRepository) GetStatus(_ context.Context, dealID string) (Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.statuses[dealID]
	if !ok {
		return Status{}, fmt.Errorf("status for deal %s: %w", dealID, apperr.ErrNotFound)
	}
	return s, nil
}

// MemoryDirectory is a DealDirectory fed through PutDeal.
type MemoryDirectory struct {
	mu    sync.Mutex
	deals map[string]Deal
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{deals: make(map[string]Deal)}
}

func (d *MemoryDirectory) PutDeal(_ context.Context, deal Deal) error {
	if deal.ID == "" {
		return fmt.Errorf("deal id is required: %w", apperr.ErrValidation)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deals[deal.ID] = deal
	return nil
}

func (d *MemoryDirectory) GetDeal(_ context.Context, dealID string) (Deal, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	deal, ok := d.deals[dealID]
	if !ok {
		return Deal{}, fmt.Errorf("deal %s: %w", dealID, apperr.ErrNotFound)
	}
	return deal, nil
}
