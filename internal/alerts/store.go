package alerts

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/MikeSquared-Agency/dealwatch/internal/apperr"
)

// Store persists alerts with a deal index. MarkDelivered and
// AcknowledgeAlert each change only their own fields, atomically, so a
// delivery can never undo an acknowledgment.
type Store interface {
	CreateAlert(ctx context.Context, a Alert) error
	// MarkDelivered appends the channels not yet in DeliveredVia and returns
	// the stored alert.
	MarkDelivered(ctx context.Context, id string, channels []string) (Alert, error)
	// AcknowledgeAlert sets the acknowledgment unless one exists. It returns
	// the stored alert and whether this call acknowledged it.
	AcknowledgeAlert(ctx context.Context, id, actor string, at time.Time) (Alert, bool, error)
	GetAlert(ctx context.Context, id string) (Alert, error)
	ListAlerts(ctx context.Context, dealID string) ([]Alert, error)
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// MemoryStore is the in-process Store.
type MemoryStore struct {
	mu     sync.Mutex
	alerts map[string]Alert
	byDeal map[string][]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		alerts: make(map[string]Alert),
		byDeal: make(map[string][]string),
	}
}

func (s *MemoryStore) CreateAlert(_ context.Context, a Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.alerts[a.ID]; ok {
		return fmt.Errorf("alert %s already exists: %w", a.ID, apperr.ErrValidation)
	}
	s.alerts[a.ID] = a
	s.byDeal[a.DealID] = append(s.byDeal[a.DealID], a.ID)
	return nil
}

func (s *MemoryStore) MarkDelivered(_ context.Context, id string, channels []string) (Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return Alert{}, fmt.Errorf("alert %s: %w", id, apperr.ErrNotFound)
	}
	via := append([]string{}, a.DeliveredVia...)
	for _, c := range channels {
		if !slices.Contains(via, c) {
			via = append(via, c)
		}
	}
	a.DeliveredVia = via
	s.alerts[id] = a
	return a, nil
}

func (s *MemoryStore) AcknowledgeAlert(_ context.Context, id, actor string, at time.Time) (Alert, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return Alert{}, false, fmt.Errorf("alert %s: %w", id, apperr.ErrNotFound)
	}
	if a.Acknowledged {
		return a, false, nil
	}
	a.Acknowledged = true
	a.AcknowledgedBy = actor
	a.AcknowledgedAt = &at
	s.alerts[id] = a
	return a, true, nil
}

func (s *MemoryStore) GetAlert(_ context.Context, id string) (Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return Alert{}, fmt.Errorf("alert %s: %w", id, apperr.ErrNotFound)
	}
	return a, nil
}

// ListAlerts returns the deal's alerts oldest first.
func (s *MemoryStore) ListAlerts(_ context.Context, dealID string) ([]Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.byDeal[dealID]
	out := make([]Alert, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.alerts[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// DeleteExpired removes alerts whose expiry is not after now and prunes the
// deal index.
func (s *MemoryStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for deal, ids := range s.byDeal {
		kept := ids[:0]
		for _, id := range ids {
			if a := s.alerts[id]; !now.Before(a.ExpiresAt) {
				delete(s.alerts, id)
				n++
				continue
			}
			kept = append(kept, id)
		}
		if len(kept) == 0 {
			delete(s.byDeal, deal)
		} else {
			s.byDeal[deal] = kept
		}
	}
	return n, nil
}
