package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MikeSquared-Agency/dealwatch/internal/apperr"
)

// Repository stores entries and keeps the call and record indexes in
// insertion order.
type Repository interface {
	Append(ctx context.Context, e Entry) error
	// AppendRollback reads entry targetID, passes it to build and appends
	// the returned entry as one atomic step, so the target cannot be deleted
	// in between. A missing target is apperr.ErrNotFound; an error from
	// build is returned unchanged and nothing is appended.
	AppendRollback(ctx context.Context, targetID string, build func(target Entry) (Entry, error)) (Entry, error)
	Get(ctx context.Context, id string) (Entry, error)
	ListByCall(ctx context.Context, callID string) ([]Entry, error)
	ListByRecord(ctx context.Context, recordID string) ([]Entry, error)
	All(ctx context.Context) ([]Entry, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// MemoryRepository is the in-process Repository.
type MemoryRepository struct {
	mu       sync.Mutex
	entries  map[string]Entry
	order    []string
	byCall   map[string][]string
	byRecord map[string][]string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		entries:  make(map[string]Entry),
		byCall:   make(map[string][]string),
		byRecord: make(map[string][]string),
	}
}

func (r *MemoryRepository) Append(_ context.Context, e Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.append(e)
}

func (r *MemoryRepository) AppendRollback(_ context.Context, targetID string, build func(Entry) (Entry, error)) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	target, ok := r.entries[targetID]
	if !ok {
		return Entry{}, fmt.Errorf("audit entry %s: %w", targetID, apperr.ErrNotFound)
	}
	e, err := build(target)
	if err != nil {
		return Entry{}, err
	}
	if err := r.append(e); err != nil {
		return Entry{}, err
	}
	return e, nil
}

func (r *MemoryRepository) append(e Entry) error {
	if _, ok := r.entries[e.ID]; ok {
		return fmt.Errorf("audit entry %s already exists: %w", e.ID, apperr.ErrValidation)
	}
	r.entries[e.ID] = e
	r.order = append(r.order, e.ID)
	if e.CallID != "" {
		r.byCall[e.CallID] = append(r.byCall[e.CallID], e.ID)
	}
	if e.ProspectID != "" {
		r.byRecord[e.ProspectID] = append(r.byRecord[e.ProspectID], e.ID)
	}
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return Entry{}, fmt.Errorf("audit entry %s: %w", id, apperr.ErrNotFound)
	}
	return e, nil
}

func (r *MemoryRepository) ListByCall(_ context.Context, callID string) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolve(r.byCall[callID]), nil
}

func (r *MemoryRepository) ListByRecord(_ context.Context, recordID string) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolve(r.byRecord[recordID]), nil
}

func (r *MemoryRepository) All(_ context.Context) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolve(r.order), nil
}

// DeleteBefore removes entries older than cutoff from the store and from
// both indexes.
func (r *MemoryRepository) DeleteBefore(_ context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := make(map[string]bool)
	for id, e := range r.entries {
		if e.Timestamp.Before(cutoff) {
			removed[id] = true
			delete(r.entries, id)
		}
	}
	if len(removed) == 0 {
		return 0, nil
	}

	r.order = prune(r.order, removed)
	for k, ids := range r.byCall {
		if ids = prune(ids, removed); len(ids) == 0 {
			delete(r.byCall, k)
		} else {
			r.byCall[k] = ids
		}
	}
	for k, ids := range r.byRecord {
		if ids = prune(ids, removed); len(ids) == 0 {
			delete(r.byRecord, k)
		} else {
			r.byRecord[k] = ids
		}
	}
	return len(removed), nil
}

func (r *MemoryRepository) resolve(ids []string) []Entry {
	out := make([]Entry, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.entries[id])
	}
	return out
}

func prune(ids []string, removed map[string]bool) []string {
	out := ids[:0]
	for _, id := range ids {
		if !removed[id] {
			out = append(out, id)
		}
	}
	return out
}
