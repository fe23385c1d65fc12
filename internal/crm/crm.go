// Package crm is the record lookup and update contract dealwatch applies
// decisions through, with an HTTP JSON client and an in-memory store.
package crm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/MikeSquared-Agency/dealwatch/internal/apperr"
	"github.com/MikeSquared-Agency/dealwatch/internal/rules"
)

// Record is a prospect in the CRM.
type Record struct {
	ID          string            `json:"id"`
	Email       string            `json:"email"`
	Name        string            `json:"name"`
	Stage       rules.Stage       `json:"stage"`
	Disposition rules.Disposition `json:"disposition,omitempty"`
	OwnerID     string            `json:"owner_id,omitempty"`
}

// Update is a partial change. Empty fields are left alone.
type Update struct {
	Stage       rules.Stage       `json:"stage,omitempty"`
	Disposition rules.Disposition `json:"disposition,omitempty"`
	Note        string            `json:"note,omitempty"`
	Tasks       []string          `json:"tasks,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u Update) Empty() bool {
	return u.Stage == "" && u.Disposition == "" && u.Note == "" && len(u.Tasks) == 0
}

// UpdateResult is the CRM's answer to an update.
type UpdateResult struct {
	Success       bool        `json:"success"`
	PreviousStage rules.Stage `json:"previous_stage,omitempty"`
	Error         string      `json:"error,omitempty"`
}

// RecordStore finds and updates records. Unreachable stores return errors
// wrapping apperr.ErrDownstreamUnavailable.
type RecordStore interface {
	FindRecordByEmail(ctx context.Context, email string) (*Record, error)
	UpdateRecord(ctx context.Context, id string, u Update) (UpdateResult, error)
}

// MemoryStore is a RecordStore kept in process.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*Record
	notes   map[string][]string
	tasks   map[string][]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*Record),
		notes:   make(map[string][]string),
		tasks:   make(map[string][]string),
	}
}

// PutRecord inserts or replaces a record.
func (s *MemoryStore) PutRecord(r Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[r.ID] = &r
}

// Record returns a copy of the stored record.
func (s *MemoryStore) Record(id string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return Record{}, false
	}
	return *r, true
}

// Tasks returns the tasks created on a record.
func (s *MemoryStore) Tasks(id string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.tasks[id]...)
}

func (s *MemoryStore) FindRecordByEmail(_ context.Context, email string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if strings.EqualFold(r.Email, email) {
			cp := *r
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("record with email %s: %w", email, apperr.ErrNotFound)
}

func (s *MemoryStore) UpdateRecord(_ context.Context, id string, u Update) (UpdateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return UpdateResult{}, fmt.Errorf("record %s: %w", id, apperr.ErrNotFound)
	}
	res := UpdateResult{Success: true, PreviousStage: r.Stage}
	if u.Stage != "" {
		r.Stage = u.Stage
	}
	if u.Disposition != "" {
		r.Disposition = u.Disposition
	}
	if u.Note != "" {
		s.notes[id] = append(s.notes[id], u.Note)
	}
	s.tasks[id] = append(s.tasks[id], u.Tasks...)
	return res, nil
}
