package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/dealwatch/internal/apperr"
)

// Log records decisions and rollbacks over a Repository.
type Log struct {
	repo       Repository
	logger     *slog.Logger
	failClosed bool
	now        func() time.Time
}

// Option configures a Log.
type Option func(*Log)

// WithFailClosed makes Record return storage errors instead of logging them.
func WithFailClosed(failClosed bool) Option {
	return func(l *Log) { l.failClosed = failClosed }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

func NewLog(repo Repository, logger *slog.Logger, opts ...Option) *Log {
	l := &Log{repo: repo, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record appends e, assigning an id and timestamp when missing. ROLLBACK
// entries are only written through Rollback.
//
// A storage failure is logged and the entry is still returned unless the log
// is fail-closed.
func (l *Log) Record(ctx context.Context, e Entry) (Entry, error) {
	if e.Action == "" {
		return Entry{}, fmt.Errorf("audit entry has no action: %w", apperr.ErrValidation)
	}
	if e.Action == ActionRollback {
		return Entry{}, fmt.Errorf("rollback entries must go through Rollback: %w", apperr.ErrValidation)
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = l.now().UTC()
	}

	if err := l.repo.Append(ctx, e); err != nil {
		if l.failClosed {
			return Entry{}, fmt.Errorf("append audit entry: %w", err)
		}
		l.logger.Error("audit append failed, continuing",
			"entry_id", e.ID, "call_id", e.CallID, "action", e.Action, "error", err)
	}
	return e, nil
}

// Rollback reverses a STAGE_CHANGE or DISPOSITION_SET entry. It appends a
// ROLLBACK entry with the values swapped and returns it. The rollback's
// NewValue is what the caller must re-apply to the external record.
// Nothing is appended when the entry is unknown or not rollbackable.
func (l *Log) Rollback(ctx context.Context, entryID, actor string) (Entry, error) {
	rb, err := l.repo.AppendRollback(ctx, entryID, func(orig Entry) (Entry, error) {
		if !orig.Action.Rollbackable() {
			return Entry{}, fmt.Errorf("entry %s has action %s: %w", entryID, orig.Action, apperr.ErrNotRollbackable)
		}
		return Entry{
			ID:            uuid.New().String(),
			Timestamp:     l.now().UTC(),
			CallID:        orig.CallID,
			ProspectID:    orig.ProspectID,
			Action:        ActionRollback,
			PreviousValue: orig.NewValue,
			NewValue:      orig.PreviousValue,
			Automated:     false,
			ConfirmedBy:   actor,
			RollbackOf:    orig.ID,
		}, nil
	})
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) || errors.Is(err, apperr.ErrNotRollbackable) {
			return Entry{}, err
		}
		return Entry{}, fmt.Errorf("append rollback: %w", err)
	}
	l.logger.Info("audit entry rolled back",
		"entry_id", entryID, "rollback_id", rb.ID, "actor", actor,
		"restore", rb.NewValue)
	return rb, nil
}

// Get returns a single entry.
func (l *Log) Get(ctx context.Context, id string) (Entry, error) {
	return l.repo.Get(ctx, id)
}

// ForCall lists a call's entries in insertion order.
func (l *Log) ForCall(ctx context.Context, callID string) ([]Entry, error) {
	return l.repo.ListByCall(ctx, callID)
}

// ForRecord lists a record's entries in insertion order.
func (l *Log) ForRecord(ctx context.Context, recordID string) ([]Entry, error) {
	return l.repo.ListByRecord(ctx, recordID)
}

// Cleanup deletes entries older than retention and returns how many went.
func (l *Log) Cleanup(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := l.now().Add(-retention)
	n, err := l.repo.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("audit cleanup: %w", err)
	}
	if n > 0 {
		l.logger.Info("audit retention cleanup", "removed", n, "cutoff", cutoff)
	}
	return n, nil
}

// Export returns every entry in insertion order.
func (l *Log) Export(ctx context.Context) ([]Entry, error) {
	return l.repo.All(ctx)
}

// Import replays entries through Append in order so indexes are rebuilt the
// same way as at runtime. It stops at the first invalid entry and returns
// the number imported before it.
func (l *Log) Import(ctx context.Context, entries []Entry) (int, error) {
	for i, e := range entries {
		if err := validateImported(e); err != nil {
			return i, fmt.Errorf("entry %d: %w", i, err)
		}
		if e.Action == ActionRollback {
			_, err := l.repo.AppendRollback(ctx, e.RollbackOf, func(target Entry) (Entry, error) {
				if !target.Action.Rollbackable() {
					return Entry{}, fmt.Errorf("rollback of %s entry: %w", target.Action, apperr.ErrValidation)
				}
				return e, nil
			})
			if errors.Is(err, apperr.ErrNotFound) {
				return i, fmt.Errorf("entry %d: rollback of unknown entry %s: %w", i, e.RollbackOf, apperr.ErrValidation)
			}
			if err != nil {
				return i, fmt.Errorf("entry %d: %w", i, err)
			}
			continue
		}
		if err := l.repo.Append(ctx, e); err != nil {
			return i, fmt.Errorf("entry %d: %w", i, err)
		}
	}
	return len(entries), nil
}

func validateImported(e Entry) error {
	switch {
	case e.ID == "":
		return fmt.Errorf("missing id: %w", apperr.ErrValidation)
	case e.Action == "":
		return fmt.Errorf("missing action: %w", apperr.ErrValidation)
	case e.Timestamp.IsZero():
		return fmt.Errorf("missing timestamp: %w", apperr.ErrValidation)
	case e.Action == ActionRollback && e.RollbackOf == "":
		return fmt.Errorf("rollback without rollback_of: %w", apperr.ErrValidation)
	}
	return nil
}
