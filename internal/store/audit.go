package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MikeSquared-Agency/dealwatch/internal/audit"
)

// AuditRepository implements audit.Repository. Insertion order is the seq
// column.
type AuditRepository struct {
	pool *pgxpool.Pool
}

const auditColumns = `id, ts, call_id, prospect_id, action, previous_value, new_value,
	confidence, automated, confirmed_by, rollback_of, error`

func (r *AuditRepository) Append(ctx context.Context, e audit.Entry) error {
	return insertEntry(ctx, r.pool, e)
}

// AppendRollback locks the target row for the length of the transaction, so
// a concurrent DeleteBefore waits until the rollback entry is committed.
func (r *AuditRepository) AppendRollback(ctx context.Context, targetID string, build func(audit.Entry) (audit.Entry, error)) (audit.Entry, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return audit.Entry{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+auditColumns+` FROM audit_entries WHERE id = $1 FOR SHARE`, targetID)
	target, err := scanEntry(row)
	if err != nil {
		return audit.Entry{}, notFound(err, "audit entry "+targetID)
	}
	e, err := build(target)
	if err != nil {
		return audit.Entry{}, err
	}
	if err := insertEntry(ctx, tx, e); err != nil {
		return audit.Entry{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return audit.Entry{}, fmt.Errorf("commit: %w", err)
	}
	return e, nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertEntry(ctx context.Context, db execer, e audit.Entry) error {
	_, err := db.Exec(ctx, `
		INSERT INTO audit_entries (`+auditColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		e.ID, e.Timestamp, e.CallID, e.ProspectID, string(e.Action), e.PreviousValue, e.NewValue,
		e.Confidence, e.Automated, e.ConfirmedBy, e.RollbackOf, e.Error,
	)
	if err != nil {
		return duplicate(err, "audit entry "+e.ID)
	}
	return nil
}

func (r *AuditRepository) Get(ctx context.Context, id string) (audit.Entry, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+auditColumns+` FROM audit_entries WHERE id = $1`, id)
	e, err := scanEntry(row)
	if err != nil {
		return audit.Entry{}, notFound(err, "audit entry "+id)
	}
	return e, nil
}

func (r *AuditRepository) ListByCall(ctx context.Context, callID string) ([]audit.Entry, error) {
	return r.list(ctx, `WHERE call_id = $1 ORDER BY seq`, callID)
}

func (r *AuditRepository) ListByRecord(ctx context.Context, recordID string) ([]audit.Entry, error) {
	return r.list(ctx, `WHERE prospect_id = $1 ORDER BY seq`, recordID)
}

func (r *AuditRepository) All(ctx context.Context) ([]audit.Entry, error) {
	return r.list(ctx, `ORDER BY seq`)
}

func (r *AuditRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM audit_entries WHERE ts < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete audit entries: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *AuditRepository) list(ctx context.Context, where string, args ...any) ([]audit.Entry, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+auditColumns+` FROM audit_entries `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	out := []audit.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEntry(row pgx.Row) (audit.Entry, error) {
	var (
		e      audit.Entry
		action string
	)
	err := row.Scan(&e.ID, &e.Timestamp, &e.CallID, &e.ProspectID, &action, &e.PreviousValue, &e.NewValue,
		&e.Confidence, &e.Automated, &e.ConfirmedBy, &e.RollbackOf, &e.Error)
	if err != nil {
		return audit.Entry{}, err
	}
	e.Action = audit.Action(action)
	e.Timestamp = e.Timestamp.UTC()
	return e, nil
}
