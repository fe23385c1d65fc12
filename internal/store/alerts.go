package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/MikeSquared-Agency/dealwatch/internal/alerts"
)

const alertColumns = `id, deal_id, priority, recipients, channels, delivered_via, message,
	acknowledged, acknowledged_by, acknowledged_at, created_at, expires_at, stall_status`

func (s *Store) CreateAlert(ctx context.Context, a alerts.Alert) error {
	status, err := json.Marshal(a.StallStatus)
	if err != nil {
		return fmt.Errorf("marshal stall status: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO stall_alerts (`+alertColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		a.ID, a.DealID, string(a.Priority), nonNil(a.Recipients), nonNil(a.Channels), nonNil(a.DeliveredVia), a.Message,
		a.Acknowledged, a.AcknowledgedBy, a.AcknowledgedAt, a.CreatedAt, a.ExpiresAt, status,
	)
	if err != nil {
		return duplicate(err, "alert "+a.ID)
	}
	return nil
}

// MarkDelivered appends the channels missing from delivered_via in one
// statement, leaving the acknowledgment columns alone.
func (s *Store) MarkDelivered(ctx context.Context, id string, channels []string) (alerts.Alert, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE stall_alerts
		SET delivered_via = delivered_via || ARRAY(
			SELECT c FROM unnest($2::text[]) WITH ORDINALITY AS t(c, n)
			WHERE NOT c = ANY(delivered_via)
			ORDER BY n)
		WHERE id = $1
		RETURNING `+alertColumns, id, nonNil(channels))
	a, err := scanAlert(row)
	if err != nil {
		return alerts.Alert{}, notFound(err, "alert "+id)
	}
	return a, nil
}

// AcknowledgeAlert only updates a row that is not yet acknowledged, so the
// first actor wins.
func (s *Store) AcknowledgeAlert(ctx context.Context, id, actor string, at time.Time) (alerts.Alert, bool, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE stall_alerts
		SET acknowledged = true, acknowledged_by = $2, acknowledged_at = $3
		WHERE id = $1 AND NOT acknowledged
		RETURNING `+alertColumns, id, actor, at)
	a, err := scanAlert(row)
	if err == nil {
		return a, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return alerts.Alert{}, false, fmt.Errorf("acknowledge alert: %w", err)
	}
	a, err = s.GetAlert(ctx, id)
	if err != nil {
		return alerts.Alert{}, false, err
	}
	return a, false, nil
}

func (s *Store) GetAlert(ctx context.Context, id string) (alerts.Alert, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+alertColumns+` FROM stall_alerts WHERE id = $1`, id)
	a, err := scanAlert(row)
	if err != nil {
		return alerts.Alert{}, notFound(err, "alert "+id)
	}
	return a, nil
}

func (s *Store) ListAlerts(ctx context.Context, dealID string) ([]alerts.Alert, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+alertColumns+` FROM stall_alerts
		WHERE deal_id = $1 ORDER BY created_at`, dealID)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	out := []alerts.Alert{}
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM stall_alerts WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired alerts: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanAlert(row pgx.Row) (alerts.Alert, error) {
	var (
		a        alerts.Alert
		priority string
		status   []byte
	)
	err := row.Scan(&a.ID, &a.DealID, &priority, &a.Recipients, &a.Channels, &a.DeliveredVia, &a.Message,
		&a.Acknowledged, &a.AcknowledgedBy, &a.AcknowledgedAt, &a.CreatedAt, &a.ExpiresAt, &status)
	if err != nil {
		return alerts.Alert{}, err
	}
	if err := json.Unmarshal(status, &a.StallStatus); err != nil {
		return alerts.Alert{}, fmt.Errorf("unmarshal stall status: %w", err)
	}
	a.Priority = alerts.Priority(priority)
	return a, nil
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
