package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/MikeSquared-Agency/dealwatch/internal/apperr"
	"github.com/MikeSquared-Agency/dealwatch/internal/detector"
	"github.com/MikeSquared-Agency/dealwatch/internal/rules"
	"github.com/MikeSquared-Agency/dealwatch/internal/stall"
)

// SaveSignals inserts a document's signals in one transaction.
func (s *Store) SaveSignals(ctx context.Context, signals []stall.Signal) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, sig := range signals {
		matches, err := json.Marshal(sig.PhraseMatches)
		if err != nil {
			return fmt.Errorf("marshal phrase matches: %w", err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO stall_signals (id, deal_id, account_id, source, source_ts, category, phrase_matches,
				base_confidence, time_decayed_confidence, aggregate_strength, detected_at, processed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			sig.ID, sig.DealID, sig.AccountID, string(sig.Source), sig.SourceTimestamp, string(sig.Category), matches,
			sig.BaseConfidence, sig.TimeDecayedConfidence, sig.AggregateStrength, sig.DetectedAt, sig.ProcessedAt,
		)
		if err != nil {
			return duplicate(err, "signal "+sig.ID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ListSignals returns the deal's signals oldest source first.
func (s *Store) ListSignals(ctx context.Context, dealID string) ([]stall.Signal, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, deal_id, account_id, source, source_ts, category, phrase_matches,
			base_confidence, time_decayed_confidence, aggregate_strength, detected_at, processed_at
		FROM stall_signals WHERE deal_id = $1 ORDER BY source_ts`, dealID)
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	out := []stall.Signal{}
	for rows.Next() {
		var (
			sig              stall.Signal
			source, category string
			matches          []byte
		)
		err := rows.Scan(&sig.ID, &sig.DealID, &sig.AccountID, &source, &sig.SourceTimestamp, &category, &matches,
			&sig.BaseConfidence, &sig.TimeDecayedConfidence, &sig.AggregateStrength, &sig.DetectedAt, &sig.ProcessedAt)
		if err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		if err := json.Unmarshal(matches, &sig.PhraseMatches); err != nil {
			return nil, fmt.Errorf("unmarshal phrase matches: %w", err)
		}
		sig.Source = stall.Source(source)
		sig.Category = detector.Category(category)
		out = append(out, sig)
	}
	return out, rows.Err()
}

func (s *Store) MarkProcessed(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE stall_signals SET processed_at = $2
		WHERE id = ANY($1) AND processed_at IS NULL`, ids, at)
	if err != nil {
		return fmt.Errorf("mark signals processed: %w", err)
	}
	return nil
}

// PutStatus replaces the deal's stored status.
func (s *Store) PutStatus(ctx context.Context, st stall.Status) error {
	doc, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO stall_statuses (deal_id, status, calculated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (deal_id)
		DO UPDATE SET status = $2, calculated_at = $3`,
		st.DealID, doc, st.CalculatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert status: %w", err)
	}
	return nil
}

func (s *Store) GetStatus(ctx context.Context, dealID string) (stall.Status, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, `SELECT status FROM stall_statuses WHERE deal_id = $1`, dealID).Scan(&doc)
	if err != nil {
		return stall.Status{}, notFound(err, "status for deal "+dealID)
	}
	var st stall.Status
	if err := json.Unmarshal(doc, &st); err != nil {
		return stall.Status{}, fmt.Errorf("unmarshal status: %w", err)
	}
	return st, nil
}

// PutDeal upserts deal metadata.
func (s *Store) PutDeal(ctx context.Context, d stall.Deal) error {
	if d.ID == "" {
		return fmt.Errorf("deal id is required: %w", apperr.ErrValidation)
	}
	var lastActivity *time.Time
	if !d.LastActivityAt.IsZero() {
		lastActivity = &d.LastActivityAt
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO deals (id, account_id, name, stage, rep_id, manager_id, last_activity_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (id)
		DO UPDATE SET
			account_id = $2,
			name = $3,
			stage = $4,
			rep_id = $5,
			manager_id = $6,
			last_activity_at = $7,
			updated_at = now()`,
		d.ID, d.AccountID, d.Name, string(d.Stage), d.RepID, d.ManagerID, lastActivity,
	)
	if err != nil {
		return fmt.Errorf("upsert deal: %w", err)
	}
	return nil
}

func (s *Store) GetDeal(ctx context.Context, dealID string) (stall.Deal, error) {
	var (
		d            stall.Deal
		stage        string
		lastActivity *time.Time
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, account_id, name, stage, rep_id, manager_id, last_activity_at
		FROM deals WHERE id = $1`, dealID,
	).Scan(&d.ID, &d.AccountID, &d.Name, &stage, &d.RepID, &d.ManagerID, &lastActivity)
	if err != nil {
		return stall.Deal{}, notFound(err, "deal "+dealID)
	}
	d.Stage = rules.Stage(stage)
	if lastActivity != nil {
		d.LastActivityAt = *lastActivity
	}
	return d, nil
}
