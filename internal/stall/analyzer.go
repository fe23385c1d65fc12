package stall

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/MikeSquared-Agency/dealwatch/internal/apperr"
	"github.com/MikeSquared-Agency/dealwatch/internal/detector"
	"github.com/MikeSquared-Agency/dealwatch/internal/scoring"
)

// Analyzer creates stall signals from documents and computes deal statuses.
type Analyzer struct {
	matcher  detector.Matcher
	signals  SignalRepository
	statuses StatusRepository
	deals    DealDirectory
	cfg      scoring.Config
	logger   *slog.Logger
	now      func() time.Time
}

func NewAnalyzer(m detector.Matcher, signals SignalRepository, statuses StatusRepository, deals DealDirectory, cfg scoring.Config, logger *slog.Logger) *Analyzer {
	if m == nil {
		m = detector.NewPhraseMatcher(detector.DefaultStallPatterns(), detector.DefaultContextRadius)
	}
	return &Analyzer{
		matcher:  m,
		signals:  signals,
		statuses: statuses,
		deals:    deals,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock overrides the time source.
func (a *Analyzer) SetClock(now func() time.Time) { a.now = now }

// Detect builds one signal per matched category in doc, carrying that
// category's best match. Strength is scored over all of the document's
// matches, so every signal from one document carries the same value.
// A document with no matches yields an empty slice.
func (a *Analyzer) Detect(doc Document) ([]Signal, error) {
	if err := validateDocument(doc); err != nil {
		return nil, err
	}
	now := a.now().UTC()
	matches := a.matcher.Match(doc.Text)
	best := detector.BestPerCategory(matches)
	strength := scoring.Strength(matches)

	out := make([]Signal, 0, len(best))
	for _, m := range best {
		base := m.Confidence
		out = append(out, Signal{
			ID:                    uuid.New().String(),
			DealID:                doc.DealID,
			AccountID:             doc.AccountID,
			Source:                doc.Source,
			SourceTimestamp:       doc.Timestamp,
			Category:              m.Category,
			PhraseMatches:         []detector.PhraseMatch{m},
			BaseConfidence:        base,
			TimeDecayedConfidence: scoring.Decay(base, now.Sub(doc.Timestamp), a.cfg.HalfLife),
			AggregateStrength:     strength,
			DetectedAt:            now,
		})
	}
	return out, nil
}

// Ingest detects and stores signals for doc.
func (a *Analyzer) Ingest(ctx context.Context, doc Document) ([]Signal, error) {
	signals, err := a.Detect(doc)
	if err != nil {
		return nil, err
	}
	if len(signals) == 0 {
		return signals, nil
	}
	if err := a.signals.SaveSignals(ctx, signals); err != nil {
		return nil, fmt.Errorf("save stall signals: %w", err)
	}
	a.logger.Info("stall signals stored", "deal_id", doc.DealID, "source", doc.Source, "count", len(signals))
	return signals, nil
}

// Status loads the deal and its signals concurrently, then scores the
// non-expired signals and stores the result over any earlier status. The
// loaded deal is returned alongside for alerting.
func (a *Analyzer) Status(ctx context.Context, dealID string) (Status, Deal, error) {
	var (
		deal    Deal
		signals []Signal
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, err := a.deals.GetDeal(gctx, dealID)
		if err != nil {
			return fmt.Errorf("load deal: %w", err)
		}
		deal = d
		return nil
	})
	g.Go(func() error {
		s, err := a.signals.ListSignals(gctx, dealID)
		if err != nil {
			return fmt.Errorf("load signals: %w", err)
		}
		signals = s
		return nil
	})
	if err := g.Wait(); err != nil {
		return Status{}, Deal{}, err
	}

	status := a.Aggregate(dealID, signals)
	if err := a.statuses.PutStatus(ctx, status); err != nil {
		return Status{}, Deal{}, fmt.Errorf("store status: %w", err)
	}

	ids := make([]string, 0, len(status.Signals))
	for _, s := range status.Signals {
		if s.ProcessedAt == nil {
			ids = append(ids, s.ID)
		}
	}
	if len(ids) > 0 {
		if err := a.signals.MarkProcessed(ctx, ids, status.CalculatedAt); err != nil {
			a.logger.Warn("failed to mark signals processed", "deal_id", dealID, "error", err)
		}
	}

	a.logger.Info("stall status computed",
		"deal_id", dealID, "score", status.StallScore, "severity", status.Severity,
		"stalled", status.IsStalled, "signals", len(status.Signals))
	return status, deal, nil
}

// Aggregate scores signals as of now without touching any store.
func (a *Analyzer) Aggregate(dealID string, signals []Signal) Status {
	now := a.now().UTC()

	valid := make([]Signal, 0, len(signals))
	obs := make([]scoring.Observation, 0, len(signals))
	for _, s := range signals {
		age := now.Sub(s.SourceTimestamp)
		if scoring.Expired(age, a.cfg.MaxAge) {
			continue
		}
		s.TimeDecayedConfidence = scoring.Decay(s.BaseConfidence, age, a.cfg.HalfLife)
		valid = append(valid, s)
		obs = append(obs, scoring.Observation{BaseConfidence: s.BaseConfidence, Age: age, Matches: s.PhraseMatches})
	}

	score := scoring.Round2(a.cfg.StallScore(obs))
	severity := a.cfg.Thresholds.SeverityFor(score)
	primary := scoring.PrimaryCategory(obs)

	return Status{
		DealID:             dealID,
		IsStalled:          a.cfg.Thresholds.IsStalled(score),
		Severity:           severity,
		StallScore:         score,
		PrimaryCategory:    primary,
		Signals:            valid,
		RecommendedActions: RecommendedActions(primary, valid, severity),
		CalculatedAt:       now,
	}
}

// LatestStatus returns the last stored status without recomputing.
func (a *Analyzer) LatestStatus(ctx context.Context, dealID string) (Status, error) {
	return a.statuses.GetStatus(ctx, dealID)
}

func validateDocument(doc Document) error {
	var problems []string
	if doc.DealID == "" {
		problems = append(problems, "deal_id is required")
	}
	if !doc.Source.Valid() {
		problems = append(problems, fmt.Sprintf("unknown source %q", doc.Source))
	}
	if doc.Timestamp.IsZero() {
		problems = append(problems, "timestamp is required")
	}
	if strings.TrimSpace(doc.Text) == "" {
		problems = append(problems, "text is empty")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%s: %w", strings.Join(problems, "; "), apperr.ErrValidation)
	}
	return nil
}
