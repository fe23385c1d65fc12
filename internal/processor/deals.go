package processor

import (
	"context"
	"fmt"
	"strings"

	"github.com/MikeSquared-Agency/dealwatch/internal/apperr"
	"github.com/MikeSquared-Agency/dealwatch/internal/stall"
)

// IngestDocument stores the stall signals found in doc, then recomputes the
// deal's status and raises an alert if it is stalled.
func (p *Processor) IngestDocument(ctx context.Context, doc stall.Document) (StallOutcome, error) {
	if p.stall == nil {
		return StallOutcome{}, fmt.Errorf("stall analysis is disabled: %w", apperr.ErrValidation)
	}
	signals, err := p.stall.Ingest(ctx, doc)
	if err != nil {
		return StallOutcome{}, err
	}
	out, err := p.RefreshDeal(ctx, doc.DealID)
	out.Signals = signals
	return out, err
}

// RefreshDeal recomputes a deal's stall status from stored signals and runs
// alert generation and delivery. Delivery failures are reported in
// StallOutcome.Error, not returned.
func (p *Processor) RefreshDeal(ctx context.Context, dealID string) (StallOutcome, error) {
	if p.stall == nil {
		return StallOutcome{}, fmt.Errorf("stall analysis is disabled: %w", apperr.ErrValidation)
	}
	status, deal, err := p.stall.Status(ctx, dealID)
	if err != nil {
		return StallOutcome{}, err
	}
	p.metrics.ObserveStallScore(status.StallScore)
	out := StallOutcome{Signals: []stall.Signal{}, Status: status}
	if p.alerts == nil {
		return out, nil
	}

	a, err := p.alerts.Generate(ctx, status, deal)
	if err != nil {
		return out, err
	}
	if a == nil {
		return out, nil
	}
	delivered, err := p.alerts.Deliver(ctx, a.ID)
	if delivered.ID == "" {
		delivered = *a
	}
	if err != nil {
		p.logger.Warn("alert delivery incomplete", "alert_id", a.ID, "deal_id", dealID, "error", err)
		out.Error = err.Error()
	}
	out.Alert = &delivered
	return out, nil
}

// stallFor feeds the call into the deal's stall picture. Failures are logged
// and returned on the outcome; they never fail the call.
func (p *Processor) stallFor(ctx context.Context, evt CallEvent) *StallOutcome {
	var (
		out StallOutcome
		err error
	)
	if text := evt.text(); strings.TrimSpace(text) != "" {
		source := evt.Source
		if source == "" {
			source = stall.SourceCallTranscript
		}
		ts := evt.OccurredAt
		if ts.IsZero() {
			ts = p.now().UTC()
		}
		out, err = p.IngestDocument(ctx, stall.Document{
			DealID:    evt.DealID,
			AccountID: evt.AccountID,
			Source:    source,
			Timestamp: ts,
			Text:      text,
		})
	} else {
		out, err = p.RefreshDeal(ctx, evt.DealID)
	}
	if err != nil {
		p.logger.Warn("stall evaluation failed", "call_id", evt.CallID, "deal_id", evt.DealID, "error", err)
		out.Error = err.Error()
	}
	return &out
}
