package processor

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/dealwatch/internal/alerts"
	"github.com/MikeSquared-Agency/dealwatch/internal/apperr"
	"github.com/MikeSquared-Agency/dealwatch/internal/audit"
	"github.com/MikeSquared-Agency/dealwatch/internal/hermes"
	"github.com/MikeSquared-Agency/dealwatch/internal/router"
	"github.com/MikeSquared-Agency/dealwatch/internal/rules"
	"github.com/MikeSquared-Agency/dealwatch/internal/slack"
)

const rejectionPrompt = "Rejected. What should the record have been? Update it in the CRM and reply here."

// flag holds the change for review, posts it to Slack when configured and
// audits FLAGGED_FOR_REVIEW. It returns the audit entry id.
func (p *Processor) flag(ctx context.Context, callID string, t target, m rules.MappingResult, d router.Decision) (*Confirmation, string, error) {
	c := &Confirmation{
		ID:           uuid.New().String(),
		CallID:       callID,
		RecordID:     t.ID,
		RecordName:   t.Name,
		CurrentStage: t.Stage,
		Disposition:  t.Disposition,
		Mapping:      m,
		Decision:     d,
		CreatedAt:    p.now().UTC(),
	}

	if p.slack != nil {
		ts, err := p.slack.PostConfirmationRequest(ctx, slack.ConfirmationRequest{
			ID:            c.ID,
			CallID:        callID,
			RecordID:      t.ID,
			RecordName:    t.Name,
			CurrentStage:  t.Stage,
			ProposedStage: m.NewStage,
			Disposition:   m.Disposition,
			RuleID:        m.RuleID,
			Confidence:    m.Confidence,
			Reasoning:     m.Reasoning,
			Tasks:         m.SuggestedTasks,
		})
		if err != nil {
			p.logger.Error("slack post failed", "call_id", callID, "error", err)
		} else {
			c.MessageTS = ts
		}
	}

	p.mu.Lock()
	p.confirmations[c.ID] = c
	if c.MessageTS != "" {
		p.confirmTS[c.MessageTS] = c.ID
	}
	p.mu.Unlock()

	e, err := p.audit.Record(ctx, audit.Entry{
		CallID:        callID,
		ProspectID:    t.ID,
		Action:        audit.ActionFlaggedForReview,
		PreviousValue: string(t.Stage),
		NewValue:      string(m.NewStage),
		Confidence:    audit.Float(m.Confidence),
		Automated:     true,
	})
	if err != nil {
		p.metrics.IncAuditFailure()
		return c, "", fmt.Errorf("audit %s: %w", audit.ActionFlaggedForReview, err)
	}
	return c, e.ID, nil
}

// Pending lists confirmations still waiting for a verdict, oldest first.
func (p *Processor) Pending() []Confirmation {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Confirmation, 0, len(p.confirmations))
	for _, c := range p.confirmations {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// take removes a pending confirmation so only one verdict is acted on.
func (p *Processor) take(id string) (*Confirmation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.confirmations[id]
	if !ok {
		return nil, fmt.Errorf("confirmation %s: %w", id, apperr.ErrNotFound)
	}
	delete(p.confirmations, id)
	if c.MessageTS != "" {
		delete(p.confirmTS, c.MessageTS)
	}
	return c, nil
}

func (p *Processor) restore(c *Confirmation) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.confirmations[c.ID] = c
	if c.MessageTS != "" {
		p.confirmTS[c.MessageTS] = c.ID
	}
}

// Confirm applies a held change on a reviewer's behalf. If the CRM update
// fails the confirmation stays pending so it can be retried.
func (p *Processor) Confirm(ctx context.Context, id, actor string) (Confirmation, error) {
	c, err := p.take(id)
	if err != nil {
		return Confirmation{}, err
	}
	t := target{ID: c.RecordID, Name: c.RecordName, Stage: c.CurrentStage, Disposition: c.Disposition}
	out := &Outcome{
		CallID:   c.CallID,
		RecordID: c.RecordID,
		Mapping:  c.Mapping,
		Decision: c.Decision,
	}
	out.AuditIDs, err = p.apply(ctx, c.CallID, t, c.Mapping, actor)
	if err != nil {
		p.restore(c)
		out.ApplyError = err.Error()
		p.publishDecision(out, actor)
		return *c, err
	}
	out.Applied = true
	p.publishDecision(out, actor)
	p.logger.Info("confirmation applied", "confirmation_id", c.ID, "call_id", c.CallID, "actor", actor)
	return *c, nil
}

// Reject discards a held change and audits the rejection.
func (p *Processor) Reject(ctx context.Context, id, actor string) (Confirmation, error) {
	c, err := p.take(id)
	if err != nil {
		return Confirmation{}, err
	}
	_, err = p.audit.Record(ctx, audit.Entry{
		CallID:        c.CallID,
		ProspectID:    c.RecordID,
		Action:        audit.ActionConfirmationRejected,
		PreviousValue: string(c.CurrentStage),
		NewValue:      string(c.Mapping.NewStage),
		Confidence:    audit.Float(c.Mapping.Confidence),
		ConfirmedBy:   actor,
	})
	if err != nil {
		p.metrics.IncAuditFailure()
		return *c, fmt.Errorf("audit %s: %w", audit.ActionConfirmationRejected, err)
	}

	if p.bus != nil {
		if err := p.bus.Publish(hermes.DecisionSubject(string(audit.ActionConfirmationRejected)), hermes.DecisionEvent{
			CallID:      c.CallID,
			RecordID:    c.RecordID,
			RuleID:      c.Mapping.RuleID,
			Action:      string(audit.ActionConfirmationRejected),
			Stage:       string(c.Mapping.NewStage),
			Confidence:  c.Mapping.Confidence,
			ConfirmedBy: actor,
			Timestamp:   p.now().UTC().Format(time.RFC3339),
		}); err != nil {
			p.logger.Error("failed to publish rejection", "call_id", c.CallID, "error", err)
		}
	}
	if c.MessageTS != "" && p.slack != nil {
		if err := p.slack.PostThread(ctx, c.MessageTS, rejectionPrompt); err != nil {
			p.logger.Error("failed to post rejection thread", "error", err)
		}
	}
	p.logger.Info("confirmation rejected", "confirmation_id", c.ID, "call_id", c.CallID, "actor", actor)
	return *c, nil
}

// TrackAlertMessage remembers which Slack message carried an alert so a
// reaction on it acknowledges the alert.
func (p *Processor) TrackAlertMessage(alertID, ts string) {
	if ts == "" {
		return
	}
	p.mu.Lock()
	p.alertTS[ts] = alertID
	p.mu.Unlock()
}

// AcknowledgeAlert marks an alert handled and announces it on the bus.
func (p *Processor) AcknowledgeAlert(ctx context.Context, alertID, actor string) (alerts.Alert, error) {
	if p.alerts == nil {
		return alerts.Alert{}, fmt.Errorf("alerting is disabled: %w", apperr.ErrNotFound)
	}
	a, err := p.alerts.Acknowledge(ctx, alertID, actor)
	if err != nil {
		return alerts.Alert{}, err
	}

	p.mu.Lock()
	for ts, id := range p.alertTS {
		if id == alertID {
			delete(p.alertTS, ts)
		}
	}
	p.mu.Unlock()

	if p.bus != nil {
		if err := p.bus.Publish(hermes.AlertSubject("acknowledged"), hermes.NewAlertEvent(&a)); err != nil {
			p.logger.Error("failed to publish acknowledgment", "alert_id", alertID, "error", err)
		}
	}
	return a, nil
}

// HandleReaction processes Slack reactions from slack-forwarder via NATS.
// Reactions on confirmation requests apply or reject the change; check-mark
// reactions on alerts acknowledge them.
func (p *Processor) HandleReaction(subject string, data []byte) {
	ctx := context.Background()

	evt, err := slack.ParseReactionEvent(data)
	if err != nil {
		p.logger.Error("failed to parse reaction", "error", err)
		return
	}
	verdict := evt.Verdict()
	if verdict == slack.VerdictUnknown || verdict == slack.VerdictSkipped {
		return
	}

	p.mu.Lock()
	confirmationID, isConfirmation := p.confirmTS[evt.MessageTS]
	alertID, isAlert := p.alertTS[evt.MessageTS]
	p.mu.Unlock()

	switch {
	case isConfirmation && verdict == slack.VerdictConfirmed:
		_, err = p.Confirm(ctx, confirmationID, evt.UserID)
	case isConfirmation && verdict == slack.VerdictRejected:
		_, err = p.Reject(ctx, confirmationID, evt.UserID)
	case isAlert && (verdict == slack.VerdictAcknowledged || verdict == slack.VerdictConfirmed):
		_, err = p.AcknowledgeAlert(ctx, alertID, evt.UserID)
	default:
		return
	}
	if err != nil {
		p.logger.Error("failed to act on reaction",
			"reaction", evt.Reaction, "message_ts", evt.MessageTS, "error", err)
		return
	}
	p.logger.Info("reaction processed", "verdict", string(verdict), "message_ts", evt.MessageTS, "user", evt.UserID)
}
