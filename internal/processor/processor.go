package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MikeSquared-Agency/dealwatch/internal/alerts"
	"github.com/MikeSquared-Agency/dealwatch/internal/apperr"
	"github.com/MikeSquared-Agency/dealwatch/internal/audit"
	"github.com/MikeSquared-Agency/dealwatch/internal/crm"
	"github.com/MikeSquared-Agency/dealwatch/internal/detector"
	"github.com/MikeSquared-Agency/dealwatch/internal/hermes"
	"github.com/MikeSquared-Agency/dealwatch/internal/metrics"
	"github.com/MikeSquared-Agency/dealwatch/internal/router"
	"github.com/MikeSquared-Agency/dealwatch/internal/rules"
	"github.com/MikeSquared-Agency/dealwatch/internal/slack"
	"github.com/MikeSquared-Agency/dealwatch/internal/stall"
)

// Confirmer posts confirmation requests for human review.
type Confirmer interface {
	PostConfirmationRequest(ctx context.Context, req slack.ConfirmationRequest) (string, error)
	PostThread(ctx context.Context, threadTS, text string) error
}

// Deps wires a Processor. Bus, Slack, Stall, Alerts and Metrics are optional.
type Deps struct {
	Detector *detector.TranscriptDetector
	Rules    *rules.Engine
	Routing  router.Config
	CRM      crm.RecordStore
	Audit    *audit.Log
	Stall    *stall.Analyzer
	Alerts   *alerts.Generator
	Bus      hermes.Publisher
	Slack    Confirmer
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// Processor orchestrates dealwatch's call pipeline: detect, map, route,
// apply or hold for confirmation, audit, and feed the deal's stall picture.
type Processor struct {
	detector *detector.TranscriptDetector
	rules    *rules.Engine
	routing  router.Config
	crm      crm.RecordStore
	audit    *audit.Log
	stall    *stall.Analyzer
	alerts   *alerts.Generator
	bus      hermes.Publisher
	slack    Confirmer
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time

	mu            sync.Mutex
	confirmations map[string]*Confirmation // keyed by confirmation id
	confirmTS     map[string]string        // slack ts -> confirmation id
	alertTS       map[string]string        // slack ts -> alert id
}

func New(d Deps) *Processor {
	if d.Detector == nil {
		d.Detector = detector.NewTranscriptDetector(nil)
	}
	if d.Rules == nil {
		d.Rules = rules.NewEngine(rules.DefaultRules())
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Processor{
		detector:      d.Detector,
		rules:         d.Rules,
		routing:       d.Routing,
		crm:           d.CRM,
		audit:         d.Audit,
		stall:         d.Stall,
		alerts:        d.Alerts,
		bus:           d.Bus,
		slack:         d.Slack,
		metrics:       d.Metrics,
		logger:        d.Logger,
		now:           time.Now,
		confirmations: make(map[string]*Confirmation),
		confirmTS:     make(map[string]string),
		alertTS:       make(map[string]string),
	}
}

func (p *Processor) SetClock(now func() time.Time) { p.now = now }

// HandleCallEvent is the NATS handler for dealwatch.call.completed.
func (p *Processor) HandleCallEvent(subject string, data []byte) {
	var evt CallEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		p.logger.Error("failed to parse call event", "subject", subject, "error", err)
		return
	}
	res := p.ProcessCall(context.Background(), evt)
	if !res.Success {
		p.logger.Warn("call processing failed", "call_id", evt.CallID, "error", res.Error)
	}
}

// ProcessCall classifies one call and acts on the routed decision. It never
// panics; every failure comes back in Result.Error.
func (p *Processor) ProcessCall(ctx context.Context, evt CallEvent) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("call processing panicked", "call_id", evt.CallID, "panic", r)
			res = Result{Error: fmt.Sprintf("internal error: %v", r)}
		}
	}()

	signals, mapping, decision, err := p.classify(evt)
	if err != nil {
		return Result{Error: err.Error()}
	}

	target, lookupErr := p.resolve(ctx, evt)
	if decision.Action == router.ActionAutoUpdate && target.known && !rules.CanTransition(target.Stage, mapping.NewStage) {
		decision = p.downgrade(decision, fmt.Sprintf("transition %s -> %s is not allowed", target.Stage, mapping.NewStage))
	}

	out := &Outcome{
		CallID:   evt.CallID,
		RecordID: target.ID,
		Signals:  signals,
		Mapping:  mapping,
		Decision: decision,
		AuditIDs: []string{},
	}
	p.metrics.IncDecision(string(decision.Action), mapping.RuleID)
	p.logger.Info("call classified",
		"call_id", evt.CallID,
		"record_id", target.ID,
		"rule", mapping.RuleID,
		"confidence", mapping.Confidence,
		"action", decision.Action,
	)

	logged := audit.Entry{
		CallID:        evt.CallID,
		ProspectID:    target.ID,
		Action:        audit.ActionCallLogged,
		PreviousValue: string(target.Stage),
		NewValue:      string(decision.Action),
		Confidence:    audit.Float(mapping.Confidence),
		Automated:     true,
	}
	if lookupErr != nil {
		logged.Error = lookupErr.Error()
	}
	if err := p.record(ctx, logged, out); err != nil {
		return Result{Payload: out, Error: err.Error()}
	}

	var failure error
	switch decision.Action {
	case router.ActionAutoUpdate:
		if target.ID == "" {
			failure = noRecord(evt.CallID, lookupErr)
			break
		}
		ids, err := p.apply(ctx, evt.CallID, target, mapping, "")
		out.AuditIDs = append(out.AuditIDs, ids...)
		if err != nil {
			failure = err
			break
		}
		out.Applied = true
	case router.ActionFlagForConfirmation:
		if target.ID == "" {
			failure = noRecord(evt.CallID, lookupErr)
			break
		}
		c, id, err := p.flag(ctx, evt.CallID, target, mapping, decision)
		if id != "" {
			out.AuditIDs = append(out.AuditIDs, id)
		}
		if err != nil {
			failure = err
			break
		}
		out.ConfirmationID = c.ID
	}
	if failure != nil {
		out.ApplyError = failure.Error()
	}

	p.publishDecision(out, "")

	if evt.DealID != "" && p.stall != nil {
		out.Stall = p.stallFor(ctx, evt)
	}

	if failure != nil {
		return Result{Payload: out, Error: failure.Error()}
	}
	return Result{Success: true, Payload: out}
}

// Classify runs detection, mapping and routing only. Nothing is written to
// the CRM, the audit log or the bus.
func (p *Processor) Classify(evt CallEvent) (Outcome, error) {
	signals, mapping, decision, err := p.classify(evt)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{
		CallID:   evt.CallID,
		RecordID: evt.RecordID,
		Signals:  signals,
		Mapping:  mapping,
		Decision: decision,
		AuditIDs: []string{},
	}, nil
}

func (p *Processor) classify(evt CallEvent) ([]detector.Signal, rules.MappingResult, router.Decision, error) {
	if err := evt.Validate(); err != nil {
		return nil, rules.MappingResult{}, router.Decision{}, err
	}
	signals, err := p.detect(evt)
	if err != nil {
		return nil, rules.MappingResult{}, router.Decision{}, err
	}
	mapping := p.rules.Evaluate(signals)
	decision := router.Route(mapping.Confidence, p.routing)
	if decision.Action == router.ActionAutoUpdate && mapping.HasFlag(rules.FlagRequiresConfirmation) {
		decision = p.downgrade(decision, "rule requires confirmation")
	}
	return signals, mapping, decision, nil
}

// detect merges transcript or text signals with upstream tags. When both
// name a type, the more confident one wins.
func (p *Processor) detect(evt CallEvent) ([]detector.Signal, error) {
	var found []detector.Signal
	switch {
	case evt.Transcript != nil:
		t := *evt.Transcript
		if t.CallID == "" {
			t.CallID = evt.CallID
		}
		found = p.detector.Detect(t)
	case evt.Text != "":
		found = p.detector.Detect(detector.Transcript{
			CallID:   evt.CallID,
			Segments: []detector.Segment{{Text: evt.Text}},
		})
	}
	if len(evt.Tags) == 0 {
		return found, nil
	}
	tagged, err := detector.FromTags(evt.Tags)
	if err != nil {
		return nil, err
	}
	return mergeSignals(found, tagged), nil
}

func mergeSignals(a, b []detector.Signal) []detector.Signal {
	out := make([]detector.Signal, 0, len(a)+len(b))
	idx := make(map[detector.SignalType]int)
	for _, s := range append(a, b...) {
		if i, ok := idx[s.Type]; ok {
			if s.Confidence > out[i].Confidence {
				out[i] = s
			}
			continue
		}
		idx[s.Type] = len(out)
		out = append(out, s)
	}
	return out
}

// target is the CRM record a call is about. known means Stage came from the
// CRM and transition checks apply.
type target struct {
	ID          string
	Name        string
	Stage       rules.Stage
	Disposition rules.Disposition
	known       bool
}

func (p *Processor) resolve(ctx context.Context, evt CallEvent) (target, error) {
	t := target{ID: evt.RecordID}
	if evt.Email == "" || p.crm == nil {
		return t, nil
	}
	rec, err := p.crm.FindRecordByEmail(ctx, evt.Email)
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			p.logger.Warn("crm lookup failed", "call_id", evt.CallID, "error", err)
		}
		return t, err
	}
	if t.ID != "" && rec.ID != t.ID {
		p.logger.Warn("record id and email disagree, using record id",
			"call_id", evt.CallID, "record_id", t.ID, "email_record_id", rec.ID)
		return t, nil
	}
	return target{ID: rec.ID, Name: rec.Name, Stage: rec.Stage, Disposition: rec.Disposition, known: true}, nil
}

func (p *Processor) downgrade(d router.Decision, reason string) router.Decision {
	if p.routing.FlaggingEnabled {
		d.Action = router.ActionFlagForConfirmation
	} else {
		d.Action = router.ActionNoAction
	}
	d.Reason = reason
	return d
}

func noRecord(callID string, lookupErr error) error {
	if lookupErr != nil {
		return fmt.Errorf("resolve record for call %s: %w", callID, lookupErr)
	}
	return fmt.Errorf("no crm record for call %s: %w", callID, apperr.ErrValidation)
}

// apply writes the mapping to the CRM and audits each part of the change.
// An empty confirmedBy marks the change as automated.
func (p *Processor) apply(ctx context.Context, callID string, t target, m rules.MappingResult, confirmedBy string) ([]string, error) {
	if p.crm == nil {
		return nil, fmt.Errorf("no crm configured: %w", apperr.ErrDownstreamUnavailable)
	}
	base := audit.Entry{
		CallID:      callID,
		ProspectID:  t.ID,
		Confidence:  audit.Float(m.Confidence),
		Automated:   confirmedBy == "",
		ConfirmedBy: confirmedBy,
	}

	res, err := p.crm.UpdateRecord(ctx, t.ID, crm.Update{
		Stage:       m.NewStage,
		Disposition: m.Disposition,
		Note:        m.Reasoning,
		Tasks:       m.SuggestedTasks,
	})
	if err == nil && !res.Success {
		err = fmt.Errorf("crm rejected update: %s", res.Error)
	}
	if err != nil {
		p.metrics.IncCRMApply("failed")
		p.logger.Error("crm update failed", "call_id", callID, "record_id", t.ID, "error", err)
		failed := base
		failed.Action = audit.ActionStageChange
		failed.PreviousValue = string(t.Stage)
		failed.NewValue = string(m.NewStage)
		failed.Error = err.Error()
		var ids []string
		if e, aerr := p.audit.Record(ctx, failed); aerr != nil {
			p.metrics.IncAuditFailure()
		} else {
			ids = append(ids, e.ID)
		}
		return ids, fmt.Errorf("apply to record %s: %w", t.ID, err)
	}
	p.metrics.IncCRMApply("applied")

	prev := res.PreviousStage
	if prev == "" {
		prev = t.Stage
	}
	entries := []audit.Entry{withChange(base, audit.ActionStageChange, string(prev), string(m.NewStage))}
	if m.Disposition != "" {
		entries = append(entries, withChange(base, audit.ActionDispositionSet, string(t.Disposition), string(m.Disposition)))
	}
	if m.Reasoning != "" {
		entries = append(entries, withChange(base, audit.ActionNoteAdded, "", m.Reasoning))
	}
	for _, task := range m.SuggestedTasks {
		entries = append(entries, withChange(base, audit.ActionTaskCreated, "", task))
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		rec, err := p.audit.Record(ctx, e)
		if err != nil {
			p.metrics.IncAuditFailure()
			return ids, fmt.Errorf("audit %s: %w", e.Action, err)
		}
		ids = append(ids, rec.ID)
	}
	p.logger.Info("crm record updated",
		"call_id", callID, "record_id", t.ID, "stage", m.NewStage, "confirmed_by", confirmedBy)
	return ids, nil
}

func withChange(base audit.Entry, action audit.Action, prev, next string) audit.Entry {
	base.Action = action
	base.PreviousValue = prev
	base.NewValue = next
	return base
}

// record appends e and notes its id on out.
func (p *Processor) record(ctx context.Context, e audit.Entry, out *Outcome) error {
	rec, err := p.audit.Record(ctx, e)
	if err != nil {
		p.metrics.IncAuditFailure()
		return fmt.Errorf("audit %s: %w", e.Action, err)
	}
	out.AuditIDs = append(out.AuditIDs, rec.ID)
	return nil
}

func (p *Processor) publishDecision(out *Outcome, confirmedBy string) {
	if p.bus == nil {
		return
	}
	ev := hermes.DecisionEvent{
		CallID:      out.CallID,
		RecordID:    out.RecordID,
		RuleID:      out.Mapping.RuleID,
		Action:      string(out.Decision.Action),
		Stage:       string(out.Mapping.NewStage),
		Disposition: string(out.Mapping.Disposition),
		Confidence:  out.Mapping.Confidence,
		Flags:       out.Mapping.Flags,
		Applied:     out.Applied,
		Error:       out.ApplyError,
		ConfirmedBy: confirmedBy,
		Timestamp:   p.now().UTC().Format(time.RFC3339),
	}
	if err := p.bus.Publish(hermes.DecisionSubject(ev.Action), ev); err != nil {
		p.logger.Error("failed to publish decision", "call_id", out.CallID, "error", err)
	}
}
