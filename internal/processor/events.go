package processor

import (
	"fmt"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/dealwatch/internal/alerts"
	"github.com/MikeSquared-Agency/dealwatch/internal/apperr"
	"github.com/MikeSquared-Agency/dealwatch/internal/detector"
	"github.com/MikeSquared-Agency/dealwatch/internal/router"
	"github.com/MikeSquared-Agency/dealwatch/internal/rules"
	"github.com/MikeSquared-Agency/dealwatch/internal/stall"
)

// CallEvent is a completed call as delivered on dealwatch.call.completed or
// the call webhook. At least one of Transcript, Text or Tags must be set.
type CallEvent struct {
	CallID     string               `json:"call_id"`
	RecordID   string               `json:"record_id,omitempty"`
	Email      string               `json:"email,omitempty"`
	DealID     string               `json:"deal_id,omitempty"`
	AccountID  string               `json:"account_id,omitempty"`
	Source     stall.Source         `json:"source,omitempty"`
	OccurredAt time.Time            `json:"occurred_at,omitempty"`
	Transcript *detector.Transcript `json:"transcript,omitempty"`
	Text       string               `json:"text,omitempty"`
	Tags       []detector.TagInput  `json:"tags,omitempty"`
}

// Validate rejects events the pipeline cannot classify.
func (e CallEvent) Validate() error {
	if strings.TrimSpace(e.CallID) == "" {
		return fmt.Errorf("call_id is required: %w", apperr.ErrValidation)
	}
	if e.Transcript == nil && strings.TrimSpace(e.Text) == "" && len(e.Tags) == 0 {
		return fmt.Errorf("call %s has no transcript, text or tags: %w", e.CallID, apperr.ErrValidation)
	}
	if e.Transcript != nil {
		t := *e.Transcript
		if t.CallID == "" {
			t.CallID = e.CallID
		}
		if err := detector.Validate(t); err != nil {
			return err
		}
	}
	if e.Source != "" && !e.Source.Valid() {
		return fmt.Errorf("unknown source %q: %w", e.Source, apperr.ErrValidation)
	}
	return nil
}

// text is the plain text of the call, used for stall detection.
func (e CallEvent) text() string {
	if e.Transcript != nil {
		return e.Transcript.Text()
	}
	return e.Text
}

// Result is what callers of the pipeline get back. Payload is set whenever
// the call was classified, including when applying the change failed.
type Result struct {
	Success bool     `json:"success"`
	Payload *Outcome `json:"payload,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// Outcome describes how one call was classified and what was done about it.
type Outcome struct {
	CallID         string              `json:"call_id"`
	RecordID       string              `json:"record_id,omitempty"`
	Signals        []detector.Signal   `json:"signals"`
	Mapping        rules.MappingResult `json:"mapping"`
	Decision       router.Decision     `json:"decision"`
	Applied        bool                `json:"applied"`
	ApplyError     string              `json:"apply_error,omitempty"`
	ConfirmationID string              `json:"confirmation_id,omitempty"`
	AuditIDs       []string            `json:"audit_ids"`
	Stall          *StallOutcome       `json:"stall,omitempty"`
}

// StallOutcome is the deal-level result of ingesting a document.
type StallOutcome struct {
	Signals []stall.Signal `json:"signals"`
	Status  stall.Status   `json:"status"`
	Alert   *alerts.Alert  `json:"alert,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Confirmation is a routed change waiting for a human verdict.
type Confirmation struct {
	ID           string              `json:"id"`
	CallID       string              `json:"call_id"`
	RecordID     string              `json:"record_id"`
	RecordName   string              `json:"record_name,omitempty"`
	CurrentStage rules.Stage         `json:"current_stage,omitempty"`
	Disposition  rules.Disposition   `json:"current_disposition,omitempty"`
	Mapping      rules.MappingResult `json:"mapping"`
	Decision     router.Decision     `json:"decision"`
	MessageTS    string              `json:"message_ts,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
}
