// Package audit is the append-only trail of state-changing decisions.
//
// Entries are never edited. A rollback is a new ROLLBACK entry that points at
// the entry it reverses through RollbackOf.
package audit

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Action is the kind of change an entry records.
type Action string

const (
	ActionStageChange          Action = "STAGE_CHANGE"
	ActionDispositionSet       Action = "DISPOSITION_SET"
	ActionNoteAdded            Action = "NOTE_ADDED"
	ActionTaskCreated          Action = "TASK_CREATED"
	ActionCallLogged           Action = "CALL_LOGGED"
	ActionFlaggedForReview     Action = "FLAGGED_FOR_REVIEW"
	ActionConfirmationRejected Action = "CONFIRMATION_REJECTED"
	ActionRollback             Action = "ROLLBACK"
)

// Rollbackable reports whether entries of this action can be reversed.
func (a Action) Rollbackable() bool {
	return a == ActionStageChange || a == ActionDispositionSet
}

// Entry is one audit record.
type Entry struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	CallID        string    `json:"call_id"`
	ProspectID    string    `json:"prospect_id,omitempty"`
	Action        Action    `json:"action"`
	PreviousValue string    `json:"previous_value,omitempty"`
	NewValue      string    `json:"new_value,omitempty"`
	Confidence    *float64  `json:"confidence,omitempty"`
	Automated     bool      `json:"automated"`
	ConfirmedBy   string    `json:"confirmed_by,omitempty"`
	RollbackOf    string    `json:"rollback_of,omitempty"`
	Error         string    `json:"error,omitempty"`
}

// Float returns a pointer to v, for Entry.Confidence.
func Float(v float64) *float64 { return &v }

// EncodeJSON writes entries as one ordered JSON array.
func EncodeJSON(w io.Writer, entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("encode audit entries: %w", err)
	}
	return nil
}

// DecodeJSON reads an array written by EncodeJSON, keeping its order.
func DecodeJSON(r io.Reader) ([]Entry, error) {
	var entries []Entry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode audit entries: %w", err)
	}
	return entries, nil
}
