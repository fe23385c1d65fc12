// Package stall turns source documents into stall signals and aggregates a
// deal's signals into a stall status.
package stall

import (
	"time"

	"github.com/MikeSquared-Agency/dealwatch/internal/detector"
	"github.com/MikeSquared-Agency/dealwatch/internal/rules"
	"github.com/MikeSquared-Agency/dealwatch/internal/scoring"
)

// Source is where a document came from.
type Source string

const (
	SourceCallTranscript Source = "CALL_TRANSCRIPT"
	SourceEmail          Source = "EMAIL"
	SourceMeetingNotes   Source = "MEETING_NOTES"
	SourceCRMNotes       Source = "CRM_NOTES"
)

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	switch s {
	case SourceCallTranscript, SourceEmail, SourceMeetingNotes, SourceCRMNotes:
		return true
	}
	return false
}

// Document is a piece of text about a deal.
type Document struct {
	DealID    string    `json:"deal_id"`
	AccountID string    `json:"account_id"`
	Source    Source    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"text"`
}

// Signal is one stored detection: the best match of one category in one
// document. Only ProcessedAt changes after creation.
type Signal struct {
	ID                    string                 `json:"id"`
	DealID                string                 `json:"deal_id"`
	AccountID             string                 `json:"account_id"`
	Source                Source                 `json:"source"`
	SourceTimestamp       time.Time              `json:"source_timestamp"`
	Category              detector.Category      `json:"category"`
	PhraseMatches         []detector.PhraseMatch `json:"phrase_matches"`
	BaseConfidence        float64                `json:"base_confidence"`
	TimeDecayedConfidence float64                `json:"time_decayed_confidence"`
	AggregateStrength     float64                `json:"aggregate_strength"`
	DetectedAt            time.Time              `json:"detected_at"`
	ProcessedAt           *time.Time             `json:"processed_at,omitempty"`
}

// Status is a deal's recomputed stall picture. Newer statuses replace older.
type Status struct {
	DealID             string            `json:"deal_id"`
	IsStalled          bool              `json:"is_stalled"`
	Severity           scoring.Severity  `json:"severity"`
	StallScore         float64           `json:"stall_score"`
	PrimaryCategory    detector.Category `json:"primary_category,omitempty"`
	Signals            []Signal          `json:"signals"`
	RecommendedActions []string          `json:"recommended_actions"`
	CalculatedAt       time.Time         `json:"calculated_at"`
}

// Deal is what the directory knows about a deal.
type Deal struct {
	ID             string      `json:"id"`
	AccountID      string      `json:"account_id"`
	Name           string      `json:"name"`
	Stage          rules.Stage `json:"stage,omitempty"`
	RepID          string      `json:"rep_id"`
	ManagerID      string      `json:"manager_id,omitempty"`
	LastActivityAt time.Time   `json:"last_activity_at"`
}

// EngagementGap is the time since the last recorded activity.
func (d Deal) EngagementGap(now time.Time) time.Duration {
	if d.LastActivityAt.IsZero() {
		return 0
	}
	return now.Sub(d.LastActivityAt)
}
