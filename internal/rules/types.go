package rules

import "github.com/MikeSquared-Agency/dealwatch/internal/detector"

// Stage is a point in the sales pipeline.
type Stage string

const (
	StageNew              Stage = "NEW"
	StageAttemptedContact Stage = "ATTEMPTED_CONTACT"
	StageWorking          Stage = "WORKING"
	StageNurture          Stage = "NURTURE"
	StageAppointmentSet   Stage = "APPOINTMENT_SET"
	StageOfferMade        Stage = "OFFER_MADE"
	StageUnderContract    Stage = "UNDER_CONTRACT"
	StageClosedWon        Stage = "CLOSED_WON"
	StageClosedLost       Stage = "CLOSED_LOST"
)

// Disposition is the outcome label of a single call.
type Disposition string

const (
	DispositionConnected     Disposition = "CONNECTED"
	DispositionVoicemail     Disposition = "LEFT_VOICEMAIL"
	DispositionNoAnswer      Disposition = "NO_ANSWER"
	DispositionBadNumber     Disposition = "BAD_NUMBER"
	DispositionNotInterested Disposition = "NOT_INTERESTED"
	DispositionCallback      Disposition = "CALLBACK"
	DispositionAppointment   Disposition = "APPOINTMENT"
	DispositionDoNotCall     Disposition = "DO_NOT_CALL"
)

// Result flags with engine meaning.
const (
	FlagManualReview         = "manual_review"
	FlagRequiresConfirmation = "requires_confirmation"
	FlagDisqualified         = "disqualified"
)

// Conditions gate a rule. Empty lists impose nothing.
type Conditions struct {
	Required      []detector.SignalType `yaml:"required_signals" json:"required_signals,omitempty"`
	Any           []detector.SignalType `yaml:"any_signals" json:"any_signals,omitempty"`
	Exclude       []detector.SignalType `yaml:"exclude_signals" json:"exclude_signals,omitempty"`
	MinConfidence *float64              `yaml:"min_confidence" json:"min_confidence,omitempty"`
}

// Outcome is what a rule maps a signal set to.
type Outcome struct {
	Stage          Stage       `yaml:"stage" json:"stage"`
	Disposition    Disposition `yaml:"disposition" json:"disposition,omitempty"`
	Flags          []string    `yaml:"flags" json:"flags,omitempty"`
	SuggestedTasks []string    `yaml:"suggested_tasks" json:"suggested_tasks,omitempty"`
}

// Rule is one row of the priority-ordered rule table.
type Rule struct {
	ID         string     `yaml:"id" json:"id"`
	Priority   int        `yaml:"priority" json:"priority"`
	Conditions Conditions `yaml:"conditions" json:"conditions"`
	Result     Outcome    `yaml:"result" json:"result"`
}

// MappingResult is the engine's verdict for one signal set.
type MappingResult struct {
	RuleID               string      `json:"rule_id"`
	NewStage             Stage       `json:"new_stage"`
	Disposition          Disposition `json:"disposition,omitempty"`
	Confidence           float64     `json:"confidence"`
	Reasoning            string      `json:"reasoning"`
	Flags                []string    `json:"flags"`
	RequiresConfirmation bool        `json:"requires_confirmation"`
	SuggestedTasks       []string    `json:"suggested_tasks"`
}

// HasFlag reports whether the result carries flag.
func (r MappingResult) HasFlag(flag string) bool {
	for _, f := range r.Flags {
		if f == flag {
			return true
		}
	}
	return false
}
