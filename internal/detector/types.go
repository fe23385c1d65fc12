package detector

import "time"

// Category groups stall phrases by what they say about the deal.
type Category string

const (
	CategoryThinking             Category = "THINKING"
	CategoryPricingRequest       Category = "PRICING_REQUEST"
	CategoryCallbackRequest      Category = "CALLBACK_REQUEST"
	CategoryStakeholderDelay     Category = "STAKEHOLDER_DELAY"
	CategoryBudgetConcern        Category = "BUDGET_CONCERN"
	CategoryTimingDeferral       Category = "TIMING_DEFERRAL"
	CategoryCompetitorEvaluation Category = "COMPETITOR_EVALUATION"
	CategoryInformationRequest   Category = "INFORMATION_REQUEST"
)

// SignalType is the kind of observation extracted from a call.
type SignalType string

const (
	SignalLiveConversation    SignalType = "LIVE_CONVERSATION"
	SignalVoicemail           SignalType = "VOICEMAIL"
	SignalNoAnswer            SignalType = "NO_ANSWER"
	SignalWrongNumber         SignalType = "WRONG_NUMBER"
	SignalGatekeeper          SignalType = "GATEKEEPER"
	SignalNotInterested       SignalType = "NOT_INTERESTED"
	SignalInterested          SignalType = "INTERESTED"
	SignalCallbackRequested   SignalType = "CALLBACK_REQUESTED"
	SignalAppointmentSet      SignalType = "APPOINTMENT_SET"
	SignalPriceDiscussed      SignalType = "PRICE_DISCUSSED"
	SignalPriceObjection      SignalType = "PRICE_OBJECTION"
	SignalTimingObjection     SignalType = "TIMING_OBJECTION"
	SignalDecisionMakerAbsent SignalType = "DECISION_MAKER_ABSENT"
	SignalCompetitorMentioned SignalType = "COMPETITOR_MENTIONED"
	SignalDoNotCall           SignalType = "DO_NOT_CALL"
	SignalAlreadySold         SignalType = "ALREADY_SOLD"
	SignalMotivatedSeller     SignalType = "MOTIVATED_SELLER"
	SignalFollowUpNeeded      SignalType = "FOLLOW_UP_NEEDED"
)

// AllSignalTypes lists every known signal type in table order.
var AllSignalTypes = []SignalType{
	SignalLiveConversation, SignalVoicemail, SignalNoAnswer, SignalWrongNumber,
	SignalGatekeeper, SignalNotInterested, SignalInterested, SignalCallbackRequested,
	SignalAppointmentSet, SignalPriceDiscussed, SignalPriceObjection, SignalTimingObjection,
	SignalDecisionMakerAbsent, SignalCompetitorMentioned, SignalDoNotCall, SignalAlreadySold,
	SignalMotivatedSeller, SignalFollowUpNeeded,
}

// Valid reports whether t is a known signal type.
func (t SignalType) Valid() bool {
	for _, known := range AllSignalTypes {
		if t == known {
			return true
		}
	}
	return false
}

// PhraseMatch is a single occurrence of a stall pattern in source text.
type PhraseMatch struct {
	Phrase      string   `json:"phrase"`
	Category    Category `json:"category"`
	MatchedText string   `json:"matched_text"`
	Confidence  float64  `json:"confidence"`
	Position    int      `json:"position"`
	Context     string   `json:"context"`
}

// Signal is a typed, confidence-scored observation from one call.
type Signal struct {
	Type       SignalType `json:"type"`
	Confidence float64    `json:"confidence"`
	Evidence   string     `json:"evidence"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
}

// Segment is one speaker turn in a structured transcript. Start and End are
// seconds from the start of the call.
type Segment struct {
	Speaker string  `json:"speaker"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
}

// Transcript is a structured call transcript.
type Transcript struct {
	CallID    string    `json:"call_id"`
	StartedAt time.Time `json:"started_at,omitempty"`
	Duration  float64   `json:"duration"` // seconds; derived from segments when zero
	Segments  []Segment `json:"segments"`
}

// Text joins all segment texts with single spaces.
func (t Transcript) Text() string {
	n := 0
	for _, s := range t.Segments {
		n += len(s.Text) + 1
	}
	buf := make([]byte, 0, n)
	for i, s := range t.Segments {
		if i > 0 {
			buf = append(buf, ' ')
		}
		buf = append(buf, s.Text...)
	}
	return string(buf)
}
