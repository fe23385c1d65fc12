package rules

import "github.com/MikeSquared-Agency/dealwatch/internal/detector"

func minConf(v float64) *float64 { return &v }

// DefaultRules is the built-in rule table. Overlapping rules are ordered so
// the most specific or most urgent outcome has the higher priority.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:         "do_not_call",
			Priority:   100,
			Conditions: Conditions{Required: []detector.SignalType{detector.SignalDoNotCall}},
			Result: Outcome{
				Stage:       StageClosedLost,
				Disposition: DispositionDoNotCall,
				Flags:       []string{"dnc", "compliance"},
			},
		},
		{
			ID:         "wrong_number",
			Priority:   95,
			Conditions: Conditions{Required: []detector.SignalType{detector.SignalWrongNumber}},
			Result: Outcome{
				Stage:          StageClosedLost,
				Disposition:    DispositionBadNumber,
				Flags:          []string{"bad_data"},
				SuggestedTasks: []string{"Skip-trace a new phone number"},
			},
		},
		{
			ID:         "already_sold",
			Priority:   90,
			Conditions: Conditions{Required: []detector.SignalType{detector.SignalAlreadySold}},
			Result: Outcome{
				Stage:       StageClosedLost,
				Disposition: DispositionNotInterested,
				Flags:       []string{FlagDisqualified},
			},
		},
		{
			ID:       "not_interested_live",
			Priority: 85,
			Conditions: Conditions{
				Required:      []detector.SignalType{detector.SignalLiveConversation, detector.SignalNotInterested},
				Exclude:       []detector.SignalType{detector.SignalInterested, detector.SignalAppointmentSet},
				MinConfidence: minConf(0.6),
			},
			Result: Outcome{
				Stage:       StageClosedLost,
				Disposition: DispositionNotInterested,
				Flags:       []string{FlagDisqualified},
			},
		},
		{
			ID:       "appointment_set",
			Priority: 80,
			Conditions: Conditions{
				Required: []detector.SignalType{detector.SignalLiveConversation, detector.SignalAppointmentSet},
			},
			Result: Outcome{
				Stage:          StageAppointmentSet,
				Disposition:    DispositionAppointment,
				SuggestedTasks: []string{"Confirm appointment 24h prior"},
			},
		},
		{
			ID:       "motivated_seller",
			Priority: 70,
			Conditions: Conditions{
				Required: []detector.SignalType{detector.SignalLiveConversation, detector.SignalMotivatedSeller},
				Any:      []detector.SignalType{detector.SignalInterested, detector.SignalPriceDiscussed},
			},
			Result: Outcome{
				Stage:          StageWorking,
				Disposition:    DispositionConnected,
				Flags:          []string{"hot_lead"},
				SuggestedTasks: []string{"Prepare offer", "Pull comparable sales"},
			},
		},
		{
			ID:         "callback_requested",
			Priority:   60,
			Conditions: Conditions{Required: []detector.SignalType{detector.SignalCallbackRequested}},
			Result: Outcome{
				Stage:          StageWorking,
				Disposition:    DispositionCallback,
				SuggestedTasks: []string{"Schedule callback"},
			},
		},
		{
			ID:       "objection_nurture",
			Priority: 55,
			Conditions: Conditions{
				Any: []detector.SignalType{
					detector.SignalTimingObjection,
					detector.SignalPriceObjection,
					detector.SignalDecisionMakerAbsent,
				},
				Exclude: []detector.SignalType{detector.SignalInterested},
			},
			Result: Outcome{
				Stage:          StageNurture,
				Disposition:    DispositionConnected,
				SuggestedTasks: []string{"Add to nurture sequence"},
			},
		},
		{
			ID:       "interested",
			Priority: 50,
			Conditions: Conditions{
				Required: []detector.SignalType{detector.SignalLiveConversation},
				Any: []detector.SignalType{
					detector.SignalInterested,
					detector.SignalPriceDiscussed,
					detector.SignalFollowUpNeeded,
				},
			},
			Result: Outcome{
				Stage:          StageWorking,
				Disposition:    DispositionConnected,
				SuggestedTasks: []string{"Send follow-up"},
			},
		},
		{
			ID:         "live_conversation",
			Priority:   40,
			Conditions: Conditions{Required: []detector.SignalType{detector.SignalLiveConversation}},
			Result: Outcome{
				Stage:       StageWorking,
				Disposition: DispositionConnected,
			},
		},
		{
			ID:         "voicemail",
			Priority:   30,
			Conditions: Conditions{Required: []detector.SignalType{detector.SignalVoicemail}},
			Result: Outcome{
				Stage:          StageAttemptedContact,
				Disposition:    DispositionVoicemail,
				SuggestedTasks: []string{"Retry call in 2 days"},
			},
		},
		{
			ID:         "no_answer",
			Priority:   20,
			Conditions: Conditions{Any: []detector.SignalType{detector.SignalNoAnswer, detector.SignalGatekeeper}},
			Result: Outcome{
				Stage:       StageAttemptedContact,
				Disposition: DispositionNoAnswer,
			},
		},
	}
}

// DefaultWeights is the per-signal-type weight table used for rule confidence.
func DefaultWeights() map[detector.SignalType]float64 {
	return map[detector.SignalType]float64{
		detector.SignalLiveConversation:    1.0,
		detector.SignalVoicemail:           1.0,
		detector.SignalNoAnswer:            0.8,
		detector.SignalWrongNumber:         1.2,
		detector.SignalGatekeeper:          0.8,
		detector.SignalNotInterested:       1.2,
		detector.SignalInterested:          1.0,
		detector.SignalCallbackRequested:   1.0,
		detector.SignalAppointmentSet:      1.3,
		detector.SignalPriceDiscussed:      0.7,
		detector.SignalPriceObjection:      0.9,
		detector.SignalTimingObjection:     0.9,
		detector.SignalDecisionMakerAbsent: 0.8,
		detector.SignalCompetitorMentioned: 0.7,
		detector.SignalDoNotCall:           1.5,
		detector.SignalAlreadySold:         1.2,
		detector.SignalMotivatedSeller:     1.1,
		detector.SignalFollowUpNeeded:      0.7,
	}
}
