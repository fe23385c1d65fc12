package detector

import "regexp"

func stall(expr string, cat Category, conf float64, label string) Pattern {
	return Pattern{Regexp: regexp.MustCompile(`(?i)` + expr), Category: cat, BaseConfidence: conf, Label: label}
}

// DefaultStallPatterns is the ordered stall phrase table.
func DefaultStallPatterns() []Pattern {
	return []Pattern{
		stall(`\blet me think (about it|it over)\b`, CategoryThinking, 0.7, "let me think about it"),
		stall(`\bneed (some )?time to think\b`, CategoryThinking, 0.65, "need time to think"),
		stall(`\bsleep on it\b`, CategoryThinking, 0.65, "sleep on it"),
		stall(`\bmull it over\b`, CategoryThinking, 0.6, "mull it over"),

		stall(`\bsend (me|you|over)( the)? pric(e|es|ing)\b`, CategoryPricingRequest, 0.6, "send pricing"),
		stall(`\bwhat (does|would) (it|this|that) cost\b`, CategoryPricingRequest, 0.55, "what does it cost"),
		stall(`\b(get|need) a quote\b`, CategoryPricingRequest, 0.55, "need a quote"),

		stall(`\bcall (me )?back\b`, CategoryCallbackRequest, 0.6, "call back"),
		stall(`\b(touch base|circle back|reconnect)\b`, CategoryCallbackRequest, 0.55, "circle back"),
		stall(`\bnext (week|month)\b`, CategoryCallbackRequest, 0.5, "next week"),

		stall(`\b(talk|check|discuss it|run it by) with my (wife|husband|partner|spouse|boss|team)\b`, CategoryStakeholderDelay, 0.7, "check with my partner"),
		stall(`\bneed (to get )?approval\b`, CategoryStakeholderDelay, 0.65, "need approval"),

		stall(`\bnot in (the|our|my) budget\b`, CategoryBudgetConcern, 0.75, "not in the budget"),
		stall(`\btoo expensive\b`, CategoryBudgetConcern, 0.7, "too expensive"),
		stall(`\bcan'?t afford\b`, CategoryBudgetConcern, 0.75, "can't afford"),

		stall(`\bnot (the )?right time\b`, CategoryTimingDeferral, 0.7, "not the right time"),
		stall(`\b(maybe|try) (in )?(the )?(spring|summer|fall|winter|new year|next quarter|next year)\b`, CategoryTimingDeferral, 0.65, "maybe next year"),
		stall(`\bnot ready\b`, CategoryTimingDeferral, 0.6, "not ready"),

		stall(`\bshopping around\b`, CategoryCompetitorEvaluation, 0.7, "shopping around"),
		stall(`\bcompar(e|ing) (offers|options|quotes)\b`, CategoryCompetitorEvaluation, 0.65, "comparing offers"),
		stall(`\b(other|another) (agent|company|offer|option)s?\b`, CategoryCompetitorEvaluation, 0.6, "other offers"),

		stall(`\bsend (me )?(some )?(more )?info(rmation)?\b`, CategoryInformationRequest, 0.55, "send me information"),
		stall(`\bemail me\b`, CategoryInformationRequest, 0.5, "email me"),
	}
}

// SignalPattern is one row of the call-signal table.
type SignalPattern struct {
	Regexp         *regexp.Regexp
	Type           SignalType
	BaseConfidence float64
}

func sig(expr string, t SignalType, conf float64) SignalPattern {
	return SignalPattern{Regexp: regexp.MustCompile(`(?i)` + expr), Type: t, BaseConfidence: conf}
}

// DefaultSignalPatterns is the ordered call-signal table. LIVE_CONVERSATION
// has no row: it is synthesized from speaker and duration data.
func DefaultSignalPatterns() []SignalPattern {
	return []SignalPattern{
		sig(`\b(leave (a|your) message|after the (tone|beep)|voice ?mail|mailbox)\b`, SignalVoicemail, 0.9),
		sig(`\b(no answer|didn'?t pick up|rang out)\b`, SignalNoAnswer, 0.8),
		sig(`\b(wrong number|no one (here )?by that name|doesn'?t live here)\b`, SignalWrongNumber, 0.9),
		sig(`\b((he|she)('s| is) not (available|in)|can i take a message|who'?s calling)\b`, SignalGatekeeper, 0.7),
		sig(`\b(not interested|no,? thank(s| you)|not selling)\b`, SignalNotInterested, 0.85),
		sig(`\b((i'?m|we'?re|i am|we are) interested|sounds good|tell me more)\b`, SignalInterested, 0.75),
		sig(`\b(call (me )?back|call again|try (me )?(again )?(later|tomorrow))\b`, SignalCallbackRequested, 0.8),
		sig(`\b((see|meet) you (on|at|tomorrow)|appointment|(let'?s|we can) meet)\b`, SignalAppointmentSet, 0.8),
		sig(`(\bhow much\b|\bprice\b|\basking\b|\$\d)`, SignalPriceDiscussed, 0.6),
		sig(`\b(too (low|expensive|high)|(worth|want) more)\b`, SignalPriceObjection, 0.75),
		sig(`\b(not (the )?right time|too soon|not ready|maybe (later|next year))\b`, SignalTimingObjection, 0.7),
		sig(`\b((talk|check) with my (wife|husband|partner|spouse)|not my decision)\b`, SignalDecisionMakerAbsent, 0.7),
		sig(`\b((another|other) (buyer|agent|investor|company)s?|already (have|got) an offer|realtor)\b`, SignalCompetitorMentioned, 0.65),
		sig(`\b(do not call|don'?t call (me|here)|take me off|remove (me|my number))\b`, SignalDoNotCall, 0.95),
		sig(`\b(already sold|sold it already|under contract already|no longer own)\b`, SignalAlreadySold, 0.9),
		sig(`\b(need to sell|(want|looking) to sell (fast|quickly|soon)|relocat(e|ing)|behind on|foreclos\w*)\b`, SignalMotivatedSeller, 0.75),
		sig(`\b(send (me )?(the |some )?(info|details|paperwork)|email me|follow up)\b`, SignalFollowUpNeeded, 0.6),
	}
}
