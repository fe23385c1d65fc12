package rules

// transitions lists the legal next stages for each stage.
var transitions = map[Stage][]Stage{
	StageNew:              {StageAttemptedContact, StageWorking, StageNurture, StageAppointmentSet, StageClosedLost},
	StageAttemptedContact: {StageWorking, StageNurture, StageAppointmentSet, StageClosedLost},
	StageWorking:          {StageNurture, StageAppointmentSet, StageOfferMade, StageClosedLost},
	StageNurture:          {StageWorking, StageAppointmentSet, StageClosedLost},
	StageAppointmentSet:   {StageWorking, StageNurture, StageOfferMade, StageClosedLost},
	StageOfferMade:        {StageWorking, StageNurture, StageUnderContract, StageClosedLost},
	StageUnderContract:    {StageClosedWon, StageClosedLost},
	StageClosedWon:        {},
	StageClosedLost:       {StageWorking, StageNurture},
}

// KnownStage reports whether s is in the transition table.
func KnownStage(s Stage) bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether moving from one stage to another is legal.
// Staying on the same stage is always legal. The engine never enforces this;
// callers check before applying a change.
func CanTransition(from, to Stage) bool {
	if from == to {
		return KnownStage(from)
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStages returns the legal targets from a stage.
func NextStages(from Stage) []Stage {
	next := transitions[from]
	out := make([]Stage, len(next))
	copy(out, next)
	return out
}
