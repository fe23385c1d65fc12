package rules

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Stage
		want     bool
	}{
		{StageNew, StageWorking, true},
		{StageWorking, StageClosedLost, true},
		{StageClosedWon, StageWorking, false},
		{StageClosedWon, StageClosedLost, false},
		{StageClosedLost, StageWorking, true},
		{StageClosedLost, StageNurture, true},
		{StageClosedLost, StageAppointmentSet, false},
		{StageUnderContract, StageClosedWon, true},
		{StageNurture, StageNurture, true},
		{Stage("BOGUS"), Stage("BOGUS"), false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestNextStages_Won(t *testing.T) {
	if n := NextStages(StageClosedWon); len(n) != 0 {
		t.Errorf("won is terminal, got %v", n)
	}
}
