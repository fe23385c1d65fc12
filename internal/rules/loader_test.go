package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/MikeSquared-Agency/dealwatch/internal/detector"
)

const sampleRules = `
rules:
  - id: dnc
    priority: 100
    conditions:
      required_signals: [DO_NOT_CALL]
    result:
      stage: CLOSED_LOST
      disposition: DO_NOT_CALL
      flags: [dnc]
  - id: live
    priority: 40
    conditions:
      required_signals: [LIVE_CONVERSATION]
      min_confidence: 0.5
    result:
      stage: WORKING
`

func TestLoadRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte(sampleRules), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	table, err := LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	if len(table) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(table))
	}
	if table[1].Conditions.MinConfidence == nil || *table[1].Conditions.MinConfidence != 0.5 {
		t.Errorf("min_confidence not decoded: %+v", table[1].Conditions)
	}

	res := NewEngine(table).Evaluate([]detector.Signal{{Type: detector.SignalDoNotCall, Confidence: 0.9}})
	if res.RuleID != "dnc" || res.Disposition != DispositionDoNotCall {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestParseRules_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty", "rules: []"},
		{"missing id", "rules:\n  - priority: 1\n    result:\n      stage: WORKING\n"},
		{"unknown stage", "rules:\n  - id: x\n    result:\n      stage: SOMEWHERE\n"},
		{"unknown signal", "rules:\n  - id: x\n    conditions:\n      any_signals: [BANANA]\n    result:\n      stage: WORKING\n"},
		{"duplicate id", "rules:\n  - id: x\n    result:\n      stage: WORKING\n  - id: x\n    result:\n      stage: WORKING\n"},
		{"bad min confidence", "rules:\n  - id: x\n    conditions:\n      min_confidence: 2\n    result:\n      stage: WORKING\n"},
		{"not yaml", "rules: [:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseRules([]byte(tt.yaml)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadRules_MissingFile(t *testing.T) {
	if _, err := LoadRules(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
