package rules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/MikeSquared-Agency/dealwatch/internal/detector"
)

type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRules reads a YAML rule table from path.
func LoadRules(path string) ([]Rule, error) {
	// #nosec G304 -- path comes from operator configuration.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	return ParseRules(data)
}

// ParseRules decodes and validates a YAML rule table.
func ParseRules(data []byte) ([]Rule, error) {
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	if len(f.Rules) == 0 {
		return nil, fmt.Errorf("rule table is empty")
	}
	seen := make(map[string]bool)
	for i, r := range f.Rules {
		if r.ID == "" {
			return nil, fmt.Errorf("rule %d: id is required", i)
		}
		if seen[r.ID] {
			return nil, fmt.Errorf("rule %s: duplicate id", r.ID)
		}
		seen[r.ID] = true
		if !KnownStage(r.Result.Stage) {
			return nil, fmt.Errorf("rule %s: unknown stage %q", r.ID, r.Result.Stage)
		}
		for _, group := range [][]detector.SignalType{r.Conditions.Required, r.Conditions.Any, r.Conditions.Exclude} {
			for _, t := range group {
				if !t.Valid() {
					return nil, fmt.Errorf("rule %s: unknown signal type %q", r.ID, t)
				}
			}
		}
		if mc := r.Conditions.MinConfidence; mc != nil && (*mc < 0 || *mc > 1) {
			return nil, fmt.Errorf("rule %s: min_confidence %v outside [0,1]", r.ID, *mc)
		}
	}
	return f.Rules, nil
}
