package rules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/MikeSquared-Agency/dealwatch/internal/detector"
	"github.com/MikeSquared-Agency/dealwatch/internal/scoring"
)

const (
	// DefaultConfidence is the confidence of the fallback outcome.
	DefaultConfidence = 0.3
	// DefaultConfirmationThreshold is the confidence below which a result
	// needs human confirmation.
	DefaultConfirmationThreshold = 0.8

	corroborationStep = 0.05
	corroborationCap  = 0.15
	priorityFactor    = 0.1
)

// Engine evaluates a priority-ordered rule table against signal sets.
type Engine struct {
	rules        []Rule
	weights      map[detector.SignalType]float64
	strict       bool
	confirmBelow float64
}

// Option configures an Engine.
type Option func(*Engine)

// WithWeights overrides individual signal-type weights.
func WithWeights(overrides map[detector.SignalType]float64) Option {
	return func(e *Engine) {
		for t, w := range overrides {
			e.weights[t] = w
		}
	}
}

// WithStrictMinConfidence makes a min_confidence gate fail when the signal
// set holds none of the rule's required or any-of signals.
func WithStrictMinConfidence(strict bool) Option {
	return func(e *Engine) { e.strict = strict }
}

// WithConfirmationThreshold sets the confidence below which results require
// confirmation.
func WithConfirmationThreshold(threshold float64) Option {
	return func(e *Engine) { e.confirmBelow = threshold }
}

// NewEngine sorts a copy of rules by descending priority. Rules with equal
// priority keep table order. A nil table uses DefaultRules.
func NewEngine(table []Rule, opts ...Option) *Engine {
	if table == nil {
		table = DefaultRules()
	}
	sorted := make([]Rule, len(table))
	copy(sorted, table)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})

	e := &Engine{
		rules:        sorted,
		weights:      DefaultWeights(),
		confirmBelow: DefaultConfirmationThreshold,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Rules returns the evaluation order.
func (e *Engine) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Evaluate returns the outcome of the first satisfied rule, or the default
// outcome when none is.
func (e *Engine) Evaluate(signals []detector.Signal) MappingResult {
	set := indexSignals(signals)

	for _, rule := range e.rules {
		if !e.satisfied(rule.Conditions, set) {
			continue
		}
		relevant := relevantSignals(rule.Conditions, set)
		conf := e.confidence(rule, relevant)

		flags := copyStrings(rule.Result.Flags)
		tasks := copyStrings(rule.Result.SuggestedTasks)
		res := MappingResult{
			RuleID:         rule.ID,
			NewStage:       rule.Result.Stage,
			Disposition:    rule.Result.Disposition,
			Confidence:     conf,
			Flags:          flags,
			SuggestedTasks: tasks,
		}
		res.RequiresConfirmation = conf < e.confirmBelow || res.HasFlag(FlagRequiresConfirmation)
		res.Reasoning = reasoning(rule.ID, relevant, res)
		return res
	}

	return e.fallback(signals)
}

func (e *Engine) fallback(signals []detector.Signal) MappingResult {
	res := MappingResult{
		RuleID:               "default",
		NewStage:             StageWorking,
		Confidence:           DefaultConfidence,
		Flags:                []string{FlagManualReview},
		RequiresConfirmation: true,
		SuggestedTasks:       []string{},
	}
	var b strings.Builder
	b.WriteString("No rule matched")
	if len(signals) > 0 {
		types := make([]string, len(signals))
		for i, s := range signals {
			types[i] = string(s.Type)
		}
		fmt.Fprintf(&b, " signals [%s]", strings.Join(types, ", "))
	}
	fmt.Fprintf(&b, "; defaulting to stage %s; flags: %s", res.NewStage, FlagManualReview)
	res.Reasoning = b.String()
	return res
}

func (e *Engine) satisfied(c Conditions, set map[detector.SignalType]detector.Signal) bool {
	for _, t := range c.Required {
		if _, ok := set[t]; !ok {
			return false
		}
	}
	if len(c.Any) > 0 {
		found := false
		for _, t := range c.Any {
			if _, ok := set[t]; ok {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, t := range c.Exclude {
		if _, ok := set[t]; ok {
			return false
		}
	}
	if c.MinConfidence != nil {
		relevant := relevantSignals(c, set)
		if len(relevant) == 0 {
			return !e.strict
		}
		sum := 0.0
		for _, s := range relevant {
			sum += s.Confidence
		}
		if sum/float64(len(relevant)) < *c.MinConfidence {
			return false
		}
	}
	return true
}

// confidence is the weighted mean of the relevant signals plus corroboration
// and priority bonuses, clamped to 1 and rounded to two decimals.
func (e *Engine) confidence(rule Rule, relevant []detector.Signal) float64 {
	mean := 0.0
	if len(relevant) > 0 {
		var sum, weights float64
		for _, s := range relevant {
			w := e.weight(s.Type)
			sum += s.Confidence * w
			weights += w
		}
		if weights > 0 {
			mean = sum / weights
		}
	}
	corroboration := float64(len(relevant)) * corroborationStep
	if corroboration > corroborationCap {
		corroboration = corroborationCap
	}
	priority := float64(rule.Priority) / 100 * priorityFactor
	return scoring.Round2(scoring.Clamp(mean + corroboration + priority))
}

func (e *Engine) weight(t detector.SignalType) float64 {
	if w, ok := e.weights[t]; ok {
		return w
	}
	return 1.0
}

// indexSignals keys signals by type, keeping the most confident duplicate.
func indexSignals(signals []detector.Signal) map[detector.SignalType]detector.Signal {
	set := make(map[detector.SignalType]detector.Signal, len(signals))
	for _, s := range signals {
		if cur, ok := set[s.Type]; ok && cur.Confidence >= s.Confidence {
			continue
		}
		set[s.Type] = s
	}
	return set
}

// relevantSignals returns present signals named by Required then Any, once each.
func relevantSignals(c Conditions, set map[detector.SignalType]detector.Signal) []detector.Signal {
	seen := make(map[detector.SignalType]bool)
	var out []detector.Signal
	for _, group := range [][]detector.SignalType{c.Required, c.Any} {
		for _, t := range group {
			if seen[t] {
				continue
			}
			if s, ok := set[t]; ok {
				seen[t] = true
				out = append(out, s)
			}
		}
	}
	return out
}

func reasoning(ruleID string, relevant []detector.Signal, res MappingResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Rule %s matched", ruleID)
	if len(relevant) > 0 {
		parts := make([]string, len(relevant))
		for i, s := range relevant {
			if s.Evidence != "" {
				parts[i] = fmt.Sprintf("%s (%.2f, %q)", s.Type, s.Confidence, s.Evidence)
			} else {
				parts[i] = fmt.Sprintf("%s (%.2f)", s.Type, s.Confidence)
			}
		}
		fmt.Fprintf(&b, " on %s", strings.Join(parts, ", "))
	}
	fmt.Fprintf(&b, "; stage %s", res.NewStage)
	if res.Disposition != "" {
		fmt.Fprintf(&b, ", disposition %s", res.Disposition)
	}
	if len(res.Flags) > 0 {
		fmt.Fprintf(&b, "; flags: %s", strings.Join(res.Flags, ", "))
	}
	return b.String()
}

func copyStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
