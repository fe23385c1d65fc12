package stall

import (
	"github.com/MikeSquared-Agency/dealwatch/internal/detector"
	"github.com/MikeSquared-Agency/dealwatch/internal/scoring"
)

var categoryActions = map[detector.Category]string{
	detector.CategoryThinking:             "Book a short decision call and restate the agreed next step",
	detector.CategoryPricingRequest:       "Send pricing with a clear expiry date",
	detector.CategoryCallbackRequest:      "Lock in a specific callback time",
	detector.CategoryStakeholderDelay:     "Ask for an introduction to the other decision makers",
	detector.CategoryBudgetConcern:        "Offer a phased or reduced-scope option",
	detector.CategoryTimingDeferral:       "Agree on a concrete revisit date",
	detector.CategoryCompetitorEvaluation: "Share a comparison and ask what would change their mind",
	detector.CategoryInformationRequest:   "Send the requested material and follow up within two days",
}

var severityActions = map[scoring.Severity]string{
	scoring.SeverityCritical: "Escalate to the sales manager today",
	scoring.SeverityHigh:     "Call the prospect within 48 hours",
	scoring.SeverityMedium:   "Send a value-focused follow-up this week",
}

// RecommendedActions lists the severity action, then the primary category's
// action, then the remaining categories in signal order, without repeats.
func RecommendedActions(primary detector.Category, signals []Signal, severity scoring.Severity) []string {
	out := []string{}
	seen := make(map[string]bool)
	add := func(a string) {
		if a != "" && !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}

	add(severityActions[severity])
	add(categoryActions[primary])
	for _, s := range signals {
		add(categoryActions[s.Category])
	}
	return out
}
