package alerts

import (
	"fmt"
	"time"

	"github.com/MikeSquared-Agency/dealwatch/internal/stall"
)

// Recipients is the rep, plus the manager on URGENT alerts or on HIGH alerts
// when the deal has one.
func Recipients(p Priority, deal stall.Deal) []string {
	out := []string{}
	if deal.RepID != "" {
		out = append(out, deal.RepID)
	}
	if deal.ManagerID == "" {
		return out
	}
	if p == PriorityUrgent || p == PriorityHigh {
		out = append(out, deal.ManagerID)
	}
	return out
}

// Message fills the template for p.
func Message(p Priority, status stall.Status, deal stall.Deal, now time.Time) string {
	name := deal.Name
	if name == "" {
		name = status.DealID
	}
	phrase := TopPhrase(status)
	gap := engagement(deal, now)

	switch p {
	case PriorityUrgent:
		return fmt.Sprintf("URGENT: %s is critically stalled (score %.0f). Latest concern: %q. %s. Needs manager attention today.",
			name, status.StallScore, phrase, gap)
	case PriorityHigh:
		return fmt.Sprintf("%s is stalling (score %.0f). Latest concern: %q. %s. Reach out within 48 hours.",
			name, status.StallScore, phrase, gap)
	case PriorityMedium:
		return fmt.Sprintf("%s shows stall signs (score %.0f). Latest concern: %q. %s.",
			name, status.StallScore, phrase, gap)
	default:
		return fmt.Sprintf("%s has early stall signals (score %.0f). %s.", name, status.StallScore, gap)
	}
}

// TopPhrase is the matched text of the most confident match in the primary
// category, or in any category when the primary has none.
func TopPhrase(status stall.Status) string {
	best, bestConf := "", -1.0
	fallback, fallbackConf := "", -1.0
	for _, s := range status.Signals {
		for _, m := range s.PhraseMatches {
			if m.Category == status.PrimaryCategory && m.Confidence > bestConf {
				best, bestConf = m.MatchedText, m.Confidence
			}
			if m.Confidence > fallbackConf {
				fallback, fallbackConf = m.MatchedText, m.Confidence
			}
		}
	}
	if best != "" {
		return best
	}
	if fallback != "" {
		return fallback
	}
	return "none recorded"
}

func engagement(deal stall.Deal, now time.Time) string {
	if deal.LastActivityAt.IsZero() {
		return "No engagement on record"
	}
	days := int(deal.EngagementGap(now).Hours() / 24)
	switch {
	case days <= 0:
		return "Last engagement today"
	case days == 1:
		return "No engagement for 1 day"
	default:
		return fmt.Sprintf("No engagement for %d days", days)
	}
}
