package scoring

import (
	"time"

	"github.com/MikeSquared-Agency/dealwatch/internal/detector"
)

// Observation is one stored stall signal as seen by the deal scorer.
type Observation struct {
	BaseConfidence float64
	Age            time.Duration
	Matches        []detector.PhraseMatch
}

// Config holds the decay horizon and severity bands.
type Config struct {
	HalfLife   time.Duration
	MaxAge     time.Duration
	Thresholds Thresholds
}

// DefaultConfig returns a 48h half-life, 168h max age and 80/60/40 bands.
func DefaultConfig() Config {
	return Config{
		HalfLife:   DefaultHalfLife,
		MaxAge:     DefaultMaxAge,
		Thresholds: DefaultThresholds(),
	}
}

// Valid drops observations past the max age, keeping order.
func (c Config) Valid(obs []Observation) []Observation {
	out := make([]Observation, 0, len(obs))
	for _, o := range obs {
		if !Expired(o.Age, c.MaxAge) {
			out = append(out, o)
		}
	}
	return out
}

// StallScore sums decayed confidence * 30 over valid observations, adds the
// recency bonus of the freshest one and clamps to [0, 100]. Scores are not
// normalised by count.
func (c Config) StallScore(obs []Observation) float64 {
	valid := c.Valid(obs)
	if len(valid) == 0 {
		return 0
	}
	score := 0.0
	latest := valid[0].Age
	for _, o := range valid {
		score += Decay(o.BaseConfidence, o.Age, c.HalfLife) * SignalScoreWeight
		if o.Age < latest {
			latest = o.Age
		}
	}
	return ClampScore(score + RecencyBonus(latest))
}

// PrimaryCategory returns the category with the highest sum of raw match
// confidence. Ties go to the category seen first. Empty input returns "".
func PrimaryCategory(obs []Observation) detector.Category {
	sums := make(map[detector.Category]float64)
	var order []detector.Category
	for _, o := range obs {
		for _, m := range o.Matches {
			if _, ok := sums[m.Category]; !ok {
				order = append(order, m.Category)
			}
			sums[m.Category] += m.Confidence
		}
	}
	var best detector.Category
	bestSum := -1.0
	for _, cat := range order {
		if sums[cat] > bestSum {
			best, bestSum = cat, sums[cat]
		}
	}
	return best
}
