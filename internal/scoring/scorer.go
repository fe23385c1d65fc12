package scoring

import (
	"math"
	"time"

	"github.com/MikeSquared-Agency/dealwatch/internal/detector"
)

const (
	DefaultHalfLife = 48 * time.Hour
	DefaultMaxAge   = 168 * time.Hour

	// MaxStrength caps the per-document aggregate strength.
	MaxStrength = 10.0
	// MaxStallScore caps the deal-level stall score.
	MaxStallScore = 100.0
	// SignalScoreWeight converts one decayed confidence into score points.
	SignalScoreWeight = 30.0
)

// Decay applies half-life decay: base * 0.5^(age/halfLife).
// Non-positive ages and half-lives return base unchanged.
func Decay(base float64, age, halfLife time.Duration) float64 {
	if age <= 0 || halfLife <= 0 {
		return base
	}
	return base * math.Pow(0.5, age.Hours()/halfLife.Hours())
}

// Expired reports whether a signal of the given age is past maxAge and must be
// left out of scoring. A non-positive maxAge never expires.
func Expired(age, maxAge time.Duration) bool {
	return maxAge > 0 && age > maxAge
}

// Strength scores a document's matches on a 0-10 scale: the best match
// dominates, each corroborating match adds 0.5 up to three of them.
func Strength(matches []detector.PhraseMatch) float64 {
	if len(matches) == 0 {
		return 0
	}
	best := 0.0
	for _, m := range matches {
		best = math.Max(best, m.Confidence)
	}
	bonus := float64(min(len(matches)-1, 3)) * 0.5
	return math.Min(MaxStrength, best*8+bonus)
}

// RecencyBonus rewards deals whose latest signal is fresh.
func RecencyBonus(latestAge time.Duration) float64 {
	switch {
	case latestAge < 24*time.Hour:
		return 10
	case latestAge < 48*time.Hour:
		return 5
	default:
		return 0
	}
}

// ClampScore bounds a stall score to [0, 100].
func ClampScore(score float64) float64 {
	return math.Max(0, math.Min(MaxStallScore, score))
}

// Clamp bounds a confidence to [0, 1].
func Clamp(v float64) float64 {
	if v < 0.0 {
		return 0.0
	}
	if v > 1.0 {
		return 1.0
	}
	return v
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
