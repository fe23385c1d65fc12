package scoring

import (
	"math"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/dealwatch/internal/detector"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestDecay(t *testing.T) {
	tests := []struct {
		name string
		base float64
		age  time.Duration
		want float64
	}{
		{"zero age keeps base", 0.8, 0, 0.8},
		{"one half-life halves", 0.8, 48 * time.Hour, 0.4},
		{"two half-lives quarter", 0.8, 96 * time.Hour, 0.2},
		{"negative age keeps base", 0.8, -time.Hour, 0.8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decay(tt.base, tt.age, DefaultHalfLife)
			if !approx(got, tt.want) {
				t.Errorf("Decay(%v, %v) = %v, want %v", tt.base, tt.age, got, tt.want)
			}
		})
	}
}

func TestDecay_MonotonicNonIncreasing(t *testing.T) {
	prev := Decay(0.9, 0, DefaultHalfLife)
	for h := 1; h <= 400; h++ {
		cur := Decay(0.9, time.Duration(h)*time.Hour, DefaultHalfLife)
		if cur > prev {
			t.Fatalf("decay increased at %dh: %v > %v", h, cur, prev)
		}
		prev = cur
	}
}

func TestExpired(t *testing.T) {
	if Expired(167*time.Hour, DefaultMaxAge) {
		t.Error("167h should not be expired")
	}
	if !Expired(169*time.Hour, DefaultMaxAge) {
		t.Error("169h should be expired")
	}
	if Expired(10000*time.Hour, 0) {
		t.Error("zero max age never expires")
	}
}

func TestStrength(t *testing.T) {
	m := func(c float64) detector.PhraseMatch { return detector.PhraseMatch{Confidence: c} }

	tests := []struct {
		name    string
		matches []detector.PhraseMatch
		want    float64
	}{
		{"no matches", nil, 0},
		{"single match", []detector.PhraseMatch{m(0.7)}, 5.6},
		{"two matches", []detector.PhraseMatch{m(0.5), m(0.7)}, 6.1},
		{"bonus capped at three", []detector.PhraseMatch{m(0.7), m(0.1), m(0.1), m(0.1), m(0.1), m(0.1)}, 7.1},
		{"maximum bonus", []detector.PhraseMatch{m(1), m(1), m(1), m(1)}, 9.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Strength(tt.matches)
			if !approx(got, tt.want) {
				t.Errorf("Strength = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRecencyBonus(t *testing.T) {
	tests := []struct {
		age  time.Duration
		want float64
	}{
		{time.Hour, 10},
		{23 * time.Hour, 10},
		{24 * time.Hour, 5},
		{47 * time.Hour, 5},
		{48 * time.Hour, 0},
	}
	for _, tt := range tests {
		if got := RecencyBonus(tt.age); got != tt.want {
			t.Errorf("RecencyBonus(%v) = %v, want %v", tt.age, got, tt.want)
		}
	}
}

func TestSeverityFor(t *testing.T) {
	th := DefaultThresholds()
	tests := []struct {
		score   float64
		want    Severity
		stalled bool
	}{
		{0, SeverityLow, false},
		{39.9, SeverityLow, false},
		{40, SeverityMedium, true},
		{60, SeverityHigh, true},
		{79.99, SeverityHigh, true},
		{80, SeverityCritical, true},
		{100, SeverityCritical, true},
	}
	for _, tt := range tests {
		if got := th.SeverityFor(tt.score); got != tt.want {
			t.Errorf("SeverityFor(%v) = %s, want %s", tt.score, got, tt.want)
		}
		if got := th.IsStalled(tt.score); got != tt.stalled {
			t.Errorf("IsStalled(%v) = %v, want %v", tt.score, got, tt.stalled)
		}
	}
}

func TestClampAndRound(t *testing.T) {
	if ClampScore(-5) != 0 || ClampScore(150) != 100 || ClampScore(42) != 42 {
		t.Error("ClampScore bounds wrong")
	}
	if Clamp(1.2) != 1 || Clamp(-0.2) != 0 {
		t.Error("Clamp bounds wrong")
	}
	if Round2(0.8349) != 0.83 || Round2(0.836) != 0.84 {
		t.Errorf("Round2 wrong: %v %v", Round2(0.8349), Round2(0.836))
	}
}
