package scoring

// Severity is the stall severity band of a deal.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Thresholds are the lower score bounds of each severity band.
type Thresholds struct {
	Critical float64
	High     float64
	Medium   float64
}

// DefaultThresholds returns 80/60/40.
func DefaultThresholds() Thresholds {
	return Thresholds{Critical: 80, High: 60, Medium: 40}
}

// SeverityFor maps a stall score to its band.
func (th Thresholds) SeverityFor(score float64) Severity {
	switch {
	case score >= th.Critical:
		return SeverityCritical
	case score >= th.High:
		return SeverityHigh
	case score >= th.Medium:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// IsStalled reports whether score reaches the medium band.
func (th Thresholds) IsStalled(score float64) bool {
	return score >= th.Medium
}
