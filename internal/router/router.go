// Package router maps a decision confidence to a governance action.
package router

import "fmt"

// Action is what the caller should do with a decision.
type Action string

const (
	ActionAutoUpdate          Action = "AUTO_UPDATE"
	ActionFlagForConfirmation Action = "FLAG_FOR_CONFIRMATION"
	ActionNoAction            Action = "NO_ACTION"
)

// Level is the confidence band a value falls into.
type Level string

const (
	LevelHigh   Level = "HIGH"
	LevelMedium Level = "MEDIUM"
	LevelLow    Level = "LOW"
)

// Config holds the two thresholds and the action toggles.
type Config struct {
	High              float64
	Medium            float64
	AutoUpdateEnabled bool
	FlaggingEnabled   bool
}

// DefaultConfig returns thresholds 0.8/0.5 with both actions enabled.
func DefaultConfig() Config {
	return Config{High: 0.8, Medium: 0.5, AutoUpdateEnabled: true, FlaggingEnabled: true}
}

// Decision is the routed outcome.
type Decision struct {
	Action Action  `json:"action"`
	Level  Level   `json:"confidence_level"`
	Reason string  `json:"reason"`
	Score  float64 `json:"confidence"`
}

// Route picks exactly one action for any confidence. Below the medium
// threshold the answer is always NO_ACTION.
func Route(confidence float64, cfg Config) Decision {
	d := Decision{Score: confidence}
	switch {
	case confidence >= cfg.High:
		d.Level = LevelHigh
		if cfg.AutoUpdateEnabled {
			d.Action = ActionAutoUpdate
			d.Reason = fmt.Sprintf("confidence %.2f >= %.2f, applying automatically", confidence, cfg.High)
		} else {
			d.Action = ActionFlagForConfirmation
			d.Reason = fmt.Sprintf("confidence %.2f is high but auto-update is disabled", confidence)
		}
	case confidence >= cfg.Medium:
		d.Level = LevelMedium
		if cfg.FlaggingEnabled {
			d.Action = ActionFlagForConfirmation
			d.Reason = fmt.Sprintf("confidence %.2f in [%.2f, %.2f), needs confirmation", confidence, cfg.Medium, cfg.High)
		} else {
			d.Action = ActionNoAction
			d.Reason = fmt.Sprintf("confidence %.2f needs confirmation but flagging is disabled", confidence)
		}
	default:
		d.Level = LevelLow
		d.Action = ActionNoAction
		d.Reason = fmt.Sprintf("confidence %.2f below %.2f", confidence, cfg.Medium)
	}
	return d
}
