// Package alerts turns stalled deal statuses into deduplicated, expiring
// alerts and delivers them over pluggable channels.
package alerts

import (
	"context"
	"time"

	"github.com/MikeSquared-Agency/dealwatch/internal/scoring"
	"github.com/MikeSquared-Agency/dealwatch/internal/stall"
)

// Priority orders alerts for routing.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// PriorityFor maps a stall severity to an alert priority.
func PriorityFor(s scoring.Severity) Priority {
	switch s {
	case scoring.SeverityCritical:
		return PriorityUrgent
	case scoring.SeverityHigh:
		return PriorityHigh
	case scoring.SeverityMedium:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// Alert is one stall notification. Acknowledged and expired are terminal.
type Alert struct {
	ID             string       `json:"id"`
	DealID         string       `json:"deal_id"`
	Priority       Priority     `json:"priority"`
	Recipients     []string     `json:"recipients"`
	Channels       []string     `json:"channels"`
	DeliveredVia   []string     `json:"delivered_via"`
	Message        string       `json:"message"`
	Acknowledged   bool         `json:"acknowledged"`
	AcknowledgedBy string       `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time   `json:"acknowledged_at,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	ExpiresAt      time.Time    `json:"expires_at"`
	StallStatus    stall.Status `json:"stall_status"`
}

// Active reports whether the alert still blocks new alerts for its deal.
func (a Alert) Active(now time.Time, window time.Duration) bool {
	return !a.Acknowledged && now.Before(a.ExpiresAt) && now.Sub(a.CreatedAt) < window
}

// Delivered reports whether channel already took the alert.
func (a Alert) Delivered(channel string) bool {
	for _, c := range a.DeliveredVia {
		if c == channel {
			return true
		}
	}
	return false
}

// Channel delivers alerts to one destination. Retries are the channel's
// own concern.
type Channel interface {
	Name() string
	Deliver(ctx context.Context, a *Alert) error
}
