package hermes

import (
	"context"
	"time"

	"github.com/MikeSquared-Agency/dealwatch/internal/alerts"
)

// Publisher is the part of Client the alert channel needs.
type Publisher interface {
	Publish(subject string, data any) error
}

// AlertChannel delivers alerts as NATS events.
type AlertChannel struct {
	pub Publisher
}

func NewAlertChannel(pub Publisher) *AlertChannel {
	return &AlertChannel{pub: pub}
}

func (c *AlertChannel) Name() string { return "nats" }

func (c *AlertChannel) Deliver(_ context.Context, a *alerts.Alert) error {
	return c.pub.Publish(AlertSubject(string(a.Priority)), NewAlertEvent(a))
}

// NewAlertEvent flattens an alert for publishing.
func NewAlertEvent(a *alerts.Alert) AlertEvent {
	return AlertEvent{
		AlertID:        a.ID,
		DealID:         a.DealID,
		Priority:       string(a.Priority),
		Severity:       string(a.StallStatus.Severity),
		StallScore:     a.StallStatus.StallScore,
		Recipients:     a.Recipients,
		Message:        a.Message,
		Acknowledged:   a.Acknowledged,
		AcknowledgedBy: a.AcknowledgedBy,
		ExpiresAt:      a.ExpiresAt.UTC().Format(time.RFC3339),
	}
}
