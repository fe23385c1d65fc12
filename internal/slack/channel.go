package slack

import (
	"context"

	"github.com/MikeSquared-Agency/dealwatch/internal/alerts"
)

// AlertChannel delivers alerts as Slack messages.
type AlertChannel struct {
	poster   *Poster
	onPosted func(alertID, ts string)
}

// NewAlertChannel wraps p. onPosted, if set, receives the message ts of
// every delivered alert so reactions can be traced back to it.
func NewAlertChannel(p *Poster, onPosted func(alertID, ts string)) *AlertChannel {
	return &AlertChannel{poster: p, onPosted: onPosted}
}

func (c *AlertChannel) Name() string { return "slack" }

func (c *AlertChannel) Deliver(ctx context.Context, a *alerts.Alert) error {
	ts, err := c.poster.PostAlert(ctx, a)
	if err != nil {
		return err
	}
	if c.onPosted != nil {
		c.onPosted(a.ID, ts)
	}
	return nil
}
