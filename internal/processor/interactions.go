package processor

import (
	"context"

	"github.com/MikeSquared-Agency/dealwatch/internal/slack"
)

// HandleInteraction processes button clicks relayed by slack-gateway. It is
// the button counterpart of HandleReaction.
func (p *Processor) HandleInteraction(subject string, data []byte) {
	in, ok, err := slack.ParseInteraction(data)
	if err != nil {
		p.logger.Warn("failed to parse interaction event", "subject", subject, "error", err)
		return
	}
	if !ok {
		return // not ours
	}

	ctx := context.Background()
	switch in.Verdict {
	case slack.VerdictConfirmed:
		_, err = p.Confirm(ctx, in.TargetID, in.Actor)
	case slack.VerdictRejected:
		_, err = p.Reject(ctx, in.TargetID, in.Actor)
	case slack.VerdictAcknowledged:
		_, err = p.AcknowledgeAlert(ctx, in.TargetID, in.Actor)
	}
	if err != nil {
		p.logger.Error("interaction failed", "verdict", in.Verdict, "id", in.TargetID, "user", in.Actor, "error", err)
		return
	}
	p.logger.Info("interaction captured", "verdict", in.Verdict, "id", in.TargetID, "user", in.Actor)
}
