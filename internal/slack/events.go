package slack

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MikeSquared-Agency/dealwatch/internal/apperr"
)

// Verdict is what a reviewer means by a reaction or button.
type Verdict string

const (
	VerdictConfirmed    Verdict = "confirmed"
	VerdictRejected     Verdict = "rejected"
	VerdictAcknowledged Verdict = "acknowledged"
	VerdictSkipped      Verdict = "skipped"
	VerdictUnknown      Verdict = "unknown"
)

// ParseReaction converts a Slack reaction emoji name, with or without
// surrounding colons, to a verdict.
func ParseReaction(reaction string) Verdict {
	switch strings.Trim(reaction, ":") {
	case "+1", "thumbsup":
		return VerdictConfirmed
	case "-1", "thumbsdown":
		return VerdictRejected
	case "white_check_mark", "heavy_check_mark", "ballot_box_with_check":
		return VerdictAcknowledged
	case "shrug":
		return VerdictSkipped
	default:
		return VerdictUnknown
	}
}

// ReactionEvent is a reaction relayed by slack-forwarder on swarm.slack.reaction.
type ReactionEvent struct {
	Reaction  string
	UserID    string
	Channel   string
	MessageTS string
}

func (e ReactionEvent) Verdict() Verdict { return ParseReaction(e.Reaction) }

// ParseReactionEvent unwraps slack-forwarder's metadata envelope. A reaction
// without a message ts cannot be traced to anything and is rejected.
func ParseReactionEvent(data []byte) (ReactionEvent, error) {
	var wrapper struct {
		Metadata map[string]string `json:"metadata"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return ReactionEvent{}, fmt.Errorf("parse reaction wrapper: %w", err)
	}
	evt := ReactionEvent{
		Reaction:  strings.Trim(wrapper.Metadata["text"], ":"),
		UserID:    wrapper.Metadata["user_id"],
		Channel:   wrapper.Metadata["channel_id"],
		MessageTS: wrapper.Metadata["message_ts"],
	}
	if evt.MessageTS == "" {
		return ReactionEvent{}, fmt.Errorf("reaction has no message_ts: %w", apperr.ErrValidation)
	}
	return evt, nil
}

// InteractionEvent matches the slack-gateway interaction event format.
type InteractionEvent struct {
	ActionID  string `json:"action_id"`
	Value     string `json:"value"`
	UserID    string `json:"user_id"`
	UserName  string `json:"user_name"`
	ChannelID string `json:"channel_id"`
	MessageTS string `json:"message_ts"`
	TriggerID string `json:"trigger_id"`
}

// Button action id prefixes. The suffix is the confirmation or alert id.
const (
	ActionConfirm     = "dealwatch_confirm:"
	ActionReject      = "dealwatch_reject:"
	ActionAcknowledge = "dealwatch_ack:"
)

// Interaction is a dealwatch button click resolved to its verdict and target.
type Interaction struct {
	Verdict  Verdict
	TargetID string
	Actor    string
}

// ParseInteraction decodes a slack-gateway event. ok is false for buttons
// that belong to someone else.
func ParseInteraction(data []byte) (in Interaction, ok bool, err error) {
	var evt InteractionEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return Interaction{}, false, fmt.Errorf("parse interaction: %w", err)
	}

	in.Actor = evt.UserName
	if in.Actor == "" {
		in.Actor = evt.UserID
	}
	for prefix, v := range map[string]Verdict{
		ActionConfirm:     VerdictConfirmed,
		ActionReject:      VerdictRejected,
		ActionAcknowledge: VerdictAcknowledged,
	} {
		if id, found := strings.CutPrefix(evt.ActionID, prefix); found {
			if id == "" {
				return Interaction{}, false, fmt.Errorf("action %q has no target id: %w", evt.ActionID, apperr.ErrValidation)
			}
			in.Verdict, in.TargetID = v, id
			return in, true, nil
		}
	}
	return Interaction{}, false, nil
}
