package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/dealwatch/internal/alerts"
	"github.com/MikeSquared-Agency/dealwatch/internal/rules"
)

const defaultPostMessageURL = "https://slack.com/api/chat.postMessage"

type Poster struct {
	token   string
	channel string
	client  *http.Client
	logger  *slog.Logger
	apiURL  string
}

func NewPoster(token, channel string, logger *slog.Logger) *Poster {
	return &Poster{
		token:   token,
		channel: channel,
		client:  &http.Client{Timeout: 10 * time.Second},
		apiURL:  defaultPostMessageURL,
		logger:  logger,
	}
}

// ConfirmationRequest is a proposed CRM change waiting for a human.
type ConfirmationRequest struct {
	ID            string
	CallID        string
	RecordID      string
	RecordName    string
	CurrentStage  rules.Stage
	ProposedStage rules.Stage
	Disposition   rules.Disposition
	RuleID        string
	Confidence    float64
	Reasoning     string
	Tasks         []string
}

// PostConfirmationRequest posts a proposed change for review. Returns the
// message timestamp (ts) used to match reactions.
func (p *Poster) PostConfirmationRequest(ctx context.Context, req ConfirmationRequest) (string, error) {
	var buttons []button
	if req.ID != "" {
		buttons = []button{
			{label: "Apply", actionID: ActionConfirm + req.ID, style: "primary"},
			{label: "Reject", actionID: ActionReject + req.ID, style: "danger"},
		}
	}
	ts, err := p.post(ctx, formatConfirmationMessage(req), "React: :+1: apply | :-1: reject", buttons...)
	if err != nil {
		return "", err
	}
	p.logger.Info("posted confirmation request to slack", "ts", ts, "call_id", req.CallID, "record_id", req.RecordID)
	return ts, nil
}

// PostAlert posts a stall alert. Returns the message ts.
func (p *Poster) PostAlert(ctx context.Context, a *alerts.Alert) (string, error) {
	ts, err := p.post(ctx, formatAlertMessage(a), "React: :white_check_mark: acknowledge",
		button{label: "Acknowledge", actionID: ActionAcknowledge + a.ID})
	if err != nil {
		return "", err
	}
	p.logger.Info("posted alert to slack", "ts", ts, "alert_id", a.ID, "deal_id", a.DealID)
	return ts, nil
}

// button is an interactive element whose action_id HandleInteraction
// understands.
type button struct {
	label    string
	actionID string
	style    string
}

func (b button) block() map[string]any {
	el := map[string]any{
		"type":      "button",
		"action_id": b.actionID,
		"text":      map[string]any{"type": "plain_text", "text": b.label},
	}
	if b.style != "" {
		el["style"] = b.style
	}
	return el
}

func (p *Poster) post(ctx context.Context, text, hint string, buttons ...button) (string, error) {
	blocks := []map[string]any{
		{"type": "section", "text": map[string]any{"type": "mrkdwn", "text": text}},
		{"type": "context", "elements": []map[string]any{{"type": "mrkdwn", "text": hint}}},
	}
	if len(buttons) > 0 {
		elements := make([]map[string]any, len(buttons))
		for i, b := range buttons {
			elements[i] = b.block()
		}
		blocks = append(blocks, map[string]any{"type": "actions", "elements": elements})
	}

	var resp struct {
		OK    bool   `json:"ok"`
		TS    string `json:"ts"`
		Error string `json:"error,omitempty"`
	}
	if err := p.call(ctx, map[string]any{"channel": p.channel, "text": text, "blocks": blocks}, &resp); err != nil {
		return "", err
	}
	if !resp.OK {
		return "", fmt.Errorf("slack error: %s", resp.Error)
	}
	return resp.TS, nil
}

// PostThread posts a threaded reply to a message. An empty threadTS posts
// to the channel itself.
func (p *Poster) PostThread(ctx context.Context, threadTS, text string) error {
	var resp struct {
		OK    bool   `json:"ok"`
		Error string `json:"error,omitempty"`
	}
	payload := map[string]any{"channel": p.channel, "text": text}
	if threadTS != "" {
		payload["thread_ts"] = threadTS
	}
	if err := p.call(ctx, payload, &resp); err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("slack thread reply: %s", resp.Error)
	}
	return nil
}

// call sends one chat.postMessage request and decodes the reply into out.
func (p *Poster) call(ctx context.Context, payload map[string]any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("slack post: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parse slack response: %w", err)
	}
	return nil
}

func formatConfirmationMessage(req ConfirmationRequest) string {
	var sb strings.Builder

	name := req.RecordName
	if name == "" {
		name = req.RecordID
	}
	fmt.Fprintf(&sb, "*Confirm CRM update for %s* (call %s)\n", name, req.CallID)
	fmt.Fprintf(&sb, "*Stage:* %s → %s\n", stageOrUnknown(req.CurrentStage), req.ProposedStage)
	if req.Disposition != "" {
		fmt.Fprintf(&sb, "*Disposition:* %s\n", req.Disposition)
	}
	fmt.Fprintf(&sb, "*Rule:* %s | Confidence: %.2f\n", req.RuleID, req.Confidence)
	if req.Reasoning != "" {
		fmt.Fprintf(&sb, "_%s_\n", req.Reasoning)
	}
	if len(req.Tasks) > 0 {
		sb.WriteString("*Tasks:*\n")
		for i, task := range req.Tasks {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, task)
		}
	}
	return sb.String()
}

var priorityEmoji = map[alerts.Priority]string{
	alerts.PriorityUrgent: ":rotating_light:",
	alerts.PriorityHigh:   ":warning:",
	alerts.PriorityMedium: ":hourglass_flowing_sand:",
	alerts.PriorityLow:    ":information_source:",
}

func formatAlertMessage(a *alerts.Alert) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s *%s stall alert* for deal %s\n", priorityEmoji[a.Priority], a.Priority, a.DealID)
	sb.WriteString(a.Message)
	sb.WriteString("\n")
	if len(a.Recipients) > 0 {
		mentions := make([]string, len(a.Recipients))
		for i, r := range a.Recipients {
			mentions[i] = "<@" + r + ">"
		}
		fmt.Fprintf(&sb, "*For:* %s\n", strings.Join(mentions, " "))
	}
	if actions := a.StallStatus.RecommendedActions; len(actions) > 0 {
		sb.WriteString("*Next steps:*\n")
		for _, action := range actions {
			fmt.Fprintf(&sb, "• %s\n", action)
		}
	}
	return sb.String()
}

func stageOrUnknown(s rules.Stage) string {
	if s == "" {
		return "unknown"
	}
	return string(s)
}
