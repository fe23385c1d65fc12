package hermes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	// SubjectCallCompleted carries finished calls to classify.
	SubjectCallCompleted    = "dealwatch.call.completed"
	// SubjectSlackReaction carries reactions relayed by slack-forwarder.
	SubjectSlackReaction    = "swarm.slack.reaction"
	// SubjectSlackInteraction carries button clicks relayed by slack-gateway.
	SubjectSlackInteraction = "swarm.slack.interaction"
	// SubjectRegistered announces the service on startup.
	SubjectRegistered       = "swarm.agent.dealwatch.registered"

	decisionPrefix = "dealwatch.decision."
	alertPrefix    = "dealwatch.alert."
)

// DecisionSubject is the subject a routed decision is published on, e.g.
// dealwatch.decision.auto_update.
func DecisionSubject(action string) string {
	return decisionPrefix + strings.ToLower(action)
}

// AlertSubject is the subject for alert events, e.g. dealwatch.alert.urgent
// or dealwatch.alert.acknowledged.
func AlertSubject(kind string) string {
	return alertPrefix + strings.ToLower(kind)
}

// DecisionEvent is emitted for every classified call.
type DecisionEvent struct {
	CallID      string   `json:"call_id"`
	RecordID    string   `json:"record_id,omitempty"`
	RuleID      string   `json:"rule_id"`
	Action      string   `json:"action"`
	Stage       string   `json:"stage"`
	Disposition string   `json:"disposition,omitempty"`
	Confidence  float64  `json:"confidence"`
	Flags       []string `json:"flags,omitempty"`
	Applied     bool     `json:"applied"`
	Error       string   `json:"error,omitempty"`
	ConfirmedBy string   `json:"confirmed_by,omitempty"`
	Timestamp   string   `json:"timestamp"`
}

// AlertEvent is emitted when an alert is delivered or acknowledged.
type AlertEvent struct {
	AlertID        string   `json:"alert_id"`
	DealID         string   `json:"deal_id"`
	Priority       string   `json:"priority"`
	Severity       string   `json:"severity"`
	StallScore     float64  `json:"stall_score"`
	Recipients     []string `json:"recipients"`
	Message        string   `json:"message"`
	Acknowledged   bool     `json:"acknowledged"`
	AcknowledgedBy string   `json:"acknowledged_by,omitempty"`
	ExpiresAt      string   `json:"expires_at"`
}

type Client struct {
	conn   *nats.Conn
	subs   []*nats.Subscription
	logger *slog.Logger
}

func NewClient(ctx context.Context, url, token string, logger *slog.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Client{conn: nc, logger: logger}, nil
}

func (c *Client) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return c.conn.Publish(subject, payload)
}

func (c *Client) Subscribe(subject string, handler func(subject string, data []byte)) error {
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	c.subs = append(c.subs, sub)
	c.logger.Info("subscribed", "subject", subject)
	return nil
}

func (c *Client) Close() {
	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	c.conn.Close()
}
