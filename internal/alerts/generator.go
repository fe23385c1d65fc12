package alerts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/dealwatch/internal/apperr"
	"github.com/MikeSquared-Agency/dealwatch/internal/metrics"
	"github.com/MikeSquared-Agency/dealwatch/internal/stall"
)

const (
	DefaultWindow     = 24 * time.Hour
	DefaultExpiration = 72 * time.Hour
)

// Config controls suppression, expiry and the channels new alerts target.
type Config struct {
	Window     time.Duration
	Expiration time.Duration
	Channels   []string
}

func DefaultConfig() Config {
	return Config{Window: DefaultWindow, Expiration: DefaultExpiration, Channels: []string{"slack", "nats"}}
}

// Generator creates, delivers, acknowledges and expires alerts.
type Generator struct {
	store    Store
	channels map[string]Channel
	cfg      Config
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time

	// mu makes the suppression check and the insert one step.
	mu sync.Mutex
}

// NewGenerator registers channels by name. Configured channel names with no
// registered Channel are dropped from new alerts.
func NewGenerator(store Store, cfg Config, logger *slog.Logger, channels ...Channel) *Generator {
	g := &Generator{
		store:    store,
		channels: make(map[string]Channel, len(channels)),
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
	for _, c := range channels {
		g.channels[c.Name()] = c
	}
	return g
}

func (g *Generator) SetMetrics(m *metrics.Metrics)  { g.metrics = m }
func (g *Generator) SetClock(now func() time.Time) { g.now = now }

// Generate returns nil when the deal is not stalled or already has an active
// alert. Otherwise it stores and returns a new undelivered alert.
func (g *Generator) Generate(ctx context.Context, status stall.Status, deal stall.Deal) (*Alert, error) {
	if !status.IsStalled {
		return nil, nil
	}
	dealID := status.DealID
	if dealID == "" {
		dealID = deal.ID
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now().UTC()
	existing, err := g.store.ListAlerts(ctx, dealID)
	if err != nil {
		return nil, fmt.Errorf("list alerts for deal %s: %w", dealID, err)
	}
	for _, a := range existing {
		if a.Active(now, g.cfg.Window) {
			g.logger.Debug("alert suppressed", "deal_id", dealID, "active_alert", a.ID)
			return nil, nil
		}
	}

	priority := PriorityFor(status.Severity)
	a := Alert{
		ID:           uuid.New().String(),
		DealID:       dealID,
		Priority:     priority,
		Recipients:   Recipients(priority, deal),
		Channels:     g.enabledChannels(),
		DeliveredVia: []string{},
		Message:      Message(priority, status, deal, now),
		CreatedAt:    now,
		ExpiresAt:    now.Add(g.cfg.Expiration),
		StallStatus:  status,
	}
	if err := g.store.CreateAlert(ctx, a); err != nil {
		return nil, fmt.Errorf("store alert: %w", err)
	}
	g.metrics.IncAlert(string(priority))
	g.logger.Info("alert generated", "alert_id", a.ID, "deal_id", dealID, "priority", priority, "recipients", a.Recipients)
	return &a, nil
}

// Deliver tries every channel the alert has not reached yet. Each channel is
// attempted even if another fails. Successful channels are recorded on the
// alert; failures come back joined and wrap apperr.ErrDelivery. Acknowledged
// and expired alerts are skipped. Channels are called without holding any
// lock, so a channel may acknowledge the alert it is delivering.
func (g *Generator) Deliver(ctx context.Context, alertID string) (Alert, error) {
	a, err := g.store.GetAlert(ctx, alertID)
	if err != nil {
		return Alert{}, err
	}
	now := g.now().UTC()
	if a.Acknowledged || !now.Before(a.ExpiresAt) {
		g.logger.Debug("alert delivery skipped", "alert_id", a.ID, "acknowledged", a.Acknowledged)
		return a, nil
	}

	var (
		errs []error
		sent []string
	)
	for _, name := range a.Channels {
		if a.Delivered(name) {
			continue
		}
		ch, ok := g.channels[name]
		if !ok {
			errs = append(errs, fmt.Errorf("channel %s not registered: %w", name, apperr.ErrDelivery))
			g.metrics.IncDelivery(name, false)
			continue
		}
		snapshot := a
		if err := ch.Deliver(ctx, &snapshot); err != nil {
			g.logger.Warn("alert delivery failed", "alert_id", a.ID, "channel", name, "error", err)
			errs = append(errs, fmt.Errorf("channel %s: %w: %w", name, apperr.ErrDelivery, err))
			g.metrics.IncDelivery(name, false)
			continue
		}
		sent = append(sent, name)
		g.metrics.IncDelivery(name, true)
	}

	if len(sent) > 0 {
		stored, err := g.store.MarkDelivered(ctx, a.ID, sent)
		if err != nil {
			return a, fmt.Errorf("record delivery: %w", err)
		}
		a = stored
		g.logger.Info("alert delivered", "alert_id", a.ID, "via", sent)
	}
	return a, errors.Join(errs...)
}

// Acknowledge marks the alert handled. Acknowledging twice keeps the first
// actor and time.
func (g *Generator) Acknowledge(ctx context.Context, alertID, actor string) (Alert, error) {
	a, changed, err := g.store.AcknowledgeAlert(ctx, alertID, actor, g.now().UTC())
	if err != nil {
		return Alert{}, fmt.Errorf("acknowledge alert: %w", err)
	}
	if changed {
		g.metrics.IncAcknowledged()
		g.logger.Info("alert acknowledged", "alert_id", a.ID, "deal_id", a.DealID, "actor", actor)
	}
	return a, nil
}

// Get returns one alert.
func (g *Generator) Get(ctx context.Context, alertID string) (Alert, error) {
	return g.store.GetAlert(ctx, alertID)
}

// ForDeal lists a deal's alerts.
func (g *Generator) ForDeal(ctx context.Context, dealID string) ([]Alert, error) {
	return g.store.ListAlerts(ctx, dealID)
}

// CleanupExpired deletes alerts past their expiry and returns the count.
func (g *Generator) CleanupExpired(ctx context.Context, now time.Time) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, err := g.store.DeleteExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("cleanup expired alerts: %w", err)
	}
	g.metrics.AddExpired(n)
	if n > 0 {
		g.logger.Info("expired alerts removed", "count", n)
	}
	return n, nil
}

func (g *Generator) enabledChannels() []string {
	out := make([]string, 0, len(g.cfg.Channels))
	for _, name := range g.cfg.Channels {
		if _, ok := g.channels[name]; ok {
			out = append(out, name)
		}
	}
	return out
}
