package alerts

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/dealwatch/internal/apperr"
	"github.com/MikeSquared-Agency/dealwatch/internal/detector"
	"github.com/MikeSquared-Agency/dealwatch/internal/scoring"
	"github.com/MikeSquared-Agency/dealwatch/internal/stall"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeChannel struct {
	name  string
	err   error
	calls int
}

func (c *fakeChannel) Name() string { return c.name }

func (c *fakeChannel) Deliver(context.Context, *Alert) error {
	c.calls++
	return c.err
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func stalledStatus(sev scoring.Severity) stall.Status {
	return stall.Status{
		DealID:          "deal-1",
		IsStalled:       true,
		Severity:        sev,
		StallScore:      64,
		PrimaryCategory: detector.CategoryThinking,
		Signals: []stall.Signal{{
			Category: detector.CategoryThinking,
			PhraseMatches: []detector.PhraseMatch{
				{Category: detector.CategoryThinking, MatchedText: "let me think about it", Confidence: 0.7},
			},
		}},
	}
}

var testDeal = stall.Deal{ID: "deal-1", Name: "12 Elm St", RepID: "rep-1", ManagerID: "mgr-1"}

func newTestGenerator(channels ...Channel) (*Generator, *MemoryStore, *clock) {
	c := &clock{t: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	store := NewMemoryStore()
	g := NewGenerator(store, DefaultConfig(), discardLogger(), channels...)
	g.SetClock(c.now)
	return g, store, c
}

func TestGenerate_NotStalled(t *testing.T) {
	g, _, _ := newTestGenerator()
	a, err := g.Generate(context.Background(), stall.Status{DealID: "deal-1"}, testDeal)
	if err != nil || a != nil {
		t.Fatalf("expected no alert, got %+v, %v", a, err)
	}
}

func TestGenerate_Fields(t *testing.T) {
	g, _, c := newTestGenerator(&fakeChannel{name: "slack"}, &fakeChannel{name: "nats"})

	a, err := g.Generate(context.Background(), stalledStatus(scoring.SeverityHigh), testDeal)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if a == nil {
		t.Fatal("expected alert")
	}
	if a.Priority != PriorityHigh {
		t.Errorf("priority = %s", a.Priority)
	}
	if len(a.Recipients) != 2 {
		t.Errorf("recipients = %v, want rep and manager", a.Recipients)
	}
	if len(a.Channels) != 2 || len(a.DeliveredVia) != 0 {
		t.Errorf("channels = %v, delivered = %v", a.Channels, a.DeliveredVia)
	}
	if !a.ExpiresAt.Equal(c.t.Add(DefaultExpiration)) {
		t.Errorf("expires = %v", a.ExpiresAt)
	}
	if !strings.Contains(a.Message, "let me think about it") || !strings.Contains(a.Message, "12 Elm St") {
		t.Errorf("message = %q", a.Message)
	}
}

func TestGenerate_SuppressionAndAcknowledge(t *testing.T) {
	g, _, c := newTestGenerator()
	ctx := context.Background()
	status := stalledStatus(scoring.SeverityMedium)

	first, err := g.Generate(ctx, status, testDeal)
	if err != nil || first == nil {
		t.Fatalf("first alert: %+v, %v", first, err)
	}

	c.t = c.t.Add(2 * time.Hour)
	if dup, _ := g.Generate(ctx, status, testDeal); dup != nil {
		t.Fatal("second alert inside the window should be suppressed")
	}

	if _, err := g.Acknowledge(ctx, first.ID, "rep-1"); err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	second, err := g.Generate(ctx, status, testDeal)
	if err != nil || second == nil {
		t.Fatalf("acknowledged alert should not suppress: %+v, %v", second, err)
	}
}

func TestGenerate_WindowElapsed(t *testing.T) {
	g, _, c := newTestGenerator()
	ctx := context.Background()
	status := stalledStatus(scoring.SeverityMedium)

	g.Generate(ctx, status, testDeal)
	c.t = c.t.Add(DefaultWindow)
	if a, _ := g.Generate(ctx, status, testDeal); a == nil {
		t.Error("expected a new alert once the window has passed")
	}
}

func TestRecipients(t *testing.T) {
	noManager := stall.Deal{RepID: "rep-1"}
	tests := []struct {
		name string
		p    Priority
		deal stall.Deal
		want int
	}{
		{"urgent with manager", PriorityUrgent, testDeal, 2},
		{"urgent without manager", PriorityUrgent, noManager, 1},
		{"high with manager", PriorityHigh, testDeal, 2},
		{"high without manager", PriorityHigh, noManager, 1},
		{"medium", PriorityMedium, testDeal, 1},
		{"low", PriorityLow, testDeal, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Recipients(tt.p, tt.deal); len(got) != tt.want {
				t.Errorf("Recipients = %v, want %d", got, tt.want)
			}
		})
	}
}

func TestPriorityFor(t *testing.T) {
	tests := map[scoring.Severity]Priority{
		scoring.SeverityCritical: PriorityUrgent,
		scoring.SeverityHigh:     PriorityHigh,
		scoring.SeverityMedium:   PriorityMedium,
		scoring.SeverityLow:      PriorityLow,
	}
	for sev, want := range tests {
		if got := PriorityFor(sev); got != want {
			t.Errorf("PriorityFor(%s) = %s, want %s", sev, got, want)
		}
	}
}

func TestDeliver_PartialFailure(t *testing.T) {
	slackCh := &fakeChannel{name: "slack", err: errors.New("rate limited")}
	natsCh := &fakeChannel{name: "nats"}
	g, _, _ := newTestGenerator(slackCh, natsCh)
	ctx := context.Background()

	a, _ := g.Generate(ctx, stalledStatus(scoring.SeverityHigh), testDeal)

	got, err := g.Deliver(ctx, a.ID)
	if !errors.Is(err, apperr.ErrDelivery) {
		t.Fatalf("expected ErrDelivery, got %v", err)
	}
	if natsCh.calls != 1 {
		t.Error("nats channel was not attempted after slack failed")
	}
	if len(got.DeliveredVia) != 1 || got.DeliveredVia[0] != "nats" {
		t.Errorf("delivered via = %v", got.DeliveredVia)
	}

	slackCh.err = nil
	got, err = g.Deliver(ctx, a.ID)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if natsCh.calls != 1 {
		t.Error("already delivered channel was retried")
	}
	if len(got.DeliveredVia) != 2 {
		t.Errorf("delivered via = %v", got.DeliveredVia)
	}
}

func TestDeliver_SkipsAcknowledged(t *testing.T) {
	ch := &fakeChannel{name: "slack"}
	g, _, _ := newTestGenerator(ch)
	ctx := context.Background()

	a, _ := g.Generate(ctx, stalledStatus(scoring.SeverityHigh), testDeal)
	g.Acknowledge(ctx, a.ID, "rep-1")

	if _, err := g.Deliver(ctx, a.ID); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if ch.calls != 0 {
		t.Error("acknowledged alert was delivered")
	}
}

// ackingChannel acknowledges the alert while it is being delivered, the way a
// quick Slack reaction lands before the remaining channels finish.
type ackingChannel struct {
	name string
	g    *Generator
}

func (c *ackingChannel) Name() string { return c.name }

func (c *ackingChannel) Deliver(ctx context.Context, a *Alert) error {
	_, err := c.g.Acknowledge(ctx, a.ID, "rep-1")
	return err
}

func TestDeliver_KeepsAcknowledgmentMadeDuringDelivery(t *testing.T) {
	slackCh := &ackingChannel{name: "slack"}
	natsCh := &fakeChannel{name: "nats"}
	g, _, c := newTestGenerator(slackCh, natsCh)
	slackCh.g = g
	ctx := context.Background()
	status := stalledStatus(scoring.SeverityHigh)

	a, _ := g.Generate(ctx, status, testDeal)
	got, err := g.Deliver(ctx, a.ID)
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if !got.Acknowledged || got.AcknowledgedBy != "rep-1" || len(got.DeliveredVia) != 2 {
		t.Errorf("returned alert = %+v", got)
	}

	stored, _ := g.Get(ctx, a.ID)
	if !stored.Acknowledged || stored.AcknowledgedBy != "rep-1" {
		t.Fatalf("delivery overwrote the acknowledgment: %+v", stored)
	}
	if len(stored.DeliveredVia) != 2 {
		t.Errorf("delivered via = %v", stored.DeliveredVia)
	}

	c.t = c.t.Add(time.Hour)
	next, err := g.Generate(ctx, status, testDeal)
	if err != nil || next == nil {
		t.Errorf("acknowledged alert must not suppress a new one: %+v, %v", next, err)
	}
}

func TestMemoryStore_MarkDeliveredMerges(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	store.CreateAlert(ctx, Alert{ID: "a1", DealID: "d1", DeliveredVia: []string{"nats"}})

	got, err := store.MarkDelivered(ctx, "a1", []string{"nats", "slack"})
	if err != nil {
		t.Fatalf("MarkDelivered: %v", err)
	}
	if len(got.DeliveredVia) != 2 || got.DeliveredVia[1] != "slack" {
		t.Errorf("delivered via = %v", got.DeliveredVia)
	}
	if _, err := store.MarkDelivered(ctx, "missing", []string{"slack"}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAcknowledge_KeepsFirstActor(t *testing.T) {
	g, _, c := newTestGenerator()
	ctx := context.Background()
	a, _ := g.Generate(ctx, stalledStatus(scoring.SeverityHigh), testDeal)

	first, _ := g.Acknowledge(ctx, a.ID, "rep-1")
	c.t = c.t.Add(time.Hour)
	second, _ := g.Acknowledge(ctx, a.ID, "mgr-1")

	if second.AcknowledgedBy != "rep-1" || !second.AcknowledgedAt.Equal(*first.AcknowledgedAt) {
		t.Errorf("second acknowledgment overwrote the first: %+v", second)
	}
	if _, err := g.Acknowledge(ctx, "missing", "x"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCleanupExpired(t *testing.T) {
	g, store, c := newTestGenerator()
	ctx := context.Background()

	old, _ := g.Generate(ctx, stalledStatus(scoring.SeverityHigh), testDeal)
	other := stalledStatus(scoring.SeverityHigh)
	other.DealID = "deal-2"
	c.t = c.t.Add(48 * time.Hour)
	fresh, _ := g.Generate(ctx, other, stall.Deal{ID: "deal-2", RepID: "rep-2"})

	n, err := g.CleanupExpired(ctx, c.t.Add(30*time.Hour))
	if err != nil {
		t.Fatalf("CleanupExpired: %v", err)
	}
	if n != 1 {
		t.Fatalf("removed %d, want 1", n)
	}
	if _, err := store.GetAlert(ctx, old.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Error("expired alert still stored")
	}
	if _, ok := store.byDeal["deal-1"]; ok {
		t.Error("deal index not pruned")
	}
	if _, err := store.GetAlert(ctx, fresh.ID); err != nil {
		t.Errorf("fresh alert removed: %v", err)
	}
}

func TestMessage_Templates(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	deal := testDeal
	deal.LastActivityAt = now.Add(-5 * 24 * time.Hour)

	urgent := Message(PriorityUrgent, stalledStatus(scoring.SeverityCritical), deal, now)
	if !strings.HasPrefix(urgent, "URGENT:") || !strings.Contains(urgent, "5 days") {
		t.Errorf("urgent message = %q", urgent)
	}
	low := Message(PriorityLow, stalledStatus(scoring.SeverityLow), stall.Deal{}, now)
	if !strings.Contains(low, "deal-1") || !strings.Contains(low, "No engagement on record") {
		t.Errorf("low message = %q", low)
	}
}
