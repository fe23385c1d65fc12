package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.IncDecision("AUTO_UPDATE", "voicemail")
	m.IncDelivery("slack", false)
	m.AddExpired(3)
	m.ObserveStallScore(50)
}

func TestCounters(t *testing.T) {
	m := New()
	m.IncDecision("AUTO_UPDATE", "voicemail")
	m.IncDecision("AUTO_UPDATE", "voicemail")
	m.IncDelivery("slack", true)
	m.IncDelivery("nats", false)
	m.AddExpired(2)

	if got := testutil.ToFloat64(m.Decisions.WithLabelValues("AUTO_UPDATE", "voicemail")); got != 2 {
		t.Errorf("decisions = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.Deliveries.WithLabelValues("nats", "failed")); got != 1 {
		t.Errorf("failed deliveries = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Expired); got != 2 {
		t.Errorf("expired = %v, want 2", got)
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.IncRollback()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "dealwatch_rollbacks_total 1") {
		t.Errorf("rollback counter missing from output:\n%s", rec.Body.String())
	}
}
