// Package metrics holds the Prometheus collectors for dealwatch. All methods
// are safe on a nil *Metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dealwatch"

type Metrics struct {
	registry *prometheus.Registry

	Decisions     *prometheus.CounterVec
	CRMApplies    *prometheus.CounterVec
	AuditFailures prometheus.Counter
	Rollbacks     prometheus.Counter
	StallScores   prometheus.Histogram
	Alerts        *prometheus.CounterVec
	Deliveries    *prometheus.CounterVec
	Acknowledged  prometheus.Counter
	Expired       prometheus.Counter
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Routed call decisions by action and rule.",
		}, []string{"action", "rule"}),
		CRMApplies: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crm_applies_total",
			Help:      "CRM update attempts by outcome.",
		}, []string{"status"}),
		AuditFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_failures_total",
			Help:      "Audit appends that failed.",
		}),
		Rollbacks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rollbacks_total",
			Help:      "Audit rollbacks performed.",
		}),
		StallScores: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stall_score",
			Help:      "Computed deal stall scores.",
			Buckets:   []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		}),
		Alerts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Alerts generated by priority.",
		}, []string{"priority"}),
		Deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_deliveries_total",
			Help:      "Alert delivery attempts by channel and outcome.",
		}, []string{"channel", "status"}),
		Acknowledged: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_acknowledged_total",
			Help:      "Alerts acknowledged.",
		}),
		Expired: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_expired_total",
			Help:      "Expired alerts removed by cleanup.",
		}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) IncDecision(action, rule string) {
	if m == nil {
		return
	}
	m.Decisions.WithLabelValues(action, rule).Inc()
}

func (m *Metrics) IncCRMApply(status string) {
	if m == nil {
		return
	}
	m.CRMApplies.WithLabelValues(status).Inc()
}

func (m *Metrics) IncAuditFailure() {
	if m == nil {
		return
	}
	m.AuditFailures.Inc()
}

func (m *Metrics) IncRollback() {
	if m == nil {
		return
	}
	m.Rollbacks.Inc()
}

func (m *Metrics) ObserveStallScore(score float64) {
	if m == nil {
		return
	}
	m.StallScores.Observe(score)
}

func (m *Metrics) IncAlert(priority string) {
	if m == nil {
		return
	}
	m.Alerts.WithLabelValues(priority).Inc()
}

func (m *Metrics) IncDelivery(channel string, ok bool) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "failed"
	}
	m.Deliveries.WithLabelValues(channel, status).Inc()
}

func (m *Metrics) IncAcknowledged() {
	if m == nil {
		return
	}
	m.Acknowledged.Inc()
}

func (m *Metrics) AddExpired(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.Expired.Add(float64(n))
}
