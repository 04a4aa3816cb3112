// Package metrics provides Prometheus metrics for the settlement engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	StatusChanges       *prometheus.CounterVec
	AutoTransitions     prometheus.Counter
	DocumentsGenerated  prometheus.Counter
	RefundsGenerated    prometheus.Counter
	RefundsRejected     prometheus.Counter
	CopaymentAmounts    prometheus.Histogram
	LettersRendered     prometheus.Counter
	LettersFailed       prometheus.Counter
	OutboxPending       prometheus.Gauge
	CircuitBreakerState *prometheus.GaugeVec
}

// New creates and registers all metrics
func New() *Metrics {
	m := &Metrics{
		StatusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vo_status_changes_total",
			Help: "Total status writes per dimension",
		}, []string{"dimension"}),
		AutoTransitions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vo_auto_transitions_total",
			Help: "Total derived status writes fired by transition rules",
		}),
		DocumentsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "copayment_documents_generated_total",
			Help: "Total copayment invoices generated",
		}),
		RefundsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "copayment_refunds_generated_total",
			Help: "Total refund corrections generated",
		}),
		RefundsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "copayment_refunds_rejected_total",
			Help: "Refund requests rejected by the eligibility guard",
		}),
		CopaymentAmounts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "copayment_amount_eur",
			Help:    "Computed copayment amounts",
			Buckets: []float64{10, 15, 20, 30, 50, 75, 100, 150},
		}),
		LettersRendered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "settlement_letters_rendered_total",
			Help: "Total settlement letters rendered",
		}),
		LettersFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "settlement_letters_failed_total",
			Help: "Total failed letter renders",
		}),
		OutboxPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "outbox_pending_entries",
			Help: "Pending outbox entries",
		}),
		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		}, []string{"name"}),
	}

	prometheus.MustRegister(
		m.StatusChanges,
		m.AutoTransitions,
		m.DocumentsGenerated,
		m.RefundsGenerated,
		m.RefundsRejected,
		m.CopaymentAmounts,
		m.LettersRendered,
		m.LettersFailed,
		m.OutboxPending,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
