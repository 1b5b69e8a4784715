package ingest

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/gyeh/eraload/internal/model"
)

var (
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eraload_uploads_total",
		Help: "Uploads leaving the pending state, by final status",
	}, []string{"status"})

	lineItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eraload_line_items_total",
		Help: "Persisted line items by match status",
	}, []string{"match_status"})

	phaseLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "eraload_pipeline_phase_duration_seconds",
		Help:    "Pipeline phase latency",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"phase"})

	oracleUnavailable = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eraload_oracle_unavailable_total",
		Help: "Pipeline runs left pending because the fee schedule was unavailable",
	})
)

func observePhase(phase string, d time.Duration) {
	phaseLatency.WithLabelValues(phase).Observe(d.Seconds())
}

func recordOutcome(s *model.ProcessSummary) {
	uploadsTotal.WithLabelValues(string(s.Status)).Inc()
	if s.Status == model.StatusProcessed {
		lineItemsTotal.WithLabelValues(string(model.MatchMatched)).Add(float64(s.Matched))
		lineItemsTotal.WithLabelValues(string(model.MatchUnmatched)).Add(float64(s.Unmatched))
	}
}
