package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements repository.Metrics using Prometheus.
type Recorder struct {
	predictions   *prometheus.CounterVec
	historyFetch  *prometheus.HistogramVec
	checks        *prometheus.CounterVec
	violations    *prometheus.CounterVec
	chunks        prometheus.Gauge
	rebuilds      *prometheus.CounterVec
	rebuildTiming prometheus.Histogram
}

// New creates a recorder registered on the default registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates a recorder registered on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		predictions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "riskapprove_predictions_total",
				Help: "Predictions produced, by source (live, mock, failed)",
			},
			[]string{"source"},
		),
		historyFetch: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "riskapprove_history_fetch_seconds",
				Help:    "Latency of price history fetches by provider and outcome",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider", "ok"},
		),
		checks: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "riskapprove_compliance_checks_total",
				Help: "Compliance checks by outcome",
			},
			[]string{"compliant"},
		),
		violations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "riskapprove_compliance_violations_total",
				Help: "Compliance violations by type",
			},
			[]string{"type"},
		),
		chunks: f.NewGauge(prometheus.GaugeOpts{
			Name: "riskapprove_regulation_chunks",
			Help: "Number of regulation chunks in the live index",
		}),
		rebuilds: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "riskapprove_index_rebuilds_total",
				Help: "Regulation index rebuilds by outcome",
			},
			[]string{"ok"},
		),
		rebuildTiming: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "riskapprove_index_rebuild_seconds",
			Help:    "Duration of regulation index rebuilds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}),
	}
}

func (r *Recorder) RecordPrediction(source string) {
	r.predictions.WithLabelValues(source).Inc()
}

func (r *Recorder) RecordHistoryFetch(provider string, ok bool, seconds float64) {
	r.historyFetch.WithLabelValues(provider, strconv.FormatBool(ok)).Observe(seconds)
}

func (r *Recorder) RecordComplianceCheck(compliant bool) {
	r.checks.WithLabelValues(strconv.FormatBool(compliant)).Inc()
}

func (r *Recorder) RecordViolation(kind string) {
	r.violations.WithLabelValues(kind).Inc()
}

func (r *Recorder) SetIndexedChunks(n int) {
	r.chunks.Set(float64(n))
}

func (r *Recorder) RecordIndexRebuild(ok bool, seconds float64) {
	r.rebuilds.WithLabelValues(strconv.FormatBool(ok)).Inc()
	r.rebuildTiming.Observe(seconds)
}

// Nop discards every measurement.
type Nop struct{}

func (Nop) RecordPrediction(string)                  {}
func (Nop) RecordHistoryFetch(string, bool, float64) {}
func (Nop) RecordComplianceCheck(bool)               {}
func (Nop) RecordViolation(string)                   {}
func (Nop) SetIndexedChunks(int)                     {}
func (Nop) RecordIndexRebuild(bool, float64)         {}
