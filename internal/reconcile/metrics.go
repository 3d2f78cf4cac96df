package reconcile

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for ledger reconciliation.
type Metrics struct {
	Submissions    *prometheus.CounterVec
	SubmitDuration prometheus.Histogram
	InFlight       prometheus.Gauge
}

// NewMetrics registers the reconciliation metrics on the default registry.
// Construct once per process.
func NewMetrics() *Metrics {
	return &Metrics{
		Submissions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veritrail_ledger_submissions_total",
			Help: "Ledger submissions by outcome",
		}, []string{"outcome"}),
		SubmitDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "veritrail_ledger_submit_duration_seconds",
			Help:    "Duration of ledger submissions including confirmation wait",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		InFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "veritrail_ledger_submissions_in_flight",
			Help: "Ledger submissions currently awaiting confirmation",
		}),
	}
}

func (m *Metrics) observeSubmission(outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(outcome).Inc()
	m.SubmitDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) trackInFlight(delta float64) {
	if m == nil {
		return
	}
	m.InFlight.Add(delta)
}
