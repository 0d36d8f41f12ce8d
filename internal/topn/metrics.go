package topn

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

// Metrics are the engine's Prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	runsTotal                *prometheus.CounterVec
	rowsScannedTotal         prometheus.Counter
	accumulatorsCreatedTotal prometheus.Counter
	accumulatorsReleased     prometheus.Counter
	runDurationSeconds       *prometheus.HistogramVec
}

// NewMetrics registers the engine collectors with r.
func NewMetrics(r prometheus.Registerer) *Metrics {
	return &Metrics{
		runsTotal: promauto.With(r).NewCounterVec(prometheus.CounterOpts{
			Namespace: "topn",
			Name:      "runs_total",
			Help:      "Total number of top-n runs by algorithm and outcome",
		}, []string{"algorithm", "outcome"}),
		rowsScannedTotal: promauto.With(r).NewCounter(prometheus.CounterOpts{
			Namespace: "topn",
			Name:      "rows_scanned_total",
			Help:      "Total number of segment rows folded into aggregates",
		}),
		accumulatorsCreatedTotal: promauto.With(r).NewCounter(prometheus.CounterOpts{
			Namespace: "topn",
			Name:      "accumulators_created_total",
			Help:      "Total number of accumulators created",
		}),
		accumulatorsReleased: promauto.With(r).NewCounter(prometheus.CounterOpts{
			Namespace: "topn",
			Name:      "accumulators_released_total",
			Help:      "Total number of accumulators released",
		}),
		runDurationSeconds: promauto.With(r).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "topn",
			Name:      "run_duration_seconds",
			Help:      "Time spent scanning one segment",
			Buckets:   prometheus.DefBuckets,
		}, []string{"algorithm"}),
	}
}

func (m *Metrics) observe(stats RunStats, seconds float64, err error) {
	if m == nil {
		return
	}
	outcome := outcomeSuccess
	if err != nil {
		outcome = outcomeFailure
	}
	m.runsTotal.WithLabelValues(stats.Algorithm, outcome).Inc()
	m.rowsScannedTotal.Add(float64(stats.Rows))
	m.accumulatorsCreatedTotal.Add(float64(stats.Created))
	m.accumulatorsReleased.Add(float64(stats.Released))
	m.runDurationSeconds.WithLabelValues(stats.Algorithm).Observe(seconds)
}
