package historical

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the historical node's Prometheus collectors. A nil *Metrics
// records nothing.
type Metrics struct {
	cacheLookupsTotal    *prometheus.CounterVec
	queriesTotal         *prometheus.CounterVec
	segmentsServed       prometheus.Gauge
	refreshFailuresTotal prometheus.Counter
}

func NewMetrics(r prometheus.Registerer) *Metrics {
	return &Metrics{
		cacheLookupsTotal: promauto.With(r).NewCounterVec(prometheus.CounterOpts{
			Namespace: "topn",
			Subsystem: "historical",
			Name:      "result_cache_lookups_total",
			Help:      "Per-segment result cache lookups by result (hit or miss)",
		}, []string{"result"}),
		queriesTotal: promauto.With(r).NewCounterVec(prometheus.CounterOpts{
			Namespace: "topn",
			Subsystem: "historical",
			Name:      "queries_total",
			Help:      "Top-n queries served by outcome",
		}, []string{"outcome"}),
		segmentsServed: promauto.With(r).NewGauge(prometheus.GaugeOpts{
			Namespace: "topn",
			Subsystem: "historical",
			Name:      "segments_served",
			Help:      "Number of segments currently served",
		}),
		refreshFailuresTotal: promauto.With(r).NewCounter(prometheus.CounterOpts{
			Namespace: "topn",
			Subsystem: "historical",
			Name:      "refresh_failures_total",
			Help:      "Segment refreshes that reported at least one failure",
		}),
	}
}

func (m *Metrics) cacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheLookupsTotal.WithLabelValues("hit").Inc()
		return
	}
	m.cacheLookupsTotal.WithLabelValues("miss").Inc()
}

func (m *Metrics) query(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.queriesTotal.WithLabelValues("failure").Inc()
		return
	}
	m.queriesTotal.WithLabelValues("success").Inc()
}

func (m *Metrics) refreshed(served int, err error) {
	if m == nil {
		return
	}
	m.segmentsServed.Set(float64(served))
	if err != nil {
		m.refreshFailuresTotal.Inc()
	}
}
