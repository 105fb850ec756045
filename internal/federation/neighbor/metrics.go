package neighbor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for outbound neighbour queries.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	QueryDuration    *prometheus.HistogramVec
	NeighborhoodHits prometheus.Counter
	BreakerOpened    prometheus.Counter
	BreakerRejected  prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		QueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "emojifed_neighbor_query_duration_seconds",
			Help:    "Duration of neighbour queries by kind (mapping, neighborhood) and outcome",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5},
		}, []string{"kind", "outcome"}),
		NeighborhoodHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "emojifed_neighbor_neighborhood_cache_hits_total",
			Help: "Neighbourhood lookups answered from cache",
		}),
		BreakerOpened: factory.NewCounter(prometheus.CounterOpts{
			Name: "emojifed_neighbor_circuit_opened_total",
			Help: "Times a site's circuit breaker opened",
		}),
		BreakerRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "emojifed_neighbor_circuit_rejections_total",
			Help: "Queries skipped because the site's circuit was open",
		}),
	}
}

// ObserveQuery records a query. Call with time.Now() at the start of the query.
func (m *Metrics) ObserveQuery(kind, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.QueryDuration.WithLabelValues(kind, outcome).Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncNeighborhoodCacheHit() {
	if m == nil {
		return
	}
	m.NeighborhoodHits.Inc()
}

func (m *Metrics) IncBreakerOpened() {
	if m == nil {
		return
	}
	m.BreakerOpened.Inc()
}

func (m *Metrics) IncBreakerRejection() {
	if m == nil {
		return
	}
	m.BreakerRejected.Inc()
}
