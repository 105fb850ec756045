package discovery

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for discovery walks.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Discoveries  *prometheus.CounterVec
	Coalesced    prometheus.Counter
	WalkDuration prometheus.Histogram
	SitesQueried prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Discoveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "emojifed_discoveries_total",
			Help: "Discover calls by outcome (cached, discovered, not_found, abandoned)",
		}, []string{"outcome"}),
		Coalesced: factory.NewCounter(prometheus.CounterOpts{
			Name: "emojifed_discoveries_coalesced_total",
			Help: "Discover calls that shared a concurrent walk",
		}),
		WalkDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "emojifed_discovery_walk_duration_seconds",
			Help:    "Duration of breadth-first walks over the neighbour graph",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		SitesQueried: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "emojifed_discovery_sites_queried",
			Help:    "Sites queried per walk",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
		}),
	}
}

func (m *Metrics) IncDiscovery(outcome string) {
	if m == nil {
		return
	}
	m.Discoveries.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncCoalesced() {
	if m == nil {
		return
	}
	m.Coalesced.Inc()
}

// ObserveWalk records a finished walk. Call with time.Now() at its start.
func (m *Metrics) ObserveWalk(start time.Time, sites int) {
	if m == nil {
		return
	}
	m.WalkDuration.Observe(time.Since(start).Seconds())
	m.SitesQueried.Observe(float64(sites))
}
