package registry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the location registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registrations   *prometheus.CounterVec
	PersistFailures prometheus.Counter
	PersistDuration prometheus.Histogram
	Locations       prometheus.Gauge
}

// NewMetrics registers the registry metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Registrations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "emojifed_registrations_total",
			Help: "Location registrations by outcome (added, already_exists, max_reached)",
		}, []string{"outcome"}),
		PersistFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "emojifed_registry_persist_failures_total",
			Help: "Registry writes that failed to reach the persistent store",
		}),
		PersistDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "emojifed_registry_persist_duration_seconds",
			Help:    "Duration of full registry rewrites",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		Locations: factory.NewGauge(prometheus.GaugeOpts{
			Name: "emojifed_registry_locations",
			Help: "Number of location identifiers held in the registry",
		}),
	}
}

func (m *Metrics) IncRegistration(outcome string) {
	m.AddRegistrations(outcome, 1)
}

func (m *Metrics) AddRegistrations(outcome string, n int) {
	if m == nil {
		return
	}
	m.Registrations.WithLabelValues(outcome).Add(float64(n))
}

func (m *Metrics) IncPersistFailure() {
	if m == nil {
		return
	}
	m.PersistFailures.Inc()
}

// ObservePersist records the duration of a registry write.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObservePersist(start time.Time) {
	if m == nil {
		return
	}
	m.PersistDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) SetLocations(n int) {
	if m == nil {
		return
	}
	m.Locations.Set(float64(n))
}
