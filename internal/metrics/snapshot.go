package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Snapshot holds the serving-side snapshot metrics.
type Snapshot struct {
	swapsTotal  prometheus.Counter
	loadErrors  *prometheus.CounterVec
	createdTime prometheus.Gauge
	entities    prometheus.Gauge
}

// NewSnapshot creates snapshot metrics and registers them on reg.
func NewSnapshot(reg prometheus.Registerer) *Snapshot {
	m := &Snapshot{
		swapsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "swaps_total",
			Help:      "Snapshot swaps performed by the watcher",
		}),
		loadErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "load_errors_total",
			Help:      "Failed snapshot loads by reason",
		}, []string{"reason"}),
		createdTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "created_timestamp_seconds",
			Help:      "Creation time of the served snapshot",
		}),
		entities: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "entities",
			Help:      "Entities in the served snapshot",
		}),
	}

	reg.MustRegister(m.swapsTotal, m.loadErrors, m.createdTime, m.entities)
	return m
}

// Swapped records a successful swap to a snapshot created at createdAt.
func (m *Snapshot) Swapped(createdAt time.Time, entities int) {
	m.swapsTotal.Inc()
	m.createdTime.Set(float64(createdAt.Unix()))
	m.entities.Set(float64(entities))
}

// LoadFailed counts a failed load.
func (m *Snapshot) LoadFailed(reason string) {
	m.loadErrors.WithLabelValues(reason).Inc()
}
