package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline holds the offline pipeline metrics.
type Pipeline struct {
	stageDuration *prometheus.HistogramVec
	runsTotal     *prometheus.CounterVec
	entities      prometheus.Gauge
	edges         *prometheus.GaugeVec
	clusters      *prometheus.GaugeVec
	degenerate    *prometheus.CounterVec
	lastSuccess   prometheus.Gauge
}

// NewPipeline creates pipeline metrics and registers them on reg.
func NewPipeline(reg prometheus.Registerer) *Pipeline {
	m := &Pipeline{
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300, 900},
		}, []string{"stage"}),

		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome",
		}, []string{"outcome"}),

		entities: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "entities",
			Help:      "Entities in the last built snapshot",
		}),

		edges: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "edges",
			Help:      "Edges in the last built snapshot by type",
		}, []string{"type"}),

		clusters: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "clusters",
			Help:      "Clusters in the last built snapshot by level",
		}, []string{"level"}),

		degenerate: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "degenerate_total",
			Help:      "Degenerate clustering outcomes",
		}, []string{"level", "condition"}),

		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "last_success_timestamp_seconds",
			Help:      "Completion time of the last published run",
		}),
	}

	reg.MustRegister(
		m.stageDuration, m.runsTotal,
		m.entities, m.edges, m.clusters,
		m.degenerate, m.lastSuccess,
	)

	return m
}

// ObserveStage records one stage duration.
func (m *Pipeline) ObserveStage(stage string, d time.Duration) {
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RunFinished counts a run by outcome: published or failed.
func (m *Pipeline) RunFinished(outcome string) {
	m.runsTotal.WithLabelValues(outcome).Inc()
	if outcome == "published" {
		m.lastSuccess.SetToCurrentTime()
	}
}

// SetEntities records the entity count of the built snapshot.
func (m *Pipeline) SetEntities(n int) { m.entities.Set(float64(n)) }

// SetEdges records the edge count of one type.
func (m *Pipeline) SetEdges(edgeType string, n int) {
	m.edges.WithLabelValues(edgeType).Set(float64(n))
}

// SetClusters records the cluster count of one level.
func (m *Pipeline) SetClusters(level string, n int) {
	m.clusters.WithLabelValues(level).Set(float64(n))
}

// Degenerate counts one degenerate clustering condition.
func (m *Pipeline) Degenerate(level, condition string) {
	m.degenerate.WithLabelValues(level, condition).Inc()
}
