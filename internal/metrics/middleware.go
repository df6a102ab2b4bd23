package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "zoomgraph"

// unmatchedRoute labels requests that hit no route, so scans of random
// paths cannot grow the label space.
const unmatchedRoute = "unmatched"

// zoomLevels maps the progressive query routes to the zoom level they open.
var zoomLevels = map[string]string{
	"/api/overview":      "overview",
	"/api/domains/{id}":  "domain",
	"/api/topics/{id}":   "topic",
	"/api/entities/{id}": "entity",
}

// HTTP holds the query API request metrics.
type HTTP struct {
	duration *prometheus.HistogramVec
	requests *prometheus.CounterVec
	inFlight prometheus.Gauge
	zooms    *prometheus.CounterVec
}

// NewHTTP creates HTTP metrics and registers them on reg.
func NewHTTP(reg prometheus.Registerer) *HTTP {
	m := &HTTP{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Query API request duration by route pattern",
			// Views are served from memory; most land well under 10ms.
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
		}, []string{"method", "route", "status"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Query API requests by route pattern and status",
		}, []string{"method", "route", "status"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Query API requests being served",
		}),
		zooms: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "zoom_requests_total",
			Help:      "Successful progressive loads by zoom level",
		}, []string{"level"}),
	}
	reg.MustRegister(m.duration, m.requests, m.inFlight, m.zooms)
	return m
}

// Middleware records duration, count and zoom level of every request. The
// route label is the chi route pattern, resolved after routing.
func (m *HTTP) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			m.inFlight.Inc()
			defer m.inFlight.Dec()

			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)

			route := routeLabel(r)
			status := strconv.Itoa(ww.status)
			m.duration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
			m.requests.WithLabelValues(r.Method, route, status).Inc()
			if level, ok := zoomLevels[route]; ok && ww.status == http.StatusOK {
				m.zooms.WithLabelValues(level).Inc()
			}
		})
	}
}

func routeLabel(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil || rctx.RoutePattern() == "" {
		return unmatchedRoute
	}
	return rctx.RoutePattern()
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.status = status
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b) //nolint:wrapcheck // delegating to underlying ResponseWriter
}
