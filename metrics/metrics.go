// Package metrics exposes Prometheus counters for the locality picker and the HTTP service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds a private registry. Every method is safe to call on a nil *Metrics.
type Metrics struct {
	registry            *prometheus.Registry
	cameraCommands      *prometheus.CounterVec
	clicks              *prometheus.CounterVec
	staleResponses      prometheus.Counter
	fetchFailures       prometheus.Counter
	featureLoads        *prometheus.CounterVec
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

func New() *Metrics {

	registry := prometheus.NewRegistry()

	cameraCommands := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "picker",
		Name:      "camera_commands_total",
		Help:      "Camera commands decided by the viewport reconciler",
	}, []string{"action"})

	clicks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "picker",
		Name:      "clicks_total",
		Help:      "Clicks on the locality point layer",
	}, []string{"kind"})

	staleResponses := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "picker",
		Name:      "stale_responses_total",
		Help:      "Click lookups dropped because a newer click was made",
	})

	fetchFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "picker",
		Name:      "locality_fetch_failures_total",
		Help:      "Failed locality detail fetches",
	})

	featureLoads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "picker",
		Name:      "feature_loads_total",
		Help:      "Feature store reads by outcome",
	}, []string{"status"})

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "picker",
		Name:      "http_requests_total",
		Help:      "Count of HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "picker",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	registry.MustRegister(
		cameraCommands,
		clicks,
		staleResponses,
		fetchFailures,
		featureLoads,
		httpRequests,
		httpRequestDuration,
	)

	return &Metrics{
		registry:            registry,
		cameraCommands:      cameraCommands,
		clicks:              clicks,
		staleResponses:      staleResponses,
		fetchFailures:       fetchFailures,
		featureLoads:        featureLoads,
		httpRequests:        httpRequests,
		httpRequestDuration: httpRequestDuration,
	}
}

func (m *Metrics) IncCameraCommand(action string) {
	if m == nil {
		return
	}
	m.cameraCommands.WithLabelValues(action).Inc()
}

func (m *Metrics) IncClick(kind string) {
	if m == nil {
		return
	}
	m.clicks.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncStaleResponse() {
	if m == nil {
		return
	}
	m.staleResponses.Inc()
}

func (m *Metrics) IncFetchFailure() {
	if m == nil {
		return
	}
	m.fetchFailures.Inc()
}

func (m *Metrics) IncFeatureLoad(ok bool) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	m.featureLoads.WithLabelValues(status).Inc()
}

// ObserveHTTPRequest records a single HTTP request/response cycle.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": strconv.Itoa(status),
	}
	m.httpRequests.With(labels).Inc()
	m.httpRequestDuration.With(labels).Observe(duration.Seconds())
}

// Handler exposes the registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics unavailable"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
