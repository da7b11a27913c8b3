// Package metrics exposes Prometheus metrics for the HTTP surface and
// the answering pipeline on a private registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cyberrag/advisory-search/internal/core/domain"
)

type Metrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	runsTotal         *prometheus.CounterVec
	stageDuration     *prometheus.HistogramVec
	stageFailures     *prometheus.CounterVec
	citedSources prometheus.Histogram
	uncitedTotal      prometheus.Counter
	unresolvedMarkers prometheus.Counter
}

func New(service string) *Metrics {
	registry := prometheus.NewRegistry()
	serviceLabel := prometheus.Labels{"service": service}

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "advisory",
			Subsystem:   "http",
			Name:        "requests_total",
			Help:        "Total HTTP requests processed.",
			ConstLabels: serviceLabel,
		},
		[]string{"method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   "advisory",
			Subsystem:   "http",
			Name:        "request_duration_seconds",
			Help:        "HTTP request duration in seconds.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: serviceLabel,
		},
		[]string{"method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "advisory",
			Subsystem:   "http",
			Name:        "in_flight_requests",
			Help:        "Number of in-flight HTTP requests.",
			ConstLabels: serviceLabel,
		},
	)
	runsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "advisory",
			Subsystem:   "pipeline",
			Name:        "runs_total",
			Help:        "Total pipeline runs by terminal status.",
			ConstLabels: serviceLabel,
		},
		[]string{"status"},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   "advisory",
			Subsystem:   "pipeline",
			Name:        "stage_duration_seconds",
			Help:        "Wall-clock duration of pipeline stages, including gateway wait.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: serviceLabel,
		},
		[]string{"stage"},
	)
	stageFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "advisory",
			Subsystem:   "pipeline",
			Name:        "stage_failures_total",
			Help:        "Total stage failures by stage and error kind.",
			ConstLabels: serviceLabel,
		},
		[]string{"stage", "kind"},
	)
	citedSources := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   "advisory",
			Subsystem:   "pipeline",
			Name:        "cited_sources",
			Help:        "Distribution of distinct cited sources per answered run.",
			Buckets:     []float64{0, 1, 2, 3, 5, 8, 13, 21},
			ConstLabels: serviceLabel,
		},
	)
	uncitedTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   "advisory",
			Subsystem:   "pipeline",
			Name:        "uncited_answers_total",
			Help:        "Total SUCCESS runs whose answer carried no citation marker.",
			ConstLabels: serviceLabel,
		},
	)
	unresolvedMarkers := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   "advisory",
			Subsystem:   "pipeline",
			Name:        "unresolved_markers_total",
			Help:        "Total citation markers that resolved to no passage.",
			ConstLabels: serviceLabel,
		},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		runsTotal,
		stageDuration,
		stageFailures,
		citedSources,
		uncitedTotal,
		unresolvedMarkers,
	)

	return &Metrics{
		registry:          registry,
		requestTotal:      requestTotal,
		requestDuration:   requestDuration,
		requestInFlight:   requestInFlight,
		runsTotal:         runsTotal,
		stageDuration:     stageDuration,
		stageFailures:     stageFailures,
		citedSources:      citedSources,
		uncitedTotal:      uncitedTotal,
		unresolvedMarkers: unresolvedMarkers,
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRun derives all pipeline observations from a terminal result;
// the orchestrator itself stays metrics-free.
func (m *Metrics) ObserveRun(result domain.Result) {
	m.runsTotal.WithLabelValues(string(result.Status)).Inc()

	for _, record := range result.Trace {
		if record.EndedAt.IsZero() {
			continue
		}
		m.stageDuration.WithLabelValues(string(record.Name)).Observe(record.EndedAt.Sub(record.StartedAt).Seconds())
	}
	if result.Failure != nil {
		m.stageFailures.WithLabelValues(string(result.Failure.Stage), result.Failure.Kind).Inc()
	}
	if result.Answer != nil {
		m.citedSources.Observe(float64(len(result.Answer.CitedSources)))
		m.unresolvedMarkers.Add(float64(len(result.Answer.UnresolvedMarkers)))
	}
	if result.Uncited {
		m.uncitedTotal.Inc()
	}
}

// Middleware instruments the HTTP surface.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(recorder.statusCode)).Inc()
		m.requestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
