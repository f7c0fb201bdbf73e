package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the process-wide container of the topology service's business
// and HTTP metrics, following the promauto-registered vector shape every
// service in this platform uses.
type Metrics struct {
	// HTTP surface metrics (§6).
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Optimizer business metrics (§4.3, §4.4).
	SolveOperationsTotal *prometheus.CounterVec
	SolveDuration        *prometheus.HistogramVec
	SolutionCost         *prometheus.GaugeVec
	SolutionMaxDelay     *prometheus.GaugeVec

	// Track registry gauges (§4.2, §4.5).
	TracksActive      prometheus.Gauge
	SubscribersActive *prometheus.GaugeVec

	// Cache metrics (§4.5 memoization).
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// ServiceInfo carries build/environment labels.
	ServiceInfo *prometheus.GaugeVec

	// Runtime exposes process-level goroutine/memory/GC gauges alongside
	// the business metrics above, scraped by the same /metrics endpoint.
	Runtime *RuntimeCollector
	// requests tracks in-flight HTTP requests per method, backing
	// HTTPRequestsInFlight so the gauge reflects Start/End pairs rather
	// than two bare Inc/Dec calls in the middleware.
	requests *RequestTracker
}

var defaultMetrics *Metrics

// InitMetrics registers a fresh set of vectors under namespace/subsystem.
func InitMetrics(namespace, subsystem string) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests to the topology service.",
			},
			[]string{"route", "method", "status"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests.",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"route", "method"},
		),

		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being processed.",
			},
		),

		SolveOperationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "solve_operations_total",
				Help:      "Total number of single-track optimizer invocations.",
			},
			[]string{"optimizer", "status"},
		),

		SolveDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "solve_duration_seconds",
				Help:      "Duration of optimizer invocations, including ILP searches that may run for minutes.",
				Buckets:   []float64{.001, .01, .1, .5, 1, 5, 15, 30, 60, 120, 300},
			},
			[]string{"optimizer"},
		),

		SolutionCost: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "solution_cost",
				Help:      "Cost of the last successful solution per namespace.",
			},
			[]string{"namespace", "optimizer"},
		),

		SolutionMaxDelay: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "solution_max_delay_ms",
				Help:      "Max end-to-end path latency of the last successful solution per namespace.",
			},
			[]string{"namespace", "optimizer"},
		),

		TracksActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "tracks_active",
				Help:      "Number of tracks currently registered.",
			},
		),

		SubscribersActive: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "subscribers_active",
				Help:      "Number of subscribers currently attached to a track.",
			},
			[]string{"namespace"},
		),

		CacheHitsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "solution_cache_hits_total",
				Help:      "Number of times a cached SingleTrackSolution served a request.",
			},
			[]string{"namespace"},
		),

		CacheMissesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "solution_cache_misses_total",
				Help:      "Number of times no cached solution was usable and the optimizer ran.",
			},
			[]string{"namespace"},
		),

		ServiceInfo: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "service_info",
				Help:      "Service build/environment information.",
			},
			[]string{"version", "environment"},
		),
	}

	m.Runtime = NewRuntimeCollector(namespace, subsystem)
	prometheus.MustRegister(m.Runtime)
	m.requests = NewRequestTracker(m.HTTPRequestsInFlight)

	defaultMetrics = m
	return m
}

// Get returns the process-wide metrics, initializing a default set under
// the "topology" namespace if none has been created yet.
func Get() *Metrics {
	if defaultMetrics == nil {
		return InitMetrics("topology", "")
	}
	return defaultMetrics
}

// RecordHTTPRequest records one completed HTTP request.
func (m *Metrics) RecordHTTPRequest(route, method string, status int, duration time.Duration) {
	s := strconv.Itoa(status)
	m.HTTPRequestsTotal.WithLabelValues(route, method, s).Inc()
	m.HTTPRequestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// StartRequest/EndRequest delegate to the in-flight RequestTracker so the
// HTTPRequestsInFlight gauge is driven by matched Start/End pairs instead of
// bare Inc/Dec calls at the middleware call site.
func (m *Metrics) StartRequest(method string) { m.requests.Start(method) }
func (m *Metrics) EndRequest(method string)   { m.requests.End(method) }

// RecordSolveOperation records one optimizer invocation's outcome.
func (m *Metrics) RecordSolveOperation(optimizer string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "not_found"
	}
	m.SolveOperationsTotal.WithLabelValues(optimizer, status).Inc()
	m.SolveDuration.WithLabelValues(optimizer).Observe(duration.Seconds())
}

// RecordSolution updates the cost/delay gauges for namespace's latest
// successful solution.
func (m *Metrics) RecordSolution(namespace, optimizer string, cost, maxDelay float64) {
	m.SolutionCost.WithLabelValues(namespace, optimizer).Set(cost)
	m.SolutionMaxDelay.WithLabelValues(namespace, optimizer).Set(maxDelay)
}

// SetTrackGauges sets the track/subscriber-count gauges after a registry
// mutation.
func (m *Metrics) SetTrackGauges(totalTracks int, subscribersByNamespace map[string]int) {
	m.TracksActive.Set(float64(totalTracks))
	for ns, n := range subscribersByNamespace {
		m.SubscribersActive.WithLabelValues(ns).Set(float64(n))
	}
}

// RecordCacheHit/RecordCacheMiss record a memoization cache outcome.
func (m *Metrics) RecordCacheHit(namespace string)  { m.CacheHitsTotal.WithLabelValues(namespace).Inc() }
func (m *Metrics) RecordCacheMiss(namespace string) { m.CacheMissesTotal.WithLabelValues(namespace).Inc() }

// SetServiceInfo publishes build/environment information as a gauge.
func (m *Metrics) SetServiceInfo(version, environment string) {
	m.ServiceInfo.WithLabelValues(version, environment).Set(1)
}

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// StartMetricsServer runs a standalone metrics HTTP server, used when
// metrics are served on a separate port from the main API.
func StartMetricsServer(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return server.ListenAndServe()
}
