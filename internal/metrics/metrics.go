package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "eventagent"

// Metrics holds the pipeline collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	eventsLoaded      prometheus.Counter
	eventsSkipped     prometheus.Counter
	duplicateKeys     *prometheus.CounterVec
	contentGenerated  *prometheus.CounterVec
	contentErrors     *prometheus.CounterVec
	webhookPosts      *prometheus.CounterVec
	llmDuration       *prometheus.HistogramVec
	runDuration       *prometheus.HistogramVec
	httpRequests      *prometheus.CounterVec
	httpRequestTiming *prometheus.HistogramVec
}

// New constructs and registers all collectors
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		eventsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_loaded_total",
			Help:      "Events assembled from the warehouse views.",
		}),
		eventsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_skipped_total",
			Help:      "Base rows skipped because a mandatory field was missing.",
		}),
		duplicateKeys: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicate_keys_total",
			Help:      "Event IDs matching more than one row in a side view.",
		}, []string{"table"}),
		contentGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "content_generated_total",
			Help:      "Content items generated successfully.",
		}, []string{"angle"}),
		contentErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "content_errors_total",
			Help:      "Content items that failed generation, by error kind.",
		}, []string{"kind"}),
		webhookPosts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_posts_total",
			Help:      "Webhook deliveries by outcome.",
		}, []string{"status"}),
		llmDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Latency of text-generation calls.",
			Buckets:   []float64{0.5, 1, 2, 4, 8, 16, 32, 64},
		}, []string{"provider"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of generation runs.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"mode"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Operator API requests.",
		}, []string{"method", "path", "status"}),
		httpRequestTiming: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Operator API request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.eventsLoaded,
		m.eventsSkipped,
		m.duplicateKeys,
		m.contentGenerated,
		m.contentErrors,
		m.webhookPosts,
		m.llmDuration,
		m.runDuration,
		m.httpRequests,
		m.httpRequestTiming,
	)
	return m
}

// Registry exposes the underlying registry (tests gather from it)
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns an HTTP handler for exposing Prometheus metrics
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) EventsLoaded(n int) {
	if m == nil {
		return
	}
	m.eventsLoaded.Add(float64(n))
}

func (m *Metrics) EventSkipped() {
	if m == nil {
		return
	}
	m.eventsSkipped.Inc()
}

func (m *Metrics) DuplicateKey(table string) {
	if m == nil {
		return
	}
	m.duplicateKeys.WithLabelValues(table).Inc()
}

func (m *Metrics) ContentGenerated(angle string) {
	if m == nil {
		return
	}
	m.contentGenerated.WithLabelValues(angle).Inc()
}

func (m *Metrics) ContentError(kind string) {
	if m == nil {
		return
	}
	m.contentErrors.WithLabelValues(kind).Inc()
}

func (m *Metrics) WebhookPost(status string) {
	if m == nil {
		return
	}
	m.webhookPosts.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveLLMRequest(provider string, d time.Duration) {
	if m == nil {
		return
	}
	m.llmDuration.WithLabelValues(provider).Observe(d.Seconds())
}

func (m *Metrics) ObserveRun(mode string, d time.Duration) {
	if m == nil {
		return
	}
	m.runDuration.WithLabelValues(mode).Observe(d.Seconds())
}

// ObserveHTTP records one operator API request
func (m *Metrics) ObserveHTTP(method, path, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, path, status).Inc()
	m.httpRequestTiming.WithLabelValues(method, path).Observe(d.Seconds())
}
