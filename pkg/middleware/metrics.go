package middleware

import (
	"bufio"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures the Prometheus metrics middleware.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "hotbridge").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for request duration.
	// Default: prometheus.DefBuckets.
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer.
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics middleware.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "hotbridge",
		Buckets:   prometheus.DefBuckets,
	}
}

// metricsSet holds the request collectors.
type metricsSet struct {
	requests  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	inFlight  prometheus.Gauge
	bodyBytes prometheus.Histogram
	rejected  prometheus.Counter
}

func newMetricsSet(cfg MetricsConfig, registry prometheus.Registerer) *metricsSet {
	factory := promauto.With(registry)

	return &metricsSet{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "requests_total",
			Help:        "Requests handled, by method and status code.",
			ConstLabels: cfg.ConstLabels,
		}, []string{"method", "code"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "request_duration_seconds",
			Help:        "Request duration.",
			ConstLabels: cfg.ConstLabels,
			Buckets:     cfg.Buckets,
		}, []string{"method"}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "requests_in_flight",
			Help:        "Requests currently being served.",
			ConstLabels: cfg.ConstLabels,
		}),
		bodyBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "request_body_bytes",
			Help:        "Declared request body sizes.",
			ConstLabels: cfg.ConstLabels,
			Buckets:     prometheus.ExponentialBuckets(256, 4, 8),
		}),
		rejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "requests_rejected_total",
			Help:        "Requests rejected for an oversized body.",
			ConstLabels: cfg.ConstLabels,
		}),
	}
}

var (
	defaultSetOnce sync.Once
	defaultSet     *metricsSet
)

// Metrics returns middleware that records request counts, durations,
// in-flight gauge, and body sizes. Without WithRegistry the collectors
// register once against the default registry and are shared by every
// instance: the first call's options win and later calls' namespace,
// subsystem, label, and bucket options are ignored. Pass WithRegistry to
// get an independently configured set.
func Metrics(opts ...MetricsOption) func(http.Handler) http.Handler {
	cfg := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	var set *metricsSet
	if cfg.Registry != nil {
		set = newMetricsSet(cfg, cfg.Registry)
	} else {
		defaultSetOnce.Do(func() {
			defaultSet = newMetricsSet(cfg, prometheus.DefaultRegisterer)
		})
		set = defaultSet
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			set.inFlight.Inc()
			defer set.inFlight.Dec()

			if r.ContentLength > 0 {
				set.bodyBytes.Observe(float64(r.ContentLength))
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			set.requests.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
			set.duration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
			if rec.status == http.StatusRequestEntityTooLarge {
				set.rejected.Inc()
			}
		})
	}
}

// statusRecorder captures the status code written to a ResponseWriter.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack hands the underlying connection to protocol-upgrading handlers,
// such as the reload endpoint's websocket handshake.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	return h.Hijack()
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// ReloadMetrics counts handler reload outcomes.
type ReloadMetrics struct {
	total    prometheus.Counter
	failures prometheus.Counter
}

var (
	defaultReloadOnce sync.Once
	defaultReload     *ReloadMetrics
)

// NewReloadMetrics returns reload counters. Without WithRegistry the
// counters register once against the default registry and are shared;
// only the first call's options take effect on that shared pair.
func NewReloadMetrics(opts ...MetricsOption) *ReloadMetrics {
	cfg := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.Registry == nil {
		defaultReloadOnce.Do(func() {
			defaultReload = newReloadMetrics(cfg, prometheus.DefaultRegisterer)
		})
		return defaultReload
	}
	return newReloadMetrics(cfg, cfg.Registry)
}

func newReloadMetrics(cfg MetricsConfig, registry prometheus.Registerer) *ReloadMetrics {
	factory := promauto.With(registry)
	return &ReloadMetrics{
		total: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "reloads_total",
			Help:        "Handler reload attempts.",
			ConstLabels: cfg.ConstLabels,
		}),
		failures: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "reload_failures_total",
			Help:        "Handler reloads that failed and kept the previous handler.",
			ConstLabels: cfg.ConstLabels,
		}),
	}
}

// Success records a successful reload.
func (m *ReloadMetrics) Success() {
	m.total.Inc()
}

// Failure records a failed reload.
func (m *ReloadMetrics) Failure() {
	m.total.Inc()
	m.failures.Inc()
}
