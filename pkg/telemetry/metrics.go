package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Metrics provides Prometheus metrics for deployment operations.
type Metrics struct {
	config MetricsConfig

	// Operation metrics
	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	operationErrors   *prometheus.CounterVec

	// Registry metrics
	realizations *prometheus.GaugeVec

	// Resource metrics
	resourceUp *prometheus.GaugeVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Total number of deployment protocol operations",
			},
			[]string{"operation", "status"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of deployment protocol operations in seconds",
				Buckets:   buckets,
			},
			[]string{"operation"},
		),
		operationErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operation_errors_total",
				Help:      "Total number of failed operations by error class",
			},
			[]string{"operation", "class"},
		),
		realizations: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "realizations",
				Help:      "Number of loaded realizations",
			},
			[]string{"domain", "kind"},
		),
		resourceUp: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "resource_up",
				Help:      "Last observed resource status (1=up, 0=down)",
			},
			[]string{"resource", "type"},
		),
	}

	registry.MustRegister(
		m.operations,
		m.operationDuration,
		m.operationErrors,
		m.realizations,
		m.resourceUp,
	)

	return m, nil
}

// RecordOperation records a completed operation. class is empty on success.
func (m *Metrics) RecordOperation(operation, class string, duration time.Duration) {
	if m == nil || m.operations == nil {
		return
	}
	status := "success"
	if class != "" {
		status = "failure"
		m.operationErrors.WithLabelValues(operation, class).Inc()
	}
	m.operations.WithLabelValues(operation, status).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetRealizationCount sets the number of loaded realizations of a kind.
func (m *Metrics) SetRealizationCount(domain, kind string, count int) {
	if m == nil || m.realizations == nil {
		return
	}
	m.realizations.WithLabelValues(domain, kind).Set(float64(count))
}

// SetResourceUp sets the last observed status of a resource.
func (m *Metrics) SetResourceUp(resource, resourceType string, up bool) {
	if m == nil || m.resourceUp == nil {
		return
	}
	value := 0.0
	if up {
		value = 1.0
	}
	m.resourceUp.WithLabelValues(resource, resourceType).Set(value)
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Gatherer exposes the underlying registry, nil when metrics are disabled.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil || m.registry == nil {
		return nil
	}
	return m.registry
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics when a listen
// address is configured.
func (m *Metrics) StartMetricsServer() error {
	if !m.config.Enabled || m.config.ListenAddress == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// Log error but don't fail the application
			log.Error().Err(err).Str("address", m.config.ListenAddress).Msg("metrics server failed")
		}
	}()

	return nil
}
