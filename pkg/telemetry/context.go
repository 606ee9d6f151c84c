package telemetry

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry provides a unified telemetry interface combining logging, tracing and metrics.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Config  *Config
}

// telemetryContextKey is the context key for telemetry instances.
type telemetryContextKey struct{}

// NewTelemetry creates a new telemetry instance from configuration.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Initialize logger
	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	// Initialize tracer
	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, err
	}

	// Initialize metrics
	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		Logger:  logger,
		Tracer:  tracer,
		Metrics: metrics,
		Config:  cfg,
	}, nil
}

// WithContext adds the telemetry instance to the context.
func (t *Telemetry) WithContext(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, telemetryContextKey{}, t)
	ctx = t.Logger.WithContext(ctx)
	return ctx
}

// FromTelemetryContext retrieves the telemetry instance from the context.
// If no telemetry is found, it returns nil.
func FromTelemetryContext(ctx context.Context) *Telemetry {
	if t, ok := ctx.Value(telemetryContextKey{}).(*Telemetry); ok {
		return t
	}
	return nil
}

// Shutdown gracefully shuts down all telemetry components.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	// Metrics server is not explicitly shut down here as it may need to continue
	// serving metrics until the very end of the application lifecycle
	return t.Tracer.Shutdown(ctx)
}

// StartMetricsServer starts the metrics HTTP server if metrics are enabled.
func (t *Telemetry) StartMetricsServer() error {
	return t.Metrics.StartMetricsServer()
}

// classified is implemented by errors that carry an error class.
type classified interface {
	Classification() string
}

// ErrorClass returns the class carried by err's chain, "unknown" for an
// unclassified error and "" for nil.
func ErrorClass(err error) string {
	if err == nil {
		return ""
	}
	var c classified
	if errors.As(err, &c) {
		return c.Classification()
	}
	return "unknown"
}

// Observe begins an instrumented operation. The returned context carries the
// span and a logger tagged with the operation; the returned function must be
// called exactly once with the operation's outcome.
//
// Without a Telemetry in ctx the span comes from the global tracer provider
// and no metrics are recorded.
func Observe(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	tel := FromTelemetryContext(ctx)
	timer := NewTimer()

	var span trace.Span
	if tel != nil {
		ctx, span = tel.Tracer.StartOperationSpan(ctx, operation, attrs...)
	} else {
		attrs = append(attrs, AttrOperation.String(operation))
		ctx, span = otel.Tracer("junction").Start(ctx, operation, trace.WithAttributes(attrs...))
	}

	logger := FromContext(ctx).WithField("operation", operation)
	if span.SpanContext().IsValid() {
		logger = logger.WithFields(map[string]interface{}{
			"trace_id": span.SpanContext().TraceID().String(),
			"span_id":  span.SpanContext().SpanID().String(),
		})
	}
	ctx = logger.WithContext(ctx)

	return ctx, func(err error) {
		class := ErrorClass(err)
		if err != nil {
			span.SetAttributes(AttrErrorClass.String(class))
			RecordError(span, err)
		} else {
			RecordSuccess(span)
		}
		span.End()

		if tel != nil {
			tel.Metrics.RecordOperation(operation, class, timer.Duration())
		}
	}
}
