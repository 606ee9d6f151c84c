// Package telemetry provides observability instrumentation for deployment operations.
//
// It combines structured logging (zerolog), distributed tracing
// (OpenTelemetry) and metrics (Prometheus).
//
// # Usage
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
//	ctx = tel.WithContext(ctx)
//
// # Operations
//
// Each deployment protocol operation is wrapped with Observe, which opens a
// span, tags the context logger with the operation name and records duration
// and outcome when done:
//
//	ctx, done := telemetry.Observe(ctx, "processor.deploy",
//	    telemetry.AttrService.String(service))
//	err := deploy(ctx)
//	done(err)
//
// Errors exposing a Classification method are counted by class in
// junction_operation_errors_total.
//
// # Metrics
//
//   - junction_operations_total{operation,status}
//   - junction_operation_duration_seconds{operation}
//   - junction_operation_errors_total{operation,class}
//   - junction_realizations{domain,kind}
//   - junction_resource_up{resource,type}
package telemetry
