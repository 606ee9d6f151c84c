package telemetry

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordOperation(t *testing.T) {
	m, err := NewMetrics(DefaultConfig().Metrics)
	if err != nil {
		t.Fatalf("Failed to create metrics: %v", err)
	}

	m.RecordOperation("processor.deploy", "", 10*time.Millisecond)
	m.RecordOperation("processor.deploy", "remote", 20*time.Millisecond)
	m.RecordOperation("processor.deploy", "remote", 20*time.Millisecond)

	if got := testutil.ToFloat64(m.operations.WithLabelValues("processor.deploy", "success")); got != 1 {
		t.Errorf("Expected 1 success, got %v", got)
	}
	if got := testutil.ToFloat64(m.operations.WithLabelValues("processor.deploy", "failure")); got != 2 {
		t.Errorf("Expected 2 failures, got %v", got)
	}
	if got := testutil.ToFloat64(m.operationErrors.WithLabelValues("processor.deploy", "remote")); got != 2 {
		t.Errorf("Expected 2 remote errors, got %v", got)
	}
}

func TestGauges(t *testing.T) {
	m, _ := NewMetrics(DefaultConfig().Metrics)

	m.SetRealizationCount("processor", "service", 4)
	m.SetResourceUp("stream.a", "topic", true)
	m.SetResourceUp("stream.b", "topic", false)

	if got := testutil.ToFloat64(m.realizations.WithLabelValues("processor", "service")); got != 4 {
		t.Errorf("Expected 4 realizations, got %v", got)
	}
	if got := testutil.ToFloat64(m.resourceUp.WithLabelValues("stream.a", "topic")); got != 1 {
		t.Errorf("Expected stream.a up, got %v", got)
	}
	if got := testutil.ToFloat64(m.resourceUp.WithLabelValues("stream.b", "topic")); got != 0 {
		t.Errorf("Expected stream.b down, got %v", got)
	}
}

func TestDisabledMetrics(t *testing.T) {
	cfg := DefaultConfig().Metrics
	cfg.Enabled = false
	m, err := NewMetrics(cfg)
	if err != nil {
		t.Fatalf("Failed to create metrics: %v", err)
	}

	// No-ops must not panic.
	m.RecordOperation("processor.start", "", time.Second)
	m.SetResourceUp("stream.a", "topic", true)
	m.SetRealizationCount("resource", "topic", 1)

	if m.Gatherer() != nil {
		t.Error("Expected no gatherer when disabled")
	}
	if err := m.StartMetricsServer(); err != nil {
		t.Errorf("Expected no error from disabled server, got %v", err)
	}
}

func TestHandler(t *testing.T) {
	m, _ := NewMetrics(DefaultConfig().Metrics)
	m.RecordOperation("resource.status", "", time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "junction_operations_total") {
		t.Error("Expected operations counter in exposition")
	}
}
