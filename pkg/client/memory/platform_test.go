package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/openfroyo/junction/pkg/client"
)

func TestServiceLifecycle(t *testing.T) {
	ctx := context.Background()
	p := New()

	c, err := p.Client(ctx, client.Target{Platform: "np", Tenant: "greenbox"})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	if err := c.StartService(ctx, "svc"); !errors.Is(err, client.ErrNotFound) {
		t.Errorf("Expected ErrNotFound before deploy, got %v", err)
	}

	cfg := &client.ServiceConfiguration{Image: "img:1", Instances: 1, Env: map[string]string{"A": "1"}}
	if err := c.DeployService(ctx, "svc", cfg); err != nil {
		t.Fatalf("Deploy failed: %v", err)
	}
	// Deploy is idempotent.
	if err := c.DeployService(ctx, "svc", cfg); err != nil {
		t.Fatalf("Second deploy failed: %v", err)
	}
	cfg.Env["A"] = "mutated"
	if s, _ := p.Service("greenbox", "svc"); s.Configuration.Env["A"] != "1" {
		t.Error("Expected stored configuration to be isolated from caller mutations")
	}

	status, err := c.ServiceStatus(ctx, "svc")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if !status.Deployed || status.Running {
		t.Errorf("Expected deployed and not running, got %+v", status)
	}

	for i := 0; i < 2; i++ {
		if err := c.StartService(ctx, "svc"); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
	}
	if status, _ := c.ServiceStatus(ctx, "svc"); !status.Running {
		t.Error("Expected running after start")
	}

	if err := c.StopService(ctx, "svc"); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := c.UndeployService(ctx, "svc"); err != nil {
		t.Fatalf("Undeploy failed: %v", err)
	}
	if _, err := c.ServiceStatus(ctx, "svc"); !errors.Is(err, client.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after undeploy, got %v", err)
	}
	if got := len(p.Calls()); got != 10 {
		t.Errorf("Expected 10 recorded calls, got %d", got)
	}
}

func TestTenantIsolation(t *testing.T) {
	ctx := context.Background()
	p := New()
	p.AddTopic("greenbox", "stream.a.greenbox", client.TopicStatus{Provisioned: true, Partitions: 3})

	a, _ := p.Client(ctx, client.Target{Tenant: "greenbox"})
	b, _ := p.Client(ctx, client.Target{Tenant: "other"})

	if _, err := a.TopicStatus(ctx, "stream.a.greenbox"); err != nil {
		t.Errorf("Expected topic for owning tenant, got %v", err)
	}
	if _, err := b.TopicStatus(ctx, "stream.a.greenbox"); !errors.Is(err, client.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for other tenant, got %v", err)
	}
}

func TestFailAuthentication(t *testing.T) {
	p := New()
	p.FailAuthentication(errors.New("token endpoint down"))

	_, err := p.Client(context.Background(), client.Target{Tenant: "greenbox"})
	if !errors.Is(err, client.ErrUnauthorized) {
		t.Fatalf("Expected ErrUnauthorized, got %v", err)
	}

	p.FailAuthentication(nil)
	if _, err := p.Client(context.Background(), client.Target{Tenant: "greenbox"}); err != nil {
		t.Errorf("Expected success after clearing failure, got %v", err)
	}
}
