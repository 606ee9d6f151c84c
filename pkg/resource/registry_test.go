package resource

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/openfroyo/junction/pkg/client"
	"github.com/openfroyo/junction/pkg/client/memory"
	"github.com/openfroyo/junction/pkg/config"
	"github.com/openfroyo/junction/pkg/engine"
	"github.com/openfroyo/junction/pkg/ident"
	"github.com/openfroyo/junction/pkg/resource/topic"
	"github.com/openfroyo/junction/pkg/target"
)

func newRegistry(t *testing.T, ids ...string) *Registry {
	t.Helper()
	var configs []*config.TopicConfig
	for _, id := range ids {
		configs = append(configs, &config.TopicConfig{ID: id, Label: id})
	}
	topics, err := topic.NewRegistry(configs)
	if err != nil {
		t.Fatalf("Failed to create topic registry: %v", err)
	}
	return NewRegistry(topics)
}

func testTarget(p *memory.Platform) *target.Context {
	return target.New(
		target.Platform{Name: "np-aws-lz", Realm: "dev-lz", InternalDomain: "np.internal.example.com", PublicDomain: "np.example.com"},
		target.Tenant{Name: ident.MustParse[ident.Tenant]("greenbox")},
		p,
	)
}

func TestResource(t *testing.T) {
	r := newRegistry(t, "stream.a", "stream.b")

	realization, err := r.Resource(engine.ResourceTypeTopic, ident.MustParse[ident.Resource]("stream.a"))
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if realization.Identifier().String() != "topic:stream.a" {
		t.Errorf("Unexpected identifier %s", realization.Identifier())
	}

	_, err = r.Resource(engine.ResourceTypeTopic, ident.MustParse[ident.Resource]("stream.c"))
	if !engine.IsNotFound(err) {
		t.Errorf("Expected not found, got %v", err)
	}

	_, err = r.Resource(engine.ResourceType("queue"), ident.MustParse[ident.Resource]("stream.a"))
	if !engine.IsValidation(err) {
		t.Errorf("Expected validation error for unknown type, got %v", err)
	}

	d, err := r.ResourceDescriptor(engine.ResourceTypeTopic, ident.MustParse[ident.Resource]("stream.b"))
	if err != nil || d.Address != "stream.b" {
		t.Errorf("Unexpected descriptor %+v, %v", d, err)
	}
}

func TestListings(t *testing.T) {
	r := newRegistry(t, "stream.c", "stream.a", "stream.b")

	ids := r.ResourceIdentifiers()
	want := []string{"topic:stream.a", "topic:stream.b", "topic:stream.c"}
	if len(ids) != len(want) {
		t.Fatalf("Expected %d identifiers, got %d", len(want), len(ids))
	}
	for i := range want {
		if ids[i].String() != want[i] {
			t.Errorf("ids[%d] = %s, want %s", i, ids[i], want[i])
		}
	}

	if got := r.ResourceDescriptors(engine.ResourceTypeTopic); len(got) != 3 || got[0].ID.String() != "stream.a" {
		t.Errorf("Unexpected descriptors %+v", got)
	}
	if got := r.ResourceIdentifiersByType(engine.ResourceTypeTopic); len(got) != 3 {
		t.Errorf("Expected 3 topics, got %d", len(got))
	}
	if got := r.ResourceRealizationsByType(engine.ResourceType("queue")); got != nil {
		t.Errorf("Expected nothing for unknown type, got %v", got)
	}
	if r.Count(engine.ResourceTypeTopic) != 3 {
		t.Errorf("Expected count 3, got %d", r.Count(engine.ResourceTypeTopic))
	}
}

func TestResourceDescriptorsWithStatus(t *testing.T) {
	p := memory.New()
	var ids []string
	for i := range 20 {
		id := fmt.Sprintf("stream.t%02d", i)
		ids = append(ids, id)
		p.AddTopic("greenbox", id, client.TopicStatus{Provisioned: i%2 == 0})
	}
	r := newRegistry(t, ids...)
	r.StatusConcurrency = 4

	results, err := r.ResourceDescriptorsWithStatus(context.Background(), engine.ResourceTypeTopic, testTarget(p))
	if err != nil {
		t.Fatalf("Fan-out failed: %v", err)
	}
	if len(results) != 20 {
		t.Fatalf("Expected 20 results, got %d", len(results))
	}
	for i, res := range results {
		if res.Descriptor.ID.String() != ids[i] {
			t.Errorf("results[%d] = %s, want %s", i, res.Descriptor.ID, ids[i])
		}
		if res.Status.Up != (i%2 == 0) {
			t.Errorf("Unexpected status for %s: %+v", ids[i], res.Status)
		}
	}
}

func TestResourceDescriptorsWithStatusMissing(t *testing.T) {
	p := memory.New()
	p.AddTopic("greenbox", "stream.a", client.TopicStatus{Provisioned: true})
	r := newRegistry(t, "stream.a", "stream.b")

	_, err := r.ResourceDescriptorsWithStatus(context.Background(), engine.ResourceTypeTopic, testTarget(p))
	if !engine.IsNotFound(err) {
		t.Errorf("Expected not found error for the missing topic, got %v", err)
	}
}

func TestResourceStatus(t *testing.T) {
	p := memory.New()
	p.AddTopic("greenbox", "stream.a", client.TopicStatus{Provisioned: true})
	r := newRegistry(t, "stream.a")

	status, err := r.ResourceStatus(context.Background(), engine.ResourceIdentifier{
		Type: engine.ResourceTypeTopic,
		ID:   ident.MustParse[ident.Resource]("stream.a"),
	}, testTarget(p))
	if err != nil || !status.Up {
		t.Errorf("Unexpected status %+v, %v", status, err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	content := "topics:\n  - id: stream.a\n    label: A\n"
	if err := os.WriteFile(filepath.Join(dir, "topics.yaml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := Load(config.NewLoader(), dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if r.Count(engine.ResourceTypeTopic) != 1 {
		t.Errorf("Expected 1 topic, got %d", r.Count(engine.ResourceTypeTopic))
	}

	if _, err := Load(config.NewLoader(), filepath.Join(dir, "missing")); !engine.IsConfig(err) {
		t.Errorf("Expected config error, got %v", err)
	}
}
