package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/openfroyo/junction/pkg/engine"
)

// openTestJournal creates a journal in a temporary directory.
func openTestJournal(t *testing.T) *Journal {
	t.Helper()

	j, err := Open(context.Background(), filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("failed to open journal: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()

	j, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := j.Record(ctx, &Entry{Platform: "np-aws-lz", Tenant: "greenbox", Service: "filter1",
		Processor: "service:filter", Instance: "filter1", Action: ActionDeploy, Outcome: OutcomeAccepted}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Reopening an existing journal keeps its entries.
	j, err = Open(ctx, path)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer j.Close()

	entries, err := j.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected 1 entry after reopening, got %d", len(entries))
	}
}

func TestOpenErrors(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{name: "empty path", path: ""},
		{name: "missing directory", path: filepath.Join(t.TempDir(), "missing", "journal.db")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(context.Background(), tt.path)
			if !engine.IsConfig(err) {
				t.Errorf("Expected config error, got %v", err)
			}
		})
	}
}

func TestRecordAndList(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	pipeline := "weather"
	msg := "deploy request failed"
	class := engine.ErrorClassRemote
	entries := []*Entry{
		{Platform: "np-aws-lz", Tenant: "greenbox", Service: "weather-filter1", Processor: "service:filter",
			Instance: "filter1", Pipeline: &pipeline, Action: ActionDeploy, Outcome: OutcomeAccepted},
		{Platform: "np-aws-lz", Tenant: "greenbox", Service: "filter2", Processor: "service:filter",
			Instance: "filter2", Action: ActionDeploy, Outcome: OutcomeFailed, ErrorClass: &class, Error: &msg},
		{Platform: "pr-aws-lz", Tenant: "greenbox", Service: "weather-filter1", Processor: "service:filter",
			Instance: "filter1", Pipeline: &pipeline, Action: ActionStop, Outcome: OutcomeNotFound},
		{Platform: "np-aws-lz", Tenant: "greenbox", Service: "weather-filter1", Processor: "service:filter",
			Instance: "filter1", Pipeline: &pipeline, Action: ActionStart, Outcome: OutcomeAccepted,
			RecordedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)},
	}
	for _, e := range entries {
		if err := j.Record(ctx, e); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
		if e.ID == "" {
			t.Error("Expected an ID to be assigned")
		}
	}

	tests := []struct {
		name    string
		filter  Filter
		actions []Action
	}{
		{
			name:    "everything newest first",
			filter:  Filter{},
			actions: []Action{ActionStart, ActionStop, ActionDeploy, ActionDeploy},
		},
		{
			name:    "by platform",
			filter:  Filter{Platform: "np-aws-lz"},
			actions: []Action{ActionStart, ActionDeploy, ActionDeploy},
		},
		{
			name:    "by service",
			filter:  Filter{Platform: "np-aws-lz", Tenant: "greenbox", Service: "weather-filter1"},
			actions: []Action{ActionStart, ActionDeploy},
		},
		{
			name:    "limited",
			filter:  Filter{Limit: 1},
			actions: []Action{ActionStart},
		},
		{
			name:   "no match",
			filter: Filter{Tenant: "redbox"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := j.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if len(got) != len(tt.actions) {
				t.Fatalf("Expected %d entries, got %d", len(tt.actions), len(got))
			}
			for i, e := range got {
				if e.Action != tt.actions[i] {
					t.Errorf("Entry %d: action = %s, want %s", i, e.Action, tt.actions[i])
				}
			}
		})
	}

	got, err := j.List(ctx, Filter{Service: "filter2"})
	if err != nil || len(got) != 1 {
		t.Fatalf("Expected the failed deploy, got %v, %v", got, err)
	}
	failed := got[0]
	if failed.ErrorClass == nil || *failed.ErrorClass != engine.ErrorClassRemote {
		t.Errorf("Unexpected error class %v", failed.ErrorClass)
	}
	if failed.Error == nil || *failed.Error != msg {
		t.Errorf("Unexpected error %v", failed.Error)
	}
	if failed.Pipeline != nil {
		t.Errorf("Expected no pipeline, got %s", *failed.Pipeline)
	}

	got, _ = j.List(ctx, Filter{Platform: "np-aws-lz", Service: "weather-filter1", Limit: 1})
	if !got[0].RecordedAt.Equal(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected the given timestamp to be kept, got %s", got[0].RecordedAt)
	}
}

func TestRecordRejectsUnknownAction(t *testing.T) {
	j := openTestJournal(t)

	err := j.Record(context.Background(), &Entry{Platform: "np-aws-lz", Tenant: "greenbox", Service: "filter1",
		Processor: "service:filter", Instance: "filter1", Action: "restart", Outcome: OutcomeAccepted})
	if err == nil {
		t.Error("Expected the action constraint to reject the entry")
	}
}
