package journal

import (
	"context"
	"errors"
	"testing"

	"github.com/openfroyo/junction/pkg/engine"
	"github.com/openfroyo/junction/pkg/ident"
)

// fakeInstance answers lifecycle calls with fixed results.
type fakeInstance struct {
	found bool
	err   error
	calls int
}

func (f *fakeInstance) Identifier() engine.ProcessorIdentifier {
	id, _ := engine.ParseProcessorIdentifier("service:filter")
	return id
}

func (f *fakeInstance) PipelineID() *ident.PipelineID {
	p := ident.MustParse[ident.Pipeline]("weather")
	return &p
}

func (f *fakeInstance) ProcessorID() ident.ProcessorID {
	return ident.MustParse[ident.Processor]("filter1")
}

func (f *fakeInstance) ServiceName() ident.ServiceName {
	return ident.MustParse[ident.Service]("weather-filter1")
}

func (f *fakeInstance) CompatibleResources(ident.JunctionID) []engine.ResourceIdentifier {
	return nil
}

func (f *fakeInstance) Deploy(context.Context, *engine.DeploymentRequest) error {
	f.calls++
	return f.err
}

func (f *fakeInstance) DeployDryRun(context.Context, *engine.DeploymentRequest) (*engine.DeploymentPreview, error) {
	f.calls++
	return &engine.DeploymentPreview{}, f.err
}

func (f *fakeInstance) Start(context.Context, ident.ServiceName) (bool, error) {
	f.calls++
	return f.found, f.err
}

func (f *fakeInstance) Stop(context.Context, ident.ServiceName) (bool, error) {
	f.calls++
	return f.found, f.err
}

func (f *fakeInstance) Undeploy(context.Context, ident.ServiceName) (bool, error) {
	f.calls++
	return f.found, f.err
}

func (f *fakeInstance) Status(context.Context, ident.ServiceName) (*engine.ProcessorStatus, error) {
	f.calls++
	return &engine.ProcessorStatus{}, f.err
}

func TestRecord(t *testing.T) {
	service := ident.MustParse[ident.Service]("custom")
	remote := engine.NewRemoteError("deploy request failed", errors.New("connection refused"))
	rejected := engine.NewValidationError("deployment rejected by policy", nil).
		WithCode(engine.ErrCodePolicyViolation)

	tests := []struct {
		name    string
		fake    *fakeInstance
		call    func(engine.ProcessorInstance) error
		action  Action
		service string
		outcome Outcome
		class   engine.ErrorClass
	}{
		{
			name: "deploy with default service",
			fake: &fakeInstance{},
			call: func(i engine.ProcessorInstance) error {
				return i.Deploy(context.Background(), &engine.DeploymentRequest{})
			},
			action:  ActionDeploy,
			service: "weather-filter1",
			outcome: OutcomeAccepted,
		},
		{
			name: "deploy with service override",
			fake: &fakeInstance{},
			call: func(i engine.ProcessorInstance) error {
				return i.Deploy(context.Background(), &engine.DeploymentRequest{ServiceName: service})
			},
			action:  ActionDeploy,
			service: "custom",
			outcome: OutcomeAccepted,
		},
		{
			name: "deploy rejected",
			fake: &fakeInstance{err: rejected},
			call: func(i engine.ProcessorInstance) error {
				return i.Deploy(context.Background(), &engine.DeploymentRequest{})
			},
			action:  ActionDeploy,
			service: "weather-filter1",
			outcome: OutcomeRejected,
			class:   engine.ErrorClassValidation,
		},
		{
			name: "start missing service",
			fake: &fakeInstance{found: false},
			call: func(i engine.ProcessorInstance) error {
				_, err := i.Start(context.Background(), service)
				return err
			},
			action:  ActionStart,
			service: "custom",
			outcome: OutcomeNotFound,
		},
		{
			name: "stop",
			fake: &fakeInstance{found: true},
			call: func(i engine.ProcessorInstance) error {
				_, err := i.Stop(context.Background(), service)
				return err
			},
			action:  ActionStop,
			service: "custom",
			outcome: OutcomeAccepted,
		},
		{
			name: "undeploy failed",
			fake: &fakeInstance{err: remote},
			call: func(i engine.ProcessorInstance) error {
				_, err := i.Undeploy(context.Background(), service)
				return err
			},
			action:  ActionUndeploy,
			service: "custom",
			outcome: OutcomeFailed,
			class:   engine.ErrorClassRemote,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := openTestJournal(t)
			instance := Record(tt.fake, j, Target{Platform: "np-aws-lz", Tenant: "greenbox"})

			err := tt.call(instance)
			if !errors.Is(err, tt.fake.err) {
				t.Errorf("Expected the operation error to be returned unchanged, got %v", err)
			}
			if tt.fake.calls != 1 {
				t.Errorf("Expected 1 call on the wrapped instance, got %d", tt.fake.calls)
			}

			entries, err := j.List(context.Background(), Filter{})
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if len(entries) != 1 {
				t.Fatalf("Expected 1 entry, got %d", len(entries))
			}
			e := entries[0]
			if e.Action != tt.action || e.Outcome != tt.outcome || e.Service != tt.service {
				t.Errorf("Unexpected entry %+v", e)
			}
			if e.Platform != "np-aws-lz" || e.Tenant != "greenbox" || e.Processor != "service:filter" || e.Instance != "filter1" {
				t.Errorf("Unexpected identity %+v", e)
			}
			if e.Pipeline == nil || *e.Pipeline != "weather" {
				t.Errorf("Expected pipeline weather, got %v", e.Pipeline)
			}
			if tt.class == "" {
				if e.ErrorClass != nil || e.Error != nil {
					t.Errorf("Expected no error, got %v %v", e.ErrorClass, e.Error)
				}
			} else if e.ErrorClass == nil || *e.ErrorClass != tt.class {
				t.Errorf("Expected error class %s, got %v", tt.class, e.ErrorClass)
			}
		})
	}
}

func TestRecordSkipsReadOnlyOperations(t *testing.T) {
	j := openTestJournal(t)
	fake := &fakeInstance{found: true}
	instance := Record(fake, j, Target{Platform: "np-aws-lz", Tenant: "greenbox"})
	service := ident.MustParse[ident.Service]("custom")

	if _, err := instance.DeployDryRun(context.Background(), &engine.DeploymentRequest{}); err != nil {
		t.Fatal(err)
	}
	if _, err := instance.Status(context.Background(), service); err != nil {
		t.Fatal(err)
	}

	entries, _ := j.List(context.Background(), Filter{})
	if len(entries) != 0 {
		t.Errorf("Expected dry runs and status queries not to be recorded, got %d entries", len(entries))
	}
	if fake.calls != 2 {
		t.Errorf("Expected both calls to reach the instance, got %d", fake.calls)
	}
}

func TestRecordJournalFailure(t *testing.T) {
	j := openTestJournal(t)
	_ = j.Close()

	fake := &fakeInstance{found: true}
	instance := Record(fake, j, Target{Platform: "np-aws-lz", Tenant: "greenbox"})

	found, err := instance.Start(context.Background(), ident.MustParse[ident.Service]("custom"))
	if err != nil || !found {
		t.Errorf("Expected the operation result despite the closed journal, got %t, %v", found, err)
	}
}
