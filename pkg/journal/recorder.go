package journal

import (
	"context"

	"github.com/openfroyo/junction/pkg/engine"
	"github.com/openfroyo/junction/pkg/ident"
	"github.com/openfroyo/junction/pkg/telemetry"
)

// Target names the platform and tenant recorded operations ran against.
type Target struct {
	Platform string
	Tenant   string
}

// recordingInstance records the lifecycle operations of the instance it
// wraps. Everything else is passed through.
type recordingInstance struct {
	engine.ProcessorInstance
	journal *Journal
	target  Target
}

// Record wraps instance so its lifecycle operations are appended to j.
func Record(instance engine.ProcessorInstance, j *Journal, target Target) engine.ProcessorInstance {
	return &recordingInstance{ProcessorInstance: instance, journal: j, target: target}
}

func (r *recordingInstance) Deploy(ctx context.Context, req *engine.DeploymentRequest) error {
	service := r.ServiceName()
	if req != nil && !req.ServiceName.IsZero() {
		service = req.ServiceName
	}
	err := r.ProcessorInstance.Deploy(ctx, req)
	r.record(ctx, ActionDeploy, service, true, err)
	return err
}

func (r *recordingInstance) Start(ctx context.Context, service ident.ServiceName) (bool, error) {
	found, err := r.ProcessorInstance.Start(ctx, service)
	r.record(ctx, ActionStart, service, found, err)
	return found, err
}

func (r *recordingInstance) Stop(ctx context.Context, service ident.ServiceName) (bool, error) {
	found, err := r.ProcessorInstance.Stop(ctx, service)
	r.record(ctx, ActionStop, service, found, err)
	return found, err
}

func (r *recordingInstance) Undeploy(ctx context.Context, service ident.ServiceName) (bool, error) {
	found, err := r.ProcessorInstance.Undeploy(ctx, service)
	r.record(ctx, ActionUndeploy, service, found, err)
	return found, err
}

// record appends the operation. A journal failure is logged and never
// replaces the result of the operation itself.
func (r *recordingInstance) record(ctx context.Context, action Action, service ident.ServiceName, found bool, opErr error) {
	entry := &Entry{
		Platform:  r.target.Platform,
		Tenant:    r.target.Tenant,
		Service:   service.String(),
		Processor: r.Identifier().String(),
		Instance:  r.ProcessorID().String(),
		Action:    action,
		Outcome:   outcomeOf(found, opErr),
	}
	if p := r.PipelineID(); p != nil {
		pipeline := p.String()
		entry.Pipeline = &pipeline
	}
	if opErr != nil {
		msg := opErr.Error()
		entry.Error = &msg
		if class := engine.ClassOf(opErr); class != "" {
			entry.ErrorClass = &class
		}
	}

	// The operation's context may already be cancelled.
	if err := r.journal.Record(context.WithoutCancel(ctx), entry); err != nil {
		telemetry.FromContext(ctx).NewComponentLogger("journal").
			WithService(service.String()).
			WithError(err).
			Warnf("failed to record %s", action)
	}
}
