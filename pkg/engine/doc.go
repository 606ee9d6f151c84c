// Package engine defines the domain types and interfaces shared by the
// processor and resource registries.
//
// # Realizations and instances
//
// A realization is the immutable description of a deployable kind, loaded
// once from the catalogues. An instance binds a realization to a target
// platform and tenant and performs the remote operations:
//
//	realization, err := processors.Processor(id)
//	instance, err := realization.ProcessorInstance(pipeline, processorID, target)
//	err = instance.Deploy(ctx, &engine.DeploymentRequest{...})
//
// Processor realizations are keyed by ProcessorIdentifier ("service:filter"),
// resource realizations by ResourceIdentifier ("topic:stream.weather"). Both
// parse from their text form with the technology or type prefix optional.
//
// # Errors
//
// Every failure is an *Error carrying an ErrorClass:
//
//   - validation: malformed input, detected before any remote call
//   - not_found: unknown realization, resource, profile or service
//   - remote: the platform client failed
//   - config: invalid static configuration
//
// Callers branch with IsValidation, IsNotFound, IsRemote and IsConfig, or
// read the finer grained code with CodeOf.
package engine
