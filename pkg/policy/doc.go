// Package policy admits or rejects deployments with Open Policy Agent.
//
// A policy directory holds Rego modules (.rego). Each module contributes a
// deny set; every element is a violation. An element is either a message or
// an object with a message and an optional severity:
//
//	# METADATA
//	# title: Trusted registries
//	# custom:
//	#   severity: error
//	package junction.images
//
//	deny contains msg if {
//		image := input.deployment.configuration.image
//		not startswith(image, sprintf("registry.%s/", [input.platform]))
//		msg := sprintf("image %s is not from the platform registry", [image])
//	}
//
// The severity of a module comes from its package METADATA annotation and
// defaults to error. Error violations reject the deployment, warnings are
// logged.
//
// The input document is the engine.DeploymentReview of the deployment: the
// target platform and tenant, the processor and the resolved service
// configuration a dry run would show.
package policy
