// Package config loads processor and resource configuration files and the
// CLI settings file.
//
// # Configuration files
//
// A processor directory holds one file per processor realization, named
// after the realization id. A resource directory holds any number of topic
// files. Both accept YAML (.yaml, .yml), CUE (.cue) and Starlark (.star).
// CUE files are unified with the built-in schemas (see SchemaRegistry) and
// Starlark files are executed for their config global; both are exported to
// JSON before they are decoded, so every format shares one decoder and one
// set of validation rules.
//
// Loading is all or nothing: one invalid file fails the whole load with a
// config class error naming the file.
//
// A processor file:
//
//	id: greenbox-filter
//	technology: service
//	label: Filter for ${TENANT}
//	inbound-junctions:
//	  - id: input
//	    label: Input topics
//	    allowed-resource-types: [topic]
//	    minimum: 1
//	    environment-variable: INPUT_TOPICS
//	deployment-parameters:
//	  - id: threshold
//	    kind: free-text
//	    label: Threshold
//	    optional: true
//	    default: "10"
//	profiles:
//	  - id: small
//	    label: Small
//	    instances: 1
//	    cpus: 0.5
//	    mem: 512
//	service:
//	  image: registry.${PLATFORM}/filter:1.0.0
//	  environment:
//	    TENANT_NAME: ${TENANT}
//	    THRESHOLD:
//	      parameter: threshold
//
// The same processor in CUE:
//
//	id:    "greenbox-filter"
//	label: "Filter for ${TENANT}"
//	profiles: [{id: "small", label: "Small", instances: 1, cpus: 0.5, mem: 512}]
//	service: image: "registry.${PLATFORM}/filter:1.0.0"
//
// # Settings
//
// The settings file lists platforms and tenants, the configuration
// directories and the client mode. JUNCTION_PLATFORM and JUNCTION_TENANT
// override the defaults; tenant secrets are read from the environment
// variable named by secret-env.
package config
