// Package journal keeps a local SQLite record of the lifecycle operations
// sent to platforms: every deploy, start, stop and undeploy with its target
// and outcome. Dry runs are not recorded.
package journal
