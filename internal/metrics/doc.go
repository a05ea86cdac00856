// Package metrics exposes Prometheus instrumentation for the control node.
//
// Each Metrics value owns its own registry so that a restarted listener or
// a test instance never collides with another on registration.
package metrics
