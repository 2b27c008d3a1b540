// Package metrics exports Prometheus metrics for the reconciler, the
// event queue, the operation tracker and flavor sync.
package metrics
