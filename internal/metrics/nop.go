// Package metrics provides internal metrics utilities for Lattice.
package metrics

import "github.com/arloliu/lattice/types"

// NopMetrics is a no-op metrics collector that discards all metrics.
//
// This is used as the default metrics collector when no collector is
// configured, avoiding nil checks throughout the codebase.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements types.MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNopMetrics creates a new no-op metrics collector.
//
// Returns:
//   - *NopMetrics: A collector that discards all metrics
func NewNopMetrics() *NopMetrics {
	return &NopMetrics{}
}

// IncRequestTotal discards the metric.
func (m *NopMetrics) IncRequestTotal() {}

// IncRequestError discards the metric.
func (m *NopMetrics) IncRequestError(_ types.Kind) {}

// ObserveRequestDuration discards the metric.
func (m *NopMetrics) ObserveRequestDuration(_ float64) {}

// IncRetryDecision discards the metric.
func (m *NopMetrics) IncRetryDecision(_ string) {}

// IncHostExhausted discards the metric.
func (m *NopMetrics) IncHostExhausted() {}

// IncScheduledTask discards the metric.
func (m *NopMetrics) IncScheduledTask() {}

// SetSchedulerQueueDepth discards the metric.
func (m *NopMetrics) SetSchedulerQueueDepth(_ int) {}
