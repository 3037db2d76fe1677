// Package metrics exposes the engine's Prometheus instrumentation. A single
// Collector is registered at startup and threaded into the runtime; a nil
// Collector disables instrumentation without branching at call sites.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds the engine's metric families.
type Collector struct {
	executions    *prometheus.CounterVec
	execDuration  *prometheus.HistogramVec
	nodeDuration  *prometheus.HistogramVec
	toolCalls     *prometheus.CounterVec
	invalidations *prometheus.CounterVec
	compiles      *prometheus.CounterVec
}

// NewCollector registers the engine's metric families on reg. Pass
// prometheus.DefaultRegisterer for the process-wide registry.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		executions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dragent",
			Name:      "workflow_executions_total",
			Help:      "Completed workflow executions by workflow id and outcome.",
		}, []string{"workflow", "success"}),
		execDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dragent",
			Name:      "workflow_execution_seconds",
			Help:      "End to end workflow execution latency.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"workflow"}),
		nodeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dragent",
			Name:      "node_execution_seconds",
			Help:      "Per-node execution latency.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"workflow", "node"}),
		toolCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dragent",
			Name:      "tool_calls_total",
			Help:      "Tool invocations by tool name and outcome.",
		}, []string{"tool", "error"}),
		invalidations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dragent",
			Name:      "cache_invalidations_total",
			Help:      "Compiled graph and runner cache invalidations.",
		}, []string{"kind"}),
		compiles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dragent",
			Name:      "workflow_compiles_total",
			Help:      "Graph compilations by workflow id and outcome.",
		}, []string{"workflow", "success"}),
	}
}

// ObserveExecution records one finished workflow run.
func (c *Collector) ObserveExecution(workflowID string, success bool, d time.Duration) {
	if c == nil {
		return
	}
	c.executions.WithLabelValues(workflowID, strconv.FormatBool(success)).Inc()
	c.execDuration.WithLabelValues(workflowID).Observe(d.Seconds())
}

// ObserveNode records the latency of one node invocation.
func (c *Collector) ObserveNode(workflowID, node string, d time.Duration) {
	if c == nil {
		return
	}
	c.nodeDuration.WithLabelValues(workflowID, node).Observe(d.Seconds())
}

// ObserveCompile records a graph compilation attempt.
func (c *Collector) ObserveCompile(workflowID string, success bool) {
	if c == nil {
		return
	}
	c.compiles.WithLabelValues(workflowID, strconv.FormatBool(success)).Inc()
}

// ToolCall records one tool invocation.
func (c *Collector) ToolCall(tool string, isError bool) {
	if c == nil {
		return
	}
	c.toolCalls.WithLabelValues(tool, strconv.FormatBool(isError)).Inc()
}

// Invalidation records a cache invalidation by kind ("workflow" or "agent").
func (c *Collector) Invalidation(kind string) {
	if c == nil {
		return
	}
	c.invalidations.WithLabelValues(kind).Inc()
}
