package vm

import (
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/VictoriaMetrics/metrics"

	"github.com/arloliu/lattice/types"
)

// Option configures a Collector.
type Option func(*Collector)

// WithPrefix sets the metric name prefix.
//
// Default: "lattice"
//
// Parameters:
//   - prefix: The prefix to use for all metric names
//
// Returns:
//   - Option: A configuration option
func WithPrefix(prefix string) Option {
	return func(c *Collector) {
		c.prefix = prefix
	}
}

// WithMetricsSet sets the metrics set to use.
//
// If provided, the collector will register metrics with this set instead
// of creating a new one. The caller is responsible for exposing this set
// (e.g., via metrics.WritePrometheus or a custom handler).
//
// Parameters:
//   - set: The metrics set to use
//
// Returns:
//   - Option: A configuration option
func WithMetricsSet(set *metrics.Set) Option {
	return func(c *Collector) {
		c.set = set
	}
}

// Collector implements types.MetricsCollector using VictoriaMetrics.
//
// Fixed-label metrics are pre-created at initialization time; per-kind
// error counters are created lazily on first use and cached. Thread-safe
// for concurrent use.
type Collector struct {
	set    *metrics.Set
	prefix string

	requestTotal    *metrics.Counter
	requestDuration *metrics.Histogram
	hostExhausted   *metrics.Counter
	scheduledTasks  *metrics.Counter
	schedulerDepth  atomic.Int64

	retrySame    *metrics.Counter
	retryNext    *metrics.Counter
	retryRethrow *metrics.Counter
	retryIgnore  *metrics.Counter

	errMu       sync.Mutex
	errCounters map[types.Kind]*metrics.Counter
}

// Compile-time assertion that Collector implements types.MetricsCollector.
var _ types.MetricsCollector = (*Collector)(nil)

// New creates a new VictoriaMetrics-based metrics collector.
//
// The collector creates its own metrics.Set and registers it globally
// unless WithMetricsSet is supplied.
//
// Parameters:
//   - opts: Configuration options (e.g., WithPrefix)
//
// Returns:
//   - *Collector: A new metrics collector ready for use
//
// Example:
//
//	collector := vm.New(vm.WithPrefix("myapp"))
//	cluster, _ := lattice.NewCluster(sender,
//	    lattice.WithMetrics(collector),
//	)
func New(opts ...Option) *Collector {
	c := &Collector{
		prefix:      "lattice",
		errCounters: make(map[types.Kind]*metrics.Counter),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.set == nil {
		c.set = metrics.NewSet()
		metrics.RegisterSet(c.set)
	}

	c.initMetrics()

	return c
}

// initMetrics pre-creates all fixed-label metrics with the configured prefix.
func (c *Collector) initMetrics() {
	p := c.prefix

	c.requestTotal = c.set.NewCounter(fmt.Sprintf(`%s_requests_total`, p))
	c.requestDuration = c.set.NewHistogram(fmt.Sprintf(`%s_request_duration_seconds`, p))
	c.hostExhausted = c.set.NewCounter(fmt.Sprintf(`%s_host_exhausted_total`, p))
	c.scheduledTasks = c.set.NewCounter(fmt.Sprintf(`%s_scheduled_tasks_total`, p))
	c.set.NewGauge(fmt.Sprintf(`%s_scheduler_queue_depth`, p), func() float64 {
		return float64(c.schedulerDepth.Load())
	})

	c.retrySame = c.set.NewCounter(fmt.Sprintf(`%s_retry_decisions_total{decision="retry_same"}`, p))
	c.retryNext = c.set.NewCounter(fmt.Sprintf(`%s_retry_decisions_total{decision="retry_next"}`, p))
	c.retryRethrow = c.set.NewCounter(fmt.Sprintf(`%s_retry_decisions_total{decision="rethrow"}`, p))
	c.retryIgnore = c.set.NewCounter(fmt.Sprintf(`%s_retry_decisions_total{decision="ignore"}`, p))
}

// Set returns the underlying metrics set.
func (c *Collector) Set() *metrics.Set {
	return c.set
}

// Handler returns an HTTP handler that exposes metrics in Prometheus format.
//
// Example:
//
//	http.HandleFunc("/metrics", collector.Handler)
func (c *Collector) Handler(w http.ResponseWriter, _ *http.Request) {
	c.set.WritePrometheus(w)
}

// WritePrometheus writes all metrics in Prometheus format to the given writer.
//
// Parameters:
//   - w: The writer to write metrics to
func (c *Collector) WritePrometheus(w io.Writer) {
	c.set.WritePrometheus(w)
}

// IncRequestTotal increments the total submitted requests counter.
func (c *Collector) IncRequestTotal() {
	c.requestTotal.Inc()
}

// IncRequestError increments the terminal-failure counter for the given kind.
func (c *Collector) IncRequestError(kind types.Kind) {
	c.errMu.Lock()
	counter, ok := c.errCounters[kind]
	if !ok {
		counter = c.set.NewCounter(fmt.Sprintf(`%s_request_errors_total{kind="%s"}`, c.prefix, kind))
		c.errCounters[kind] = counter
	}
	c.errMu.Unlock()

	counter.Inc()
}

// ObserveRequestDuration records the submission-to-terminal latency in seconds.
func (c *Collector) ObserveRequestDuration(seconds float64) {
	c.requestDuration.Update(seconds)
}

// IncRetryDecision increments the retry-decision counter for the given label.
func (c *Collector) IncRetryDecision(decision string) {
	switch decision {
	case "retry_same":
		c.retrySame.Inc()
	case "retry_next":
		c.retryNext.Inc()
	case "rethrow":
		c.retryRethrow.Inc()
	case "ignore":
		c.retryIgnore.Inc()
	}
}

// IncHostExhausted increments the query-plan exhaustion counter.
func (c *Collector) IncHostExhausted() {
	c.hostExhausted.Inc()
}

// IncScheduledTask increments the deferred-task counter.
func (c *Collector) IncScheduledTask() {
	c.scheduledTasks.Inc()
}

// SetSchedulerQueueDepth sets the pending deferred-task gauge.
func (c *Collector) SetSchedulerQueueDepth(depth int) {
	c.schedulerDepth.Store(int64(depth))
}
