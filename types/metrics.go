package types

// MetricsCollector defines methods for collecting operational metrics from
// the request-orchestration engine.
//
// Implementations must be thread-safe as methods are called concurrently
// from application goroutines, scheduler callbacks, and I/O completion
// callbacks.
//
// Example usage with VictoriaMetrics (via contrib/metrics/vm):
//
//	import vmmetrics "github.com/arloliu/lattice/contrib/metrics/vm"
//
//	collector := vmmetrics.New(vmmetrics.WithPrefix("myapp"))
//	cluster, _ := lattice.NewCluster(sender,
//	    lattice.WithMetrics(collector),
//	)
//
//	// Expose metrics via HTTP
//	http.HandleFunc("/metrics", collector.Handler)
type MetricsCollector interface {
	// ----------------------
	// Requests
	// ----------------------

	// IncRequestTotal increments the total submitted requests counter.
	IncRequestTotal()

	// IncRequestError increments the terminal-failure counter for the given
	// leaf failure kind.
	IncRequestError(kind Kind)

	// ObserveRequestDuration records the submission-to-terminal latency of a
	// request in seconds.
	ObserveRequestDuration(seconds float64)

	// ----------------------
	// Retries
	// ----------------------

	// IncRetryDecision increments the retry-decision counter for the given
	// decision label ("retry_same", "retry_next", "rethrow", "ignore").
	IncRetryDecision(decision string)

	// IncHostExhausted increments the counter of requests that failed after
	// exhausting every candidate host in the query plan.
	IncHostExhausted()

	// ----------------------
	// Scheduler
	// ----------------------

	// IncScheduledTask increments the deferred-task counter.
	IncScheduledTask()

	// SetSchedulerQueueDepth sets the pending deferred-task gauge.
	SetSchedulerQueueDepth(depth int)
}
