// Package vm provides a VictoriaMetrics-based implementation of the MetricsCollector interface.
//
// This package uses github.com/VictoriaMetrics/metrics for lightweight,
// high-performance Prometheus-compatible metrics collection.
//
// # Basic Usage
//
// Create a collector with default prefix "lattice":
//
//	collector := vm.New()
//	cluster, _ := lattice.NewCluster(sender,
//	    lattice.WithMetrics(collector),
//	)
//
// # Custom Prefix
//
// Use WithPrefix to customize the metric name prefix:
//
//	collector := vm.New(vm.WithPrefix("myapp"))
//
// This produces metrics like:
//   - myapp_requests_total
//   - myapp_request_duration_seconds
//
// # Exposing Metrics
//
// Use the Handler method to expose metrics via HTTP:
//
//	http.HandleFunc("/metrics", collector.Handler)
//	http.ListenAndServe(":8080", nil)
//
// Or use WritePrometheus to write metrics to a custom writer:
//
//	collector.WritePrometheus(w)
//
// # Metrics Provided
//
// Requests:
//   - {prefix}_requests_total - Counter of submitted requests
//   - {prefix}_request_errors_total{kind} - Counter of terminal failures by kind
//   - {prefix}_request_duration_seconds - Histogram of request latencies
//
// Retries:
//   - {prefix}_retry_decisions_total{decision} - Counter of retry-policy verdicts
//   - {prefix}_hosts_exhausted_total - Counter of requests that ran out of hosts
//
// Scheduler:
//   - {prefix}_scheduled_tasks_total - Counter of deferred tasks
//   - {prefix}_scheduler_queue_depth - Gauge of pending deferred tasks
package vm
