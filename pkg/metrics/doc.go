/*
Package metrics provides Prometheus metrics collection and exposition for
gearmand.

All metrics are registered at package init time and updated inline at their
call sites in pkg/registry, pkg/process, and pkg/queue — there is no
separate polling collector, since job/function/connection counts change on
every packet rather than on a slow reconciliation cycle.

# Metrics Catalog

gearmand_jobs_queued{function,priority}: Gauge, jobs sitting in a priority FIFO.
gearmand_jobs_running{function}: Gauge, jobs currently assigned to a worker.
gearmand_jobs_completed_total{function}: Counter.
gearmand_jobs_failed_total{function}: Counter.
gearmand_jobs_retried_total{function}: Counter.
gearmand_workers_total{function}: Gauge, worker connections registered.
gearmand_connections_total{role}: Gauge, live job-protocol connections (all counted under role="unknown").
gearmand_thread_connections{thread}: Gauge, connections owned by each I/O thread.
gearmand_queue_op_duration_seconds{op}: Histogram, persistent queue adapter latency.
gearmand_packets_handled_total{command}: Counter, packets dispatched by the processing stage.

# Usage

	timer := metrics.NewTimer()
	err := adapter.Add(ctx, rec)
	timer.ObserveDurationVec(metrics.QueueOpDuration, "add")

The HTTP handler is mounted by pkg/server on the optional --metrics-addr
listener alongside LivenessHandler.
*/
package metrics
