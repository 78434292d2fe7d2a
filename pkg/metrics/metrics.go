package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// JobsQueued tracks jobs currently sitting in a priority FIFO.
	JobsQueued = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gearmand_jobs_queued",
			Help: "Number of jobs queued per function and priority",
		},
		[]string{"function", "priority"},
	)

	// JobsRunning tracks jobs currently assigned to a worker.
	JobsRunning = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gearmand_jobs_running",
			Help: "Number of jobs currently assigned to a worker per function",
		},
		[]string{"function"},
	)

	JobsCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gearmand_jobs_completed_total",
			Help: "Total jobs completed successfully per function",
		},
		[]string{"function"},
	)

	JobsFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gearmand_jobs_failed_total",
			Help: "Total jobs that terminated in failure per function",
		},
		[]string{"function"},
	)

	JobsRetriedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gearmand_jobs_retried_total",
			Help: "Total job retries issued per function",
		},
		[]string{"function"},
	)

	WorkersTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gearmand_workers_total",
			Help: "Number of worker connections registered per function",
		},
		[]string{"function"},
	)

	ConnectionsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gearmand_connections_total",
			Help: "Number of live job-protocol connections; every connection is counted under role \"unknown\"",
		},
		[]string{"role"},
	)

	ThreadConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gearmand_thread_connections",
			Help: "Number of connections owned by each I/O thread",
		},
		[]string{"thread"},
	)

	QueueOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gearmand_queue_op_duration_seconds",
			Help:    "Duration of persistent queue adapter operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	PacketsHandledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gearmand_packets_handled_total",
			Help: "Total packets processed by the processing stage per command",
		},
		[]string{"command"},
	)
)

func init() {
	prometheus.MustRegister(
		JobsQueued,
		JobsRunning,
		JobsCompletedTotal,
		JobsFailedTotal,
		JobsRetriedTotal,
		WorkersTotal,
		ConnectionsTotal,
		ThreadConnections,
		QueueOpDuration,
		PacketsHandledTotal,
	)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
