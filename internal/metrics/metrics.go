package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Coordinator queue depths.

	QueueDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "domainsearch",
		Name:      "queue_depth",
		Help:      "Number of entries currently buffered in a queue.",
	}, []string{"queue"})

	DispatchPullLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "domainsearch",
		Name:      "dispatch_pull_latency_seconds",
		Help:      "Time a worker waited between requesting and receiving a task.",
		Buckets:   []float64{.001, .01, .1, .5, 1, 5, 10, 30},
	}, []string{"queue"})

	TasksRequeuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "domainsearch",
		Name:      "tasks_requeued_total",
		Help:      "Tasks pushed back to the tail of a queue after a worker dropped mid-task.",
	}, []string{"queue"})

	NotificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "domainsearch",
		Name:      "notifications_total",
		Help:      "Notifications received, by kind.",
	}, []string{"kind"})

	RatingRepliesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "domainsearch",
		Name:      "rating_replies_total",
		Help:      "Rating responses sent, by kind.",
	}, []string{"kind"})

	ConnectedWorkers = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "domainsearch",
		Name:      "connected_workers",
		Help:      "Number of long-lived dispatch connections currently registered.",
	}, []string{"role"})

	// Scanner-side metrics.

	ModuleRunDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "domainsearch",
		Name:      "module_run_duration_seconds",
		Help:      "Duration of one module execution.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"module", "outcome"})

	SchedulerRunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "domainsearch",
		Name:      "scheduler_run_duration_seconds",
		Help:      "Duration of one module-scheduler run (all modules for one attempt).",
		Buckets:   []float64{.1, .5, 1, 2.5, 5, 10, 30, 60},
	})

	RetryAttempt = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "domainsearch",
		Name:      "retry_attempt",
		Help:      "Attempt number a retry task was requeued at.",
		Buckets:   []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
	})

	ModuleExpiredTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "domainsearch",
		Name:      "module_expired_total",
		Help:      "Modules whose retry attempt exceeded rerun_counter_max.",
	}, []string{"module"})
)

func Register() {
	prometheus.MustRegister(
		QueueDepth,
		DispatchPullLatency,
		TasksRequeuedTotal,
		NotificationsTotal,
		RatingRepliesTotal,
		ConnectedWorkers,
		ModuleRunDuration,
		SchedulerRunDuration,
		RetryAttempt,
		ModuleExpiredTotal,
	)
}
