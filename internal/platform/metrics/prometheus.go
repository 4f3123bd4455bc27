// Package metrics exposes the engine's Prometheus surface: queue depths,
// per-worker load, result-cache behavior, and autoscaler state.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every Prometheus collector the engine populates.
type Metrics struct {
	reg prometheus.Gatherer

	InputQueueSize    prometheus.Gauge
	InputQueueDropped prometheus.Counter
	OutputQueueSize   prometheus.Gauge

	WorkerActiveTasks   *prometheus.GaugeVec
	WorkerQueueSize     *prometheus.GaugeVec
	WorkerCPUPercent    *prometheus.GaugeVec
	WorkerCount         *prometheus.GaugeVec
	TasksSubmittedTotal prometheus.Counter
	TasksCompletedTotal prometheus.Counter
	TasksFailedTotal    prometheus.Counter

	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter
	CacheEvictions prometheus.Counter

	AutoscalerState prometheus.Gauge
}

// New registers and returns the engine's metrics against reg.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		reg: reg,
		InputQueueSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "taskengine_input_queue_size",
			Help: "Current number of tasks waiting in the input queue.",
		}),
		InputQueueDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskengine_input_queue_dropped_total",
			Help: "Tasks dropped because the input queue was full.",
		}),
		OutputQueueSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "taskengine_output_queue_size",
			Help: "Current number of results waiting in the output queue.",
		}),
		WorkerActiveTasks: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "taskengine_worker_active_tasks",
			Help: "Active task count per worker.",
		}, []string{"worker_id", "task_type"}),
		WorkerQueueSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "taskengine_worker_queue_size",
			Help: "Pending item count in a worker's own queue.",
		}, []string{"worker_id", "task_type"}),
		WorkerCPUPercent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "taskengine_worker_cpu_percent",
			Help: "Last sampled CPU percent for a worker process.",
		}, []string{"worker_id", "task_type"}),
		WorkerCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "taskengine_worker_count",
			Help: "Number of live workers by task type.",
		}, []string{"task_type"}),
		TasksSubmittedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskengine_tasks_submitted_total",
			Help: "Tasks enqueued on the input queue, including workflow-released tasks.",
		}),
		TasksCompletedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskengine_tasks_completed_total",
			Help: "Tasks that published a COMPLETED result.",
		}),
		TasksFailedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskengine_tasks_failed_total",
			Help: "Tasks that published a FAILED result.",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskengine_result_cache_hits_total",
			Help: "Result cache reads that found the task id.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskengine_result_cache_misses_total",
			Help: "Result cache reads that did not find the task id.",
		}),
		CacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskengine_result_cache_evictions_total",
			Help: "Entries evicted from the result cache by per-shard LRU.",
		}),
		AutoscalerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "taskengine_autoscaler_state",
			Help: "Autoscaler state: 0=NORMAL, 1=PRESSURE, 2=COOLDOWN.",
		}),
	}

	reg.MustRegister(
		m.InputQueueSize, m.InputQueueDropped, m.OutputQueueSize,
		m.WorkerActiveTasks, m.WorkerQueueSize, m.WorkerCPUPercent, m.WorkerCount,
		m.TasksSubmittedTotal, m.TasksCompletedTotal, m.TasksFailedTotal,
		m.CacheHits, m.CacheMisses, m.CacheEvictions,
		m.AutoscalerState,
	)
	return m
}

// Handler returns the HTTP handler to mount at /metrics, serving exactly
// the registry these collectors were registered against.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
