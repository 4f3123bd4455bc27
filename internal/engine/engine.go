// Package engine assembles the Admission Gate, the Input/Output Queues,
// the Process Pool, the Workflow Manager, the Result Cache, the Result
// Router and the Autoscaler behind a single façade (spec §4.11, §6).
package engine

import (
	"sync"
	"time"

	"github.com/linkflow-ai/taskengine/internal/admission"
	"github.com/linkflow-ai/taskengine/internal/autoscaler"
	"github.com/linkflow-ai/taskengine/internal/cache"
	"github.com/linkflow-ai/taskengine/internal/enginerr"
	"github.com/linkflow-ai/taskengine/internal/executor"
	"github.com/linkflow-ai/taskengine/internal/platform/config"
	"github.com/linkflow-ai/taskengine/internal/platform/logger"
	"github.com/linkflow-ai/taskengine/internal/platform/metrics"
	"github.com/linkflow-ai/taskengine/internal/pool"
	"github.com/linkflow-ai/taskengine/internal/queue"
	"github.com/linkflow-ai/taskengine/internal/router"
	"github.com/linkflow-ai/taskengine/internal/task"
	"github.com/linkflow-ai/taskengine/internal/workflow"
)

// resultCacheShards and resultCacheShardSize are ambient sizing choices:
// the spec names the cache's shape (spec §4.9) but not these constants.
const (
	resultCacheShards    = 16
	resultCacheShardSize = 4096

	// dispatchPollInterval is the dispatcher thread's idle backoff when the
	// Input Queue is empty (spec §4.5).
	dispatchPollInterval = 50 * time.Millisecond
	// getResultPollInterval is GetResult's cache poll cadence while a task
	// is still outstanding.
	getResultPollInterval = 20 * time.Millisecond
	// metricsSyncInterval is how often gauge-shaped metrics (queue depths,
	// per-worker load) are resampled from live component state.
	metricsSyncInterval = time.Second
)

// Engine is the top-level façade (spec §4.11): SubmitTask, SubmitWorkflow,
// GetResult and GetStatus are the only operations external callers use.
type Engine struct {
	cfg *config.Config
	log logger.Logger
	met *metrics.Metrics

	gate     *admission.Gate
	input    *queue.Input
	output   *queue.Output
	procPool *pool.Pool
	wf       *workflow.Manager
	results  *cache.Cache
	rtr      *router.Router
	scaler   *autoscaler.Autoscaler

	mu        sync.Mutex
	running   bool
	stopDisp  chan struct{}
	dispDone  chan struct{}
	stopMet   chan struct{}
	metDone   chan struct{}

	lastInputDropped int64
}

// New wires every component from cfg. exec is the Executor the process
// pool's thread pools run tasks through. met is the already-registered
// Prometheus collector set this engine populates.
func New(cfg *config.Config, exec executor.Executor, log logger.Logger, met *metrics.Metrics) *Engine {
	e := &Engine{cfg: cfg, log: log, met: met}

	e.gate = admission.New(cfg.CPUThreshold, cfg.MemThreshold, log)
	e.input = queue.NewInput(cfg.InputQueueSize)
	e.output = queue.NewOutput(cfg.OutputQueueSize)
	e.results = cache.New(resultCacheShards, resultCacheShardSize, e.onEvict)
	e.wf = workflow.New()

	poolCfg := pool.Config{
		CPUBoundCount:     cfg.CPUBoundCount,
		IOBoundCount:      cfg.IOBoundCount,
		CPUBoundTaskLimit: cfg.CPUBoundTaskLimit,
		IOBoundTaskLimit:  cfg.IOBoundTaskLimit,
	}
	e.procPool = pool.New(poolCfg, exec, e.onWorkerResult, log)

	e.rtr = router.New(e.output, e.results, e.wf, e.dispatchInternal, log)
	e.scaler = autoscaler.New(e.procPool, cfg.CPUBoundCount, log, e.onAutoscalerState)

	return e
}

func (e *Engine) onWorkerResult(r *task.Result) {
	if !e.output.Put(r) {
		if e.log != nil {
			e.log.Error("output queue full, result dropped", "task_id", r.TaskID)
		}
		return
	}
	if e.met != nil {
		if r.Status == task.Completed {
			e.met.TasksCompletedTotal.Inc()
		} else {
			e.met.TasksFailedTotal.Inc()
		}
	}
}

func (e *Engine) onEvict() {
	if e.met != nil {
		e.met.CacheEvictions.Inc()
	}
}

func (e *Engine) onAutoscalerState(s autoscaler.State) {
	if e.met == nil {
		return
	}
	switch s {
	case autoscaler.Pressure:
		e.met.AutoscalerState.Set(1)
	case autoscaler.Cooldown:
		e.met.AutoscalerState.Set(2)
	default:
		e.met.AutoscalerState.Set(0)
	}
}

// Start brings every component online. Calling Start twice returns
// ErrAlreadyStarted.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return enginerr.ErrAlreadyStarted
	}

	e.procPool.Start()
	e.rtr.Start()
	e.scaler.Start()

	e.stopDisp = make(chan struct{})
	e.dispDone = make(chan struct{})
	go e.dispatchLoop(e.stopDisp, e.dispDone)

	if e.met != nil {
		e.stopMet = make(chan struct{})
		e.metDone = make(chan struct{})
		go e.metricsLoop(e.stopMet, e.metDone)
	}

	e.running = true
	if e.log != nil {
		e.log.Info("engine started",
			"cpu_bound_count", e.cfg.CPUBoundCount, "io_bound_count", e.cfg.IOBoundCount)
	}
	return nil
}

// Shutdown stops accepting new work, drains the dispatcher, stops the
// autoscaler and router, and shuts down the process pool.
func (e *Engine) Shutdown() error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return enginerr.ErrNotStarted
	}
	e.running = false
	stopDisp, dispDone := e.stopDisp, e.dispDone
	stopMet, metDone := e.stopMet, e.metDone
	e.mu.Unlock()

	close(stopDisp)
	<-dispDone

	if stopMet != nil {
		close(stopMet)
		<-metDone
	}

	e.scaler.Stop()
	e.rtr.Stop()
	e.input.Close()
	e.output.Close()
	e.procPool.Shutdown()

	if e.log != nil {
		e.log.Info("engine shutdown complete")
	}
	return nil
}

// dispatchLoop is the dispatcher thread (spec §4.5): pull from the Input
// Queue, place onto the Process Pool, and if placement fails because the
// matching worker set momentarily has no capacity, put the task back and
// retry on the next tick.
func (e *Engine) dispatchLoop(stop chan struct{}, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		default:
		}

		t, ok := e.input.Get(dispatchPollInterval)
		if !ok {
			continue
		}
		if !e.procPool.Submit(t) {
			if e.log != nil {
				e.log.Warn("process pool rejected task, retrying", "task_id", t.ID)
			}
			if !e.input.Put(t) {
				if e.log != nil {
					e.log.Error("task dropped: input queue full on retry", "task_id", t.ID)
				}
			}
		}
	}
}

// metricsLoop periodically resamples queue depths and per-worker load into
// the gauge-shaped collectors, and advances the input-queue dropped counter
// from the queue's running total; the other counters are updated inline at
// their call sites instead (onWorkerResult, onEvict, SubmitTask, GetResult).
func (e *Engine) metricsLoop(stop chan struct{}, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(metricsSyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			e.syncMetrics()
		}
	}
}

func (e *Engine) syncMetrics() {
	inStatus := e.input.Status()
	e.met.InputQueueSize.Set(float64(inStatus.Size))
	if delta := inStatus.TotalDropped - e.lastInputDropped; delta > 0 {
		e.met.InputQueueDropped.Add(float64(delta))
	}
	e.lastInputDropped = inStatus.TotalDropped

	e.met.OutputQueueSize.Set(float64(e.output.Status().Size))

	poolStatus := e.procPool.Status()
	e.met.WorkerCount.WithLabelValues(string(task.CPUBound)).Set(float64(poolStatus.CPUWorkerCount))
	e.met.WorkerCount.WithLabelValues(string(task.IOBound)).Set(float64(poolStatus.IOWorkerCount))
	for _, w := range poolStatus.Workers {
		taskType := string(w.TaskType)
		e.met.WorkerActiveTasks.WithLabelValues(w.WorkerID, taskType).Set(float64(w.ActiveTasks))
		e.met.WorkerQueueSize.WithLabelValues(w.WorkerID, taskType).Set(float64(w.QueueSize))
		e.met.WorkerCPUPercent.WithLabelValues(w.WorkerID, taskType).Set(w.CPUPercent)
	}
}

// SubmitTask runs the task through the Admission Gate then the Input
// Queue (spec §4.11, §8 scenario "single task").
func (e *Engine) SubmitTask(t *task.Task) (string, error) {
	if !e.isRunning() {
		return "", enginerr.ErrNotStarted
	}
	if !e.gate.ShouldAccept() {
		return "", enginerr.ErrAdmissionRefused
	}
	if !e.input.Put(t) {
		return "", enginerr.ErrQueueFull
	}
	if e.met != nil {
		e.met.TasksSubmittedTotal.Inc()
	}
	return t.ID, nil
}

// dispatchInternal is the Router's Dispatch callback (spec §4.9): a
// workflow-released task is resubmitted without the Admission Gate — see
// SPEC_FULL.md Open Question decision #3.
func (e *Engine) dispatchInternal(t *task.Task) {
	if !e.input.Put(t) {
		if e.log != nil {
			e.log.Error("workflow task dropped: input queue full", "task_id", t.ID)
		}
		return
	}
	if e.met != nil {
		e.met.TasksSubmittedTotal.Inc()
	}
}

// SubmitWorkflow registers a batch of interdependent tasks with the
// Workflow Manager and submits the subset that is immediately ready
// (spec §8 scenarios "dependency chain" and "fan-out/fan-in"). Every task
// in the batch still passes the Admission Gate on this initial submission.
func (e *Engine) SubmitWorkflow(tasks []*task.Task) ([]string, error) {
	if !e.isRunning() {
		return nil, enginerr.ErrNotStarted
	}
	if !e.gate.ShouldAccept() {
		return nil, enginerr.ErrAdmissionRefused
	}

	ready := e.wf.AddBatch(tasks)

	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}

	for _, t := range ready {
		if !e.input.Put(t) {
			if e.log != nil {
				e.log.Error("workflow initial task dropped: input queue full", "task_id", t.ID)
			}
			continue
		}
		if e.met != nil {
			e.met.TasksSubmittedTotal.Inc()
		}
	}
	return ids, nil
}

// GetResult waits up to timeout for taskID's result to appear in the
// Result Cache, popping it on success (spec §4.9, §4.11).
func (e *Engine) GetResult(taskID string, timeout time.Duration) (*task.Result, bool) {
	deadline := time.Now().Add(timeout)
	for {
		if r, ok := e.results.Pop(taskID); ok {
			if e.met != nil {
				e.met.CacheHits.Inc()
			}
			return r, true
		}
		if e.met != nil {
			e.met.CacheMisses.Inc()
		}
		if timeout <= 0 || time.Now().After(deadline) {
			return nil, false
		}
		time.Sleep(getResultPollInterval)
	}
}

func (e *Engine) isRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Status is the structured report from GetStatus. Field names are part of
// the external contract (spec §6 "external tools key on these names") and
// must not be renamed casually.
type Status struct {
	Engine     EngineStatus      `json:"engine"`
	Components ComponentsStatus  `json:"components"`
}

type EngineStatus struct {
	IsRunning bool `json:"is_running"`
}

type ComponentsStatus struct {
	InputQueue  queue.InputStatus    `json:"input_queue"`
	OutputQueue queue.OutputStatus   `json:"output_queue"`
	ProcessPool ProcessPoolStatus    `json:"process_pool"`
}

type ProcessPoolStatus struct {
	Health  string         `json:"health"`
	Metrics []WorkerStatus `json:"metrics"`
}

type WorkerStatus struct {
	WorkerID            string  `json:"worker_id"`
	TaskType             string  `json:"task_type"`
	ActiveTasks          int64   `json:"active_tasks"`
	QueueSize            int     `json:"queue_size"`
	ThreadPoolQueueSize  int64   `json:"thread_pool_queue_size"`
	TotalLoad            int64   `json:"total_load"`
	CPUPercent           float64 `json:"cpu_percent"`
}

// GetStatus returns the full structured report (spec §6).
func (e *Engine) GetStatus() Status {
	poolStatus := e.procPool.Status()
	workers := make([]WorkerStatus, 0, len(poolStatus.Workers))
	for _, w := range poolStatus.Workers {
		workers = append(workers, WorkerStatus{
			WorkerID:            w.WorkerID,
			TaskType:             string(w.TaskType),
			ActiveTasks:          w.ActiveTasks,
			QueueSize:            w.QueueSize,
			ThreadPoolQueueSize:  w.ThreadPoolQueueSize,
			TotalLoad:            w.TotalLoad,
			CPUPercent:           w.CPUPercent,
		})
	}

	return Status{
		Engine: EngineStatus{IsRunning: e.isRunning()},
		Components: ComponentsStatus{
			InputQueue:  e.input.Status(),
			OutputQueue: e.output.Status(),
			ProcessPool: ProcessPoolStatus{
				Health:  string(e.gate.CheckHealth()),
				Metrics: workers,
			},
		},
	}
}
