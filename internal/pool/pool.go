// Package pool implements the Process Pool (spec §4.7): owns the disjoint
// CPU-bound and I/O-bound worker sets, places incoming tasks onto the
// least-loaded matching worker, and sizes the sets on Autoscaler or
// shutdown instruction.
package pool

import (
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/linkflow-ai/taskengine/internal/executor"
	"github.com/linkflow-ai/taskengine/internal/platform/logger"
	"github.com/linkflow-ai/taskengine/internal/task"
	"github.com/linkflow-ai/taskengine/internal/worker"
	"github.com/linkflow-ai/taskengine/internal/workerqueue"
)

// shutdownGrace bounds how long the Pool waits for a retiring worker to
// drain before it is considered gone (spec §4.7 shutdown path).
const shutdownGrace = 5 * time.Second

// Config sizes and limits the two worker sets, matching spec §6.
type Config struct {
	CPUBoundCount     int
	IOBoundCount      int
	CPUBoundTaskLimit int
	IOBoundTaskLimit  int
}

// entry bundles a running worker with its command queue and a monotonic
// generation number so scale-in always retires the most recently added.
type entry struct {
	w     *worker.Worker
	queue *workerqueue.Queue
	gen   int
}

// Pool owns and sizes CPU-bound and I/O-bound worker sets.
type Pool struct {
	cfg  Config
	exec executor.Executor
	out  func(*task.Result)
	log  logger.Logger

	mu      sync.Mutex
	cpu     []*entry
	io      []*entry
	nextGen int
	nextCPU int // monotonic id counter
	nextIO  int
	started bool
	cpuIDRR int // round-robin cursor across host cores
}

// New creates a Pool. out is the Output Queue publish function every
// worker's thread pool result flows into.
func New(cfg Config, exec executor.Executor, out func(*task.Result), log logger.Logger) *Pool {
	return &Pool{cfg: cfg, exec: exec, out: out, log: log}
}

// Start spawns the configured initial worker sets.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	for i := 0; i < p.cfg.CPUBoundCount; i++ {
		p.spawnLocked(task.CPUBound)
	}
	for i := 0; i < p.cfg.IOBoundCount; i++ {
		p.spawnLocked(task.IOBound)
	}
	p.started = true
}

func (p *Pool) setFor(t task.Type) *[]*entry {
	if t == task.CPUBound {
		return &p.cpu
	}
	return &p.io
}

func (p *Pool) taskLimitFor(t task.Type) int {
	if t == task.CPUBound {
		return p.cfg.CPUBoundTaskLimit
	}
	return p.cfg.IOBoundTaskLimit
}

// spawnLocked creates one worker of the given type, round-robining cpu_id
// across the host's CPU set, and injects it (and itself into its
// siblings) per spec §4.7. Caller must hold p.mu.
func (p *Pool) spawnLocked(t task.Type) *entry {
	set := p.setFor(t)

	var id string
	if t == task.CPUBound {
		id = workerID("cpu", p.nextCPU)
		p.nextCPU++
	} else {
		id = workerID("io", p.nextIO)
		p.nextIO++
	}

	cpuID := p.cpuIDRR % runtime.NumCPU()
	p.cpuIDRR++

	q := workerqueue.New(id)
	rec := worker.Record{
		WorkerID:   id,
		TaskType:   t,
		CPUID:      cpuID,
		NiceLevel:  niceFor(t),
		MaxThreads: p.taskLimitFor(t),
	}

	w := worker.New(rec, q, p.siblingQueuesFunc(), p.exec, p.out, p.log)
	e := &entry{w: w, queue: q, gen: p.nextGen}
	p.nextGen++

	*set = append(*set, e)
	w.Start()

	if p.log != nil {
		p.log.Info("worker spawned", "worker_id", id, "task_type", string(t), "cpu_id", cpuID)
	}
	return e
}

// niceFor biases I/O-bound workers slightly below normal priority; CPU-
// bound workers keep default niceness so they are not starved by bursty
// I/O-bound work. Tolerant platforms ignore failures to apply this.
func niceFor(t task.Type) int {
	if t == task.IOBound {
		return 5
	}
	return 0
}

func workerID(prefix string, n int) string {
	return prefix + "-" + strconv.Itoa(n)
}

// siblingQueuesFunc returns a closure each worker calls to get the live
// sibling list for stealing (spec §4.4 step 3). It always reflects the
// current membership, including workers added after this worker started.
func (p *Pool) siblingQueuesFunc() func() []*workerqueue.Queue {
	return func() []*workerqueue.Queue {
		p.mu.Lock()
		defer p.mu.Unlock()
		all := make([]*workerqueue.Queue, 0, len(p.cpu)+len(p.io))
		for _, e := range p.cpu {
			all = append(all, e.queue)
		}
		for _, e := range p.io {
			all = append(all, e.queue)
		}
		return all
	}
}

// Submit places a task on the least-loaded matching worker (spec §4.7
// placement). Ties break on lowest index.
func (p *Pool) Submit(t *task.Task) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return false
	}

	set := *p.setFor(t.TaskType)
	if len(set) == 0 {
		return false
	}

	bestIdx := 0
	bestLoad := loadOf(set[0])
	for i := 1; i < len(set); i++ {
		if l := loadOf(set[i]); l < bestLoad {
			bestLoad = l
			bestIdx = i
		}
	}

	return set[bestIdx].queue.Push(workerqueue.Item{Command: workerqueue.ExecuteTask, Task: t})
}

func loadOf(e *entry) int64 {
	return e.w.ActiveTaskCount() + int64(e.w.QueueSize())
}

// AddWorker scales out one worker of the given type (spec §4.7 scale-out).
func (p *Pool) AddWorker(t task.Type) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.spawnLocked(t)
}

// RemoveWorker retires the most recently added worker of the given type
// (LIFO, spec §4.7 scale-in). It sends SHUTDOWN and returns immediately;
// the worker drains its thread pool and exits on its own time, following
// the quiescence discipline from spec §9 "Scale-in safety".
func (p *Pool) RemoveWorker(t task.Type) bool {
	p.mu.Lock()
	set := p.setFor(t)
	if len(*set) == 0 {
		p.mu.Unlock()
		return false
	}
	last := len(*set) - 1
	e := (*set)[last]
	*set = (*set)[:last]
	p.mu.Unlock()

	e.queue.Push(workerqueue.Item{Command: workerqueue.Shutdown})
	go p.drainRetired(e)
	return true
}

// drainRetired polls the retired worker's shared counters until quiescent
// (or the grace period elapses) before discarding it, per spec §9.
func (p *Pool) drainRetired(e *entry) {
	deadline := time.Now().Add(shutdownGrace)
	for time.Now().Before(deadline) {
		if e.w.ActiveTaskCount() == 0 && e.w.ThreadPoolPending() == 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	e.w.Stop()
	if p.log != nil {
		p.log.Info("worker retired", "worker_id", e.w.WorkerID)
	}
}

// Count returns the current number of workers of the given type.
func (p *Pool) Count(t task.Type) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(*p.setFor(t))
}

// WorkerMetrics is one worker's reported status (spec §4.7, §6 get_status).
type WorkerMetrics struct {
	WorkerID            string
	TaskType            task.Type
	ActiveTasks         int64
	QueueSize           int
	ThreadPoolQueueSize int64
	TotalLoad           int64
	CPUPercent          float64
}

// Metrics reports pool-wide and per-worker metrics (spec §4.7, §6).
type Metrics struct {
	CPUWorkerCount int
	IOWorkerCount  int
	Workers        []WorkerMetrics
}

// Status snapshots every worker's metrics.
func (p *Pool) Status() Metrics {
	p.mu.Lock()
	defer p.mu.Unlock()

	m := Metrics{CPUWorkerCount: len(p.cpu), IOWorkerCount: len(p.io)}
	for _, e := range append(append([]*entry{}, p.cpu...), p.io...) {
		m.Workers = append(m.Workers, WorkerMetrics{
			WorkerID:            e.w.WorkerID,
			TaskType:            e.w.TaskType,
			ActiveTasks:         e.w.ActiveTaskCount(),
			QueueSize:           e.w.QueueSize(),
			ThreadPoolQueueSize: e.w.ThreadPoolPending(),
			TotalLoad:           e.w.ActiveTaskCount() + int64(e.w.QueueSize()),
			CPUPercent:          e.w.CPUPercent(),
		})
	}
	return m
}

// CPUWorkerLoads returns active+queue_size for every CPU-bound worker, used
// by the Autoscaler (spec §4.10).
func (p *Pool) CPUWorkerLoads() ([]int64, []float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	loads := make([]int64, len(p.cpu))
	cpuUsages := make([]float64, len(p.cpu))
	for i, e := range p.cpu {
		loads[i] = e.w.ActiveTaskCount() + int64(e.w.QueueSize())
		cpuUsages[i] = e.w.CPUPercent() / 100
	}
	return loads, cpuUsages
}

// Shutdown sends SHUTDOWN to every worker, waits up to the grace period for
// each to go quiescent, then stops it. Stopping waits for executions that
// are still running to return; a straggler is not forcibly terminated.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	all := append(append([]*entry{}, p.cpu...), p.io...)
	p.cpu = nil
	p.io = nil
	p.started = false
	p.mu.Unlock()

	var wg sync.WaitGroup
	for _, e := range all {
		wg.Add(1)
		go func(e *entry) {
			defer wg.Done()
			e.queue.Push(workerqueue.Item{Command: workerqueue.Shutdown})
			p.drainRetired(e)
		}(e)
	}
	wg.Wait()
}
