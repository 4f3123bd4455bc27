// Package worker implements the Worker Process (spec §4.6): a long-lived
// unit pinned to a CPU core with a niceness value, hosting one Thread
// Pool, pulling from its own queue and stealing from peers per §4.4.
package worker

import (
	"context"
	"math"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/linkflow-ai/taskengine/internal/executor"
	"github.com/linkflow-ai/taskengine/internal/platform/logger"
	"github.com/linkflow-ai/taskengine/internal/task"
	"github.com/linkflow-ai/taskengine/internal/threadpool"
	"github.com/linkflow-ai/taskengine/internal/workerqueue"
)

const (
	admissionPollInterval = time.Millisecond
	idleSleep             = time.Millisecond
	heartbeatInterval      = time.Second
)

// Record is the internal worker record from spec §3: identity and
// placement settings. The counters the Process Pool reads for placement
// and status are kept on Worker.
type Record struct {
	WorkerID   string
	TaskType   task.Type
	CPUID      int // -1 means unset
	NiceLevel  int
	MaxThreads int
}

// Worker is a running worker process (a goroutine tree, standing in for an
// OS process in this single-binary engine — see DESIGN.md).
type Worker struct {
	Record

	own      *workerqueue.Queue
	siblings func() []*workerqueue.Queue
	pool     *threadpool.Pool
	publish  func(*task.Result)
	log      logger.Logger

	cpuPercentBits uint64 // atomic, math.Float64bits
	rssMB          int64  // atomic

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New constructs a Worker. siblings returns the current full sibling queue
// list (including this worker's own — the consumer loop skips itself),
// refreshed live by the Process Pool on scale events.
func New(rec Record, own *workerqueue.Queue, siblings func() []*workerqueue.Queue, exec executor.Executor, publish func(*task.Result), log logger.Logger) *Worker {
	w := &Worker{
		Record:   rec,
		own:      own,
		siblings: siblings,
		publish:  publish,
		log:      log,
	}
	w.pool = threadpool.New(rec.WorkerID, rec.MaxThreads, exec, w.onResult, log)
	return w
}

func (w *Worker) onResult(r *task.Result) {
	w.publish(r)
}

// Start applies affinity/nice (tolerant of failure), then runs the
// heartbeat sampler and the consumer loop until Stop is called.
func (w *Worker) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	if w.CPUID >= 0 {
		if err := pinToCPU(w.CPUID); err != nil && w.log != nil {
			w.log.Warn("worker cpu pin failed, continuing unpinned", "worker_id", w.WorkerID, "error", err.Error())
		}
	}
	if err := applyNice(w.NiceLevel); err != nil && w.log != nil {
		w.log.Warn("worker nice level failed, continuing at default priority", "worker_id", w.WorkerID, "error", err.Error())
	}

	w.wg.Add(2)
	go w.heartbeatLoop(ctx)
	go w.consumeLoop(ctx)
}

// Stop signals the worker's loops to exit and waits for them, then drains
// the thread pool. Callers needing the SHUTDOWN-command discipline of
// spec §4.7's scale-in should push a Shutdown item instead of calling Stop
// directly; Stop is for the Pool's final teardown path.
func (w *Worker) Stop() {
	w.cancel()
	w.wg.Wait()
	w.pool.Shutdown()
}

// consumeLoop implements spec §4.4 exactly: admission control, own queue
// first, steal from the fullest sibling, else bounded idle sleep.
func (w *Worker) consumeLoop(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if w.pool.Pending()+w.pool.Active() >= int64(w.MaxThreads) {
			time.Sleep(admissionPollInterval)
			continue
		}

		if item, ok := w.own.TryTakeOwn(); ok {
			if item.Command == workerqueue.Shutdown {
				return
			}
			w.pool.Submit(item.Task)
			continue
		}

		if item, ok := w.stealOne(); ok {
			w.pool.Submit(item.Task)
			continue
		}

		time.Sleep(idleSleep)
	}
}

// stealCandidate pairs a sibling queue with its observed length at scan
// time, for the descending sort in stealOne.
type stealCandidate struct {
	q      *workerqueue.Queue
	length int
}

// stealOne scans sibling queues, fullest first, and takes the first
// available ExecuteTask item.
func (w *Worker) stealOne() (workerqueue.Item, bool) {
	if w.siblings == nil {
		return workerqueue.Item{}, false
	}
	peers := w.siblings()
	candidates := make([]stealCandidate, 0, len(peers))
	for _, q := range peers {
		if q == w.own {
			continue
		}
		if l := q.Len(); l > 0 {
			candidates = append(candidates, stealCandidate{q, l})
		}
	}
	sortCandidatesDesc(candidates)
	for _, c := range candidates {
		if item, ok := c.q.TryStealTask(); ok {
			return item, true
		}
	}
	return workerqueue.Item{}, false
}

func sortCandidatesDesc(c []stealCandidate) {
	for i := 1; i < len(c); i++ {
		for j := i; j > 0 && c[j].length > c[j-1].length; j-- {
			c[j], c[j-1] = c[j-1], c[j]
		}
	}
}

// heartbeatLoop samples the engine process's CPU%/RSS once a second for the
// Process Pool to read (spec §4.6). Every worker runs in the same process,
// so all workers report the same figures.
func (w *Worker) heartbeatLoop(ctx context.Context) {
	defer w.wg.Done()

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return
	}

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if pct, err := proc.CPUPercent(); err == nil {
				atomic.StoreUint64(&w.cpuPercentBits, math.Float64bits(pct))
			}
			if mem, err := proc.MemoryInfo(); err == nil {
				atomic.StoreInt64(&w.rssMB, int64(mem.RSS/(1024*1024)))
			}
		}
	}
}

// CPUPercent returns the last sampled CPU percentage.
func (w *Worker) CPUPercent() float64 {
	return math.Float64frombits(atomic.LoadUint64(&w.cpuPercentBits))
}

// RSSMB returns the last sampled resident set size in megabytes.
func (w *Worker) RSSMB() int64 {
	return atomic.LoadInt64(&w.rssMB)
}

// ActiveTaskCount is the cross-process atomic from spec §3: the number of
// tasks this worker's thread pool is currently executing.
func (w *Worker) ActiveTaskCount() int64 { return w.pool.Active() }

// ThreadPoolPending is the number of tasks submitted to the thread pool
// but not yet picked up by a thread.
func (w *Worker) ThreadPoolPending() int64 { return w.pool.Pending() }

// QueueSize is the current length of this worker's own inbound queue.
func (w *Worker) QueueSize() int { return w.own.Len() }

// Queue returns the worker's inbound queue, for the Pool's placement and
// sibling-injection bookkeeping.
func (w *Worker) Queue() *workerqueue.Queue { return w.own }
