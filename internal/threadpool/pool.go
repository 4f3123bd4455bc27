// Package threadpool implements the bounded set of execution threads
// inside one worker process (spec §4.5). It runs up to MaxThreads
// concurrent invocations of user code and publishes every outcome to the
// Output Queue; it never drops a submitted task.
package threadpool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/linkflow-ai/taskengine/internal/executor"
	"github.com/linkflow-ai/taskengine/internal/platform/logger"
	"github.com/linkflow-ai/taskengine/internal/queue"
	"github.com/linkflow-ai/taskengine/internal/task"
)

// internalCapacity is large enough that the worker's own admission control
// (spec §4.4 step 1), which refuses to take new work once
// pending+active >= MaxThreads, keeps this queue from ever approaching it.
const internalCapacity = 1 << 20

// Pool runs up to MaxThreads goroutines pulling from an intra-process FIFO.
type Pool struct {
	WorkerID   string
	MaxThreads int

	exec executor.Executor
	out  func(*task.Result)
	log  logger.Logger

	q       *queue.Bounded[*task.Task]
	pending int64
	active  int64

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a thread pool hosted inside a worker process. out is called
// with every produced Result (the worker wires this to the Output Queue).
func New(workerID string, maxThreads int, exec executor.Executor, out func(*task.Result), log logger.Logger) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		WorkerID:   workerID,
		MaxThreads: maxThreads,
		exec:       exec,
		out:        out,
		log:        log,
		q:          queue.NewBounded[*task.Task](internalCapacity),
		ctx:        ctx,
		cancel:     cancel,
	}
	for i := 0; i < maxThreads; i++ {
		p.wg.Add(1)
		go p.runThread()
	}
	return p
}

// Submit enqueues t for execution. Submission never drops a task; the
// caller (the worker's consumer loop) is responsible for not over-submitting.
func (p *Pool) Submit(t *task.Task) {
	atomic.AddInt64(&p.pending, 1)
	if !p.q.Put(t) {
		// internalCapacity is sized so this should never happen in
		// practice; fall back to a blocking retry rather than drop.
		for !p.q.Put(t) {
			time.Sleep(time.Millisecond)
		}
	}
}

// Pending returns the number of tasks submitted but not yet picked up by a
// thread.
func (p *Pool) Pending() int64 { return atomic.LoadInt64(&p.pending) }

// Active returns the number of tasks currently executing.
func (p *Pool) Active() int64 { return atomic.LoadInt64(&p.active) }

// Shutdown stops accepting new work and waits for in-flight executions to
// drain.
func (p *Pool) Shutdown() {
	p.cancel()
	p.q.Close()
	p.wg.Wait()
}

func (p *Pool) runThread() {
	defer p.wg.Done()
	for {
		t, ok := p.q.Get(50 * time.Millisecond)
		if !ok {
			select {
			case <-p.ctx.Done():
				return
			default:
				continue
			}
		}

		atomic.AddInt64(&p.pending, -1)
		atomic.AddInt64(&p.active, 1)
		p.execute(t)
		atomic.AddInt64(&p.active, -1)
	}
}

func (p *Pool) execute(t *task.Task) {
	startedAt := time.Now().UTC()
	execCtx := executor.Context{TaskID: t.ID, WorkerID: p.WorkerID}

	result, err := p.runExecute(t, execCtx)
	completedAt := time.Now().UTC()

	if err != nil {
		p.out(task.NewFailed(t.ID, err.Error(), startedAt, completedAt))
		if p.log != nil {
			p.log.Warn("task execution failed", "task_id", t.ID, "worker_id", p.WorkerID, "error", err.Error())
		}
		return
	}
	if result == nil {
		result = task.NewCompleted(t.ID, nil, startedAt, completedAt)
	}
	p.out(result)
}

// runExecute calls the user-supplied executor and recovers from any panic a
// handler raises, converting it into an error so a misbehaving task (nil
// map access, index out of range, division by zero) surfaces as a FAILED
// Result instead of taking down the worker's goroutines (spec §7, §8).
func (p *Pool) runExecute(t *task.Task, execCtx executor.Context) (result *task.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			if p.log != nil {
				p.log.Error("task execution panicked", "task_id", t.ID, "worker_id", p.WorkerID, "panic", r)
			}
			err = fmt.Errorf("task handler panicked: %v", r)
		}
	}()
	return p.exec.Execute(p.ctx, t, execCtx)
}
