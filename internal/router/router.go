// Package router implements the Result Router (spec §4.9): it drains the
// Output Queue, archives each Result in the Result Cache, hands it to the
// Workflow Manager, and resubmits any task the manager just released.
package router

import (
	"sync"
	"time"

	"github.com/linkflow-ai/taskengine/internal/cache"
	"github.com/linkflow-ai/taskengine/internal/platform/logger"
	"github.com/linkflow-ai/taskengine/internal/queue"
	"github.com/linkflow-ai/taskengine/internal/task"
	"github.com/linkflow-ai/taskengine/internal/workflow"
)

// pollTimeout bounds each Output Queue Get so the router's stop signal is
// checked promptly even when no results are flowing.
const pollTimeout = 200 * time.Millisecond

// Dispatch resubmits a task that a completed dependency just released.
// The Engine wires this to its own submission path, bypassing the
// Admission Gate — see SPEC_FULL.md Open Question decision #3: workflow-
// internal resubmissions are not new external load, the gate has already
// been paid for the workflow as a whole.
type Dispatch func(*task.Task)

// Router is the background drain loop described above.
type Router struct {
	out      *queue.Output
	cache    *cache.Cache
	workflow *workflow.Manager
	dispatch Dispatch
	log      logger.Logger

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a Router. dispatch may be nil if workflows are unused.
func New(out *queue.Output, c *cache.Cache, wf *workflow.Manager, dispatch Dispatch, log logger.Logger) *Router {
	return &Router{out: out, cache: c, workflow: wf, dispatch: dispatch, log: log}
}

// Start runs the drain loop in a goroutine until Stop is called.
func (r *Router) Start() {
	r.done = make(chan struct{})
	r.stop = make(chan struct{})
	go r.loop(r.stop)
}

func (r *Router) loop(stop chan struct{}) {
	defer close(r.done)
	for {
		select {
		case <-stop:
			return
		default:
		}

		result, ok := r.out.Get(pollTimeout)
		if !ok {
			continue
		}
		r.route(result)
	}
}

func (r *Router) route(result *task.Result) {
	r.cache.Put(result)

	if r.workflow == nil {
		return
	}

	ready := r.workflow.TaskCompleted(result)
	for _, t := range ready {
		if r.dispatch != nil {
			r.dispatch(t)
		} else if r.log != nil {
			r.log.Warn("workflow released task but no dispatcher is wired", "task_id", t.ID)
		}
	}
}

// Stop ends the drain loop and waits for it to exit. Safe to call more
// than once.
func (r *Router) Stop() {
	if r.stop == nil {
		return
	}
	r.stopOnce.Do(func() {
		close(r.stop)
		<-r.done
	})
}
