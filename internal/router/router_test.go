package router_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkflow-ai/taskengine/internal/cache"
	"github.com/linkflow-ai/taskengine/internal/queue"
	"github.com/linkflow-ai/taskengine/internal/router"
	"github.com/linkflow-ai/taskengine/internal/task"
	"github.com/linkflow-ai/taskengine/internal/workflow"
)

func TestRouterArchivesResultInCache(t *testing.T) {
	out := queue.NewOutput(10)
	c := cache.New(1, 10, nil)

	r := router.New(out, c, nil, nil, nil)
	r.Start()
	defer r.Stop()

	now := time.Now()
	out.Put(task.NewCompleted("t-1", "data", now, now))

	require.Eventually(t, func() bool {
		_, ok := c.Pop("t-1")
		return ok
	}, time.Second, 10*time.Millisecond)
}

func TestRouterDispatchesWorkflowReleasedTasks(t *testing.T) {
	out := queue.NewOutput(10)
	c := cache.New(1, 10, nil)
	wf := workflow.New()

	a := task.New("s", nil, task.CPUBound, 0, nil)
	b := task.New("s", nil, task.CPUBound, 0, []string{a.ID})
	wf.AddBatch([]*task.Task{a, b})

	d := &dispatched{}
	r := router.New(out, c, wf, d.dispatch, nil)
	r.Start()
	defer r.Stop()

	now := time.Now()
	out.Put(task.NewCompleted(a.ID, "a-data", now, now))

	require.Eventually(t, func() bool {
		return d.has(b.ID)
	}, time.Second, 10*time.Millisecond)
}

type dispatched struct {
	mu  sync.Mutex
	ids []string
}

func (d *dispatched) dispatch(t *task.Task) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ids = append(d.ids, t.ID)
}

func (d *dispatched) has(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, v := range d.ids {
		if v == id {
			return true
		}
	}
	return false
}

func TestRouterStopEndsLoop(t *testing.T) {
	out := queue.NewOutput(10)
	c := cache.New(1, 10, nil)
	r := router.New(out, c, nil, nil, nil)
	r.Start()
	r.Stop()

	assert.NotPanics(t, func() { r.Stop() })
}
