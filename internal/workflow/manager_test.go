package workflow_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkflow-ai/taskengine/internal/task"
	"github.com/linkflow-ai/taskengine/internal/workflow"
)

func TestAddBatchReturnsOnlyDependencyFreeTasks(t *testing.T) {
	m := workflow.New()
	root := task.New("s", nil, task.CPUBound, 0, nil)
	child := task.New("s", nil, task.CPUBound, 0, []string{root.ID})

	ready := m.AddBatch([]*task.Task{root, child})
	require.Len(t, ready, 1)
	assert.Equal(t, root.ID, ready[0].ID)
}

func TestTaskCompletedReleasesChildAfterAllDepsDone(t *testing.T) {
	m := workflow.New()
	a := task.New("s", nil, task.CPUBound, 0, nil)
	b := task.New("s", nil, task.CPUBound, 0, nil)
	c := task.New("s", nil, task.CPUBound, 0, []string{a.ID, b.ID})

	m.AddBatch([]*task.Task{a, b, c})

	now := time.Now()
	released := m.TaskCompleted(task.NewCompleted(a.ID, "a-data", now, now))
	assert.Empty(t, released, "c still waits on b")

	released = m.TaskCompleted(task.NewCompleted(b.ID, "b-data", now, now))
	require.Len(t, released, 1)
	assert.Equal(t, c.ID, released[0].ID)
}

func TestTaskCompletedPopulatesUpstreamResults(t *testing.T) {
	m := workflow.New()
	a := task.New("s", nil, task.CPUBound, 0, nil)
	c := task.New("s", nil, task.CPUBound, 0, []string{a.ID})
	m.AddBatch([]*task.Task{a, c})

	now := time.Now()
	released := m.TaskCompleted(task.NewCompleted(a.ID, "a-data", now, now))
	require.Len(t, released, 1)

	upstream, ok := released[0].Params[task.UpstreamResultsKey].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "a-data", upstream[a.ID])
}

func TestFailedPredecessorStillReleasesChildren(t *testing.T) {
	m := workflow.New()
	a := task.New("s", nil, task.CPUBound, 0, nil)
	c := task.New("s", nil, task.CPUBound, 0, []string{a.ID})
	m.AddBatch([]*task.Task{a, c})

	now := time.Now()
	released := m.TaskCompleted(task.NewFailed(a.ID, "boom", now, now))
	require.Len(t, released, 1, "a FAILED predecessor does not block its children")
	assert.Equal(t, c.ID, released[0].ID)
}

func TestResultLookupAfterCompletion(t *testing.T) {
	m := workflow.New()
	a := task.New("s", nil, task.CPUBound, 0, nil)
	m.AddBatch([]*task.Task{a})

	now := time.Now()
	m.TaskCompleted(task.NewCompleted(a.ID, "data", now, now))

	r, ok := m.Result(a.ID)
	require.True(t, ok)
	assert.Equal(t, "data", r.Data)
}

func TestFanOutFanInReleasesJoinOnlyOnce(t *testing.T) {
	m := workflow.New()
	a := task.New("s", nil, task.CPUBound, 0, nil)
	b1 := task.New("s", nil, task.CPUBound, 0, []string{a.ID})
	b2 := task.New("s", nil, task.CPUBound, 0, []string{a.ID})
	join := task.New("s", nil, task.CPUBound, 0, []string{b1.ID, b2.ID})

	m.AddBatch([]*task.Task{a, b1, b2, join})

	now := time.Now()
	released := m.TaskCompleted(task.NewCompleted(a.ID, nil, now, now))
	assert.ElementsMatch(t, []string{b1.ID, b2.ID}, idsOf(released))

	released = m.TaskCompleted(task.NewCompleted(b1.ID, nil, now, now))
	assert.Empty(t, released, "join still waits on b2")

	released = m.TaskCompleted(task.NewCompleted(b2.ID, nil, now, now))
	require.Len(t, released, 1)
	assert.Equal(t, join.ID, released[0].ID)
}

func idsOf(tasks []*task.Task) []string {
	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	return ids
}
