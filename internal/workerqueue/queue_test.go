package workerqueue_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkflow-ai/taskengine/internal/task"
	"github.com/linkflow-ai/taskengine/internal/workerqueue"
)

func TestTryTakeOwnPopsAnyCommand(t *testing.T) {
	q := workerqueue.New("cpu-0")
	q.Push(workerqueue.Item{Command: workerqueue.Shutdown})

	item, ok := q.TryTakeOwn()
	require.True(t, ok)
	assert.Equal(t, workerqueue.Shutdown, item.Command)
	assert.Equal(t, 0, q.Len())
}

func TestTryStealTaskSkipsShutdown(t *testing.T) {
	q := workerqueue.New("cpu-0")
	q.Push(workerqueue.Item{Command: workerqueue.Shutdown})

	_, ok := q.TryStealTask()
	assert.False(t, ok, "a thief must never remove another worker's shutdown command")
	assert.Equal(t, 1, q.Len(), "the shutdown item must remain for the owner")
}

func TestTryStealTaskTakesExecuteTask(t *testing.T) {
	q := workerqueue.New("cpu-0")
	tk := task.New("s", nil, task.CPUBound, 0, nil)
	q.Push(workerqueue.Item{Command: workerqueue.ExecuteTask, Task: tk})

	item, ok := q.TryStealTask()
	require.True(t, ok)
	assert.Equal(t, tk.ID, item.Task.ID)
}

func TestTryStealTaskDoesNotBypassAQueuedShutdownAheadOfTasks(t *testing.T) {
	q := workerqueue.New("cpu-0")
	tk := task.New("s", nil, task.CPUBound, 0, nil)
	q.Push(workerqueue.Item{Command: workerqueue.Shutdown})
	q.Push(workerqueue.Item{Command: workerqueue.ExecuteTask, Task: tk})

	_, ok := q.TryStealTask()
	assert.False(t, ok, "shutdown at head blocks stealing even when a task follows it")
	assert.Equal(t, 2, q.Len())
}
