package queue_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkflow-ai/taskengine/internal/queue"
	"github.com/linkflow-ai/taskengine/internal/task"
)

func TestInputPutTracksDrops(t *testing.T) {
	in := queue.NewInput(1)
	t1 := task.New("s", nil, task.CPUBound, 0, nil)
	t2 := task.New("s", nil, task.CPUBound, 0, nil)

	require.True(t, in.Put(t1))
	assert.False(t, in.Put(t2))

	status := in.Status()
	assert.Equal(t, int64(1), status.TotalPut)
	assert.Equal(t, int64(1), status.TotalDropped)
	assert.Equal(t, 1.0, status.Fullness)
}

func TestInputGetReturnsInFIFOOrder(t *testing.T) {
	in := queue.NewInput(2)
	t1 := task.New("s", nil, task.CPUBound, 0, nil)
	t2 := task.New("s", nil, task.CPUBound, 0, nil)
	in.Put(t1)
	in.Put(t2)

	got, ok := in.Get(time.Second)
	require.True(t, ok)
	assert.Equal(t, t1.ID, got.ID)

	got, ok = in.Get(time.Second)
	require.True(t, ok)
	assert.Equal(t, t2.ID, got.ID)
}

func TestOutputStatusTracksGets(t *testing.T) {
	out := queue.NewOutput(2)
	r := task.NewCompleted("t-1", nil, time.Now(), time.Now())
	require.True(t, out.Put(r))

	_, ok := out.Get(time.Second)
	require.True(t, ok)

	status := out.Status()
	assert.Equal(t, int64(1), status.TotalPut)
	assert.Equal(t, int64(1), status.TotalGet)
}
