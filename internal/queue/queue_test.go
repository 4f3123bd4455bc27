package queue_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkflow-ai/taskengine/internal/queue"
)

func TestBoundedPutGet(t *testing.T) {
	q := queue.NewBounded[int](2)
	require.True(t, q.Put(1))
	require.True(t, q.Put(2))
	assert.False(t, q.Put(3), "third put should overflow a capacity-2 queue")

	v, ok := q.Get(time.Second)
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestBoundedGetTimesOutWhenEmpty(t *testing.T) {
	q := queue.NewBounded[int](1)
	start := time.Now()
	_, ok := q.Get(30 * time.Millisecond)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestBoundedGetUnblocksOnPut(t *testing.T) {
	q := queue.NewBounded[int](1)
	go func() {
		time.Sleep(10 * time.Millisecond)
		q.Put(7)
	}()
	v, ok := q.Get(time.Second)
	require.True(t, ok)
	assert.Equal(t, 7, v)
}

func TestBoundedCloseUnblocksWaiters(t *testing.T) {
	q := queue.NewBounded[int](1)
	done := make(chan bool, 1)
	go func() {
		_, ok := q.Get(time.Second)
		done <- ok
	}()
	time.Sleep(10 * time.Millisecond)
	q.Close()
	assert.False(t, <-done)
	assert.False(t, q.Put(1), "put after close should fail")
}

func TestBoundedSizeAndMaxSize(t *testing.T) {
	q := queue.NewBounded[int](5)
	q.Put(1)
	q.Put(2)
	assert.Equal(t, 2, q.Size())
	assert.Equal(t, 5, q.MaxSize())
}
