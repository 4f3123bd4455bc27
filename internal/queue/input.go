package queue

import (
	"sync/atomic"
	"time"

	"github.com/linkflow-ai/taskengine/internal/task"
)

// Input is the bounded multi-producer / single-consumer FIFO of tasks
// waiting for dispatch (spec §4.2).
type Input struct {
	q            *Bounded[*task.Task]
	totalPut     int64
	totalDropped int64
}

// NewInput creates an Input queue with the given capacity.
func NewInput(maxSize int) *Input {
	return &Input{q: NewBounded[*task.Task](maxSize)}
}

// Put enqueues t, returning false and incrementing the dropped counter on
// overflow.
func (q *Input) Put(t *task.Task) bool {
	if q.q.Put(t) {
		atomic.AddInt64(&q.totalPut, 1)
		return true
	}
	atomic.AddInt64(&q.totalDropped, 1)
	return false
}

// Get blocks up to timeout for the next task.
func (q *Input) Get(timeout time.Duration) (*task.Task, bool) {
	return q.q.Get(timeout)
}

// Close releases any blocked Get calls.
func (q *Input) Close() { q.q.Close() }

// Status mirrors spec §4.2's reported fields.
type InputStatus struct {
	Size         int
	MaxSize      int
	Fullness     float64
	TotalPut     int64
	TotalDropped int64
}

// Status returns a snapshot of queue metrics.
func (q *Input) Status() InputStatus {
	size := q.q.Size()
	maxSize := q.q.MaxSize()
	fullness := 0.0
	if maxSize > 0 {
		fullness = float64(size) / float64(maxSize)
	}
	return InputStatus{
		Size:         size,
		MaxSize:      maxSize,
		Fullness:     fullness,
		TotalPut:     atomic.LoadInt64(&q.totalPut),
		TotalDropped: atomic.LoadInt64(&q.totalDropped),
	}
}
