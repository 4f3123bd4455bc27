package queue

import (
	"sync/atomic"
	"time"

	"github.com/linkflow-ai/taskengine/internal/task"
)

// Output is the bounded multi-producer (every worker thread) /
// multi-consumer (Result Router) FIFO of results (spec §4.3).
type Output struct {
	q        *Bounded[*task.Result]
	totalPut int64
	totalGet int64
}

// NewOutput creates an Output queue with the given capacity.
func NewOutput(maxSize int) *Output {
	return &Output{q: NewBounded[*task.Result](maxSize)}
}

// Put enqueues r, returning false on overflow.
func (q *Output) Put(r *task.Result) bool {
	if q.q.Put(r) {
		atomic.AddInt64(&q.totalPut, 1)
		return true
	}
	return false
}

// Get blocks up to timeout for the next result.
func (q *Output) Get(timeout time.Duration) (*task.Result, bool) {
	r, ok := q.q.Get(timeout)
	if ok {
		atomic.AddInt64(&q.totalGet, 1)
	}
	return r, ok
}

// Close releases any blocked Get calls.
func (q *Output) Close() { q.q.Close() }

// OutputStatus mirrors spec §4.3's reported fields.
type OutputStatus struct {
	Size     int
	MaxSize  int
	TotalPut int64
	TotalGet int64
}

// Status returns a snapshot of queue metrics.
func (q *Output) Status() OutputStatus {
	return OutputStatus{
		Size:     q.q.Size(),
		MaxSize:  q.q.MaxSize(),
		TotalPut: atomic.LoadInt64(&q.totalPut),
		TotalGet: atomic.LoadInt64(&q.totalGet),
	}
}
