// Package workerqueue implements the per-worker command queue described in
// spec §4.4: a single-consumer/multi-producer FIFO of {command, payload}
// records, visible to sibling workers for stealing.
package workerqueue

import (
	"sync"

	"github.com/linkflow-ai/taskengine/internal/task"
)

// Command identifies what a worker should do with a queued item.
type Command int

const (
	ExecuteTask Command = iota
	Shutdown
)

// Item is one command record on a worker's queue.
type Item struct {
	Command Command
	Task    *task.Task
}

// Queue is one worker's inbound FIFO. The owning worker is the sole
// consumer of TryTakeOwn; sibling workers only ever call TryStealTask,
// which refuses to remove a SHUTDOWN command meant for the owner — that
// keeps a stolen steal-scan from accidentally terminating the wrong
// worker.
type Queue struct {
	WorkerID string

	mu    sync.Mutex
	items []Item
}

// New creates a Queue for the named worker.
func New(workerID string) *Queue {
	return &Queue{WorkerID: workerID}
}

// Push enqueues an item and always succeeds. The per-worker queue is
// unbounded in practice — the worker's own admission control (spec §4.4
// step 1) is what prevents unbounded backlog, not a queue capacity. The
// bool return lets callers like Pool.Submit share a single placement
// signature with the bounded queues elsewhere in the engine.
func (q *Queue) Push(item Item) bool {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
	return true
}

// TryTakeOwn removes and returns the head item, whatever its command. Only
// the owning worker's consumer loop calls this.
func (q *Queue) TryTakeOwn() (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Item{}, false
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, true
}

// TryStealTask removes and returns the head item only if it is an
// ExecuteTask command; a head SHUTDOWN is left untouched so it still
// reaches the owning worker.
func (q *Queue) TryStealTask() (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 || q.items[0].Command != ExecuteTask {
		return Item{}, false
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, true
}

// Len reports the number of items currently queued, used both for
// placement's load computation and stealing's "fullest sibling" scan.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
