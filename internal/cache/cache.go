// Package cache implements the Result Cache (spec §3, §4.9, §9): a
// sharded map from task id to Result, each shard with its own lock and
// LRU ordering, pop-on-read to avoid unbounded growth.
package cache

import (
	"container/list"
	"hash/fnv"
	"sync"

	"github.com/linkflow-ai/taskengine/internal/task"
)

const defaultShardCount = 16

type entry struct {
	taskID string
	result *task.Result
}

type shard struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front = most recently used
	index    map[string]*list.Element
}

// Cache is a sharded, per-shard-LRU result store keyed by task id.
type Cache struct {
	shards    []*shard
	onEvict   func()
}

// New creates a Cache with shardCount shards, each bounded to
// maxSizePerShard entries.
func New(shardCount, maxSizePerShard int, onEvict func()) *Cache {
	if shardCount <= 0 {
		shardCount = defaultShardCount
	}
	c := &Cache{shards: make([]*shard, shardCount), onEvict: onEvict}
	for i := range c.shards {
		c.shards[i] = &shard{
			capacity: maxSizePerShard,
			order:    list.New(),
			index:    make(map[string]*list.Element),
		}
	}
	return c
}

func (c *Cache) shardFor(taskID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(taskID))
	return c.shards[h.Sum32()%uint32(len(c.shards))]
}

// Put inserts r, evicting the shard's least-recently-used entry if the
// shard is already at capacity.
func (c *Cache) Put(r *task.Result) {
	s := c.shardFor(r.TaskID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.index[r.TaskID]; ok {
		el.Value = entry{r.TaskID, r}
		s.order.MoveToFront(el)
		return
	}

	if s.capacity > 0 && len(s.index) >= s.capacity {
		oldest := s.order.Back()
		if oldest != nil {
			s.order.Remove(oldest)
			delete(s.index, oldest.Value.(entry).taskID)
			if c.onEvict != nil {
				c.onEvict()
			}
		}
	}

	el := s.order.PushFront(entry{r.TaskID, r})
	s.index[r.TaskID] = el
}

// Pop returns and removes the result for taskID, if present.
func (c *Cache) Pop(taskID string) (*task.Result, bool) {
	s := c.shardFor(taskID)
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.index[taskID]
	if !ok {
		return nil, false
	}
	s.order.Remove(el)
	delete(s.index, taskID)
	return el.Value.(entry).result, true
}

// Len returns the total number of cached entries across every shard.
func (c *Cache) Len() int {
	total := 0
	for _, s := range c.shards {
		s.mu.Lock()
		total += len(s.index)
		s.mu.Unlock()
	}
	return total
}
