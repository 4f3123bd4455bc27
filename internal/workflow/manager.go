// Package workflow implements the Workflow/DAG Manager (spec §4.8): it
// tracks inter-task dependencies as forward adjacency plus waiting
// counters and releases tasks whose predecessors have all completed.
package workflow

import (
	"sync"

	"github.com/linkflow-ai/taskengine/internal/task"
)

// Manager holds the three mappings from spec §3: tasks, waiting counts,
// and children, plus a results archive used to populate upstream_results.
type Manager struct {
	mu       sync.Mutex
	tasks    map[string]*task.Task
	waiting  map[string]int
	children map[string][]string
	results  map[string]*task.Result
}

// New creates an empty Workflow Manager.
func New() *Manager {
	return &Manager{
		tasks:    make(map[string]*task.Task),
		waiting:  make(map[string]int),
		children: make(map[string][]string),
		results:  make(map[string]*task.Result),
	}
}

// AddBatch registers a batch of tasks and their dependency lists
// atomically, returning the subset immediately ready (empty dependency
// list — spec §8 boundary (v)).
func (m *Manager) AddBatch(tasks []*task.Task) []*task.Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range tasks {
		m.tasks[t.ID] = t
		m.waiting[t.ID] = len(t.Dependencies)
		for _, dep := range t.Dependencies {
			m.children[dep] = append(m.children[dep], t.ID)
		}
	}

	var ready []*task.Task
	for _, t := range tasks {
		if m.waiting[t.ID] == 0 {
			ready = append(ready, t)
			delete(m.waiting, t.ID)
		}
	}
	return ready
}

// TaskCompleted stores result, decrements every child's waiting count, and
// returns the children that just became ready, with upstream_results
// populated in their params (spec §4.8). A FAILED predecessor still
// decrements its children's waiting counts — see SPEC_FULL.md Open
// Question decision #1; this is not a bug, it is the documented policy.
func (m *Manager) TaskCompleted(result *task.Result) []*task.Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.results[result.TaskID] = result

	var ready []*task.Task
	for _, childID := range m.children[result.TaskID] {
		remaining, ok := m.waiting[childID]
		if !ok {
			continue
		}
		remaining--
		if remaining > 0 {
			m.waiting[childID] = remaining
			continue
		}

		delete(m.waiting, childID)
		child := m.tasks[childID]
		if child == nil {
			continue
		}

		upstream := make(map[string]any, len(child.Dependencies))
		for _, depID := range child.Dependencies {
			if depResult, ok := m.results[depID]; ok {
				upstream[depID] = depResult.Data
			}
		}
		if child.Params == nil {
			child.Params = make(map[string]any)
		}
		child.Params[task.UpstreamResultsKey] = upstream

		ready = append(ready, child)
	}
	return ready
}

// Result returns the archived result for a task id, if any.
func (m *Manager) Result(taskID string) (*task.Result, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.results[taskID]
	return r, ok
}
