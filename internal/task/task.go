// Package task defines the immutable value records that cross every queue
// boundary in the engine: Task and Result.
package task

import (
	"time"

	"github.com/google/uuid"
)

// Type classifies a task as CPU-bound or I/O-bound. Routing to the process
// pool's worker sets is keyed entirely off this value.
type Type string

const (
	CPUBound Type = "CPU_BOUND"
	IOBound  Type = "IO_BOUND"
)

// Status is the outcome of a completed task.
type Status string

const (
	Completed Status = "COMPLETED"
	Failed    Status = "FAILED"
)

// Task is a description of a unit of work. Fields are set at creation and
// not reassigned afterwards; the id is stable for the life of the task. The
// one later change is the Workflow Manager adding the upstream_results
// entry to Params when it releases a dependent task.
type Task struct {
	ID           string
	ScriptPath   string
	Params       map[string]any
	TaskType     Type
	MaxRetries   int
	Dependencies []string
	CreatedAt    time.Time
}

// New creates a Task with a fresh id and CreatedAt set to now. Dependencies
// may be nil for a task with no predecessors.
func New(scriptPath string, params map[string]any, taskType Type, maxRetries int, deps []string) *Task {
	if params == nil {
		params = make(map[string]any)
	}
	return &Task{
		ID:           uuid.New().String(),
		ScriptPath:   scriptPath,
		Params:       params,
		TaskType:     taskType,
		MaxRetries:   maxRetries,
		Dependencies: deps,
		CreatedAt:    time.Now().UTC(),
	}
}

// ToDict serializes the task to the reserved wire schema from spec §6.
func (t *Task) ToDict() map[string]any {
	return map[string]any{
		"task_id":      t.ID,
		"script_path":  t.ScriptPath,
		"params":       t.Params,
		"task_type":    string(t.TaskType),
		"max_retries":  t.MaxRetries,
		"dependencies": t.Dependencies,
	}
}

// TaskFromDict reconstructs a Task from the wire schema. A missing task_type
// defaults to IO_BOUND, a missing max_retries to 3 and missing params to an
// empty map; other missing fields stay at their zero values.
func TaskFromDict(data map[string]any) *Task {
	t := &Task{
		TaskType:   IOBound,
		MaxRetries: 3,
	}
	if v, ok := data["task_id"].(string); ok {
		t.ID = v
	}
	if v, ok := data["script_path"].(string); ok {
		t.ScriptPath = v
	}
	if v, ok := data["params"].(map[string]any); ok {
		t.Params = v
	} else {
		t.Params = make(map[string]any)
	}
	if v, ok := data["task_type"].(string); ok {
		t.TaskType = Type(v)
	}
	if v, ok := data["max_retries"].(int); ok {
		t.MaxRetries = v
	}
	if v, ok := data["dependencies"].([]string); ok {
		t.Dependencies = v
	}
	return t
}

// UpstreamResultsKey is the reserved params key holding predecessor outputs,
// keyed by dependency task id.
const UpstreamResultsKey = "upstream_results"
