package task

import "time"

// Result is the immutable outcome of one task execution. Exactly one of
// Data or Error is meaningful, matching the status.
type Result struct {
	TaskID      string
	Status      Status
	Data        any
	Error       string
	RetryCount  int
	StartedAt   time.Time
	CompletedAt time.Time
}

// Duration is the derived wall-clock execution time.
func (r *Result) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// NewCompleted builds a successful Result.
func NewCompleted(taskID string, data any, startedAt, completedAt time.Time) *Result {
	return &Result{
		TaskID:      taskID,
		Status:      Completed,
		Data:        data,
		StartedAt:   startedAt,
		CompletedAt: completedAt,
	}
}

// NewFailed builds a failed Result carrying the error text.
func NewFailed(taskID string, err string, startedAt, completedAt time.Time) *Result {
	return &Result{
		TaskID:      taskID,
		Status:      Failed,
		Error:       err,
		StartedAt:   startedAt,
		CompletedAt: completedAt,
	}
}

// ToDict serializes the result to the reserved wire schema from spec §6.
// Status is mapped to the wire vocabulary {"SUCCESS","FAILED"}.
func (r *Result) ToDict() map[string]any {
	wireStatus := "FAILED"
	if r.Status == Completed {
		wireStatus = "SUCCESS"
	}
	return map[string]any{
		"task_id":      r.TaskID,
		"status":       wireStatus,
		"data":         r.Data,
		"error":        r.Error,
		"started_at":   r.StartedAt.UTC().Format(time.RFC3339Nano),
		"completed_at": r.CompletedAt.UTC().Format(time.RFC3339Nano),
	}
}

// ResultFromDict reconstructs a Result from the wire schema.
func ResultFromDict(data map[string]any) *Result {
	r := &Result{}
	if v, ok := data["task_id"].(string); ok {
		r.TaskID = v
	}
	if v, ok := data["status"].(string); ok {
		if v == "SUCCESS" {
			r.Status = Completed
		} else {
			r.Status = Failed
		}
	}
	r.Data = data["data"]
	if v, ok := data["error"].(string); ok {
		r.Error = v
	}
	if v, ok := data["started_at"].(string); ok {
		if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
			r.StartedAt = ts
		}
	}
	if v, ok := data["completed_at"].(string); ok {
		if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
			r.CompletedAt = ts
		}
	}
	return r
}
