package task_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkflow-ai/taskengine/internal/task"
)

func TestNewAssignsIDAndCreatedAt(t *testing.T) {
	tk := task.New("scripts/a.py", map[string]any{"x": 1}, task.CPUBound, 3, nil)
	require.NotEmpty(t, tk.ID)
	assert.Equal(t, task.CPUBound, tk.TaskType)
	assert.False(t, tk.CreatedAt.IsZero())
}

func TestNewNilParamsBecomesEmptyMap(t *testing.T) {
	tk := task.New("scripts/a.py", nil, task.IOBound, 0, nil)
	assert.NotNil(t, tk.Params)
	assert.Empty(t, tk.Params)
}

func TestTaskToDictFromDictRoundTrip(t *testing.T) {
	tk := task.New("scripts/a.py", map[string]any{"x": 1}, task.CPUBound, 2, []string{"dep-1"})
	dict := tk.ToDict()

	assert.Equal(t, tk.ID, dict["task_id"])
	assert.Equal(t, "CPU_BOUND", dict["task_type"])

	back := task.TaskFromDict(dict)
	assert.Equal(t, tk.ID, back.ID)
	assert.Equal(t, tk.ScriptPath, back.ScriptPath)
	assert.Equal(t, tk.TaskType, back.TaskType)
	assert.Equal(t, tk.MaxRetries, back.MaxRetries)
}

func TestFromDictDefaultsOnMissingFields(t *testing.T) {
	tk := task.TaskFromDict(map[string]any{})
	assert.Equal(t, task.IOBound, tk.TaskType)
	assert.Equal(t, 3, tk.MaxRetries)
	assert.NotNil(t, tk.Params)
}

func TestResultToDictMapsStatusVocabulary(t *testing.T) {
	now := task.New("s", nil, task.CPUBound, 0, nil).CreatedAt
	completed := task.NewCompleted("t-1", 42, now, now)
	failed := task.NewFailed("t-2", "boom", now, now)

	assert.Equal(t, "SUCCESS", completed.ToDict()["status"])
	assert.Equal(t, "FAILED", failed.ToDict()["status"])
	assert.Equal(t, "boom", failed.ToDict()["error"])
}

func TestResultFromDictRoundTrip(t *testing.T) {
	now := task.New("s", nil, task.CPUBound, 0, nil).CreatedAt
	r := task.NewCompleted("t-1", "ok", now, now.Add(time.Millisecond))
	back := task.ResultFromDict(r.ToDict())
	assert.Equal(t, r.TaskID, back.TaskID)
	assert.Equal(t, r.Status, back.Status)
}
