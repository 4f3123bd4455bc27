package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkflow-ai/taskengine/internal/engine"
	"github.com/linkflow-ai/taskengine/internal/enginerr"
	"github.com/linkflow-ai/taskengine/internal/executor"
	"github.com/linkflow-ai/taskengine/internal/platform/config"
	"github.com/linkflow-ai/taskengine/internal/platform/metrics"
	"github.com/linkflow-ai/taskengine/internal/task"
)

func newTestEngine(t *testing.T) (*engine.Engine, *executor.FileExecutor) {
	t.Helper()
	cfg := config.Default()
	cfg.CPUBoundCount = 1
	cfg.IOBoundCount = 1
	cfg.CPUBoundTaskLimit = 2
	cfg.IOBoundTaskLimit = 2
	cfg.InputQueueSize = 4

	exec := executor.NewFileExecutor()
	reg := prometheus.NewRegistry()
	met := metrics.New(reg)
	eng := engine.New(cfg, exec, nil, met)
	return eng, exec
}

func TestSubmitTaskBeforeStartIsRejected(t *testing.T) {
	eng, _ := newTestEngine(t)
	_, err := eng.SubmitTask(task.New("ok", nil, task.CPUBound, 0, nil))
	assert.ErrorIs(t, err, enginerr.ErrNotStarted)
}

func TestStartTwiceFails(t *testing.T) {
	eng, _ := newTestEngine(t)
	require.NoError(t, eng.Start())
	defer eng.Shutdown()

	assert.ErrorIs(t, eng.Start(), enginerr.ErrAlreadyStarted)
}

func TestSingleTaskRunsToCompletion(t *testing.T) {
	eng, exec := newTestEngine(t)
	exec.Register("ok", func(ctx context.Context, params map[string]any) (any, error) {
		return "hello", nil
	})
	require.NoError(t, eng.Start())
	defer eng.Shutdown()

	id, err := eng.SubmitTask(task.New("ok", nil, task.CPUBound, 0, nil))
	require.NoError(t, err)

	result, ok := eng.GetResult(id, 2*time.Second)
	require.True(t, ok)
	assert.Equal(t, task.Completed, result.Status)
	assert.Equal(t, "hello", result.Data)
}

func TestUserErrorSurfacesAsFailedResult(t *testing.T) {
	eng, exec := newTestEngine(t)
	exec.Register("bad", func(ctx context.Context, params map[string]any) (any, error) {
		return nil, assertErr{}
	})
	require.NoError(t, eng.Start())
	defer eng.Shutdown()

	id, err := eng.SubmitTask(task.New("bad", nil, task.CPUBound, 0, nil))
	require.NoError(t, err)

	result, ok := eng.GetResult(id, 2*time.Second)
	require.True(t, ok)
	assert.Equal(t, task.Failed, result.Status)
}

func TestDependencyChainInjectsUpstreamResults(t *testing.T) {
	eng, exec := newTestEngine(t)
	exec.Register("producer", func(ctx context.Context, params map[string]any) (any, error) {
		return "upstream-data", nil
	})
	var seenUpstream map[string]any
	exec.Register("consumer", func(ctx context.Context, params map[string]any) (any, error) {
		if v, ok := params[task.UpstreamResultsKey].(map[string]any); ok {
			seenUpstream = v
		}
		return "consumed", nil
	})
	require.NoError(t, eng.Start())
	defer eng.Shutdown()

	producer := task.New("producer", nil, task.CPUBound, 0, nil)
	consumer := task.New("consumer", nil, task.CPUBound, 0, []string{producer.ID})

	ids, err := eng.SubmitWorkflow([]*task.Task{producer, consumer})
	require.NoError(t, err)
	require.Len(t, ids, 2)

	producerResult, ok := eng.GetResult(producer.ID, 2*time.Second)
	require.True(t, ok)
	assert.Equal(t, "upstream-data", producerResult.Data)

	consumerResult, ok := eng.GetResult(consumer.ID, 2*time.Second)
	require.True(t, ok)
	assert.Equal(t, "consumed", consumerResult.Data)
	require.NotNil(t, seenUpstream)
	assert.Equal(t, "upstream-data", seenUpstream[producer.ID])
}

func TestFanOutFanInCompletesJoin(t *testing.T) {
	eng, exec := newTestEngine(t)
	exec.Register("leaf", func(ctx context.Context, params map[string]any) (any, error) {
		return "leaf-data", nil
	})
	exec.Register("join", func(ctx context.Context, params map[string]any) (any, error) {
		return "joined", nil
	})
	require.NoError(t, eng.Start())
	defer eng.Shutdown()

	root := task.New("leaf", nil, task.CPUBound, 0, nil)
	b1 := task.New("leaf", nil, task.CPUBound, 0, []string{root.ID})
	b2 := task.New("leaf", nil, task.CPUBound, 0, []string{root.ID})
	join := task.New("join", nil, task.CPUBound, 0, []string{b1.ID, b2.ID})

	_, err := eng.SubmitWorkflow([]*task.Task{root, b1, b2, join})
	require.NoError(t, err)

	result, ok := eng.GetResult(join.ID, 3*time.Second)
	require.True(t, ok)
	assert.Equal(t, "joined", result.Data)
}

func TestSubmitAfterShutdownIsRejected(t *testing.T) {
	eng, _ := newTestEngine(t)
	require.NoError(t, eng.Start())
	require.NoError(t, eng.Shutdown())

	_, err := eng.SubmitTask(task.New("ok", nil, task.CPUBound, 0, nil))
	assert.ErrorIs(t, err, enginerr.ErrNotStarted)
}

func TestShutdownBeforeStartReturnsNotStarted(t *testing.T) {
	eng, _ := newTestEngine(t)
	assert.ErrorIs(t, eng.Shutdown(), enginerr.ErrNotStarted)
}

func TestSubmitRejectedWhenAdmissionGateCritical(t *testing.T) {
	cfg := config.Default()
	cfg.CPUBoundCount = 1
	cfg.IOBoundCount = 1
	// A zero threshold makes the gate report CRITICAL deterministically:
	// any non-negative sampled CPU percent trips it, regardless of the
	// actual load on the machine running this test.
	cfg.CPUThreshold = 0
	cfg.MemThreshold = 0

	exec := executor.NewFileExecutor()
	reg := prometheus.NewRegistry()
	met := metrics.New(reg)
	eng := engine.New(cfg, exec, nil, met)
	require.NoError(t, eng.Start())
	defer eng.Shutdown()

	_, err := eng.SubmitTask(task.New("ok", nil, task.CPUBound, 0, nil))
	assert.ErrorIs(t, err, enginerr.ErrAdmissionRefused)

	producer := task.New("ok", nil, task.CPUBound, 0, nil)
	_, err = eng.SubmitWorkflow([]*task.Task{producer})
	assert.ErrorIs(t, err, enginerr.ErrAdmissionRefused)
}

func TestGetResultTimesOutWhenMissing(t *testing.T) {
	eng, _ := newTestEngine(t)
	require.NoError(t, eng.Start())
	defer eng.Shutdown()

	_, ok := eng.GetResult("no-such-task", 30*time.Millisecond)
	assert.False(t, ok)
}

func TestGetStatusReportsRunningAndWorkerShape(t *testing.T) {
	eng, _ := newTestEngine(t)
	require.NoError(t, eng.Start())
	defer eng.Shutdown()

	status := eng.GetStatus()
	assert.True(t, status.Engine.IsRunning)
	assert.Len(t, status.Components.ProcessPool.Metrics, 2)
}

type assertErr struct{}

func (assertErr) Error() string { return "bad input" }
