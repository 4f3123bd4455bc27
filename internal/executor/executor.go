// Package executor defines the user-code invocation contract (spec §6):
// the engine core calls Execute with a Task and an ExecutionContext and
// gets back a Result or an error. This is the engine's one external
// collaborator boundary — the plug-in script executor itself is out of
// scope (spec §1) beyond this interface.
package executor

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/linkflow-ai/taskengine/internal/task"
)

// Context is the execution context handed to user code alongside the Task.
type Context struct {
	TaskID   string
	WorkerID string
}

// Executor invokes user code addressed by a Task's ScriptPath and Params.
// Any returned error becomes a FAILED Result upstream; Executor
// implementations should not themselves construct Result — the thread
// pool does that from the returned value/error pair, except when an
// implementation needs full control over Status and returns a non-nil
// Result directly.
type Executor interface {
	Execute(ctx context.Context, t *task.Task, ec Context) (*task.Result, error)
}

// Handler is a native, in-process handler for a script path, registered
// with FileExecutor for script paths that are logical names rather than
// real files (used heavily in tests and embedded callers).
type Handler func(ctx context.Context, params map[string]any) (any, error)

// FileExecutor is the default Executor: script_path is a file on disk,
// loaded and cached with mtime-based invalidation so a changed file is
// picked up without restarting the engine. Script paths may also be
// registered directly against a Handler, bypassing the filesystem — this
// is how native/subprocess-wrapper implementations plug into the same
// interface per spec §9.
type FileExecutor struct {
	mu       sync.Mutex
	handlers map[string]Handler
	cache    map[string]cachedEntry
}

type cachedEntry struct {
	modTime time.Time
	handler Handler
}

// NewFileExecutor creates an executor with no registered handlers.
func NewFileExecutor() *FileExecutor {
	return &FileExecutor{
		handlers: make(map[string]Handler),
		cache:    make(map[string]cachedEntry),
	}
}

// Register binds a logical script path to a native handler, for callers
// that embed the engine and want to avoid loading actual files.
func (e *FileExecutor) Register(scriptPath string, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[scriptPath] = h
}

// Execute loads (or reuses the cached) handler for t.ScriptPath and runs it.
func (e *FileExecutor) Execute(ctx context.Context, t *task.Task, ec Context) (*task.Result, error) {
	h, err := e.resolve(t.ScriptPath)
	if err != nil {
		return nil, err
	}

	data, err := h(ctx, t.Params)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return task.NewCompleted(t.ID, data, now, now), nil
}

// resolve returns the handler for scriptPath, invalidating the cache if
// the backing file's mtime has advanced since it was last loaded.
func (e *FileExecutor) resolve(scriptPath string) (Handler, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if h, ok := e.handlers[scriptPath]; ok {
		return h, nil
	}

	info, err := os.Stat(scriptPath)
	if err != nil {
		return nil, fmt.Errorf("executor: cannot load script %q: %w", scriptPath, err)
	}

	if entry, ok := e.cache[scriptPath]; ok && entry.modTime.Equal(info.ModTime()) {
		return entry.handler, nil
	}

	// Loading arbitrary on-disk user code is the out-of-scope plug-in
	// executor's job (spec §1); this default stands in for it with a
	// handler that reports the file is not an invokable native script.
	h := func(ctx context.Context, params map[string]any) (any, error) {
		return nil, fmt.Errorf("executor: no native handler registered for %q", scriptPath)
	}
	e.cache[scriptPath] = cachedEntry{modTime: info.ModTime(), handler: h}
	return h, nil
}
