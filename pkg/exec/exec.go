// Package exec defines the execution collaborator contract consumed by the
// management plane: tasks are submitted, tagged, and queried for status.
// How tasks are scheduled is outside this package's concern; LocalExecutor
// is the in-process implementation backing the local management context.
package exec

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Status represents the lifecycle of one submitted task.
type Status string

const (
	// StatusPending indicates the task is queued but not yet started.
	StatusPending Status = "pending"

	// StatusRunning indicates the task is executing.
	StatusRunning Status = "running"

	// StatusSucceeded indicates the task finished with a result.
	StatusSucceeded Status = "succeeded"

	// StatusFailed indicates the task finished with an error.
	StatusFailed Status = "failed"
)

// IsTerminal returns true if the status represents a final state.
func (s Status) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Task is one unit of work submitted to the execution engine.
type Task struct {
	// Name is the human-readable task name.
	Name string

	// Tags are opaque labels used to query tasks later.
	Tags []string

	// Run performs the work. It must honor ctx cancellation.
	Run func(ctx context.Context) (any, error)
}

// TaskHandle tracks one submitted task: its identity, status, and outcome.
type TaskHandle struct {
	id   string
	name string
	tags []string

	mu     sync.Mutex
	done   chan struct{}
	status Status
	result any
	err    error
}

// newHandle creates a pending handle for a task.
func newHandle(t *Task) *TaskHandle {
	return &TaskHandle{
		id:     uuid.New().String(),
		name:   t.Name,
		tags:   append([]string(nil), t.Tags...),
		done:   make(chan struct{}),
		status: StatusPending,
	}
}

// CompletedHandle builds a handle that already finished successfully with
// the given result. The rebind codec uses this to rehydrate a task-valued
// field whose resolved result survived a snapshot.
func CompletedHandle(name string, result any) *TaskHandle {
	h := &TaskHandle{
		id:     uuid.New().String(),
		name:   name,
		done:   make(chan struct{}),
		status: StatusSucceeded,
		result: result,
	}
	close(h.done)
	return h
}

// FailedHandle builds a handle that already finished with an error.
func FailedHandle(name string, err error) *TaskHandle {
	h := &TaskHandle{
		id:     uuid.New().String(),
		name:   name,
		done:   make(chan struct{}),
		status: StatusFailed,
		err:    err,
	}
	close(h.done)
	return h
}

// ID returns the task's unique identifier.
func (h *TaskHandle) ID() string { return h.id }

// Name returns the task name.
func (h *TaskHandle) Name() string { return h.name }

// Tags returns a copy of the task's tags.
func (h *TaskHandle) Tags() []string { return append([]string(nil), h.tags...) }

// Status returns the task's current status.
func (h *TaskHandle) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// Result returns the task outcome. It is only meaningful once the status is
// terminal.
func (h *TaskHandle) Result() (any, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.result, h.err
}

// Wait blocks until the task finishes or ctx is done.
func (h *TaskHandle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// complete records the task outcome and releases waiters.
func (h *TaskHandle) complete(result any, err error) {
	h.mu.Lock()
	if err != nil {
		h.status = StatusFailed
		h.err = err
	} else {
		h.status = StatusSucceeded
		h.result = result
	}
	h.mu.Unlock()
	close(h.done)
}

// Submitter is the narrow contract the management plane consumes from the
// execution engine.
type Submitter interface {
	// Submit schedules a task and returns its handle.
	Submit(ctx context.Context, task *Task) (*TaskHandle, error)
}

// LocalExecutor is a goroutine-backed Submitter with graceful shutdown.
type LocalExecutor struct {
	mu      sync.Mutex
	wg      sync.WaitGroup
	handles map[string]*TaskHandle
	closed  bool
}

// NewLocalExecutor creates an executor ready to accept tasks.
func NewLocalExecutor() *LocalExecutor {
	return &LocalExecutor{handles: make(map[string]*TaskHandle)}
}

// Submit schedules the task on its own goroutine.
func (e *LocalExecutor) Submit(ctx context.Context, task *Task) (*TaskHandle, error) {
	if task == nil || task.Run == nil {
		return nil, fmt.Errorf("task must have a Run function")
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, fmt.Errorf("executor is shut down")
	}
	h := newHandle(task)
	e.handles[h.id] = h
	e.wg.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.wg.Done()
		h.mu.Lock()
		h.status = StatusRunning
		h.mu.Unlock()
		result, err := task.Run(ctx)
		h.complete(result, err)
	}()

	return h, nil
}

// Get returns the handle for a task ID.
func (e *LocalExecutor) Get(id string) (*TaskHandle, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, ok := e.handles[id]
	return h, ok
}

// QueryByTag returns every handle carrying the given tag.
func (e *LocalExecutor) QueryByTag(tag string) []*TaskHandle {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []*TaskHandle
	for _, h := range e.handles {
		for _, t := range h.tags {
			if t == tag {
				out = append(out, h)
				break
			}
		}
	}
	return out
}

// Shutdown stops accepting tasks and waits for in-flight tasks to finish,
// or returns early when ctx is done.
func (e *LocalExecutor) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("executor shutdown interrupted: %w", ctx.Err())
	}
}
