package orchestrator

import (
	"context"
	"sync"
)

// Registry tracks live task executions so cancellation reaches the actual
// child process instead of only flipping a database row.
type Registry struct {
	mu    sync.Mutex
	procs map[int64]context.CancelFunc
}

// NewRegistry creates an empty process registry
func NewRegistry() *Registry {
	return &Registry{
		procs: make(map[int64]context.CancelFunc),
	}
}

// Register records the cancel function for a running task
func (r *Registry) Register(taskID int64, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.procs[taskID] = cancel
}

// Unregister removes a task from the registry
func (r *Registry) Unregister(taskID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.procs, taskID)
}

// Cancel terminates the task's execution if it is live. It returns true when
// a live execution was found and signalled.
func (r *Registry) Cancel(taskID int64) bool {
	r.mu.Lock()
	cancel, ok := r.procs[taskID]
	delete(r.procs, taskID)
	r.mu.Unlock()

	if ok {
		cancel()
	}
	return ok
}

// Len returns the number of live executions
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.procs)
}
