package conversation

import (
	"context"
	"sync"

	"github.com/longkey1/gchat/internal/gchat"
)

// Task is the handle of one in-flight reply. It is safe for concurrent use.
type Task struct {
	id     string
	handle Handle
	cancel context.CancelFunc
	done   chan struct{}

	mu    sync.Mutex
	state gchat.State
	err   error
}

func newTask(id string, h Handle, cancel context.CancelFunc) *Task {
	return &Task{
		id:     id,
		handle: h,
		cancel: cancel,
		done:   make(chan struct{}),
		state:  gchat.StateStreaming,
	}
}

// ID returns the task ID.
func (t *Task) ID() string {
	return t.id
}

// Handle returns the handle of the assistant placeholder this task fills.
func (t *Task) Handle() Handle {
	return t.handle
}

// Cancel stops the stream. The placeholder keeps the text received so far
// and ends in StateCancelled. Cancel after completion is a no-op.
func (t *Task) Cancel() {
	t.cancel()
}

// Done is closed once the placeholder has reached a terminal state.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// State returns the current state of the placeholder.
func (t *Task) State() gchat.State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Err returns the stream error once the task is done; nil while running or
// after a successful completion.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Wait blocks until the task is done or ctx ends, and returns the task error.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Task) finish(state gchat.State, err error) {
	t.mu.Lock()
	t.state = state
	t.err = err
	t.mu.Unlock()
	t.cancel()
	close(t.done)
}
