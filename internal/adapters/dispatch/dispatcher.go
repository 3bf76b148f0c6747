package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Dispatcher enqueues named tasks onto a queue. It satisfies the task
// dispatcher the core service expects.
type Dispatcher struct {
	queue Queue
	nowFn func() time.Time
}

// NewDispatcher wraps a queue.
func NewDispatcher(queue Queue) *Dispatcher {
	return &Dispatcher{queue: queue, nowFn: time.Now}
}

// Enqueue pushes a task and returns its assigned ID.
func (d *Dispatcher) Enqueue(ctx context.Context, name string, args map[string]any) (string, error) {
	task := Task{
		ID:         uuid.NewString(),
		Name:       name,
		Args:       args,
		EnqueuedAt: d.nowFn().UTC(),
	}
	if err := d.queue.Push(ctx, task); err != nil {
		return "", err
	}
	return task.ID, nil
}
