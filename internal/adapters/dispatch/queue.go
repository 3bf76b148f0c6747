package dispatch

import (
	"context"
	"errors"
)

// ErrQueueClosed is returned by Pop once the queue is drained and closed.
var ErrQueueClosed = errors.New("dispatch: queue closed")

// Queue transports tasks between the API process and workers.
type Queue interface {
	// Push appends a task. Order is FIFO per queue.
	Push(ctx context.Context, task Task) error
	// Pop blocks until a task is available, the context is done, or the
	// queue is closed.
	Pop(ctx context.Context) (Task, error)
	Close() error
}
