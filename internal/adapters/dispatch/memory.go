package dispatch

import (
	"context"
	"sync"
)

// MemoryQueue is an in-process FIFO queue for tests and single-binary
// deployments.
type MemoryQueue struct {
	mu     sync.Mutex
	ch     chan Task
	done   chan struct{}
	closed bool
}

// NewMemoryQueue returns a buffered in-process queue.
func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = 64
	}
	return &MemoryQueue{
		ch:   make(chan Task, capacity),
		done: make(chan struct{}),
	}
}

// Push appends a task, blocking when the buffer is full. The task channel is
// never closed, so a Push racing Close returns ErrQueueClosed instead of
// panicking.
func (q *MemoryQueue) Push(ctx context.Context, task Task) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}
	select {
	case q.ch <- task:
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pop blocks until a task arrives or the queue closes. Tasks buffered before
// Close are still delivered.
func (q *MemoryQueue) Pop(ctx context.Context) (Task, error) {
	select {
	case task := <-q.ch:
		return task, nil
	default:
	}
	select {
	case task := <-q.ch:
		return task, nil
	case <-q.done:
		select {
		case task := <-q.ch:
			return task, nil
		default:
			return Task{}, ErrQueueClosed
		}
	case <-ctx.Done():
		return Task{}, ctx.Err()
	}
}

// Close stops the queue; queued tasks may still be popped until drained.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.done)
	}
	return nil
}
