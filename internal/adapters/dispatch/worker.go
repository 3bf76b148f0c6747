package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Handler processes one task.
type Handler func(ctx context.Context, task Task) error

// Worker drains a queue, routing tasks to registered handlers by name. A
// handler error is logged and the loop continues; only queue closure or
// context cancellation stops it.
type Worker struct {
	queue    Queue
	handlers map[string]Handler
	logger   *slog.Logger

	// SettleDelay is waited between dequeue and handling so that the
	// enqueuing transaction's snapshot is visible to other processes.
	SettleDelay time.Duration
}

// NewWorker creates a worker over the queue.
func NewWorker(queue Queue, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		queue:       queue,
		handlers:    make(map[string]Handler),
		logger:      logger,
		SettleDelay: 2 * time.Second,
	}
}

// Register binds a handler to a task name. Later registrations replace
// earlier ones.
func (w *Worker) Register(name string, handler Handler) {
	w.handlers[name] = handler
}

// Run processes tasks until the context is cancelled or the queue closes.
func (w *Worker) Run(ctx context.Context) error {
	for {
		task, err := w.queue.Pop(ctx)
		if errors.Is(err, ErrQueueClosed) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("pop task: %w", err)
		}
		if w.SettleDelay > 0 {
			select {
			case <-time.After(w.SettleDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		w.handle(ctx, task)
	}
}

func (w *Worker) handle(ctx context.Context, task Task) {
	handler, ok := w.handlers[task.Name]
	if !ok {
		w.logger.Warn("no handler for task", "task", task.Name, "id", task.ID)
		return
	}
	started := time.Now()
	if err := handler(ctx, task); err != nil {
		w.logger.Error("task failed", "task", task.Name, "id", task.ID, "err", err)
		return
	}
	w.logger.Info("task done", "task", task.Name, "id", task.ID, "elapsed", time.Since(started))
}
