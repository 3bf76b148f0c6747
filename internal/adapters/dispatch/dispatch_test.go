package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestMemoryQueueFIFO(t *testing.T) {
	q := NewMemoryQueue(4)
	defer q.Close()
	ctx := context.Background()

	require.NoError(t, q.Push(ctx, Task{ID: "a", Name: "first"}))
	require.NoError(t, q.Push(ctx, Task{ID: "b", Name: "second"}))

	got, err := q.Pop(ctx)
	require.NoError(t, err)
	require.Equal(t, "a", got.ID)
	got, err = q.Pop(ctx)
	require.NoError(t, err)
	require.Equal(t, "b", got.ID)
}

func TestMemoryQueueClose(t *testing.T) {
	q := NewMemoryQueue(4)
	ctx := context.Background()

	require.NoError(t, q.Push(ctx, Task{ID: "a"}))
	require.NoError(t, q.Close())

	require.ErrorIs(t, q.Push(ctx, Task{ID: "b"}), ErrQueueClosed)

	// Queued tasks remain drainable after close.
	got, err := q.Pop(ctx)
	require.NoError(t, err)
	require.Equal(t, "a", got.ID)
	_, err = q.Pop(ctx)
	require.ErrorIs(t, err, ErrQueueClosed)
}

func TestMemoryQueueCloseWithBlockedPush(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx := context.Background()

	require.NoError(t, q.Push(ctx, Task{ID: "a"}))

	// A second push blocks on the full buffer while Close fires.
	pushErr := make(chan error, 1)
	go func() {
		pushErr <- q.Push(ctx, Task{ID: "b"})
	}()
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, q.Close())

	select {
	case err := <-pushErr:
		require.ErrorIs(t, err, ErrQueueClosed)
	case <-time.After(time.Second):
		t.Fatal("blocked push did not return after close")
	}

	// The task buffered before close still drains.
	got, err := q.Pop(ctx)
	require.NoError(t, err)
	require.Equal(t, "a", got.ID)
	_, err = q.Pop(ctx)
	require.ErrorIs(t, err, ErrQueueClosed)
}

func TestMemoryQueuePopHonorsContext(t *testing.T) {
	q := NewMemoryQueue(1)
	defer q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := q.Pop(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRedisQueueRoundTrip(t *testing.T) {
	srv := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: srv.Addr()})
	q := NewRedisQueueFromClient(client, WithQueueKey("biograph:test"))
	defer q.Close()
	ctx := context.Background()

	in := Task{
		ID:         "task-1",
		Name:       "run_experiment",
		Args:       map[string]any{"experiment_id": int64(7)},
		EnqueuedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, q.Push(ctx, in))
	require.NoError(t, q.Push(ctx, Task{ID: "task-2", Name: "run_experiment"}))

	got, err := q.Pop(ctx)
	require.NoError(t, err)
	require.Equal(t, in.ID, got.ID)
	require.Equal(t, in.Name, got.Name)
	require.True(t, in.EnqueuedAt.Equal(got.EnqueuedAt))

	id, err := got.Int64Arg("experiment_id")
	require.NoError(t, err)
	require.Equal(t, int64(7), id)

	got, err = q.Pop(ctx)
	require.NoError(t, err)
	require.Equal(t, "task-2", got.ID)
}

func TestDispatcherAssignsIDs(t *testing.T) {
	q := NewMemoryQueue(4)
	defer q.Close()
	d := NewDispatcher(q)
	ctx := context.Background()

	first, err := d.Enqueue(ctx, "run_experiment", map[string]any{"experiment_id": int64(3)})
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := d.Enqueue(ctx, "compile_report", nil)
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	got, err := q.Pop(ctx)
	require.NoError(t, err)
	require.Equal(t, first, got.ID)
	require.Equal(t, "run_experiment", got.Name)
	require.False(t, got.EnqueuedAt.IsZero())
}

func TestWorkerRoutesByName(t *testing.T) {
	q := NewMemoryQueue(4)
	w := NewWorker(q, nil)
	w.SettleDelay = 0

	handled := make(chan string, 4)
	w.Register("run_experiment", func(ctx context.Context, task Task) error {
		handled <- task.ID
		return nil
	})

	ctx := context.Background()
	require.NoError(t, q.Push(ctx, Task{ID: "one", Name: "run_experiment"}))
	require.NoError(t, q.Push(ctx, Task{ID: "skip", Name: "unknown"}))
	require.NoError(t, q.Push(ctx, Task{ID: "two", Name: "run_experiment"}))
	require.NoError(t, q.Close())

	require.NoError(t, w.Run(ctx))
	close(handled)

	var ids []string
	for id := range handled {
		ids = append(ids, id)
	}
	require.Equal(t, []string{"one", "two"}, ids)
}

func TestWorkerContinuesAfterHandlerError(t *testing.T) {
	q := NewMemoryQueue(4)
	w := NewWorker(q, nil)
	w.SettleDelay = 0

	var calls int
	w.Register("flaky", func(ctx context.Context, task Task) error {
		calls++
		if calls == 1 {
			return context.DeadlineExceeded
		}
		return nil
	})

	ctx := context.Background()
	require.NoError(t, q.Push(ctx, Task{ID: "a", Name: "flaky"}))
	require.NoError(t, q.Push(ctx, Task{ID: "b", Name: "flaky"}))
	require.NoError(t, q.Close())

	require.NoError(t, w.Run(ctx))
	require.Equal(t, 2, calls)
}

func TestInt64ArgForms(t *testing.T) {
	task := Task{Name: "t", Args: map[string]any{
		"int64":   int64(5),
		"int":     6,
		"float64": float64(7),
		"string":  "8",
	}}

	for key, want := range map[string]int64{"int64": 5, "int": 6, "float64": 7} {
		got, err := task.Int64Arg(key)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	_, err := task.Int64Arg("string")
	require.Error(t, err)
	_, err = task.Int64Arg("missing")
	require.Error(t, err)
}
