// Package dispatch provides the background task queue: a small task envelope,
// queue backends (in-process and Redis), and the worker loop that drains them.
package dispatch

import (
	"encoding/json"
	"fmt"
	"time"
)

// Task is one unit of background work. Args carry only JSON-safe values;
// numeric arguments round-trip as float64.
type Task struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Args       map[string]any `json:"args,omitempty"`
	EnqueuedAt time.Time      `json:"enqueued_at"`
}

// Encode serializes the task for queue transport.
func (t Task) Encode() ([]byte, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("encode task: %w", err)
	}
	return data, nil
}

// DecodeTask parses a task from its queue transport form.
func DecodeTask(data []byte) (Task, error) {
	var t Task
	if err := json.Unmarshal(data, &t); err != nil {
		return Task{}, fmt.Errorf("decode task: %w", err)
	}
	return t, nil
}

// Int64Arg extracts an integer argument, tolerating the float64 form JSON
// decoding produces.
func (t Task) Int64Arg(key string) (int64, error) {
	v, ok := t.Args[key]
	if !ok {
		return 0, fmt.Errorf("task %s missing argument %q", t.Name, key)
	}
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("task %s argument %q is not numeric (%T)", t.Name, key, v)
	}
}
