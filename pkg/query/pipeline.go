package query

import (
	"encoding/json"
	"fmt"

	"biograph/pkg/bel"
)

// Step is one named transformation with positional and keyword arguments.
type Step struct {
	Function string         `json:"function"`
	Args     []any          `json:"args,omitempty"`
	Kwargs   map[string]any `json:"kwargs,omitempty"`
}

// Pipeline is an ordered sequence of transformation steps. Pipelines are
// immutable: Append returns a new Pipeline and leaves the receiver untouched.
// Step names are not validated at construction time; an unregistered name
// fails the run with a PipelineStepError.
type Pipeline struct {
	steps []Step
}

// NewPipeline constructs a pipeline from the given steps.
func NewPipeline(steps ...Step) Pipeline {
	return Pipeline{steps: append([]Step(nil), steps...)}
}

// Len returns the number of steps.
func (p Pipeline) Len() int { return len(p.steps) }

// Steps returns a copy of the steps in authored order.
func (p Pipeline) Steps() []Step {
	return append([]Step(nil), p.steps...)
}

// Append returns a new Pipeline with one more step. The receiver is
// unchanged.
func (p Pipeline) Append(name string, args []any, kwargs map[string]any) Pipeline {
	steps := make([]Step, 0, len(p.steps)+1)
	steps = append(steps, p.steps...)
	steps = append(steps, Step{Function: name, Args: cloneArgs(args), Kwargs: cloneKwargs(kwargs)})
	return Pipeline{steps: steps}
}

// Apply executes every step in authored order against g. Execution stops at
// the first failure; no partial graph is returned.
func (p Pipeline) Apply(g *bel.Graph, registry *Registry) (*bel.Graph, error) {
	current := g
	for i, step := range p.steps {
		fn, ok := registry.transform(step.Function)
		if !ok {
			return nil, PipelineStepError{Index: i, Name: step.Function, Err: UnknownTransformError{Name: step.Function}}
		}
		next, err := fn(current, step.Args, step.Kwargs)
		if err != nil {
			return nil, PipelineStepError{Index: i, Name: step.Function, Err: err}
		}
		current = next
	}
	return current, nil
}

// MarshalText encodes the pipeline as its stored textual form.
func (p Pipeline) MarshalText() (string, error) {
	if len(p.steps) == 0 {
		return "", nil
	}
	data, err := json.Marshal(p.steps)
	if err != nil {
		return "", fmt.Errorf("encode pipeline: %w", err)
	}
	return string(data), nil
}

// ParsePipeline decodes a pipeline from its stored textual form. An empty
// string yields an empty pipeline.
func ParsePipeline(text string) (Pipeline, error) {
	if text == "" {
		return Pipeline{}, nil
	}
	var steps []Step
	if err := json.Unmarshal([]byte(text), &steps); err != nil {
		return Pipeline{}, fmt.Errorf("decode pipeline: %w", err)
	}
	return Pipeline{steps: steps}, nil
}

func cloneArgs(args []any) []any {
	if args == nil {
		return nil
	}
	return append([]any(nil), args...)
}

func cloneKwargs(kwargs map[string]any) map[string]any {
	if kwargs == nil {
		return nil
	}
	out := make(map[string]any, len(kwargs))
	for k, v := range kwargs {
		out[k] = v
	}
	return out
}
