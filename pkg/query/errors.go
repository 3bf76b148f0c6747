package query

import "fmt"

// UnknownTransformError is returned when a pipeline references a transform
// name that has not been registered.
type UnknownTransformError struct {
	Name string
}

func (e UnknownTransformError) Error() string {
	return fmt.Sprintf("unknown transform %q", e.Name)
}

// PipelineStepError reports a failed pipeline step. The whole run is aborted
// and no partial graph is returned.
type PipelineStepError struct {
	Index int
	Name  string
	Err   error
}

func (e PipelineStepError) Error() string {
	return fmt.Sprintf("pipeline step %d (%s): %v", e.Index, e.Name, e.Err)
}

func (e PipelineStepError) Unwrap() error { return e.Err }

// UnknownSeedError is returned when a seeding operation names an unregistered
// seed kind.
type UnknownSeedError struct {
	Kind string
}

func (e UnknownSeedError) Error() string {
	return fmt.Sprintf("unknown seed kind %q", e.Kind)
}
