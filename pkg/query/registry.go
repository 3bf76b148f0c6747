package query

import (
	"fmt"
	"sync"

	"biograph/pkg/bel"
)

// TransformFunc applies one named transformation to a graph and returns the
// resulting graph. Implementations must not mutate the input.
type TransformFunc func(g *bel.Graph, args []any, kwargs map[string]any) (*bel.Graph, error)

// SeedFunc selects a node subset from the merged graph for one seeding
// operation, returning the seeded subgraph.
type SeedFunc func(g *bel.Graph, op SeedOperation) (*bel.Graph, error)

// Registry maps transform and seed names to their implementations. Pipeline
// construction does not consult the registry; execution does, so an unknown
// name fails at run time.
type Registry struct {
	mu         sync.RWMutex
	transforms map[string]TransformFunc
	seeds      map[string]SeedFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		transforms: make(map[string]TransformFunc),
		seeds:      make(map[string]SeedFunc),
	}
}

// RegisterTransform adds a transform. An existing name is overwritten.
func (r *Registry) RegisterTransform(name string, fn TransformFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transforms[name] = fn
}

// RegisterSeed adds a seed handler for the given kind.
func (r *Registry) RegisterSeed(kind string, fn SeedFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seeds[kind] = fn
}

// HasTransform reports whether name is registered. Callers appending steps
// can use this as an early warning; execution still re-checks.
func (r *Registry) HasTransform(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.transforms[name]
	return ok
}

func (r *Registry) transform(name string) (TransformFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.transforms[name]
	return fn, ok
}

func (r *Registry) seed(kind string) (SeedFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.seeds[kind]
	return fn, ok
}

// TransformNames lists registered transform names (unordered).
func (r *Registry) TransformNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.transforms))
	for name := range r.transforms {
		out = append(out, name)
	}
	return out
}

// Seed kinds understood by the default registry.
const (
	SeedNodes     = "nodes"
	SeedNeighbors = "neighbors"
	SeedInduction = "induction"
)

// Built-in transform names.
const (
	TransformRemoveIsolatedNodes = "remove_isolated_nodes"
	TransformPruneNamespace      = "prune_by_namespace"
	TransformInduceByType        = "induce_by_type"
)

// DefaultRegistry returns a registry with the standard seed kinds and
// built-in transforms installed.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.RegisterSeed(SeedNodes, func(g *bel.Graph, op SeedOperation) (*bel.Graph, error) {
		return g.Induce(op.Nodes), nil
	})
	r.RegisterSeed(SeedNeighbors, func(g *bel.Graph, op SeedOperation) (*bel.Graph, error) {
		return g.Neighborhood(op.Nodes), nil
	})
	r.RegisterSeed(SeedInduction, func(g *bel.Graph, op SeedOperation) (*bel.Graph, error) {
		return g.Induce(op.Nodes), nil
	})

	r.RegisterTransform(TransformRemoveIsolatedNodes, removeIsolatedNodes)
	r.RegisterTransform(TransformPruneNamespace, pruneByNamespace)
	r.RegisterTransform(TransformInduceByType, induceByType)
	return r
}

func removeIsolatedNodes(g *bel.Graph, _ []any, _ map[string]any) (*bel.Graph, error) {
	connected := make(map[bel.Node]struct{})
	for _, e := range g.Edges() {
		connected[e.Source] = struct{}{}
		connected[e.Target] = struct{}{}
	}
	keep := make([]bel.Node, 0, len(connected))
	for n := range connected {
		keep = append(keep, n)
	}
	return g.Induce(keep), nil
}

func pruneByNamespace(g *bel.Graph, args []any, kwargs map[string]any) (*bel.Graph, error) {
	namespace, err := stringArg("namespace", args, kwargs)
	if err != nil {
		return nil, err
	}
	var keep []bel.Node
	for _, n := range g.Nodes() {
		if n.Namespace != namespace {
			keep = append(keep, n)
		}
	}
	return g.Induce(keep), nil
}

func induceByType(g *bel.Graph, args []any, kwargs map[string]any) (*bel.Graph, error) {
	typ, err := stringArg("type", args, kwargs)
	if err != nil {
		return nil, err
	}
	var keep []bel.Node
	for _, n := range g.Nodes() {
		if n.Type == typ {
			keep = append(keep, n)
		}
	}
	return g.Induce(keep), nil
}

// stringArg resolves a required string argument from either the first
// positional argument or the named keyword argument.
func stringArg(key string, args []any, kwargs map[string]any) (string, error) {
	if v, ok := kwargs[key]; ok {
		if s, ok := v.(string); ok {
			return s, nil
		}
		return "", fmt.Errorf("argument %q must be a string, got %T", key, v)
	}
	if len(args) > 0 {
		if s, ok := args[0].(string); ok {
			return s, nil
		}
		return "", fmt.Errorf("argument %q must be a string, got %T", key, args[0])
	}
	return "", fmt.Errorf("missing required argument %q", key)
}
