package query

import (
	"encoding/json"
	"fmt"

	"biograph/pkg/bel"
)

// SeedOperation is one node-selection step applied to the merged graph.
type SeedOperation struct {
	Kind  string     `json:"kind"`
	Nodes []bel.Node `json:"nodes,omitempty"`
}

// Seeding is an ordered sequence of seed operations. The zero value is an
// empty seeding which selects the whole merged graph. Seeding values are
// immutable once attached to a query; extension helpers return copies.
type Seeding struct {
	ops []SeedOperation
}

// NewSeeding constructs a seeding from the given operations.
func NewSeeding(ops ...SeedOperation) Seeding {
	return Seeding{ops: append([]SeedOperation(nil), ops...)}
}

// Len returns the number of seed operations.
func (s Seeding) Len() int { return len(s.ops) }

// Operations returns a copy of the seed operations in authored order.
func (s Seeding) Operations() []SeedOperation {
	return append([]SeedOperation(nil), s.ops...)
}

// WithNeighbors returns a new Seeding with a neighbors operation appended.
// The receiver is unchanged.
func (s Seeding) WithNeighbors(nodes []bel.Node) Seeding {
	ops := make([]SeedOperation, 0, len(s.ops)+1)
	ops = append(ops, s.ops...)
	ops = append(ops, SeedOperation{Kind: SeedNeighbors, Nodes: append([]bel.Node(nil), nodes...)})
	return Seeding{ops: ops}
}

// Apply runs the seed operations in authored order against the merged graph.
// An empty seeding returns the graph unchanged.
func (s Seeding) Apply(g *bel.Graph, registry *Registry) (*bel.Graph, error) {
	current := g
	for _, op := range s.ops {
		fn, ok := registry.seed(op.Kind)
		if !ok {
			return nil, UnknownSeedError{Kind: op.Kind}
		}
		next, err := fn(current, op)
		if err != nil {
			return nil, fmt.Errorf("seed %s: %w", op.Kind, err)
		}
		current = next
	}
	return current, nil
}

// MarshalText encodes the seeding as its stored textual form.
func (s Seeding) MarshalText() (string, error) {
	if len(s.ops) == 0 {
		return "", nil
	}
	data, err := json.Marshal(s.ops)
	if err != nil {
		return "", fmt.Errorf("encode seeding: %w", err)
	}
	return string(data), nil
}

// ParseSeeding decodes a seeding from its stored textual form. An empty
// string yields an empty seeding.
func ParseSeeding(text string) (Seeding, error) {
	if text == "" {
		return Seeding{}, nil
	}
	var ops []SeedOperation
	if err := json.Unmarshal([]byte(text), &ops); err != nil {
		return Seeding{}, fmt.Errorf("decode seeding: %w", err)
	}
	return Seeding{ops: ops}, nil
}
