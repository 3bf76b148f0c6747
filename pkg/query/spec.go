package query

import (
	"context"
	"encoding/json"
	"fmt"

	"biograph/pkg/bel"
)

// GraphProvider materializes stored networks by identifier. Implementations
// live in the storage layer; the query package never touches persistence
// directly.
type GraphProvider interface {
	GraphByID(ctx context.Context, networkID int64) (*bel.Graph, error)
}

// Spec is the complete, replayable description of one graph query: which
// networks to merge, how to seed the merged graph, and which transformations
// to apply afterwards.
type Spec struct {
	NetworkIDs []int64
	Seeding    Seeding
	Pipeline   Pipeline
}

// NewSpec builds a spec over the given network identifiers.
func NewSpec(networkIDs []int64, seeding Seeding, pipeline Pipeline) Spec {
	return Spec{
		NetworkIDs: append([]int64(nil), networkIDs...),
		Seeding:    seeding,
		Pipeline:   pipeline,
	}
}

// Run resolves every network through the provider, merges them in authored
// order, applies the seeding and then the pipeline. The result is
// deterministic for fixed inputs: networks merge in the order given and seed
// and transform steps run strictly in their authored sequence.
func (s Spec) Run(ctx context.Context, provider GraphProvider, registry *Registry) (*bel.Graph, error) {
	if len(s.NetworkIDs) == 0 {
		return nil, fmt.Errorf("query has no networks")
	}
	graphs := make([]*bel.Graph, 0, len(s.NetworkIDs))
	for _, id := range s.NetworkIDs {
		g, err := provider.GraphByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("resolve network %d: %w", id, err)
		}
		graphs = append(graphs, g)
	}
	merged := bel.Union(graphs...)

	seeded, err := s.Seeding.Apply(merged, registry)
	if err != nil {
		return nil, err
	}
	return s.Pipeline.Apply(seeded, registry)
}

// specPayload is the wire form used by MarshalJSON / ParseSpec.
type specPayload struct {
	NetworkIDs []int64         `json:"network_ids"`
	Seeding    []SeedOperation `json:"seeding,omitempty"`
	Pipeline   []Step          `json:"pipeline,omitempty"`
}

// MarshalJSON encodes the spec as a single JSON document.
func (s Spec) MarshalJSON() ([]byte, error) {
	return json.Marshal(specPayload{
		NetworkIDs: s.NetworkIDs,
		Seeding:    s.Seeding.Operations(),
		Pipeline:   s.Pipeline.Steps(),
	})
}

// ParseSpec decodes a spec from its JSON document form.
func ParseSpec(data []byte) (Spec, error) {
	var payload specPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return Spec{}, fmt.Errorf("decode query spec: %w", err)
	}
	return Spec{
		NetworkIDs: payload.NetworkIDs,
		Seeding:    NewSeeding(payload.Seeding...),
		Pipeline:   NewPipeline(payload.Pipeline...),
	}, nil
}
