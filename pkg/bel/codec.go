package bel

import (
	"encoding/json"
	"fmt"
)

const graphPayloadVersion = 1

// graphPayload is the stable JSON schema used to persist graphs in the blob
// store. Nodes and edges are written sorted so equal graphs encode to equal
// bytes.
type graphPayload struct {
	SchemaVersion int    `json:"schema_version"`
	Name          string `json:"name"`
	Version       string `json:"version"`
	Nodes         []Node `json:"nodes"`
	Edges         []Edge `json:"edges"`
}

// Marshal encodes a graph into its persisted form.
func Marshal(g *Graph) ([]byte, error) {
	if g == nil {
		return nil, fmt.Errorf("marshal nil graph")
	}
	return json.Marshal(graphPayload{
		SchemaVersion: graphPayloadVersion,
		Name:          g.Name,
		Version:       g.Version,
		Nodes:         g.Nodes(),
		Edges:         g.Edges(),
	})
}

// Unmarshal decodes a graph previously written by Marshal.
func Unmarshal(data []byte) (*Graph, error) {
	var payload graphPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode graph payload: %w", err)
	}
	if payload.SchemaVersion != graphPayloadVersion {
		return nil, fmt.Errorf("unsupported graph payload version %d", payload.SchemaVersion)
	}
	g := New(payload.Name, payload.Version)
	for _, n := range payload.Nodes {
		g.AddNode(n)
	}
	for _, e := range payload.Edges {
		g.AddEdge(e)
	}
	return g, nil
}
