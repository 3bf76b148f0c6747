// Package bel provides the in-memory biological network graph model used by
// query execution. Graphs are value types: every mutation helper returns a
// fresh graph and leaves its input untouched, so pipeline steps compose
// without aliasing surprises.
package bel

import (
	"fmt"
	"sort"
)

// Node identifies a biological entity by its function class, namespace and
// name. Nodes are comparable and usable as map keys.
type Node struct {
	Type      string `json:"type"`
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
}

// String renders the node identity as a colon-joined triple, matching the
// Type/Namespace/Name columns of tabular exports.
func (n Node) String() string {
	return fmt.Sprintf("%s:%s:%s", n.Type, n.Namespace, n.Name)
}

// Less orders nodes lexicographically by (type, namespace, name).
func (n Node) Less(other Node) bool {
	if n.Type != other.Type {
		return n.Type < other.Type
	}
	if n.Namespace != other.Namespace {
		return n.Namespace < other.Namespace
	}
	return n.Name < other.Name
}

// Edge is a directed relation between two nodes.
type Edge struct {
	Source   Node   `json:"source"`
	Target   Node   `json:"target"`
	Relation string `json:"relation"`
}

// Less orders edges by source, target, then relation.
func (e Edge) Less(other Edge) bool {
	if e.Source != other.Source {
		return e.Source.Less(other.Source)
	}
	if e.Target != other.Target {
		return e.Target.Less(other.Target)
	}
	return e.Relation < other.Relation
}

// Graph is a directed multigraph over Nodes. The zero value is not usable;
// construct with New.
type Graph struct {
	Name    string
	Version string

	nodes map[Node]struct{}
	edges map[Edge]struct{}
}

// New constructs an empty graph with the given name and version.
func New(name, version string) *Graph {
	return &Graph{
		Name:    name,
		Version: version,
		nodes:   make(map[Node]struct{}),
		edges:   make(map[Edge]struct{}),
	}
}

// AddNode inserts a node. Idempotent.
func (g *Graph) AddNode(n Node) {
	g.nodes[n] = struct{}{}
}

// AddEdge inserts an edge and both endpoints. Idempotent.
func (g *Graph) AddEdge(e Edge) {
	g.nodes[e.Source] = struct{}{}
	g.nodes[e.Target] = struct{}{}
	g.edges[e] = struct{}{}
}

// HasNode reports whether n is present.
func (g *Graph) HasNode(n Node) bool {
	_, ok := g.nodes[n]
	return ok
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Nodes returns all nodes in deterministic (sorted) order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, len(g.nodes))
	for n := range g.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// Edges returns all edges in deterministic (sorted) order.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, 0, len(g.edges))
	for e := range g.edges {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// Clone returns a deep copy of the graph.
func (g *Graph) Clone() *Graph {
	cp := New(g.Name, g.Version)
	for n := range g.nodes {
		cp.nodes[n] = struct{}{}
	}
	for e := range g.edges {
		cp.edges[e] = struct{}{}
	}
	return cp
}

// Union merges the given graphs into a new graph. The name and version of the
// first graph are kept; an empty input yields an empty unnamed graph.
func Union(graphs ...*Graph) *Graph {
	merged := New("", "")
	for i, g := range graphs {
		if g == nil {
			continue
		}
		if i == 0 {
			merged.Name = g.Name
			merged.Version = g.Version
		}
		for n := range g.nodes {
			merged.nodes[n] = struct{}{}
		}
		for e := range g.edges {
			merged.edges[e] = struct{}{}
		}
	}
	return merged
}

// Neighborhood returns the subgraph induced by the seed nodes plus every node
// adjacent to a seed, keeping all edges incident to a seed. Seeds absent from
// the graph are ignored.
func (g *Graph) Neighborhood(seeds []Node) *Graph {
	seedSet := make(map[Node]struct{}, len(seeds))
	for _, n := range seeds {
		if g.HasNode(n) {
			seedSet[n] = struct{}{}
		}
	}
	out := New(g.Name, g.Version)
	for n := range seedSet {
		out.AddNode(n)
	}
	for e := range g.edges {
		_, srcSeed := seedSet[e.Source]
		_, dstSeed := seedSet[e.Target]
		if srcSeed || dstSeed {
			out.AddEdge(e)
		}
	}
	return out
}

// Induce returns the subgraph induced by keep: the listed nodes that exist in
// g and every edge whose endpoints are both kept.
func (g *Graph) Induce(keep []Node) *Graph {
	keepSet := make(map[Node]struct{}, len(keep))
	for _, n := range keep {
		if g.HasNode(n) {
			keepSet[n] = struct{}{}
		}
	}
	out := New(g.Name, g.Version)
	for n := range keepSet {
		out.AddNode(n)
	}
	for e := range g.edges {
		if _, ok := keepSet[e.Source]; !ok {
			continue
		}
		if _, ok := keepSet[e.Target]; !ok {
			continue
		}
		out.AddEdge(e)
	}
	return out
}

// Equal reports whether two graphs have identical node and edge sets.
// Name and version are not compared.
func (g *Graph) Equal(other *Graph) bool {
	if other == nil || len(g.nodes) != len(other.nodes) || len(g.edges) != len(other.edges) {
		return false
	}
	for n := range g.nodes {
		if _, ok := other.nodes[n]; !ok {
			return false
		}
	}
	for e := range g.edges {
		if _, ok := other.edges[e]; !ok {
			return false
		}
	}
	return true
}
