package bel

import (
	"reflect"
	"testing"
)

func protein(name string) Node {
	return Node{Type: "Protein", Namespace: "HGNC", Name: name}
}

func buildGraph(t *testing.T) *Graph {
	t.Helper()
	g := New("test", "1.0")
	a, b, c := protein("AKT1"), protein("TP53"), protein("MAPK1")
	g.AddNode(a)
	g.AddNode(b)
	g.AddNode(c)
	g.AddEdge(Edge{Source: a, Target: b, Relation: "increases"})
	g.AddEdge(Edge{Source: b, Target: c, Relation: "decreases"})
	return g
}

func TestNodeOrdering(t *testing.T) {
	g := New("", "")
	g.AddNode(protein("TP53"))
	g.AddNode(protein("AKT1"))
	g.AddNode(Node{Type: "Abundance", Namespace: "CHEBI", Name: "water"})

	nodes := g.Nodes()
	want := []string{"Abundance:CHEBI:water", "Protein:HGNC:AKT1", "Protein:HGNC:TP53"}
	if len(nodes) != len(want) {
		t.Fatalf("got %d nodes, want %d", len(nodes), len(want))
	}
	for i, n := range nodes {
		if n.String() != want[i] {
			t.Fatalf("node %d = %s, want %s", i, n, want[i])
		}
	}
}

func TestAddNodeIdempotent(t *testing.T) {
	g := New("", "")
	g.AddNode(protein("AKT1"))
	g.AddNode(protein("AKT1"))
	if g.NodeCount() != 1 {
		t.Fatalf("node count = %d, want 1", g.NodeCount())
	}
}

func TestUnionMergesWithoutDuplicates(t *testing.T) {
	g1 := buildGraph(t)
	g2 := New("other", "2.0")
	g2.AddNode(protein("AKT1"))
	g2.AddNode(protein("EGFR"))
	g2.AddEdge(Edge{Source: protein("AKT1"), Target: protein("EGFR"), Relation: "increases"})

	merged := Union(g1, g2)
	if merged.Name != "test" || merged.Version != "1.0" {
		t.Fatalf("merged identity = %s/%s, want first graph's", merged.Name, merged.Version)
	}
	if merged.NodeCount() != 4 {
		t.Fatalf("node count = %d, want 4", merged.NodeCount())
	}
	if merged.EdgeCount() != 3 {
		t.Fatalf("edge count = %d, want 3", merged.EdgeCount())
	}

	// Union of a graph with itself changes nothing.
	if doubled := Union(g1, g1); !doubled.Equal(g1) {
		t.Fatal("union with self should equal the original")
	}
}

func TestNeighborhoodKeepsIncidentEdges(t *testing.T) {
	g := buildGraph(t)
	sub := g.Neighborhood([]Node{protein("TP53")})
	if sub.EdgeCount() != 2 {
		t.Fatalf("edge count = %d, want 2", sub.EdgeCount())
	}
	if !sub.HasNode(protein("TP53")) {
		t.Fatal("seed node missing from neighborhood")
	}
	// Unknown seeds are ignored.
	if empty := g.Neighborhood([]Node{protein("UNKNOWN")}); empty.NodeCount() != 0 {
		t.Fatalf("unknown seed produced %d nodes", empty.NodeCount())
	}
}

func TestInduceDropsCrossingEdges(t *testing.T) {
	g := buildGraph(t)
	sub := g.Induce([]Node{protein("AKT1"), protein("TP53")})
	if sub.NodeCount() != 2 || sub.EdgeCount() != 1 {
		t.Fatalf("induced = %d nodes %d edges, want 2/1", sub.NodeCount(), sub.EdgeCount())
	}
}

func TestCloneIsIndependent(t *testing.T) {
	g := buildGraph(t)
	cp := g.Clone()
	cp.AddNode(protein("EGFR"))
	if g.HasNode(protein("EGFR")) {
		t.Fatal("mutating the clone changed the original")
	}
	if !g.Equal(g.Clone()) {
		t.Fatal("fresh clone should equal the original")
	}
}

func TestCodecRoundTrip(t *testing.T) {
	g := buildGraph(t)
	data, err := Marshal(g)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	back, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !g.Equal(back) {
		t.Fatal("round-trip changed the graph")
	}
	if back.Name != "test" || back.Version != "1.0" {
		t.Fatalf("identity lost: %s/%s", back.Name, back.Version)
	}
}

func TestCodecDeterministicBytes(t *testing.T) {
	g := buildGraph(t)
	first, err := Marshal(g)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	second, err := Marshal(g.Clone())
	if err != nil {
		t.Fatalf("Marshal clone: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatal("equal graphs encode to different bytes")
	}
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	if _, err := Unmarshal([]byte("not json")); err == nil {
		t.Fatal("expected decode error")
	}
	if _, err := Unmarshal([]byte(`{"schema_version":99}`)); err == nil {
		t.Fatal("expected version error")
	}
}
