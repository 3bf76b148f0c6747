package analysis

import (
	"bytes"
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"

	"biograph/pkg/bel"
)

func protein(name string) bel.Node {
	return bel.Node{Type: "Protein", Namespace: "HGNC", Name: name}
}

func TestParseOmicTable(t *testing.T) {
	cases := []struct {
		name      string
		input     string
		separator string
		want      map[string]float64
	}{
		{
			name:  "comma default",
			input: "gene,value\nAKT1,2.5\nTP53,-1\n",
			want:  map[string]float64{"AKT1": 2.5, "TP53": -1},
		},
		{
			name:      "tab separated",
			input:     "gene\tvalue\nAKT1\t2.5\n",
			separator: "\t",
			want:      map[string]float64{"AKT1": 2.5},
		},
		{
			name:  "empty gene rows dropped",
			input: "gene,value\n,9.9\nAKT1,1\n",
			want:  map[string]float64{"AKT1": 1},
		},
		{
			name:  "last duplicate wins",
			input: "gene,value\nAKT1,1\nAKT1,2\n",
			want:  map[string]float64{"AKT1": 2},
		},
		{
			name:  "extra columns ignored",
			input: "gene,extra,value\nAKT1,x,3\n",
			want:  map[string]float64{"AKT1": 3},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseOmicTable(strings.NewReader(tc.input), "gene", "value", tc.separator)
			if err != nil {
				t.Fatalf("ParseOmicTable: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestParseOmicTableMalformed(t *testing.T) {
	cases := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"missing gene column", "id,value\nAKT1,1\n"},
		{"missing data column", "gene,score\nAKT1,1\n"},
		{"non numeric value", "gene,value\nAKT1,abc\n"},
		{"only empty genes", "gene,value\n,1\n,2\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseOmicTable(strings.NewReader(tc.input), "gene", "value", "")
			var malformed MalformedInputError
			if !errors.As(err, &malformed) {
				t.Fatalf("error = %v, want MalformedInputError", err)
			}
		})
	}
}

func TestPermutationScorerDeterministic(t *testing.T) {
	g := bel.New("", "")
	for _, name := range []string{"AKT1", "TP53", "MAPK1"} {
		g.AddNode(protein(name))
	}
	values := map[string]float64{"AKT1": 2, "TP53": -1}
	scorer := PermutationScorer()

	first := scorer(g, values, 100, 7)
	second := scorer(g, values, 100, 7)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("same seed produced different scores")
	}
	if len(first) != 3 {
		t.Fatalf("got %d scores, want 3", len(first))
	}

	// Zero permutations returns the raw observed values.
	raw := scorer(g, values, 0, 7)
	if raw[protein("AKT1")] != 2 || raw[protein("MAPK1")] != 0 {
		t.Fatalf("raw scores = %v", raw)
	}
}

func TestResultCodecRoundTrip(t *testing.T) {
	in := Result{
		ExperimentID: 42,
		SourceName:   "expr.csv",
		Permutations: 100,
		Scores: map[bel.Node]float64{
			protein("AKT1"): 1.5,
			protein("TP53"): -0.25,
		},
	}
	data, err := EncodeResult(in)
	if err != nil {
		t.Fatalf("EncodeResult: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("BGEX")) {
		t.Fatal("payload missing magic prefix")
	}
	out, err := DecodeResult(data)
	if err != nil {
		t.Fatalf("DecodeResult: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("round-trip changed result: %+v vs %+v", in, out)
	}
}

func TestDecodeResultRejectsForeignPayloads(t *testing.T) {
	if _, err := DecodeResult([]byte(`{"scores":[]}`)); err == nil {
		t.Fatal("expected magic check failure")
	}
	bad := append([]byte("BGEX"), 99)
	bad = append(bad, []byte("{}")...)
	if _, err := DecodeResult(bad); err == nil {
		t.Fatal("expected version check failure")
	}
}

func twoResults() []Result {
	return []Result{
		{
			ExperimentID: 1,
			SourceName:   "first.csv",
			Scores: map[bel.Node]float64{
				protein("AKT1"): 1.23456,
				protein("TP53"): 4,
			},
		},
		{
			ExperimentID: 2,
			SourceName:   "second.csv",
			Scores: map[bel.Node]float64{
				protein("TP53"):  2,
				protein("MAPK1"): -3,
			},
		},
	}
}

func TestNewComparisonUnionFillRound(t *testing.T) {
	table := NewComparison(twoResults())
	if len(table.Columns) != 2 {
		t.Fatalf("got %d columns", len(table.Columns))
	}
	if got := table.Columns[0].Label(); got != "[1] first.csv" {
		t.Fatalf("label = %q", got)
	}
	if len(table.Rows) != 3 {
		t.Fatalf("got %d rows, want union of 3", len(table.Rows))
	}
	// Rows are in canonical node order: AKT1, MAPK1, TP53.
	if table.Rows[0].Node.Name != "AKT1" || table.Rows[1].Node.Name != "MAPK1" {
		t.Fatalf("row order: %v", []string{table.Rows[0].Node.Name, table.Rows[1].Node.Name, table.Rows[2].Node.Name})
	}
	if table.Rows[0].Values[0] != 1.2346 {
		t.Fatalf("rounding: got %v, want 1.2346", table.Rows[0].Values[0])
	}
	if table.Rows[0].Values[1] != 0 {
		t.Fatalf("missing cell = %v, want 0", table.Rows[0].Values[1])
	}
}

func TestNormalizeMinMax(t *testing.T) {
	table := NewComparison(twoResults())
	table.Normalize()
	for col := range table.Columns {
		min, max := math.Inf(1), math.Inf(-1)
		for _, row := range table.Rows {
			v := row.Values[col]
			if v < 0 || v > 1 {
				t.Fatalf("normalized value %v outside [0,1]", v)
			}
			min = math.Min(min, v)
			max = math.Max(max, v)
		}
		if min != 0 || max != 1 {
			t.Fatalf("column %d spans [%v,%v], want [0,1]", col, min, max)
		}
	}
}

func TestNormalizeConstantColumn(t *testing.T) {
	table := NewComparison([]Result{{
		ExperimentID: 1,
		SourceName:   "flat.csv",
		Scores: map[bel.Node]float64{
			protein("AKT1"): 5,
			protein("TP53"): 5,
		},
	}})
	table.Normalize()
	for _, row := range table.Rows {
		if row.Values[0] != 0 {
			t.Fatalf("constant column normalized to %v, want 0", row.Values[0])
		}
	}
}

func TestClusterDeterministicAndBounded(t *testing.T) {
	table := NewComparison(twoResults())
	if err := table.Cluster(2, 11); err != nil {
		t.Fatalf("Cluster: %v", err)
	}
	groups := make([]int, 0, len(table.Rows))
	for _, row := range table.Rows {
		if row.Group < 1 || row.Group > 2 {
			t.Fatalf("group %d outside [1,2]", row.Group)
		}
		groups = append(groups, row.Group)
	}
	for i := 1; i < len(groups); i++ {
		if groups[i] < groups[i-1] {
			t.Fatal("rows not sorted by group")
		}
	}

	again := NewComparison(twoResults())
	if err := again.Cluster(2, 11); err != nil {
		t.Fatalf("Cluster again: %v", err)
	}
	for i := range table.Rows {
		if table.Rows[i].Node != again.Rows[i].Node || table.Rows[i].Group != again.Rows[i].Group {
			t.Fatal("same seed produced different clustering")
		}
	}
}

func TestClusterKClampedToRows(t *testing.T) {
	table := NewComparison(twoResults())
	if err := table.Cluster(10, 1); err != nil {
		t.Fatalf("Cluster: %v", err)
	}
	for _, row := range table.Rows {
		if row.Group < 1 || row.Group > len(table.Rows) {
			t.Fatalf("group %d out of range", row.Group)
		}
	}
	if err := table.Cluster(0, 1); err == nil {
		t.Fatal("expected error for non-positive k")
	}
}

func TestRenderTSV(t *testing.T) {
	table := NewComparison(twoResults())
	var buf bytes.Buffer
	if err := table.RenderTSV(&buf); err != nil {
		t.Fatalf("RenderTSV: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4", len(lines))
	}
	if lines[0] != "Type\tNamespace\tName\t[1] first.csv\t[2] second.csv" {
		t.Fatalf("header = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "Protein\tHGNC\tAKT1\t1.2346\t0") {
		t.Fatalf("first row = %q", lines[1])
	}

	// Clustered tables carry the Group column.
	if err := table.Cluster(2, 3); err != nil {
		t.Fatalf("Cluster: %v", err)
	}
	buf.Reset()
	if err := table.RenderTSV(&buf); err != nil {
		t.Fatalf("RenderTSV clustered: %v", err)
	}
	header := strings.SplitN(buf.String(), "\n", 2)[0]
	if !strings.HasSuffix(header, "\tGroup") {
		t.Fatalf("clustered header = %q", header)
	}
}
