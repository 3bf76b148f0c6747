package analysis

import (
	"fmt"
	"io"
	"math"
	"math/rand"
	"sort"
	"strconv"
	"strings"

	"biograph/pkg/bel"
)

// Column identifies one experiment contributing to a comparison table.
type Column struct {
	ExperimentID int64
	SourceName   string
}

// Label renders the column header: the experiment ID in brackets followed by
// the omics source name.
func (c Column) Label() string {
	return fmt.Sprintf("[%d] %s", c.ExperimentID, c.SourceName)
}

// Row is one node's scores across every column, plus its cluster group when
// assigned (1-indexed, zero meaning ungrouped).
type Row struct {
	Node   bel.Node  `json:"node"`
	Values []float64 `json:"values"`
	Group  int       `json:"group,omitempty"`
}

// Table is a comparison of experiment results over the union of their scored
// nodes. Rows are kept in canonical node order until clustering regroups
// them.
type Table struct {
	Columns []Column `json:"columns"`
	Rows    []Row    `json:"rows"`
	grouped bool
}

// NewComparison builds a table from experiment results. The row set is the
// union of all scored nodes; missing cells are filled with zero and every
// value is rounded to four decimals.
func NewComparison(results []Result) *Table {
	columns := make([]Column, 0, len(results))
	nodeSet := make(map[bel.Node]struct{})
	for _, r := range results {
		columns = append(columns, Column{ExperimentID: r.ExperimentID, SourceName: r.SourceName})
		for n := range r.Scores {
			nodeSet[n] = struct{}{}
		}
	}
	nodes := make([]bel.Node, 0, len(nodeSet))
	for n := range nodeSet {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Less(nodes[j]) })

	rows := make([]Row, 0, len(nodes))
	for _, n := range nodes {
		values := make([]float64, len(results))
		for i, r := range results {
			values[i] = round4(r.Scores[n])
		}
		rows = append(rows, Row{Node: n, Values: values})
	}
	return &Table{Columns: columns, Rows: rows}
}

// Normalize rescales every column to [0, 1] via min-max. A constant column
// collapses to zero.
func (t *Table) Normalize() {
	for col := range t.Columns {
		min, max := math.Inf(1), math.Inf(-1)
		for _, row := range t.Rows {
			v := row.Values[col]
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
		span := max - min
		for i := range t.Rows {
			if span == 0 {
				t.Rows[i].Values[col] = 0
				continue
			}
			t.Rows[i].Values[col] = round4((t.Rows[i].Values[col] - min) / span)
		}
	}
}

// Cluster assigns every row to one of k groups via seeded k-means and sorts
// rows by group, preserving node order within each group. Group numbers are
// 1-indexed.
func (t *Table) Cluster(k int, seed int64) error {
	if k <= 0 {
		return fmt.Errorf("cluster count must be positive, got %d", k)
	}
	if len(t.Rows) == 0 {
		return nil
	}
	if k > len(t.Rows) {
		k = len(t.Rows)
	}

	rng := rand.New(rand.NewSource(seed))
	dims := len(t.Columns)

	// Seeded Forgy init: k distinct row indices.
	perm := rng.Perm(len(t.Rows))[:k]
	centroids := make([][]float64, k)
	for i, idx := range perm {
		centroids[i] = append([]float64(nil), t.Rows[idx].Values...)
	}

	assign := make([]int, len(t.Rows))
	for iter := 0; iter < 100; iter++ {
		changed := false
		for i, row := range t.Rows {
			best, bestDist := 0, math.Inf(1)
			for c, centroid := range centroids {
				d := squaredDistance(row.Values, centroid)
				if d < bestDist {
					best, bestDist = c, d
				}
			}
			if assign[i] != best {
				assign[i] = best
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}
		counts := make([]int, k)
		sums := make([][]float64, k)
		for c := range sums {
			sums[c] = make([]float64, dims)
		}
		for i, row := range t.Rows {
			c := assign[i]
			counts[c]++
			for d, v := range row.Values {
				sums[c][d] += v
			}
		}
		for c := range centroids {
			if counts[c] == 0 {
				continue
			}
			for d := range centroids[c] {
				centroids[c][d] = sums[c][d] / float64(counts[c])
			}
		}
	}

	for i := range t.Rows {
		t.Rows[i].Group = assign[i] + 1
	}
	sort.SliceStable(t.Rows, func(i, j int) bool { return t.Rows[i].Group < t.Rows[j].Group })
	t.grouped = true
	return nil
}

// RenderTSV writes the table: Type, Namespace, Name, one column per
// experiment, and a trailing Group column when clustered.
func (t *Table) RenderTSV(w io.Writer) error {
	header := []string{"Type", "Namespace", "Name"}
	for _, c := range t.Columns {
		header = append(header, c.Label())
	}
	if t.grouped {
		header = append(header, "Group")
	}
	if _, err := fmt.Fprintln(w, strings.Join(header, "\t")); err != nil {
		return err
	}
	for _, row := range t.Rows {
		fields := []string{row.Node.Type, row.Node.Namespace, row.Node.Name}
		for _, v := range row.Values {
			fields = append(fields, strconv.FormatFloat(v, 'f', -1, 64))
		}
		if t.grouped {
			fields = append(fields, strconv.Itoa(row.Group))
		}
		if _, err := fmt.Fprintln(w, strings.Join(fields, "\t")); err != nil {
			return err
		}
	}
	return nil
}

func squaredDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
