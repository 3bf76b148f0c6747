package analysis

import (
	"math/rand"
	"sort"

	"biograph/pkg/bel"
)

// Scorer assigns a score to every node of a query result graph given a gene
// to value mapping. Implementations must be deterministic for a fixed graph,
// mapping, permutation count, and seed.
type Scorer func(g *bel.Graph, values map[string]float64, permutations int, seed int64) map[bel.Node]float64

// PermutationScorer returns the default scorer: each node's observed value
// (its name looked up in the omics mapping, zero when absent) adjusted by the
// mean of a label-shuffled null distribution. More permutations tighten the
// null estimate; the seed pins the shuffles.
func PermutationScorer() Scorer {
	return func(g *bel.Graph, values map[string]float64, permutations int, seed int64) map[bel.Node]float64 {
		nodes := g.Nodes()
		observed := make(map[bel.Node]float64, len(nodes))
		pool := make([]float64, 0, len(nodes))
		for _, n := range nodes {
			v := values[n.Name]
			observed[n] = v
			pool = append(pool, v)
		}
		if permutations <= 0 || len(nodes) == 0 {
			return observed
		}

		rng := rand.New(rand.NewSource(seed))
		null := make(map[bel.Node]float64, len(nodes))
		shuffled := make([]float64, len(pool))
		for p := 0; p < permutations; p++ {
			copy(shuffled, pool)
			rng.Shuffle(len(shuffled), func(i, j int) {
				shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
			})
			for i, n := range nodes {
				null[n] += shuffled[i]
			}
		}

		out := make(map[bel.Node]float64, len(nodes))
		for _, n := range nodes {
			out[n] = observed[n] - null[n]/float64(permutations)
		}
		return out
	}
}

// SortedNodes returns the score keys in canonical node order.
func SortedNodes(scores map[bel.Node]float64) []bel.Node {
	out := make([]bel.Node, 0, len(scores))
	for n := range scores {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}
