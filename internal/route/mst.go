package route

import (
	"sort"

	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"

	"pcb-engine/internal/board"
)

// mstEdge is one spanning-tree connection between pad indexes.
type mstEdge struct {
	a, b   int
	weight float64
}

// spanningEdges computes a minimum spanning tree over the pads by Euclidean
// distance and returns its edges in ascending-weight order (the order
// Kruskal commits them), with pad-index tiebreaks for determinism.
func spanningEdges(pads []board.PadRef) []mstEdge {
	full := simple.NewWeightedUndirectedGraph(0, 0)
	for i := range pads {
		full.AddNode(simple.Node(i))
	}
	for i := 0; i < len(pads); i++ {
		for j := i + 1; j < len(pads); j++ {
			w := pads[i].Position.Distance(pads[j].Position)
			full.SetWeightedEdge(simple.WeightedEdge{
				F: simple.Node(i), T: simple.Node(j), W: w,
			})
		}
	}

	tree := simple.NewWeightedUndirectedGraph(0, 0)
	path.Kruskal(tree, full)

	var edges []mstEdge
	it := tree.WeightedEdges()
	for it.Next() {
		e := it.WeightedEdge()
		a, b := int(e.From().ID()), int(e.To().ID())
		if a > b {
			a, b = b, a
		}
		edges = append(edges, mstEdge{a: a, b: b, weight: e.Weight()})
	}

	sort.Slice(edges, func(i, j int) bool {
		if edges[i].weight != edges[j].weight {
			return edges[i].weight < edges[j].weight
		}
		if edges[i].a != edges[j].a {
			return edges[i].a < edges[j].a
		}
		return edges[i].b < edges[j].b
	})
	return edges
}
