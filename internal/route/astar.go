package route

import (
	"container/heap"
	"context"
	"errors"
	"math"

	"pcb-engine/internal/board"
	"pcb-engine/pkg/geometry"
)

var (
	errNoPath            = errors.New("no path found")
	errBudgetExceeded    = errors.New("search budget exceeded")
	errEndpointBlocked   = errors.New("endpoint blocked")
	errCommitInvalidated = errors.New("path invalidated before commit")
)

// searchNode is one A* state: a grid cell on a copper layer.
type searchNode struct {
	layer, x, y int
}

// pathStep is one cell of the raw routed path.
type pathStep struct {
	layer int
	cell  geometry.PointInt
}

// planar neighbor offsets: 8-connected with diagonal step length sqrt(2).
var (
	stepDX  = [8]int{-1, 0, 1, -1, 1, -1, 0, 1}
	stepDY  = [8]int{-1, -1, -1, 0, 0, 1, 1, 1}
	stepLen = [8]float64{math.Sqrt2, 1, math.Sqrt2, 1, 1, math.Sqrt2, 1, math.Sqrt2}
)

// search runs A* from the connection's source pad to its target pad.
// Nodes are (layer, cell); planar edges cost cell-cost times step length,
// via edges cost the configured via penalty. The Euclidean heuristic never
// overestimates, so the returned grid path is cost-optimal.
func (r *router) search(ctx context.Context, conn connection) ([]pathStep, error) {
	net := conn.net.Name
	own := r.markClearance(net)
	startCell := r.g.ToCell(conn.from.Position)
	goalCell := r.g.ToCell(conn.to.Position)

	startLayers := r.padLayers(conn.from)
	goalLayers := make(map[int]bool)
	for _, l := range r.padLayers(conn.to) {
		goalLayers[l] = true
	}

	goalPt := r.g.ToPoint(goalCell)
	h := func(n searchNode) float64 {
		return r.g.ToPoint(geometry.PointInt{X: n.x, Y: n.y}).Distance(goalPt)
	}

	gScore := make(map[searchNode]float64)
	cameFrom := make(map[searchNode]searchNode)
	visited := make(map[searchNode]bool)

	pq := &nodeQueue{}
	heap.Init(pq)
	counter := 0

	anyStart := false
	for _, l := range startLayers {
		n := searchNode{layer: l, x: startCell.X, y: startCell.Y}
		if r.g.BlockedFor(net, l, startCell, own) {
			continue
		}
		anyStart = true
		gScore[n] = 0
		heap.Push(pq, &nodeItem{node: n, f: h(n), h: h(n), order: counter})
		counter++
	}
	if !anyStart {
		return nil, errEndpointBlocked
	}

	_, _, layers := r.g.Dims()
	expansions := 0

	for pq.Len() > 0 {
		// Budget and cancellation checked at the top of the loop.
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		expansions++
		if expansions > r.cfg.MaxExpansions {
			return nil, errBudgetExceeded
		}

		item := heap.Pop(pq).(*nodeItem)
		cur := item.node

		if cur.x == goalCell.X && cur.y == goalCell.Y && goalLayers[cur.layer] {
			return reconstruct(cameFrom, cur), nil
		}

		if visited[cur] {
			continue
		}
		visited[cur] = true
		curG := gScore[cur]

		// Planar steps.
		for d := 0; d < 8; d++ {
			next := searchNode{layer: cur.layer, x: cur.x + stepDX[d], y: cur.y + stepDY[d]}
			cell := geometry.PointInt{X: next.x, Y: next.y}
			if visited[next] || r.g.BlockedFor(net, next.layer, cell, own) {
				continue
			}
			stepCost := stepLen[d] * r.g.Resolution() *
				r.g.CostFor(net, next.layer, cell, own, r.cfg.ProximityPenalty)
			r.relax(pq, gScore, cameFrom, cur, next, curG+stepCost, h, &counter)
		}

		// Via step: a through via must be feasible on every copper layer.
		cell := geometry.PointInt{X: cur.x, Y: cur.y}
		if r.viaFeasible(net, own, cell, layers) {
			for l := 0; l < layers; l++ {
				if l == cur.layer {
					continue
				}
				next := searchNode{layer: l, x: cur.x, y: cur.y}
				if visited[next] {
					continue
				}
				r.relax(pq, gScore, cameFrom, cur, next, curG+r.cfg.ViaPenalty, h, &counter)
			}
		}
	}

	return nil, errNoPath
}

// relax records an improved path to next and pushes it on the frontier.
func (r *router) relax(
	pq *nodeQueue,
	gScore map[searchNode]float64,
	cameFrom map[searchNode]searchNode,
	cur, next searchNode,
	tentativeG float64,
	h func(searchNode) float64,
	counter *int,
) {
	if prev, ok := gScore[next]; ok && tentativeG >= prev {
		return
	}
	gScore[next] = tentativeG
	cameFrom[next] = cur
	hv := h(next)
	heap.Push(pq, &nodeItem{node: next, f: tentativeG + hv, h: hv, order: *counter})
	*counter++
}

// viaFeasible reports whether a through via can land at the cell: usable
// and not blocked for the net on any copper layer.
func (r *router) viaFeasible(net string, own float64, cell geometry.PointInt, layers int) bool {
	if layers < 2 {
		return false
	}
	for l := 0; l < layers; l++ {
		if r.g.BlockedFor(net, l, cell, own) {
			return false
		}
	}
	return true
}

// padLayers returns the copper layers a pad can be entered on.
func (r *router) padLayers(p board.PadRef) []int {
	if len(p.Layers) > 0 {
		return p.Layers
	}
	// Through-hole: every copper layer.
	_, _, layers := r.g.Dims()
	all := make([]int, layers)
	for i := range all {
		all[i] = i
	}
	return all
}

// reconstruct walks cameFrom back to the start and reverses.
func reconstruct(cameFrom map[searchNode]searchNode, end searchNode) []pathStep {
	var path []pathStep
	n := end
	for {
		path = append(path, pathStep{layer: n.layer, cell: geometry.PointInt{X: n.x, Y: n.y}})
		prev, ok := cameFrom[n]
		if !ok {
			break
		}
		n = prev
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// nodeItem is a frontier entry in the A* priority queue.
type nodeItem struct {
	node  searchNode
	f     float64
	h     float64
	order int
	index int
}

// nodeQueue implements heap.Interface. Ties on f prefer the node closest
// to the goal, then earliest insertion, keeping expansion order (and so
// the routed output) deterministic.
type nodeQueue []*nodeItem

func (pq nodeQueue) Len() int { return len(pq) }

func (pq nodeQueue) Less(i, j int) bool {
	if pq[i].f != pq[j].f {
		return pq[i].f < pq[j].f
	}
	if pq[i].h != pq[j].h {
		return pq[i].h < pq[j].h
	}
	return pq[i].order < pq[j].order
}

func (pq nodeQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *nodeQueue) Push(x interface{}) {
	n := len(*pq)
	item := x.(*nodeItem)
	item.index = n
	*pq = append(*pq, item)
}

func (pq *nodeQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[:n-1]
	return item
}
