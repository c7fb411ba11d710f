package route

import (
	"container/heap"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pcb-engine/internal/board"
	"pcb-engine/internal/drc"
	"pcb-engine/internal/grid"
	"pcb-engine/internal/netlist"
	"pcb-engine/pkg/geometry"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func comp(ref, footprint string, x, y float64) *board.Component {
	fp, ok := board.LookupFootprint(footprint)
	if !ok {
		panic("unknown footprint " + footprint)
	}
	return &board.Component{Ref: ref, Footprint: fp, Position: geometry.Point2D{X: x, Y: y}}
}

// twoPadBoard builds a board with one two-pin net between two resistors.
func twoPadBoard() (*board.Board, *netlist.OrderedNetList) {
	b := board.New("route-test", 30, 20)
	r1 := comp("R1", "R0805", 5, 10)
	r2 := comp("R2", "R0805", 25, 10)
	r1.Footprint.Pads[1].Net = "SIG"
	r2.Footprint.Pads[0].Net = "SIG"
	b.Components = []*board.Component{r1, r2}

	nets := netlist.Classify([]netlist.RawNet{
		{Name: "SIG", Pins: []string{"R1.2", "R2.1"}},
	}, netlist.Hints{})
	return b, nets
}

func TestRouteTwoPinNet(t *testing.T) {
	b, nets := twoPadBoard()
	results, err := Route(context.Background(), b, nets, DefaultConfig(), testLogger())
	require.NoError(t, err)
	require.Len(t, results, 1)

	res := results[0]
	assert.Equal(t, StatusRouted, res.Status)
	assert.Equal(t, 1, res.Connections)
	assert.Equal(t, 1, res.Routed)
	assert.NotEmpty(t, b.Tracks)

	// Track endpoints anchor on the actual pad centers.
	start := b.Tracks[0].Start
	end := b.Tracks[len(b.Tracks)-1].End
	assert.Equal(t, b.Components[0].PadPosition(1), start)
	assert.Equal(t, b.Components[1].PadPosition(0), end)
}

// pathCost recomputes the cost of a raw search path under the router's
// cost model.
func pathCost(r *router, net string, steps []pathStep) float64 {
	own := r.markClearance(net)
	var cost float64
	for i := 1; i < len(steps); i++ {
		prev, cur := steps[i-1], steps[i]
		if prev.layer != cur.layer {
			cost += r.cfg.ViaPenalty
			continue
		}
		dx := abs(cur.cell.X - prev.cell.X)
		dy := abs(cur.cell.Y - prev.cell.Y)
		step := 1.0
		if dx == 1 && dy == 1 {
			step = 1.4142135623730951
		}
		cost += step * r.g.Resolution() * r.g.CostFor(net, cur.layer, cur.cell, own, r.cfg.ProximityPenalty)
	}
	return cost
}

// dijkstraCost is the reference optimum: uniform-cost search over the same
// graph the router searches, no heuristic.
func dijkstraCost(r *router, conn connection) float64 {
	net := conn.net.Name
	own := r.markClearance(net)
	startCell := r.g.ToCell(conn.from.Position)
	goalCell := r.g.ToCell(conn.to.Position)
	goalLayers := make(map[int]bool)
	for _, l := range r.padLayers(conn.to) {
		goalLayers[l] = true
	}

	dist := make(map[searchNode]float64)
	pq := &nodeQueue{}
	heap.Init(pq)
	order := 0
	for _, l := range r.padLayers(conn.from) {
		if r.g.BlockedFor(net, l, startCell, own) {
			continue
		}
		n := searchNode{layer: l, x: startCell.X, y: startCell.Y}
		dist[n] = 0
		heap.Push(pq, &nodeItem{node: n, f: 0, order: order})
		order++
	}

	_, _, layers := r.g.Dims()
	done := make(map[searchNode]bool)
	for pq.Len() > 0 {
		item := heap.Pop(pq).(*nodeItem)
		cur := item.node
		if done[cur] {
			continue
		}
		done[cur] = true
		if cur.x == goalCell.X && cur.y == goalCell.Y && goalLayers[cur.layer] {
			return dist[cur]
		}

		relax := func(next searchNode, cost float64) {
			d := dist[cur] + cost
			if old, ok := dist[next]; !ok || d < old {
				dist[next] = d
				heap.Push(pq, &nodeItem{node: next, f: d, order: order})
				order++
			}
		}
		for d := 0; d < 8; d++ {
			next := searchNode{layer: cur.layer, x: cur.x + stepDX[d], y: cur.y + stepDY[d]}
			cell := geometry.PointInt{X: next.x, Y: next.y}
			if r.g.BlockedFor(net, next.layer, cell, own) {
				continue
			}
			relax(next, stepLen[d]*r.g.Resolution()*r.g.CostFor(net, next.layer, cell, own, r.cfg.ProximityPenalty))
		}
		cell := geometry.PointInt{X: cur.x, Y: cur.y}
		if r.viaFeasible(net, own, cell, layers) {
			for l := 0; l < layers; l++ {
				if l != cur.layer {
					relax(searchNode{layer: l, x: cur.x, y: cur.y}, r.cfg.ViaPenalty)
				}
			}
		}
	}
	return -1
}

func TestSearchFindsOptimalPath(t *testing.T) {
	b, nets := twoPadBoard()

	// An off-center blocking bar forces a detour, so the optimal path is
	// not the straight line.
	b.Tracks = append(b.Tracks,
		board.Track{Net: "WALL", Layer: 0, Start: geometry.Point2D{X: 15, Y: 4}, End: geometry.Point2D{X: 15, Y: 13}, Width: 0.3},
		board.Track{Net: "WALL", Layer: 1, Start: geometry.Point2D{X: 15, Y: 4}, End: geometry.Point2D{X: 15, Y: 13}, Width: 0.3},
	)

	cfg := DefaultConfig()
	r := &router{
		b:      b,
		g:      grid.New(b, cfg.GridResolution),
		nets:   nets,
		cfg:    cfg,
		log:    testLogger(),
		ripped: make(map[string]bool),
	}
	r.markStatic()

	net := nets.ByName("SIG")
	pads := b.PadsOnNet("SIG")
	require.Len(t, pads, 2)
	conn := connection{net: net, from: pads[0], to: pads[1]}

	steps, err := r.search(context.Background(), conn)
	require.NoError(t, err)
	got := pathCost(r, "SIG", steps)

	want := dijkstraCost(r, conn)
	require.GreaterOrEqual(t, want, 0.0, "reference search found no path")
	assert.InDelta(t, want, got, 1e-9, "A* path cost must match the uniform-cost optimum")
}

func TestSearchDeterministic(t *testing.T) {
	b, nets := twoPadBoard()
	cfg := DefaultConfig()
	r := &router{
		b: b, g: grid.New(b, cfg.GridResolution), nets: nets, cfg: cfg,
		log: testLogger(), ripped: make(map[string]bool),
	}
	r.markStatic()

	net := nets.ByName("SIG")
	pads := b.PadsOnNet("SIG")
	conn := connection{net: net, from: pads[0], to: pads[1]}

	first, err := r.search(context.Background(), conn)
	require.NoError(t, err)
	second, err := r.search(context.Background(), conn)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSimplifyCollinear(t *testing.T) {
	path := []geometry.Point2D{
		{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0}, {X: 3, Y: 0}, {X: 4, Y: 0},
	}
	got := Simplify(path, 0.05)
	require.Len(t, got, 2)
	assert.Equal(t, path[0], got[0])
	assert.Equal(t, path[4], got[1])
}

func TestSimplifyKeepsCorners(t *testing.T) {
	path := []geometry.Point2D{
		{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0}, {X: 2, Y: 1}, {X: 2, Y: 2},
	}
	got := Simplify(path, 0.05)
	require.Len(t, got, 3)
	assert.Equal(t, geometry.Point2D{X: 2, Y: 0}, got[1])
}

func TestSimplifyIdempotent(t *testing.T) {
	path := []geometry.Point2D{
		{X: 0, Y: 0}, {X: 1, Y: 0.01}, {X: 2, Y: 0}, {X: 3, Y: 1}, {X: 4, Y: 2.01},
		{X: 5, Y: 3}, {X: 6, Y: 3}, {X: 7, Y: 3.02}, {X: 8, Y: 3},
	}
	const eps = 0.05
	once := Simplify(path, eps)
	twice := Simplify(once, eps)
	assert.Equal(t, once, twice)
}

func TestSimplifyShortPaths(t *testing.T) {
	two := []geometry.Point2D{{X: 0, Y: 0}, {X: 1, Y: 1}}
	assert.Equal(t, two, Simplify(two, 0.05))
	one := two[:1]
	assert.Equal(t, one, Simplify(one, 0.05))
}

func TestSpanningEdges(t *testing.T) {
	pads := []board.PadRef{
		{Component: "A", Pad: "1", Position: geometry.Point2D{X: 0, Y: 0}},
		{Component: "B", Pad: "1", Position: geometry.Point2D{X: 1, Y: 0}},
		{Component: "C", Pad: "1", Position: geometry.Point2D{X: 10, Y: 0}},
		{Component: "D", Pad: "1", Position: geometry.Point2D{X: 11, Y: 0}},
	}
	edges := spanningEdges(pads)
	require.Len(t, edges, 3)

	// A tree over n pads has n-1 edges and must include the long bridge.
	var total float64
	for _, e := range edges {
		total += e.weight
	}
	assert.InDelta(t, 11.0, total, 1e-9) // 1 + 9 + 1
}

func TestUnroutableRingCommitsNothing(t *testing.T) {
	b, nets := twoPadBoard()

	// Close a square wall around R1's pads on both copper layers. The SIG
	// net cannot leave and must fail without committing partial geometry.
	ring := []geometry.Point2D{
		{X: 1.5, Y: 6}, {X: 9, Y: 6}, {X: 9, Y: 14}, {X: 1.5, Y: 14}, {X: 1.5, Y: 6},
	}
	var walls []board.Track
	for layer := 0; layer < 2; layer++ {
		for i := 1; i < len(ring); i++ {
			walls = append(walls, board.Track{
				Net: "WALL", Layer: layer, Start: ring[i-1], End: ring[i], Width: 0.5,
			})
		}
	}
	b.Tracks = append(b.Tracks, walls...)

	cfg := DefaultConfig()
	cfg.RipUpEnabled = false
	results, err := Route(context.Background(), b, nets, cfg, testLogger())
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, StatusUnrouted, results[0].Status)
	assert.Equal(t, 0, results[0].Routed)
	// Only the pre-existing wall geometry remains.
	assert.Len(t, b.Tracks, len(walls))
	assert.Empty(t, b.Vias)
}

func TestRipUpFreesCorridor(t *testing.T) {
	b := board.New("ripup", 30, 20)
	r1 := comp("R1", "R0805", 5, 10)
	r2 := comp("R2", "R0805", 25, 10)
	r3 := comp("R3", "R0805", 15, 3)
	r4 := comp("R4", "R0805", 15, 17)
	r1.Footprint.Pads[1].Net = "GND"
	r2.Footprint.Pads[0].Net = "GND"
	r3.Footprint.Pads[1].Net = "LOW"
	r4.Footprint.Pads[0].Net = "LOW"
	b.Components = []*board.Component{r1, r2, r3, r4}

	nets := netlist.Classify([]netlist.RawNet{
		{Name: "GND", Pins: []string{"R1.2", "R2.1"}},
		{Name: "LOW", Pins: []string{"R3.2", "R4.1"}},
	}, netlist.Hints{})

	// Ground routes first by priority; the low-priority vertical net then
	// crosses its corridor. Both should end up routed, rip-up or not.
	results, err := Route(context.Background(), b, nets, DefaultConfig(), testLogger())
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, res := range results {
		assert.Equal(t, StatusRouted, res.Status, res.Net)
	}
}

func TestFinePitchPinsRoutable(t *testing.T) {
	// A 1.27mm-pitch SOIC leaves only 0.67mm between adjacent pad edges.
	// Pad occupancy must follow the actual copper, or neighbor pads start
	// inside each other's blocked ring and their nets never leave the pin.
	b := board.New("soic", 40, 30)
	u1 := comp("U1", "SOIC-8", 15, 15)
	r1 := comp("R1", "R0805", 30, 10)
	r2 := comp("R2", "R0805", 30, 20)
	u1.Footprint.Pads[0].Net = "A"
	u1.Footprint.Pads[1].Net = "B"
	r1.Footprint.Pads[0].Net = "A"
	r2.Footprint.Pads[0].Net = "B"
	b.Components = []*board.Component{u1, r1, r2}

	nets := netlist.Classify([]netlist.RawNet{
		{Name: "A", Pins: []string{"U1.1", "R1.1"}},
		{Name: "B", Pins: []string{"U1.2", "R2.1"}},
	}, netlist.Hints{})

	results, err := Route(context.Background(), b, nets, DefaultConfig(), testLogger())
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, res := range results {
		assert.Equal(t, StatusRouted, res.Status, res.Net)
	}
}

func TestOverrideClearanceHonoredWhileRouting(t *testing.T) {
	// ZOVR carries a per-net clearance far above the class default. AAA
	// routes first; ZOVR must then keep its own distance from AAA's copper,
	// not just the distance AAA stamped.
	b := board.New("override", 30, 20)
	r1 := comp("R1", "R0805", 5, 10)
	r2 := comp("R2", "R0805", 25, 10)
	r3 := comp("R3", "R0805", 15, 3)
	r4 := comp("R4", "R0805", 15, 17)
	r1.Footprint.Pads[1].Net = "AAA"
	r2.Footprint.Pads[0].Net = "AAA"
	// Both pads of both resistors carry ZOVR, so no unassigned pad sits
	// inside its wide clearance at the route endpoints.
	r3.Footprint.Pads[0].Net = "ZOVR"
	r3.Footprint.Pads[1].Net = "ZOVR"
	r4.Footprint.Pads[0].Net = "ZOVR"
	r4.Footprint.Pads[1].Net = "ZOVR"
	b.Components = []*board.Component{r1, r2, r3, r4}

	nets := netlist.Classify([]netlist.RawNet{
		{Name: "AAA", Pins: []string{"R1.2", "R2.1"}},
		{Name: "ZOVR", Pins: []string{"R3.1", "R3.2", "R4.1", "R4.2"}},
	}, netlist.Hints{Overrides: map[string]netlist.RuleOverride{
		"ZOVR": {MinClearance: 1.5},
	}})

	results, err := Route(context.Background(), b, nets, DefaultConfig(), testLogger())
	require.NoError(t, err)
	for _, res := range results {
		require.Equal(t, StatusRouted, res.Status, res.Net)
	}

	// The freshly routed board must already satisfy the override.
	report := drc.Check(b, nets)
	for _, v := range report.Violations {
		assert.NotEqual(t, drc.SeverityFatal, v.Severity,
			"%s at (%.2f, %.2f): %s", v.Kind, v.Location.X, v.Location.Y, v.Detail)
	}
}

func TestRipUpClearsCommittedBlocker(t *testing.T) {
	// LOW's copper was committed in an earlier session as a full-height wall
	// across GND's corridor. GND outranks it, so routing must uncommit the
	// wall, route through, and give LOW its reroute attempt.
	b := board.New("ripup-committed", 30, 20)
	r1 := comp("R1", "R0805", 5, 10)
	r2 := comp("R2", "R0805", 25, 10)
	r3 := comp("R3", "R0805", 10, 3)
	r4 := comp("R4", "R0805", 20, 3)
	r1.Footprint.Pads[1].Net = "GND"
	r2.Footprint.Pads[0].Net = "GND"
	r3.Footprint.Pads[1].Net = "LOW"
	r4.Footprint.Pads[0].Net = "LOW"
	b.Components = []*board.Component{r1, r2, r3, r4}

	for layer := 0; layer < 2; layer++ {
		b.Tracks = append(b.Tracks, board.Track{
			Net: "LOW", Layer: layer,
			Start: geometry.Point2D{X: 15, Y: 0.3}, End: geometry.Point2D{X: 15, Y: 19.7},
			Width: 0.3,
		})
	}

	nets := netlist.Classify([]netlist.RawNet{
		{Name: "GND", Pins: []string{"R1.2", "R2.1"}},
		{Name: "LOW", Pins: []string{"R3.2", "R4.1"}},
	}, netlist.Hints{})

	results, err := Route(context.Background(), b, nets, DefaultConfig(), testLogger())
	require.NoError(t, err)
	require.Len(t, results, 2)

	byNet := make(map[string]Result)
	for _, res := range results {
		byNet[res.Net] = res
	}
	assert.Equal(t, StatusRouted, byNet["GND"].Status)
	assert.False(t, byNet["GND"].RippedUp)
	assert.Equal(t, StatusRouted, byNet["LOW"].Status)
	assert.True(t, byNet["LOW"].RippedUp, "the committed wall must have been ripped up")

	// The wall itself is gone; LOW's copper now connects its own pads.
	for _, tr := range b.Tracks {
		if tr.Net == "LOW" {
			assert.Less(t, tr.Segment().Length(), 19.0, "pre-committed wall track survived")
		}
	}
}

func TestRouteRespectsContextCancel(t *testing.T) {
	b, nets := twoPadBoard()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := Route(ctx, b, nets, DefaultConfig(), testLogger())
	assert.Error(t, err)
	assert.Empty(t, results)
}

func TestRouteRejectsBadResolution(t *testing.T) {
	b, nets := twoPadBoard()
	cfg := DefaultConfig()
	cfg.GridResolution = 0
	_, err := Route(context.Background(), b, nets, cfg, testLogger())
	assert.Error(t, err)
}
