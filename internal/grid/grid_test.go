package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pcb-engine/internal/board"
	"pcb-engine/pkg/geometry"
)

func testGrid(t *testing.T) *Grid {
	t.Helper()
	b := board.New("grid-test", 20, 20)
	return New(b, 0.5)
}

func TestGridDims(t *testing.T) {
	g := testGrid(t)
	cols, rows, layers := g.Dims()
	assert.Equal(t, 41, cols)
	assert.Equal(t, 41, rows)
	assert.Equal(t, 2, layers)
	assert.Equal(t, 0.5, g.Resolution())
}

func TestCellPointRoundTrip(t *testing.T) {
	g := testGrid(t)
	p := geometry.Point2D{X: 5.0, Y: 7.5}
	c := g.ToCell(p)
	assert.Equal(t, geometry.PointInt{X: 10, Y: 15}, c)
	assert.Equal(t, p, g.ToPoint(c))

	// Off-grid points snap to the nearest cell center.
	c = g.ToCell(geometry.Point2D{X: 5.2, Y: 7.4})
	assert.Equal(t, geometry.PointInt{X: 10, Y: 15}, c)
}

func TestOutlineMask(t *testing.T) {
	b := board.New("tri", 20, 20)
	// Triangular outline leaves the upper-left half unusable.
	b.Outline = []geometry.Point2D{{X: 0, Y: 0}, {X: 20, Y: 0}, {X: 20, Y: 20}}
	g := New(b, 0.5)

	inside := g.ToCell(geometry.Point2D{X: 15, Y: 5})
	outside := g.ToCell(geometry.Point2D{X: 2, Y: 18})
	assert.True(t, g.Usable(0, inside))
	assert.False(t, g.Usable(0, outside))
	assert.True(t, g.BlockedFor("ANY", 0, outside, 0.2))
}

func TestMarkPadBlocksForeignNets(t *testing.T) {
	g := testGrid(t)
	center := geometry.Point2D{X: 10, Y: 10}
	g.MarkPad("NET_A", 0, center, 0.8, 0.2, 1.0)

	c := g.ToCell(center)
	assert.False(t, g.BlockedFor("NET_A", 0, c, 0.2))
	assert.True(t, g.BlockedFor("NET_B", 0, c, 0.2))
	// Layer 1 untouched by an SMD pad on layer 0.
	assert.False(t, g.BlockedFor("NET_B", 1, c, 0.2))
}

func TestMarkPadThroughHole(t *testing.T) {
	g := testGrid(t)
	center := geometry.Point2D{X: 10, Y: 10}
	g.MarkPad("NET_A", -1, center, 0.8, 0.2, 1.0)

	c := g.ToCell(center)
	assert.True(t, g.BlockedFor("NET_B", 0, c, 0.2))
	assert.True(t, g.BlockedFor("NET_B", 1, c, 0.2))
}

func TestMarkTrackBlocksSwath(t *testing.T) {
	g := testGrid(t)
	g.MarkTrack("NET_A", 0, geometry.Point2D{X: 2, Y: 10}, geometry.Point2D{X: 18, Y: 10}, 0.5, 0.2, 1.0)

	mid := g.ToCell(geometry.Point2D{X: 10, Y: 10})
	assert.True(t, g.BlockedFor("NET_B", 0, mid, 0.2))
	assert.False(t, g.BlockedFor("NET_A", 0, mid, 0.2))

	// Far from the track stays free.
	far := g.ToCell(geometry.Point2D{X: 10, Y: 3})
	assert.False(t, g.BlockedFor("NET_B", 0, far, 0.2))
}

func TestBlockedForHonorsOwnClearance(t *testing.T) {
	g := testGrid(t)
	g.MarkTrack("NET_A", 0, geometry.Point2D{X: 2, Y: 10}, geometry.Point2D{X: 18, Y: 10}, 0.5, 0.2, 2.0)

	// 1mm from the copper edge: fine for a net with the default 0.2mm rule,
	// infeasible for one that resolves to a 1.5mm rule.
	c := g.ToCell(geometry.Point2D{X: 10, Y: 11.25})
	assert.False(t, g.BlockedFor("NET_B", 0, c, 0.2))
	assert.True(t, g.BlockedFor("NET_B", 0, c, 1.5))

	// The owner is never blocked by its own copper.
	assert.False(t, g.BlockedFor("NET_A", 0, c, 1.5))
}

func TestProximityCost(t *testing.T) {
	g := testGrid(t)
	g.MarkTrack("NET_A", 0, geometry.Point2D{X: 2, Y: 10}, geometry.Point2D{X: 18, Y: 10}, 0.5, 0.2, 1.0)

	// A cell in the proximity band is routable but costs more.
	near := g.ToCell(geometry.Point2D{X: 10, Y: 11})
	if g.BlockedFor("NET_B", 0, near, 0.2) {
		t.Skip("cell fell inside the clearance ring at this resolution")
	}
	cost := g.CostFor("NET_B", 0, near, 0.2, 1.0)
	free := g.CostFor("NET_B", 0, g.ToCell(geometry.Point2D{X: 10, Y: 5}), 0.2, 1.0)
	assert.Equal(t, 1.0, free)
	assert.GreaterOrEqual(t, cost, free)

	// The owner never pays the proximity penalty.
	assert.Equal(t, 1.0, g.CostFor("NET_A", 0, near, 0.2, 1.0))
}

func TestMarkViaSpansLayers(t *testing.T) {
	g := testGrid(t)
	pos := geometry.Point2D{X: 10, Y: 10}
	g.MarkVia("NET_A", pos, 0.6, 0.2, 1.0, 0, 1)

	c := g.ToCell(pos)
	assert.True(t, g.BlockedFor("NET_B", 0, c, 0.2))
	assert.True(t, g.BlockedFor("NET_B", 1, c, 0.2))
}

func TestUnmarkRemovesOnlyOwnEntries(t *testing.T) {
	g := testGrid(t)
	pos := geometry.Point2D{X: 10, Y: 10}
	g.MarkPad("NET_A", 0, pos, 0.8, 0.2, 1.0)
	g.MarkPad("NET_B", 0, geometry.Point2D{X: 10.5, Y: 10}, 0.8, 0.2, 1.0)

	g.Unmark("NET_A")

	c := g.ToCell(pos)
	// NET_A's stamps are gone; NET_B's overlapping stamps remain.
	assert.True(t, g.BlockedFor("NET_A", 0, c, 0.2))

	nets := g.NetsAt(0, c)
	assert.NotContains(t, nets, "NET_A")
	require.Contains(t, nets, "NET_B")
}

func TestNetsAt(t *testing.T) {
	g := testGrid(t)
	pos := geometry.Point2D{X: 10, Y: 10}
	g.MarkPad("A", 0, pos, 0.8, 0.2, 1.0)
	g.MarkPad("B", 0, pos, 0.8, 0.2, 1.0)

	nets := g.NetsAt(0, g.ToCell(pos))
	assert.ElementsMatch(t, []string{"A", "B"}, nets)
	assert.Empty(t, g.NetsAt(0, geometry.PointInt{X: -1, Y: 0}))
}
