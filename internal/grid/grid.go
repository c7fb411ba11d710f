// Package grid implements the layered routing grid: a per-copper-layer
// array of cells carrying occupancy entries keyed by net. Entries are
// removable per net in one pass over that net's cells, which is what makes
// rip-up and annealing backtracking cheap.
package grid

import (
	"math"

	"pcb-engine/internal/board"
	"pcb-engine/pkg/geometry"
)

// Occupancy kinds, strongest first.
const (
	occHard  = iota // copper of the owning net
	occClear        // clearance ring around that copper
	occProx         // proximity band: routable but penalized
)

// entry is one occupancy stamp on a cell. dist and clear let the
// blocked-for-net test honor the larger of the two nets' clearance rules:
// the owner stamped with clear, a searching net brings its own.
type entry struct {
	net   string
	kind  int
	dist  float64 // cell center distance from the owner's copper edge
	clear float64 // clearance the owner stamped with
}

// cell is a single grid cell on one layer.
type cell struct {
	entries []entry
	outside bool // outside the board outline
}

// cellRef locates a cell for the per-net removal index.
type cellRef struct {
	layer, idx int
}

// Grid is the layered occupancy grid over the board area.
type Grid struct {
	bounds     geometry.Rect
	resolution float64
	cols, rows int
	layers     int
	cells      [][]cell            // [layer][row*cols+col]
	netIndex   map[string][]cellRef // cells touched by each net
}

// New builds a grid covering the board outline's bounding box at the given
// resolution, with one plane per copper layer. Cells whose center falls
// outside the outline polygon are unusable for every net.
func New(b *board.Board, resolution float64) *Grid {
	bounds := b.Bounds()
	cols := int(math.Ceil(bounds.Width/resolution)) + 1
	rows := int(math.Ceil(bounds.Height/resolution)) + 1
	layers := b.CopperLayerCount()
	if layers == 0 {
		layers = 1
	}

	g := &Grid{
		bounds:     bounds,
		resolution: resolution,
		cols:       cols,
		rows:       rows,
		layers:     layers,
		cells:      make([][]cell, layers),
		netIndex:   make(map[string][]cellRef),
	}
	for l := 0; l < layers; l++ {
		g.cells[l] = make([]cell, cols*rows)
	}

	// Outline mask, shared across layers.
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			center := g.ToPoint(geometry.PointInt{X: col, Y: row})
			if !geometry.PointInPolygon(center, b.Outline) {
				for l := 0; l < layers; l++ {
					g.cells[l][row*cols+col].outside = true
				}
			}
		}
	}
	return g
}

// Resolution returns the cell size in mm.
func (g *Grid) Resolution() float64 { return g.resolution }

// Dims returns (cols, rows, layers).
func (g *Grid) Dims() (int, int, int) { return g.cols, g.rows, g.layers }

// ToCell converts board coordinates to the nearest cell.
func (g *Grid) ToCell(p geometry.Point2D) geometry.PointInt {
	return geometry.PointInt{
		X: int(math.Round((p.X - g.bounds.X) / g.resolution)),
		Y: int(math.Round((p.Y - g.bounds.Y) / g.resolution)),
	}
}

// ToPoint converts a cell to the board coordinates of its center.
func (g *Grid) ToPoint(c geometry.PointInt) geometry.Point2D {
	return geometry.Point2D{
		X: g.bounds.X + float64(c.X)*g.resolution,
		Y: g.bounds.Y + float64(c.Y)*g.resolution,
	}
}

// InBounds reports whether the cell lies on the grid.
func (g *Grid) InBounds(c geometry.PointInt) bool {
	return c.X >= 0 && c.X < g.cols && c.Y >= 0 && c.Y < g.rows
}

// Usable reports whether the cell is on the grid and inside the outline.
func (g *Grid) Usable(layer int, c geometry.PointInt) bool {
	return g.InBounds(c) && layer >= 0 && layer < g.layers &&
		!g.cells[layer][c.Y*g.cols+c.X].outside
}

// BlockedFor reports whether the cell is infeasible for the given net:
// foreign copper, or closer to foreign copper than the larger of the two
// nets' clearance rules, or off-board. clear is the searching net's own
// resolved clearance.
func (g *Grid) BlockedFor(net string, layer int, c geometry.PointInt, clear float64) bool {
	if !g.Usable(layer, c) {
		return true
	}
	for _, e := range g.cells[layer][c.Y*g.cols+c.X].entries {
		if e.net == net {
			continue
		}
		if e.kind == occHard {
			return true
		}
		required := e.clear
		if clear > required {
			required = clear
		}
		if e.dist < required {
			return true
		}
	}
	return false
}

// CostFor returns the traversal cost multiplier for the cell: 1.0 when
// free, escalated by proximityPenalty for each foreign stamp whose copper
// sits within two cells beyond the pairwise clearance.
func (g *Grid) CostFor(net string, layer int, c geometry.PointInt, clear, proximityPenalty float64) float64 {
	cost := 1.0
	band := 2 * g.resolution
	for _, e := range g.cells[layer][c.Y*g.cols+c.X].entries {
		if e.net == net || e.kind == occHard {
			continue
		}
		required := e.clear
		if clear > required {
			required = clear
		}
		if e.dist < required+band {
			cost += proximityPenalty
		}
	}
	return cost
}

// stamp adds an occupancy entry and records it in the per-net index.
func (g *Grid) stamp(net string, layer int, c geometry.PointInt, e entry) {
	if !g.InBounds(c) || layer < 0 || layer >= g.layers {
		return
	}
	idx := c.Y*g.cols + c.X
	g.cells[layer][idx].entries = append(g.cells[layer][idx].entries, e)
	g.netIndex[net] = append(g.netIndex[net], cellRef{layer: layer, idx: idx})
}

// stampDisk stamps every cell within reach of the copper edge: hard
// inside hardR, clearance out to clear, proximity out to reach. Each ring
// cell records its edge distance and the owner's clearance.
func (g *Grid) stampDisk(net string, layer int, center geometry.Point2D, hardR, clear, reach float64) {
	if reach < clear {
		reach = clear
	}
	c := g.ToCell(center)
	span := int(math.Ceil((hardR+reach)/g.resolution)) + 1
	for dy := -span; dy <= span; dy++ {
		for dx := -span; dx <= span; dx++ {
			cc := geometry.PointInt{X: c.X + dx, Y: c.Y + dy}
			if !g.InBounds(cc) {
				continue
			}
			edge := g.ToPoint(cc).Distance(center) - hardR
			switch {
			case edge <= 0:
				g.stamp(net, layer, cc, entry{net: net, kind: occHard, clear: clear})
			case edge <= clear:
				g.stamp(net, layer, cc, entry{net: net, kind: occClear, dist: edge, clear: clear})
			case edge <= reach:
				g.stamp(net, layer, cc, entry{net: net, kind: occProx, dist: edge, clear: clear})
			}
		}
	}
}

// MarkPad stamps a pad's copper, clearance ring, and surrounding band out
// to reach. Through-hole pads (all layers) pass layer < 0.
func (g *Grid) MarkPad(net string, layer int, center geometry.Point2D, radius, clearance, reach float64) {
	if layer < 0 {
		for l := 0; l < g.layers; l++ {
			g.stampDisk(net, l, center, radius, clearance, reach)
		}
		return
	}
	g.stampDisk(net, layer, center, radius, clearance, reach)
}

// MarkTrack stamps a track segment's swath along a Bresenham walk of the
// segment's cells.
func (g *Grid) MarkTrack(net string, layer int, from, to geometry.Point2D, width, clearance, reach float64) {
	halfW := width / 2

	a := g.ToCell(from)
	b := g.ToCell(to)

	// Bresenham over cells; stamp a disk at each step so diagonal swaths
	// stay solid.
	dx := abs(b.X - a.X)
	dy := abs(b.Y - a.Y)
	sx, sy := 1, 1
	if a.X > b.X {
		sx = -1
	}
	if a.Y > b.Y {
		sy = -1
	}
	err := dx - dy

	x, y := a.X, a.Y
	for {
		center := g.ToPoint(geometry.PointInt{X: x, Y: y})
		g.stampDisk(net, layer, center, halfW, clearance, reach)
		if x == b.X && y == b.Y {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x += sx
		}
		if e2 < dx {
			err += dx
			y += sy
		}
	}
}

// MarkVia stamps a via's pad on every layer it spans.
func (g *Grid) MarkVia(net string, pos geometry.Point2D, padDiam, clearance, reach float64, layerFrom, layerTo int) {
	if layerFrom > layerTo {
		layerFrom, layerTo = layerTo, layerFrom
	}
	for l := layerFrom; l <= layerTo && l < g.layers; l++ {
		g.stampDisk(net, l, pos, padDiam/2, clearance, reach)
	}
}

// NetsAt returns the distinct nets with any occupancy on the cell.
func (g *Grid) NetsAt(layer int, c geometry.PointInt) []string {
	if !g.InBounds(c) || layer < 0 || layer >= g.layers {
		return nil
	}
	seen := make(map[string]bool)
	var nets []string
	for _, e := range g.cells[layer][c.Y*g.cols+c.X].entries {
		if !seen[e.net] {
			seen[e.net] = true
			nets = append(nets, e.net)
		}
	}
	return nets
}

// Unmark removes every occupancy entry belonging to net, in one pass over
// the cells that net touched. Supports rip-up.
func (g *Grid) Unmark(net string) {
	refs := g.netIndex[net]
	for _, ref := range refs {
		entries := g.cells[ref.layer][ref.idx].entries
		kept := entries[:0]
		for _, e := range entries {
			if e.net != net {
				kept = append(kept, e)
			}
		}
		g.cells[ref.layer][ref.idx].entries = kept
	}
	delete(g.netIndex, net)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
