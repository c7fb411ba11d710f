package place

import (
	"math"

	"pcb-engine/internal/board"
	"pcb-engine/internal/netlist"
	"pcb-engine/pkg/geometry"
)

// pose is one component's candidate position and orientation.
type pose struct {
	pos geometry.Point2D
	rot float64
}

// netPin ties a pad to its owning component index for fast HPWL updates.
type netPin struct {
	comp int // index into model.comps
	pad  int // pad index within the footprint
}

// costNet is a net reduced to its pins and a priority-derived weight.
type costNet struct {
	pins   []netPin
	weight float64
}

// costModel evaluates placement cost: weighted half-perimeter wirelength,
// pairwise courtyard overlap, and outline violation.
type costModel struct {
	b       *board.Board
	cfg     Config
	comps   []*board.Component
	movable []int // indexes of unlocked components
	nets    []costNet
	outline []geometry.Point2D
	bounds  geometry.Rect
}

func newCostModel(b *board.Board, nets *netlist.OrderedNetList, cfg Config) *costModel {
	m := &costModel{
		b:       b,
		cfg:     cfg,
		comps:   b.Components,
		outline: b.Outline,
		bounds:  b.Bounds(),
	}

	compIdx := make(map[string]int, len(b.Components))
	for i, c := range b.Components {
		compIdx[c.Ref] = i
		if !c.Locked {
			m.movable = append(m.movable, i)
		}
	}

	for _, n := range nets.Nets {
		cn := costNet{weight: 1 + float64(n.Priority)/100}
		for ci, c := range b.Components {
			for pi := range c.Footprint.Pads {
				if c.Footprint.Pads[pi].Net == n.Name {
					cn.pins = append(cn.pins, netPin{comp: ci, pad: pi})
				}
			}
		}
		if len(cn.pins) >= 2 {
			m.nets = append(m.nets, cn)
		}
	}
	return m
}

// poses snapshots the current component placement as an explicit value.
func (m *costModel) poses() []pose {
	ps := make([]pose, len(m.comps))
	for i, c := range m.comps {
		ps[i] = pose{pos: c.Position, rot: c.RotationDeg}
	}
	return ps
}

// apply writes a placement vector back onto the components.
func (m *costModel) apply(ps []pose) {
	for i, c := range m.comps {
		c.Position = ps[i].pos
		c.RotationDeg = ps[i].rot
	}
}

// cost evaluates the full placement cost for a candidate vector.
func (m *costModel) cost(ps []pose) float64 {
	return m.wirelength(ps) +
		m.cfg.OverlapWeight*m.overlap(ps) +
		m.cfg.OutlineWeight*m.outlineViolation(ps)
}

// wirelength is the weighted half-perimeter wirelength over all nets.
func (m *costModel) wirelength(ps []pose) float64 {
	var total float64
	for _, n := range m.nets {
		minX, minY := math.Inf(1), math.Inf(1)
		maxX, maxY := math.Inf(-1), math.Inf(-1)
		for _, pin := range n.pins {
			c := m.comps[pin.comp]
			t := geometry.PlacementTransform(ps[pin.comp].pos, ps[pin.comp].rot)
			p := t.Apply(c.Footprint.Pads[pin.pad].Offset)
			minX = math.Min(minX, p.X)
			maxX = math.Max(maxX, p.X)
			minY = math.Min(minY, p.Y)
			maxY = math.Max(maxY, p.Y)
		}
		total += n.weight * ((maxX - minX) + (maxY - minY))
	}
	return total
}

// courtyardAt returns a component's courtyard for a candidate pose.
func (m *costModel) courtyardAt(i int, ps []pose) geometry.Rect {
	c := board.Component{
		Footprint:   m.comps[i].Footprint,
		Position:    ps[i].pos,
		RotationDeg: ps[i].rot,
	}
	return c.Courtyard()
}

// overlap sums pairwise courtyard overlap areas.
func (m *costModel) overlap(ps []pose) float64 {
	rects := make([]geometry.Rect, len(m.comps))
	for i := range m.comps {
		rects[i] = m.courtyardAt(i, ps)
	}
	var total float64
	for i := 0; i < len(rects); i++ {
		for j := i + 1; j < len(rects); j++ {
			total += rects[i].OverlapArea(rects[j])
		}
	}
	return total
}

// outlineViolation penalizes courtyard corners outside the board outline,
// proportional to their distance from the boundary.
func (m *costModel) outlineViolation(ps []pose) float64 {
	var total float64
	for i := range m.comps {
		r := m.courtyardAt(i, ps)
		corners := []geometry.Point2D{
			{X: r.X, Y: r.Y}, {X: r.X + r.Width, Y: r.Y},
			{X: r.X + r.Width, Y: r.Y + r.Height}, {X: r.X, Y: r.Y + r.Height},
		}
		for _, p := range corners {
			if !geometry.PointInPolygon(p, m.outline) {
				total += 1 + geometry.DistanceToPolygonEdge(p, m.outline)
			}
		}
	}
	return total
}

// clampToBounds keeps a position inside the outline bounding box with a margin.
func (m *costModel) clampToBounds(p geometry.Point2D, margin float64) geometry.Point2D {
	p.X = math.Max(m.bounds.X+margin, math.Min(m.bounds.X+m.bounds.Width-margin, p.X))
	p.Y = math.Max(m.bounds.Y+margin, math.Min(m.bounds.Y+m.bounds.Height-margin, p.Y))
	return p
}
