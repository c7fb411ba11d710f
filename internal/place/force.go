package place

import (
	"math"

	"pcb-engine/pkg/geometry"
)

// Spring and repulsion constants for the local refinement phase.
const (
	springK      = 0.02
	repelK       = 25.0
	repelMargin  = 2.0 // mm of courtyard separation that triggers repulsion
	maxStepLimit = 5.0 // mm cap on a single integration step
)

// relax runs the force-directed local phase: attraction toward connected
// neighbors weighted by net priority, repulsion between overlapping
// courtyards, damped integration until convergence or the iteration cap.
func relax(m *costModel, cfg Config) {
	ps := m.poses()

	for iter := 0; iter < cfg.ForceIterations; iter++ {
		forces := make([]geometry.Point2D, len(m.comps))

		// Attraction: every pin pulls its component toward the net centroid.
		for _, n := range m.nets {
			var pts []geometry.Point2D
			for _, pin := range n.pins {
				t := geometry.PlacementTransform(ps[pin.comp].pos, ps[pin.comp].rot)
				pts = append(pts, t.Apply(m.comps[pin.comp].Footprint.Pads[pin.pad].Offset))
			}
			centroid := geometry.Centroid(pts)
			for i, pin := range n.pins {
				d := centroid.Sub(pts[i])
				forces[pin.comp] = forces[pin.comp].Add(d.Scale(springK * n.weight))
			}
		}

		// Repulsion between close courtyards, inverse-square falloff.
		rects := make([]geometry.Rect, len(m.comps))
		for i := range m.comps {
			rects[i] = m.courtyardAt(i, ps)
		}
		for i := 0; i < len(rects); i++ {
			for j := i + 1; j < len(rects); j++ {
				if !rects[i].Inflate(repelMargin).Intersects(rects[j]) {
					continue
				}
				d := rects[j].Center().Sub(rects[i].Center())
				dist := d.Norm()
				if dist < 0.1 {
					// Coincident centers: push along x deterministically.
					d = geometry.Point2D{X: 1}
					dist = 1
				}
				mag := repelK / (dist * dist)
				push := d.Scale(mag / dist)
				forces[i] = forces[i].Sub(push)
				forces[j] = forces[j].Add(push)
			}
		}

		// Damped integration of unlocked components only.
		var moved float64
		for _, i := range m.movable {
			step := forces[i].Scale(cfg.Damping)
			if l := step.Norm(); l > maxStepLimit {
				step = step.Scale(maxStepLimit / l)
			}
			ps[i].pos = m.clampToBounds(ps[i].pos.Add(step), 1.0)
			moved += step.Norm()
		}

		if moved < cfg.ConvergenceThreshold {
			break
		}
	}

	m.apply(ps)
}

// snapToGrid rounds every unlocked component to the placement grid, then
// nudges overlapping components apart one grid step at a time, preferring
// the direction of least wirelength increase.
func snapToGrid(m *costModel, cfg Config) {
	ps := m.poses()
	res := cfg.PlacementGrid
	if res <= 0 {
		return
	}

	for _, i := range m.movable {
		ps[i].pos.X = math.Round(ps[i].pos.X/res) * res
		ps[i].pos.Y = math.Round(ps[i].pos.Y/res) * res
	}

	directions := []geometry.Point2D{
		{X: res}, {X: -res}, {Y: res}, {Y: -res},
	}

	// Bounded overlap resolution: each pass moves every offending
	// component one grid step along its cheapest direction.
	const maxPasses = 50
	for pass := 0; pass < maxPasses; pass++ {
		if m.overlap(ps) == 0 {
			break
		}
		movedAny := false
		for _, i := range m.movable {
			if !m.overlapsOthers(i, ps) {
				continue
			}
			bestCost := math.Inf(1)
			var bestPos geometry.Point2D
			for _, d := range directions {
				trial := clonePoses(ps)
				trial[i].pos = m.clampToBounds(ps[i].pos.Add(d), 1.0)
				c := m.cost(trial)
				if c < bestCost {
					bestCost = c
					bestPos = trial[i].pos
				}
			}
			if bestPos != ps[i].pos {
				ps[i].pos = bestPos
				movedAny = true
			}
		}
		if !movedAny {
			break
		}
	}

	m.apply(ps)
}

// overlapsOthers reports whether component i's courtyard overlaps any other.
func (m *costModel) overlapsOthers(i int, ps []pose) bool {
	ri := m.courtyardAt(i, ps)
	for j := range m.comps {
		if j == i {
			continue
		}
		if ri.OverlapArea(m.courtyardAt(j, ps)) > 0 {
			return true
		}
	}
	return false
}
