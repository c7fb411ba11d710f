package route

import (
	"pcb-engine/pkg/geometry"
)

// Simplify reduces a polyline using the Douglas-Peucker algorithm: points
// within epsilon of the line between the endpoints of their span are
// dropped. Simplifying an already-simplified path with the same epsilon
// returns it unchanged.
func Simplify(path []geometry.Point2D, epsilon float64) []geometry.Point2D {
	if len(path) <= 2 {
		return path
	}

	// Find point with maximum distance from the line between the endpoints.
	dmax := 0.0
	index := 0
	end := len(path) - 1

	for i := 1; i < end; i++ {
		d := geometry.PerpendicularDistance(path[i], path[0], path[end])
		if d > dmax {
			dmax = d
			index = i
		}
	}

	if dmax > epsilon {
		left := Simplify(path[:index+1], epsilon)
		right := Simplify(path[index:], epsilon)

		result := make([]geometry.Point2D, 0, len(left)+len(right)-1)
		result = append(result, left[:len(left)-1]...)
		result = append(result, right...)
		return result
	}

	return []geometry.Point2D{path[0], path[end]}
}

// layerRun is a maximal same-layer span of the raw path.
type layerRun struct {
	layer  int
	points []geometry.Point2D
}

// splitRuns breaks a raw path into per-layer runs. Via transitions become
// run boundaries, so simplification never moves a layer-change vertex.
func (r *router) splitRuns(steps []pathStep) []layerRun {
	var runs []layerRun
	for _, s := range steps {
		pt := r.g.ToPoint(s.cell)
		if len(runs) == 0 || runs[len(runs)-1].layer != s.layer {
			runs = append(runs, layerRun{layer: s.layer, points: []geometry.Point2D{pt}})
			continue
		}
		run := &runs[len(runs)-1]
		run.points = append(run.points, pt)
	}
	return runs
}
