package geometry

import "math"

// PointInPolygon tests if a point is inside a polygon using ray casting.
func PointInPolygon(p Point2D, polygon []Point2D) bool {
	if len(polygon) < 3 {
		return false
	}

	inside := false
	n := len(polygon)

	for i := 0; i < n; i++ {
		j := (i + 1) % n
		pi, pj := polygon[i], polygon[j]

		// Check if ray from p going right intersects edge pi-pj
		if ((pi.Y > p.Y) != (pj.Y > p.Y)) &&
			(p.X < (pj.X-pi.X)*(p.Y-pi.Y)/(pj.Y-pi.Y)+pi.X) {
			inside = !inside
		}
	}

	return inside
}

// PolygonArea returns the absolute area of a simple polygon (shoelace formula).
func PolygonArea(polygon []Point2D) float64 {
	if len(polygon) < 3 {
		return 0
	}
	var sum float64
	n := len(polygon)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += polygon[i].X*polygon[j].Y - polygon[j].X*polygon[i].Y
	}
	return math.Abs(sum) / 2
}

// SegmentInPolygon reports whether a segment lies entirely inside the polygon.
// Both endpoints must be inside and the segment must not cross any edge.
func SegmentInPolygon(s Segment, polygon []Point2D) bool {
	if !PointInPolygon(s.Start, polygon) || !PointInPolygon(s.End, polygon) {
		return false
	}
	n := len(polygon)
	for i := 0; i < n; i++ {
		edge := Segment{Start: polygon[i], End: polygon[(i+1)%n]}
		// Proper crossings only; touching an edge from inside is fine.
		d1 := crossProduct(edge.Start, edge.End, s.Start)
		d2 := crossProduct(edge.Start, edge.End, s.End)
		d3 := crossProduct(s.Start, s.End, edge.Start)
		d4 := crossProduct(s.Start, s.End, edge.End)
		if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
			((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
			return false
		}
	}
	return true
}

// DistanceToPolygonEdge returns the minimum distance from p to the polygon
// boundary. The sign is not considered; callers combine this with
// PointInPolygon for inside/outside decisions.
func DistanceToPolygonEdge(p Point2D, polygon []Point2D) float64 {
	if len(polygon) < 2 {
		return math.Inf(1)
	}
	best := math.Inf(1)
	n := len(polygon)
	for i := 0; i < n; i++ {
		seg := Segment{Start: polygon[i], End: polygon[(i+1)%n]}
		if d := seg.DistanceToPoint(p); d < best {
			best = d
		}
	}
	return best
}

// ConvexHull computes the convex hull of a set of points using Graham scan.
// Returns the points forming the convex hull in counter-clockwise order.
func ConvexHull(points []Point2D) []Point2D {
	if len(points) < 3 {
		return points
	}

	pts := make([]Point2D, len(points))
	copy(pts, points)

	// Find the point with lowest y (and leftmost if tied)
	lowest := 0
	for i := 1; i < len(pts); i++ {
		if pts[i].Y < pts[lowest].Y ||
			(pts[i].Y == pts[lowest].Y && pts[i].X < pts[lowest].X) {
			lowest = i
		}
	}

	pts[0], pts[lowest] = pts[lowest], pts[0]
	pivot := pts[0]

	sorted := make([]Point2D, len(pts)-1)
	copy(sorted, pts[1:])

	// Sort by polar angle with respect to pivot
	for i := 0; i < len(sorted)-1; i++ {
		for j := i + 1; j < len(sorted); j++ {
			cross := crossProduct(pivot, sorted[i], sorted[j])
			if cross < 0 || (cross == 0 && distSq(pivot, sorted[i]) > distSq(pivot, sorted[j])) {
				sorted[i], sorted[j] = sorted[j], sorted[i]
			}
		}
	}

	hull := []Point2D{pivot}
	for _, p := range sorted {
		for len(hull) > 1 && crossProduct(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}

	return hull
}

// crossProduct computes the cross product of vectors OA and OB.
func crossProduct(o, a, b Point2D) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

// distSq computes the squared distance between two points.
func distSq(a, b Point2D) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	return dx*dx + dy*dy
}
