package geometry

import "math"

// Segment represents a straight line segment between two points.
type Segment struct {
	Start Point2D `json:"start"`
	End   Point2D `json:"end"`
}

// Length returns the segment length.
func (s Segment) Length() float64 {
	return s.Start.Distance(s.End)
}

// Midpoint returns the segment midpoint.
func (s Segment) Midpoint() Point2D {
	return Point2D{X: (s.Start.X + s.End.X) / 2, Y: (s.Start.Y + s.End.Y) / 2}
}

// ClosestPoint returns the point on the segment closest to p.
func (s Segment) ClosestPoint(p Point2D) Point2D {
	dx := s.End.X - s.Start.X
	dy := s.End.Y - s.Start.Y

	if dx == 0 && dy == 0 {
		return s.Start
	}

	t := ((p.X-s.Start.X)*dx + (p.Y-s.Start.Y)*dy) / (dx*dx + dy*dy)
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}

	return Point2D{X: s.Start.X + t*dx, Y: s.Start.Y + t*dy}
}

// DistanceToPoint returns the minimum distance from the segment to a point.
func (s Segment) DistanceToPoint(p Point2D) float64 {
	return s.ClosestPoint(p).Distance(p)
}

// DistanceToSegment returns the minimum distance between two segments.
// Returns 0 if the segments intersect.
func (s Segment) DistanceToSegment(other Segment) float64 {
	if segmentsIntersect(s.Start, s.End, other.Start, other.End) {
		return 0
	}

	d := s.DistanceToPoint(other.Start)
	if v := s.DistanceToPoint(other.End); v < d {
		d = v
	}
	if v := other.DistanceToPoint(s.Start); v < d {
		d = v
	}
	if v := other.DistanceToPoint(s.End); v < d {
		d = v
	}
	return d
}

// segmentsIntersect reports whether segments ab and cd intersect,
// including collinear overlap.
func segmentsIntersect(a, b, c, d Point2D) bool {
	d1 := crossProduct(c, d, a)
	d2 := crossProduct(c, d, b)
	d3 := crossProduct(a, b, c)
	d4 := crossProduct(a, b, d)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}

	if d1 == 0 && onSegment(c, d, a) {
		return true
	}
	if d2 == 0 && onSegment(c, d, b) {
		return true
	}
	if d3 == 0 && onSegment(a, b, c) {
		return true
	}
	if d4 == 0 && onSegment(a, b, d) {
		return true
	}
	return false
}

// onSegment reports whether p lies within the bounding box of segment ab,
// assuming p is collinear with a and b.
func onSegment(a, b, p Point2D) bool {
	return math.Min(a.X, b.X) <= p.X && p.X <= math.Max(a.X, b.X) &&
		math.Min(a.Y, b.Y) <= p.Y && p.Y <= math.Max(a.Y, b.Y)
}

// PerpendicularDistance returns the perpendicular distance from point p
// to the infinite line through a and b. Used by path simplification.
func PerpendicularDistance(p, a, b Point2D) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y

	if dx == 0 && dy == 0 {
		return p.Distance(a)
	}

	num := math.Abs(dy*p.X - dx*p.Y + b.X*a.Y - b.Y*a.X)
	den := math.Hypot(dx, dy)
	return num / den
}

// PathLength returns the total length of a polyline.
func PathLength(points []Point2D) float64 {
	if len(points) < 2 {
		return 0
	}
	var total float64
	for i := 1; i < len(points); i++ {
		total += points[i].Distance(points[i-1])
	}
	return total
}
