package route

import (
	"math"

	"pcb-engine/internal/board"
	"pcb-engine/internal/netlist"
	"pcb-engine/pkg/geometry"
)

// netLength sums the committed track length of a net in mm.
func (r *router) netLength(net string) float64 {
	var total float64
	for _, t := range r.b.Tracks {
		if t.Net == net {
			total += t.Segment().Length()
		}
	}
	return total
}

// matchPairLengths equalizes routed lengths within differential pairs by
// inserting serpentine meanders into the shorter member. Pairs whose
// mismatch is inside the tolerance, or where the meander would collide
// with foreign copper, are left as routed.
func (r *router) matchPairLengths(results []Result, resultIdx map[string]int) {
	for _, n := range r.nets.Nets {
		if n.Class != netlist.ClassDifferential || n.DiffPartner == "" {
			continue
		}
		// Each pair is handled once, from its lexically first member.
		if n.Name > n.DiffPartner {
			continue
		}
		ia, oka := resultIdx[n.Name]
		ib, okb := resultIdx[n.DiffPartner]
		if !oka || !okb {
			continue
		}
		if results[ia].Status != StatusRouted || results[ib].Status != StatusRouted {
			continue
		}

		diff := math.Abs(results[ia].Length - results[ib].Length)
		if diff <= r.cfg.PairLengthTolerance {
			continue
		}
		short := ia
		if results[ib].Length < results[ia].Length {
			short = ib
		}
		name := results[short].Net
		if !r.addMeander(name, diff) {
			r.log.Debug("length matching skipped, meander blocked",
				"net", name, "mismatch", diff)
			continue
		}

		results[short].Length = r.netLength(name)
		results[short].LengthMatched = true
		results[short].TrackCount = r.countTracks(name)
		r.log.Debug("length matched pair",
			"net", name, "partner", n.DiffPartner, "mismatch", diff,
			"length", results[short].Length)
	}
}

// addMeander replaces the net's longest straight track with a serpentine
// polyline adding roughly extra mm of length. Returns false when the net
// has no tracks or the detour would cross foreign copper.
func (r *router) addMeander(net string, extra float64) bool {
	best, bestLen := -1, 0.0
	for i, t := range r.b.Tracks {
		if t.Net != net {
			continue
		}
		if l := t.Segment().Length(); l > bestLen {
			best, bestLen = i, l
		}
	}
	if best < 0 {
		return false
	}

	t := r.b.Tracks[best]
	pts := meander(t.Start, t.End, bestLen+extra, r.cfg.MeanderAmplitude)
	if len(pts) < 3 {
		return false
	}

	own := r.markClearance(net)
	for i := 1; i < len(pts); i++ {
		seg := geometry.Segment{Start: pts[i-1], End: pts[i]}
		for _, p := range []geometry.Point2D{pts[i-1], seg.Midpoint(), pts[i]} {
			if r.g.BlockedFor(net, t.Layer, r.g.ToCell(p), own) {
				return false
			}
		}
	}

	// The straight track's grid stamps stay behind; they are same-net and
	// keep the corridor reserved for the serpentine.
	r.b.Tracks = append(r.b.Tracks[:best], r.b.Tracks[best+1:]...)
	clearance := r.markClearance(net)
	for i := 1; i < len(pts); i++ {
		nt := board.Track{Net: net, Layer: t.Layer, Start: pts[i-1], End: pts[i], Width: t.Width}
		r.b.Tracks = append(r.b.Tracks, nt)
		r.g.MarkTrack(net, nt.Layer, nt.Start, nt.End, nt.Width, clearance, r.reach)
	}
	return true
}

// countTracks counts committed tracks belonging to the net.
func (r *router) countTracks(net string) int {
	n := 0
	for _, t := range r.b.Tracks {
		if t.Net == net {
			n++
		}
	}
	return n
}

// meander builds a serpentine polyline from start to end whose length
// approximates targetLength. Intermediate points alternate offsets
// perpendicular to the direct line; the cycle count derives from the
// extra length needed.
func meander(start, end geometry.Point2D, targetLength, amplitude float64) []geometry.Point2D {
	direct := start.Distance(end)
	if direct == 0 || amplitude <= 0 || targetLength <= direct {
		return []geometry.Point2D{start, end}
	}

	d := end.Sub(start)
	perp := geometry.Point2D{X: -d.Y / direct, Y: d.X / direct}

	extra := targetLength - direct
	cycles := int(extra/(4*amplitude)) + 1
	n := cycles * 2

	pts := make([]geometry.Point2D, 0, n+1)
	pts = append(pts, start)
	for i := 1; i < n; i++ {
		base := start.Add(d.Scale(float64(i) / float64(n)))
		off := amplitude
		if i%2 == 0 {
			off = -amplitude
		}
		pts = append(pts, base.Add(perp.Scale(off)))
	}
	pts = append(pts, end)
	return pts
}
