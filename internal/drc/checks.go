package drc

import (
	"fmt"
	"math"

	"pcb-engine/pkg/geometry"
)

// marginFactor widens the clearance rule into a warning band: gaps above
// the rule but below rule*marginFactor are flagged as near the limit.
const marginFactor = 1.1

// copperItem is one piece of copper on a single layer, reduced to a
// stroked segment. Round items (pads, vias) are degenerate segments.
type copperItem struct {
	id        string
	net       string  // exemption key; unassigned pads get a unique key
	clearance float64 // this item's clearance rule
	seg       geometry.Segment
	halfW     float64
}

func (c *checker) checkTrackWidths() []Violation {
	var out []Violation
	for i, t := range c.b.Tracks {
		required := c.widthFor(t.Net)
		if t.Width >= required {
			continue
		}
		out = append(out, newViolation(
			KindTrackWidth, SeverityFatal, t.Segment().Midpoint(),
			fmt.Sprintf("track width %.3fmm below minimum %.3fmm", t.Width, required),
			fmt.Sprintf("track[%d] net=%s", i, t.Net),
		))
	}
	return out
}

func (c *checker) checkClearances() []Violation {
	layers := c.b.CopperLayerCount()
	var out []Violation
	// A through-hole pad or a via shows up on several layers; report each
	// offending pair once.
	reported := make(map[string]bool)

	for layer := 0; layer < layers; layer++ {
		items := c.copperOnLayer(layer)
		for i := 0; i < len(items); i++ {
			for j := i + 1; j < len(items); j++ {
				a, b := items[i], items[j]
				if a.net == b.net {
					continue
				}
				pairKey := a.id + "|" + b.id
				if reported[pairKey] {
					continue
				}

				required := math.Max(a.clearance, b.clearance)
				gap := a.seg.DistanceToSegment(b.seg) - a.halfW - b.halfW
				if gap >= required*marginFactor {
					continue
				}
				reported[pairKey] = true

				loc := a.seg.Midpoint().Add(b.seg.Midpoint()).Scale(0.5)
				if gap < required {
					out = append(out, newViolation(
						KindClearance, SeverityFatal, loc,
						fmt.Sprintf("clearance %.3fmm below minimum %.3fmm", math.Max(gap, 0), required),
						a.id, b.id,
					))
				} else {
					out = append(out, newViolation(
						KindMargin, SeverityWarning, loc,
						fmt.Sprintf("clearance %.3fmm within 10%% of minimum %.3fmm", gap, required),
						a.id, b.id,
					))
				}
			}
		}
	}
	return out
}

// copperOnLayer flattens every copper feature present on the layer.
func (c *checker) copperOnLayer(layer int) []copperItem {
	var items []copperItem

	for i, t := range c.b.Tracks {
		if t.Layer != layer {
			continue
		}
		items = append(items, copperItem{
			id:        fmt.Sprintf("track[%d] net=%s", i, t.Net),
			net:       t.Net,
			clearance: c.clearanceFor(t.Net),
			seg:       t.Segment(),
			halfW:     t.Width / 2,
		})
	}

	for i, v := range c.b.Vias {
		if !v.Spans(layer) {
			continue
		}
		items = append(items, copperItem{
			id:        fmt.Sprintf("via[%d] net=%s", i, v.Net),
			net:       v.Net,
			clearance: c.clearanceFor(v.Net),
			seg:       geometry.Segment{Start: v.Position, End: v.Position},
			halfW:     v.PadDiam / 2,
		})
	}

	for _, comp := range c.b.Components {
		for i, pad := range comp.Footprint.Pads {
			if !pad.OnLayer(layer) {
				continue
			}
			id := comp.Ref + "." + pad.Name
			netKey := pad.Net
			if netKey == "" {
				// Unassigned pads are still obstacles; a unique key keeps
				// two of them from exempting each other.
				netKey = "!unassigned:" + id
			}
			seg, halfW := comp.PadStroke(i)
			items = append(items, copperItem{
				id:        "pad " + id,
				net:       netKey,
				clearance: c.clearanceFor(pad.Net),
				seg:       seg,
				halfW:     halfW,
			})
		}
	}
	return items
}

func (c *checker) checkDrills() []Violation {
	min := c.b.Rules.MinDrill
	var out []Violation
	for i, v := range c.b.Vias {
		if v.Drill >= min {
			continue
		}
		out = append(out, newViolation(
			KindDrillSize, SeverityFatal, v.Position,
			fmt.Sprintf("via drill %.3fmm below minimum %.3fmm", v.Drill, min),
			fmt.Sprintf("via[%d] net=%s", i, v.Net),
		))
	}
	for _, comp := range c.b.Components {
		for i, pad := range comp.Footprint.Pads {
			if pad.Drill == 0 || pad.Drill >= min {
				continue
			}
			out = append(out, newViolation(
				KindDrillSize, SeverityFatal, comp.PadPosition(i),
				fmt.Sprintf("pad drill %.3fmm below minimum %.3fmm", pad.Drill, min),
				"pad "+comp.Ref+"."+pad.Name,
			))
		}
	}
	return out
}

func (c *checker) checkAnnularRings() []Violation {
	min := c.b.Rules.MinAnnularRing
	var out []Violation
	for i, v := range c.b.Vias {
		ring := v.AnnularRing()
		if ring >= min {
			continue
		}
		out = append(out, newViolation(
			KindAnnularRing, SeverityFatal, v.Position,
			fmt.Sprintf("via annular ring %.3fmm below minimum %.3fmm", ring, min),
			fmt.Sprintf("via[%d] net=%s", i, v.Net),
		))
	}
	for _, comp := range c.b.Components {
		for i, pad := range comp.Footprint.Pads {
			if pad.Drill == 0 {
				continue
			}
			// The ring is narrowest across the pad's short axis.
			_, halfW := pad.Stroke()
			ring := halfW - pad.Drill/2
			if ring >= min {
				continue
			}
			out = append(out, newViolation(
				KindAnnularRing, SeverityFatal, comp.PadPosition(i),
				fmt.Sprintf("pad annular ring %.3fmm below minimum %.3fmm", ring, min),
				"pad "+comp.Ref+"."+pad.Name,
			))
		}
	}
	return out
}

func (c *checker) checkOutline() []Violation {
	outline := c.b.Outline
	var out []Violation

	for i, t := range c.b.Tracks {
		seg := t.Segment()
		halfW := t.Width / 2
		inside := geometry.SegmentInPolygon(seg, outline) &&
			geometry.DistanceToPolygonEdge(seg.Start, outline) >= halfW &&
			geometry.DistanceToPolygonEdge(seg.End, outline) >= halfW
		if inside {
			continue
		}
		out = append(out, newViolation(
			KindOutline, SeverityFatal, seg.Midpoint(),
			"track copper extends beyond the board outline",
			fmt.Sprintf("track[%d] net=%s", i, t.Net),
		))
	}

	for i, v := range c.b.Vias {
		r := v.PadDiam / 2
		if geometry.PointInPolygon(v.Position, outline) &&
			geometry.DistanceToPolygonEdge(v.Position, outline) >= r {
			continue
		}
		out = append(out, newViolation(
			KindOutline, SeverityFatal, v.Position,
			"via copper extends beyond the board outline",
			fmt.Sprintf("via[%d] net=%s", i, v.Net),
		))
	}

	for _, comp := range c.b.Components {
		for i, pad := range comp.Footprint.Pads {
			seg, halfW := comp.PadStroke(i)
			inside := geometry.PointInPolygon(seg.Start, outline) &&
				geometry.PointInPolygon(seg.End, outline) &&
				geometry.DistanceToPolygonEdge(seg.Start, outline) >= halfW &&
				geometry.DistanceToPolygonEdge(seg.End, outline) >= halfW
			if inside {
				continue
			}
			out = append(out, newViolation(
				KindOutline, SeverityFatal, seg.Midpoint(),
				"pad copper extends beyond the board outline",
				"pad "+comp.Ref+"."+pad.Name,
			))
		}
	}
	return out
}
