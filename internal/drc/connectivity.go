package drc

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"pcb-engine/internal/board"
	"pcb-engine/pkg/geometry"
)

// endpointTol absorbs float noise when matching track endpoints that were
// committed from the same grid point.
const endpointTol = 0.01 // mm

// netTerminal is a pad instance participating in a net's copper graph,
// reduced to its copper stroke.
type netTerminal struct {
	id     string
	seg    geometry.Segment
	halfW  float64
	drill  float64
	layers []int
}

func (t netTerminal) onLayer(layer int) bool {
	if t.drill > 0 || len(t.layers) == 0 {
		return true
	}
	for _, l := range t.layers {
		if l == layer {
			return true
		}
	}
	return false
}

// checkConnectivity verifies that every net's pads sit in a single
// connected copper component, and flags pads with no net at all.
func (c *checker) checkConnectivity() []Violation {
	var out []Violation

	terminals := make(map[string][]netTerminal)
	for _, comp := range c.b.Components {
		for i, pad := range comp.Footprint.Pads {
			if pad.Net == "" {
				out = append(out, newViolation(
					KindUnconnected, SeverityWarning, comp.PadPosition(i),
					"pad has no net assignment",
					"pad "+comp.Ref+"."+pad.Name,
				))
				continue
			}
			seg, halfW := comp.PadStroke(i)
			terminals[pad.Net] = append(terminals[pad.Net], netTerminal{
				id:     comp.Ref + "." + pad.Name,
				seg:    seg,
				halfW:  halfW,
				drill:  pad.Drill,
				layers: pad.Layers,
			})
		}
	}

	names := make([]string, 0, len(terminals))
	for name := range terminals {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		pads := terminals[name]
		if len(pads) < 2 {
			continue
		}
		out = append(out, c.netConnectivity(name, pads)...)
	}
	return out
}

// netConnectivity builds the copper graph of one net (pads, tracks, vias)
// and reports pads unreachable from the net's first pad.
func (c *checker) netConnectivity(net string, pads []netTerminal) []Violation {
	var tracks []board.Track
	for _, t := range c.b.Tracks {
		if t.Net == net {
			tracks = append(tracks, t)
		}
	}
	var vias []board.Via
	for _, v := range c.b.Vias {
		if v.Net == net {
			vias = append(vias, v)
		}
	}

	// Node id layout: pads, then tracks, then vias.
	g := simple.NewUndirectedGraph()
	padBase := int64(0)
	trackBase := padBase + int64(len(pads))
	viaBase := trackBase + int64(len(tracks))
	total := viaBase + int64(len(vias))
	for id := int64(0); id < total; id++ {
		g.AddNode(simple.Node(id))
	}
	link := func(a, b int64) {
		if a != b {
			g.SetEdge(simple.Edge{F: simple.Node(a), T: simple.Node(b)})
		}
	}

	touchesPad := func(p netTerminal, pt geometry.Point2D, layer int) bool {
		return p.onLayer(layer) && p.seg.DistanceToPoint(pt) <= p.halfW+endpointTol
	}

	for ti, t := range tracks {
		for pi, p := range pads {
			if touchesPad(p, t.Start, t.Layer) || touchesPad(p, t.End, t.Layer) {
				link(trackBase+int64(ti), padBase+int64(pi))
			}
		}
		for tj := ti + 1; tj < len(tracks); tj++ {
			o := tracks[tj]
			if t.Layer != o.Layer {
				continue
			}
			if t.Start.Distance(o.Start) <= endpointTol || t.Start.Distance(o.End) <= endpointTol ||
				t.End.Distance(o.Start) <= endpointTol || t.End.Distance(o.End) <= endpointTol {
				link(trackBase+int64(ti), trackBase+int64(tj))
			}
		}
		for vi, v := range vias {
			if !v.Spans(t.Layer) {
				continue
			}
			r := v.PadDiam/2 + endpointTol
			if v.Position.Distance(t.Start) <= r || v.Position.Distance(t.End) <= r {
				link(trackBase+int64(ti), viaBase+int64(vi))
			}
		}
	}
	for vi, v := range vias {
		for pi, p := range pads {
			if p.seg.DistanceToPoint(v.Position) <= p.halfW+v.PadDiam/2+endpointTol {
				link(viaBase+int64(vi), padBase+int64(pi))
			}
		}
	}

	// Component membership per pad node.
	componentOf := make(map[int64]int)
	for ci, comp := range topo.ConnectedComponents(g) {
		for _, n := range comp {
			componentOf[n.ID()] = ci
		}
	}

	home := componentOf[padBase]
	var stranded []string
	for pi := range pads {
		if componentOf[padBase+int64(pi)] != home {
			stranded = append(stranded, pads[pi].id)
		}
	}
	if len(stranded) == 0 {
		return nil
	}
	sort.Strings(stranded)

	items := append([]string{"net " + net}, stranded...)
	return []Violation{newViolation(
		KindUnconnected, SeverityFatal, pads[0].seg.Midpoint(),
		fmt.Sprintf("net %s has %d pad(s) not connected to %s", net, len(stranded), pads[0].id),
		items...,
	)}
}
