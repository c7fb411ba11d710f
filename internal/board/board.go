// Package board provides the shared layout data model: board outline,
// layer stack, design rules, components, pads, tracks, and vias.
package board

import (
	"fmt"

	"pcb-engine/pkg/geometry"
)

// LayerRole identifies what a stackup layer is made of.
type LayerRole int

const (
	RoleConductor LayerRole = iota
	RoleInsulator
)

func (r LayerRole) String() string {
	switch r {
	case RoleConductor:
		return "Conductor"
	case RoleInsulator:
		return "Insulator"
	default:
		return "Unknown"
	}
}

// Layer is one entry in the ordered board stackup.
type Layer struct {
	Name string    `json:"name"` // e.g., "F.Cu", "B.Cu"
	Role LayerRole `json:"role"`
}

// DesignRules holds the board-global manufacturing limits.
type DesignRules struct {
	MinTrackWidth  float64 `json:"min_track_width"`  // mm
	MinClearance   float64 `json:"min_clearance"`    // mm
	MinDrill       float64 `json:"min_drill"`        // mm
	MinAnnularRing float64 `json:"min_annular_ring"` // mm
}

// DefaultDesignRules returns standard hobby-fab manufacturing rules.
func DefaultDesignRules() DesignRules {
	return DesignRules{
		MinTrackWidth:  0.15, // 6 mil
		MinClearance:   0.2,  // 8 mil
		MinDrill:       0.3,  // 12 mil
		MinAnnularRing: 0.15, // 6 mil
	}
}

// Track is a straight copper segment on a single layer.
// Tracks are immutable once committed; rip-up removes and re-creates them.
type Track struct {
	Net   string           `json:"net"`
	Layer int              `json:"layer"` // index into copper layers
	Start geometry.Point2D `json:"start"`
	End   geometry.Point2D `json:"end"`
	Width float64          `json:"width"` // mm
}

// Segment returns the track geometry as a segment.
func (t Track) Segment() geometry.Segment {
	return geometry.Segment{Start: t.Start, End: t.End}
}

// Via is a drilled copper barrel connecting a span of copper layers.
type Via struct {
	Net       string           `json:"net"`
	Position  geometry.Point2D `json:"position"`
	LayerFrom int              `json:"layer_from"`
	LayerTo   int              `json:"layer_to"`
	Drill     float64          `json:"drill"`    // hole diameter, mm
	PadDiam   float64          `json:"pad_diam"` // copper pad diameter, mm
}

// AnnularRing returns the copper remaining around the drill hole.
func (v Via) AnnularRing() float64 {
	return (v.PadDiam - v.Drill) / 2
}

// Spans reports whether the via connects the given copper layer.
func (v Via) Spans(layer int) bool {
	lo, hi := v.LayerFrom, v.LayerTo
	if lo > hi {
		lo, hi = hi, lo
	}
	return layer >= lo && layer <= hi
}

// Board is the root of the layout model. The outline is immutable once
// routing begins; components are mutated only by the placement optimizer.
type Board struct {
	Name       string             `json:"name"`
	Outline    []geometry.Point2D `json:"outline"` // closed polygon
	Layers     []Layer            `json:"layers"`
	Rules      DesignRules        `json:"rules"`
	Components []*Component       `json:"components"`
	Tracks     []Track            `json:"tracks,omitempty"`
	Vias       []Via              `json:"vias,omitempty"`
}

// New creates a rectangular board with a two-copper-layer stackup.
func New(name string, width, height float64) *Board {
	return &Board{
		Name: name,
		Outline: []geometry.Point2D{
			{X: 0, Y: 0}, {X: width, Y: 0}, {X: width, Y: height}, {X: 0, Y: height},
		},
		Layers: []Layer{
			{Name: "F.Cu", Role: RoleConductor},
			{Name: "Core", Role: RoleInsulator},
			{Name: "B.Cu", Role: RoleConductor},
		},
		Rules: DefaultDesignRules(),
	}
}

// CopperLayerCount returns the number of conductor layers.
func (b *Board) CopperLayerCount() int {
	n := 0
	for _, l := range b.Layers {
		if l.Role == RoleConductor {
			n++
		}
	}
	return n
}

// Bounds returns the axis-aligned bounding box of the outline.
func (b *Board) Bounds() geometry.Rect {
	return geometry.BoundingBox(b.Outline)
}

// FindComponent returns the component with the given reference, or nil.
func (b *Board) FindComponent(ref string) *Component {
	for _, c := range b.Components {
		if c.Ref == ref {
			return c
		}
	}
	return nil
}

// PadsOnNet returns the absolute positions of every pad assigned to net.
func (b *Board) PadsOnNet(net string) []PadRef {
	var refs []PadRef
	for _, c := range b.Components {
		for i := range c.Footprint.Pads {
			if c.Footprint.Pads[i].Net == net {
				refs = append(refs, PadRef{
					Component: c.Ref,
					Pad:       c.Footprint.Pads[i].Name,
					Position:  c.PadPosition(i),
					Layers:    c.Footprint.Pads[i].Layers,
				})
			}
		}
	}
	return refs
}

// RemoveNet deletes every committed track and via belonging to net.
// Used by rip-up.
func (b *Board) RemoveNet(net string) (tracks, vias int) {
	kept := b.Tracks[:0]
	for _, t := range b.Tracks {
		if t.Net == net {
			tracks++
			continue
		}
		kept = append(kept, t)
	}
	b.Tracks = kept

	keptVias := b.Vias[:0]
	for _, v := range b.Vias {
		if v.Net == net {
			vias++
			continue
		}
		keptVias = append(keptVias, v)
	}
	b.Vias = keptVias
	return tracks, vias
}

// Validate checks structural consistency of the board model.
func (b *Board) Validate() error {
	if b.Name == "" {
		return fmt.Errorf("board name is required")
	}
	if len(b.Outline) < 3 {
		return fmt.Errorf("board outline must be a closed polygon (got %d points)", len(b.Outline))
	}
	if geometry.PolygonArea(b.Outline) <= 0 {
		return fmt.Errorf("board outline has zero area")
	}
	if b.CopperLayerCount() == 0 {
		return fmt.Errorf("board needs at least one conductor layer")
	}
	if b.Rules.MinTrackWidth <= 0 || b.Rules.MinClearance <= 0 {
		return fmt.Errorf("design rules must be positive")
	}
	seen := make(map[string]bool, len(b.Components))
	for _, c := range b.Components {
		if c.Ref == "" {
			return fmt.Errorf("component with empty reference")
		}
		if seen[c.Ref] {
			return fmt.Errorf("duplicate component reference %q", c.Ref)
		}
		seen[c.Ref] = true
		if len(c.Footprint.Pads) == 0 {
			return fmt.Errorf("component %s has no pads", c.Ref)
		}
	}
	return nil
}

// PadRef identifies a pad instance with its resolved board position.
type PadRef struct {
	Component string             `json:"component"`
	Pad       string             `json:"pad"`
	Position  geometry.Point2D   `json:"position"`
	Layers    []int              `json:"layers"`
}

// ID returns the "REF.PAD" identifier used in reports.
func (p PadRef) ID() string {
	return p.Component + "." + p.Pad
}
