package board

import (
	"pcb-engine/pkg/geometry"
)

// PadShape is the copper shape of a pad.
type PadShape string

const (
	PadCircle PadShape = "circle"
	PadRect   PadShape = "rect"
)

// Pad is a copper landing on a footprint, positioned relative to the
// component origin. A through-hole pad (Drill > 0) connects on every
// copper layer; an SMD pad lists the layers it exists on.
type Pad struct {
	Name   string           `json:"name"` // e.g., "1", "A", "VCC"
	Offset geometry.Point2D `json:"offset"`
	Shape  PadShape         `json:"shape"`
	Size   geometry.Size    `json:"size"`
	Drill  float64          `json:"drill,omitempty"` // 0 for SMD
	Layers []int            `json:"layers"`          // copper layer indexes
	Net    string           `json:"net,omitempty"`
}

// Radius returns the copper bounding radius, used only for coarse bounds.
// Clearance and occupancy use Stroke, which does not overstate rect pads.
func (p Pad) Radius() float64 {
	if p.Shape == PadCircle {
		return p.Size.Width / 2
	}
	return geometry.Point2D{X: p.Size.Width / 2, Y: p.Size.Height / 2}.Norm()
}

// Stroke reduces the pad copper to a stroked segment in footprint-local
// coordinates: the long-axis centerline plus half the short extent.
// Circular pads degenerate to a point with their radius. The capsule
// matches the pad exactly along its sides, so adjacent fine-pitch pads
// keep their real copper gap.
func (p Pad) Stroke() (geometry.Segment, float64) {
	if p.Shape == PadCircle {
		return geometry.Segment{Start: p.Offset, End: p.Offset}, p.Size.Width / 2
	}
	w, h := p.Size.Width, p.Size.Height
	if w >= h {
		half := (w - h) / 2
		return geometry.Segment{
			Start: geometry.Point2D{X: p.Offset.X - half, Y: p.Offset.Y},
			End:   geometry.Point2D{X: p.Offset.X + half, Y: p.Offset.Y},
		}, h / 2
	}
	half := (h - w) / 2
	return geometry.Segment{
		Start: geometry.Point2D{X: p.Offset.X, Y: p.Offset.Y - half},
		End:   geometry.Point2D{X: p.Offset.X, Y: p.Offset.Y + half},
	}, w / 2
}

// OnLayer reports whether the pad has copper on the given layer.
func (p Pad) OnLayer(layer int) bool {
	if p.Drill > 0 {
		return true
	}
	for _, l := range p.Layers {
		if l == layer {
			return true
		}
	}
	return false
}

// Footprint is a reusable pad pattern with a body envelope.
type Footprint struct {
	Name string        `json:"name"` // e.g., "SOIC-8"
	Body geometry.Size `json:"body"` // courtyard used for overlap checks
	Pads []Pad         `json:"pads"`
}

// Component is a placed part: a footprint instance at a board position.
type Component struct {
	Ref         string           `json:"ref"` // e.g., "U1", "C5"
	Value       string           `json:"value,omitempty"`
	Footprint   Footprint        `json:"footprint"`
	Position    geometry.Point2D `json:"position"`     // board coords of footprint origin
	RotationDeg float64          `json:"rotation_deg"` // counter-clockwise
	Locked      bool             `json:"locked,omitempty"`
}

// Transform returns the footprint-local to board-coordinate transform.
func (c *Component) Transform() geometry.AffineTransform {
	return geometry.PlacementTransform(c.Position, c.RotationDeg)
}

// PadPosition returns the absolute board position of pad index i.
func (c *Component) PadPosition(i int) geometry.Point2D {
	return c.Transform().Apply(c.Footprint.Pads[i].Offset)
}

// PadStroke returns pad i's copper stroke in board coordinates. Rotation
// preserves the stroke half-width, so the capsule stays exact under any
// component orientation.
func (c *Component) PadStroke(i int) (geometry.Segment, float64) {
	seg, halfW := c.Footprint.Pads[i].Stroke()
	t := c.Transform()
	return geometry.Segment{Start: t.Apply(seg.Start), End: t.Apply(seg.End)}, halfW
}

// PadByName returns the pad with the given name and its index, or nil.
func (c *Component) PadByName(name string) (*Pad, int) {
	for i := range c.Footprint.Pads {
		if c.Footprint.Pads[i].Name == name {
			return &c.Footprint.Pads[i], i
		}
	}
	return nil, -1
}

// Courtyard returns the axis-aligned envelope of the rotated body,
// centered on the component position.
func (c *Component) Courtyard() geometry.Rect {
	w, h := c.Footprint.Body.Width, c.Footprint.Body.Height
	// Swap extents for quarter-turn rotations; free angles use the
	// rotated corner bounding box.
	corners := []geometry.Point2D{
		{X: -w / 2, Y: -h / 2}, {X: w / 2, Y: -h / 2},
		{X: w / 2, Y: h / 2}, {X: -w / 2, Y: h / 2},
	}
	t := c.Transform()
	for i, p := range corners {
		corners[i] = t.Apply(p)
	}
	return geometry.BoundingBox(corners)
}

// Area returns the body area used for feasibility checks.
func (c *Component) Area() float64 {
	return c.Footprint.Body.Width * c.Footprint.Body.Height
}

// Clone returns a deep copy of the component.
func (c *Component) Clone() *Component {
	dup := *c
	dup.Footprint.Pads = make([]Pad, len(c.Footprint.Pads))
	copy(dup.Footprint.Pads, c.Footprint.Pads)
	for i := range dup.Footprint.Pads {
		if len(c.Footprint.Pads[i].Layers) > 0 {
			dup.Footprint.Pads[i].Layers = append([]int(nil), c.Footprint.Pads[i].Layers...)
		}
	}
	return &dup
}
