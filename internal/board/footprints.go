package board

import (
	"fmt"

	"pcb-engine/pkg/geometry"
)

// Standard footprint constructors for common packages. Dimensions in mm.

// twoPadChip builds a two-terminal chip footprint (resistors, capacitors).
func twoPadChip(name string, bodyW, bodyH, padW, padH, pitch float64) Footprint {
	return Footprint{
		Name: name,
		Body: geometry.Size{Width: bodyW, Height: bodyH},
		Pads: []Pad{
			{Name: "1", Offset: geometry.Point2D{X: -pitch / 2}, Shape: PadRect,
				Size: geometry.Size{Width: padW, Height: padH}, Layers: []int{0}},
			{Name: "2", Offset: geometry.Point2D{X: pitch / 2}, Shape: PadRect,
				Size: geometry.Size{Width: padW, Height: padH}, Layers: []int{0}},
		},
	}
}

// dip builds a dual-inline through-hole footprint with 2.54mm pitch.
func dip(pinCount int, rowSpacing float64) Footprint {
	const pitch = 2.54
	perSide := pinCount / 2
	fp := Footprint{
		Name: fmt.Sprintf("DIP-%d", pinCount),
		Body: geometry.Size{Width: rowSpacing - 1.5, Height: float64(perSide) * pitch},
	}
	for i := 0; i < pinCount; i++ {
		var off geometry.Point2D
		if i < perSide {
			// Left row, top to bottom
			off = geometry.Point2D{X: -rowSpacing / 2, Y: (float64(i) - float64(perSide-1)/2) * pitch}
		} else {
			// Right row, bottom to top
			off = geometry.Point2D{X: rowSpacing / 2, Y: (float64(2*perSide-1-i) - float64(perSide-1)/2) * pitch}
		}
		fp.Pads = append(fp.Pads, Pad{
			Name:   fmt.Sprintf("%d", i+1),
			Offset: off,
			Shape:  PadCircle,
			Size:   geometry.Size{Width: 1.6, Height: 1.6},
			Drill:  0.8,
		})
	}
	return fp
}

// soic builds a small-outline surface-mount footprint with 1.27mm pitch.
func soic(pinCount int) Footprint {
	const pitch = 1.27
	const rowSpacing = 5.4
	perSide := pinCount / 2
	fp := Footprint{
		Name: fmt.Sprintf("SOIC-%d", pinCount),
		Body: geometry.Size{Width: 3.9, Height: float64(perSide) * pitch},
	}
	for i := 0; i < pinCount; i++ {
		var off geometry.Point2D
		if i < perSide {
			off = geometry.Point2D{X: -rowSpacing / 2, Y: (float64(i) - float64(perSide-1)/2) * pitch}
		} else {
			off = geometry.Point2D{X: rowSpacing / 2, Y: (float64(2*perSide-1-i) - float64(perSide-1)/2) * pitch}
		}
		fp.Pads = append(fp.Pads, Pad{
			Name:   fmt.Sprintf("%d", i+1),
			Offset: off,
			Shape:  PadRect,
			Size:   geometry.Size{Width: 1.5, Height: 0.6},
			Layers: []int{0},
		})
	}
	return fp
}

// StandardFootprints contains definitions for common packages.
var StandardFootprints = map[string]Footprint{
	"R0805":  twoPadChip("R0805", 2.0, 1.25, 1.0, 1.3, 1.9),
	"C0805":  twoPadChip("C0805", 2.0, 1.25, 1.0, 1.3, 1.9),
	"R0603":  twoPadChip("R0603", 1.6, 0.8, 0.8, 0.9, 1.5),
	"LED-5":  twoPadChip("LED-5", 5.0, 5.0, 1.8, 1.8, 2.54),
	"DIP-8":  dip(8, 7.62),
	"DIP-14": dip(14, 7.62),
	"DIP-16": dip(16, 7.62),
	"DIP-20": dip(20, 7.62),
	"SOIC-8": soic(8),
	"SOIC-14": soic(14),
	"SOIC-16": soic(16),
}

// LookupFootprint returns a copy of a standard footprint by name.
func LookupFootprint(name string) (Footprint, bool) {
	fp, ok := StandardFootprints[name]
	if !ok {
		return Footprint{}, false
	}
	dup := fp
	dup.Pads = append([]Pad(nil), fp.Pads...)
	return dup, true
}
