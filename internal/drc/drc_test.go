package drc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pcb-engine/internal/board"
	"pcb-engine/internal/netlist"
	"pcb-engine/pkg/geometry"
)

func comp(ref, footprint string, x, y float64) *board.Component {
	fp, ok := board.LookupFootprint(footprint)
	if !ok {
		panic("unknown footprint " + footprint)
	}
	return &board.Component{Ref: ref, Footprint: fp, Position: geometry.Point2D{X: x, Y: y}}
}

// cleanBoard is a routed two-resistor board with generous spacing that
// passes every check.
func cleanBoard() *board.Board {
	b := board.New("clean", 30, 20)
	r1 := comp("R1", "R0805", 5, 10)
	r2 := comp("R2", "R0805", 25, 10)
	r1.Footprint.Pads[1].Net = "SIG"
	r2.Footprint.Pads[0].Net = "SIG"
	r1.Footprint.Pads[0].Net = "A"
	r2.Footprint.Pads[1].Net = "B"
	b.Components = []*board.Component{r1, r2}
	b.Tracks = []board.Track{
		{Net: "SIG", Layer: 0, Start: r1.PadPosition(1), End: r2.PadPosition(0), Width: 0.25},
	}
	return b
}

func violationsOfKind(r *Report, kind Kind) []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Kind == kind {
			out = append(out, v)
		}
	}
	return out
}

func TestCleanBoardPasses(t *testing.T) {
	report := Check(cleanBoard(), nil)
	for _, v := range report.Violations {
		t.Logf("unexpected: [%s] %s: %s", v.Severity, v.Kind, v.Detail)
	}
	assert.True(t, report.Passed)
	assert.Empty(t, report.Violations)
}

func TestCheckIsPure(t *testing.T) {
	b := cleanBoard()
	// Break a couple of rules so the report is non-trivial.
	b.Tracks[0].Width = 0.05
	b.Vias = []board.Via{
		{Net: "SIG", Position: geometry.Point2D{X: 15, Y: 10}, LayerTo: 1, Drill: 0.1, PadDiam: 0.3},
	}

	before := len(b.Tracks)
	first := Check(b, nil)
	second := Check(b, nil)

	assert.Equal(t, before, len(b.Tracks), "check must not mutate the board")
	require.Equal(t, len(first.Violations), len(second.Violations))
	for i := range first.Violations {
		assert.Equal(t, first.Violations[i], second.Violations[i])
	}
}

func TestTrackWidthViolation(t *testing.T) {
	b := cleanBoard()
	b.Tracks[0].Width = 0.05

	report := Check(b, nil)
	vs := violationsOfKind(report, KindTrackWidth)
	require.Len(t, vs, 1)
	assert.Equal(t, SeverityFatal, vs[0].Severity)
	assert.Contains(t, vs[0].Detail, "0.050mm")
}

func TestPerNetWidthRuleApplies(t *testing.T) {
	b := cleanBoard()
	// 0.25mm satisfies the board minimum but not the ground-class rule.
	b.Tracks[0].Net = "GND"
	b.Components[0].Footprint.Pads[1].Net = "GND"
	b.Components[1].Footprint.Pads[0].Net = "GND"

	nets := netlist.Classify([]netlist.RawNet{
		{Name: "GND", Pins: []string{"R1.2", "R2.1"}},
	}, netlist.Hints{})

	report := Check(b, nets)
	vs := violationsOfKind(report, KindTrackWidth)
	require.Len(t, vs, 1)
	assert.Contains(t, vs[0].Detail, "0.500mm")
}

func TestClearanceViolation(t *testing.T) {
	b := cleanBoard()
	// A foreign track leaving a 0.15mm gap breaches the 0.2mm rule.
	b.Tracks = append(b.Tracks, board.Track{
		Net: "OTHER", Layer: 0,
		Start: geometry.Point2D{X: 10, Y: 10.4}, End: geometry.Point2D{X: 20, Y: 10.4},
		Width: 0.25,
	})

	report := Check(b, nil)
	vs := violationsOfKind(report, KindClearance)
	require.NotEmpty(t, vs)
	assert.Equal(t, SeverityFatal, vs[0].Severity)
}

func TestClearanceMarginWarning(t *testing.T) {
	b := cleanBoard()
	// Gap of 0.21mm: above the 0.2mm rule but inside the 10% margin band.
	b.Tracks = append(b.Tracks, board.Track{
		Net: "OTHER", Layer: 0,
		Start: geometry.Point2D{X: 10, Y: 10.46}, End: geometry.Point2D{X: 20, Y: 10.46},
		Width: 0.25,
	})

	report := Check(b, nil)
	assert.Empty(t, violationsOfKind(report, KindClearance))
	vs := violationsOfKind(report, KindMargin)
	require.NotEmpty(t, vs)
	assert.Equal(t, SeverityWarning, vs[0].Severity)
}

func TestFinePitchAdjacentPadsClear(t *testing.T) {
	// A 1.27mm-pitch SOIC leaves 0.67mm between adjacent 1.5x0.6 pads.
	// Measured on the real pad copper that clears the 0.2mm rule; a
	// bounding-circle approximation would report the pads as touching.
	b := board.New("soic", 20, 20)
	u1 := comp("U1", "SOIC-8", 10, 10)
	for i := range u1.Footprint.Pads {
		u1.Footprint.Pads[i].Net = "N" + u1.Footprint.Pads[i].Name
	}
	b.Components = []*board.Component{u1}

	report := Check(b, nil)
	assert.Empty(t, violationsOfKind(report, KindClearance))
	assert.True(t, report.Passed)
}

func TestOverlappingRectPadsStillFatal(t *testing.T) {
	// Two resistors crammed together so their pads genuinely overlap.
	b := board.New("overlap", 20, 20)
	r1 := comp("R1", "R0805", 9.5, 10)
	r2 := comp("R2", "R0805", 10.5, 10)
	r1.Footprint.Pads[1].Net = "X"
	r2.Footprint.Pads[0].Net = "Y"
	b.Components = []*board.Component{r1, r2}

	report := Check(b, nil)
	vs := violationsOfKind(report, KindClearance)
	require.NotEmpty(t, vs)
	assert.Equal(t, SeverityFatal, vs[0].Severity)
}

func TestSameNetExemptFromClearance(t *testing.T) {
	b := cleanBoard()
	// A parallel stub of the same net nearly touching its own track.
	b.Tracks = append(b.Tracks, board.Track{
		Net: "SIG", Layer: 0,
		Start: geometry.Point2D{X: 10, Y: 10.3}, End: geometry.Point2D{X: 20, Y: 10.3},
		Width: 0.25,
	})

	report := Check(b, nil)
	assert.Empty(t, violationsOfKind(report, KindClearance))
}

func TestDifferentLayersDoNotInteract(t *testing.T) {
	b := cleanBoard()
	b.Tracks = append(b.Tracks, board.Track{
		Net: "OTHER", Layer: 1,
		Start: geometry.Point2D{X: 10, Y: 10}, End: geometry.Point2D{X: 20, Y: 10},
		Width: 0.25,
	})

	report := Check(b, nil)
	assert.Empty(t, violationsOfKind(report, KindClearance))
}

func TestAnnularRingViolation(t *testing.T) {
	b := cleanBoard()
	// 0.5mm pad over a 0.3mm drill leaves a 0.1mm ring against a 0.15mm
	// minimum.
	b.Vias = []board.Via{
		{Net: "SIG", Position: geometry.Point2D{X: 15, Y: 5}, LayerTo: 1, Drill: 0.3, PadDiam: 0.5},
	}

	report := Check(b, nil)
	vs := violationsOfKind(report, KindAnnularRing)
	require.Len(t, vs, 1)
	assert.Equal(t, SeverityFatal, vs[0].Severity)
	assert.Contains(t, vs[0].Detail, "0.100mm")
	assert.False(t, report.Passed)
}

func TestDrillSizeViolation(t *testing.T) {
	b := cleanBoard()
	b.Vias = []board.Via{
		{Net: "SIG", Position: geometry.Point2D{X: 15, Y: 5}, LayerTo: 1, Drill: 0.2, PadDiam: 0.8},
	}

	report := Check(b, nil)
	vs := violationsOfKind(report, KindDrillSize)
	require.Len(t, vs, 1)
	assert.Contains(t, vs[0].Detail, "0.200mm")
}

func TestOutlineViolation(t *testing.T) {
	b := cleanBoard()
	b.Tracks = append(b.Tracks, board.Track{
		Net: "SIG", Layer: 0,
		Start: geometry.Point2D{X: 25, Y: 10}, End: geometry.Point2D{X: 35, Y: 10},
		Width: 0.25,
	})

	report := Check(b, nil)
	vs := violationsOfKind(report, KindOutline)
	require.NotEmpty(t, vs)
	assert.Equal(t, SeverityFatal, vs[0].Severity)
}

func TestConnectivityDetectsBrokenNet(t *testing.T) {
	b := cleanBoard()
	// Truncate the SIG track so it never reaches R2.
	b.Tracks[0].End = geometry.Point2D{X: 15, Y: 10}

	report := Check(b, nil)
	vs := violationsOfKind(report, KindUnconnected)
	require.NotEmpty(t, vs)
	found := false
	for _, v := range vs {
		for _, item := range v.Items {
			if item == "R2.1" {
				found = true
			}
		}
	}
	assert.True(t, found, "R2.1 should be reported as stranded")
}

func TestConnectivityThroughVia(t *testing.T) {
	b := board.New("via-net", 30, 20)
	r1 := comp("R1", "R0805", 5, 10)
	r2 := comp("R2", "R0805", 25, 10)
	r1.Footprint.Pads[1].Net = "SIG"
	r2.Footprint.Pads[0].Net = "SIG"
	r1.Footprint.Pads[0].Net = "A"
	r2.Footprint.Pads[1].Net = "B"
	b.Components = []*board.Component{r1, r2}

	// The SMD pads live on layer 0, so the bottom-layer crossing needs a
	// via at each end.
	mid := geometry.Point2D{X: 15, Y: 10}
	back := geometry.Point2D{X: 22, Y: 10}
	b.Tracks = []board.Track{
		{Net: "SIG", Layer: 0, Start: r1.PadPosition(1), End: mid, Width: 0.25},
		{Net: "SIG", Layer: 1, Start: mid, End: back, Width: 0.25},
		{Net: "SIG", Layer: 0, Start: back, End: r2.PadPosition(0), Width: 0.25},
	}
	b.Vias = []board.Via{
		{Net: "SIG", Position: mid, LayerFrom: 0, LayerTo: 1, Drill: 0.3, PadDiam: 0.6},
		{Net: "SIG", Position: back, LayerFrom: 0, LayerTo: 1, Drill: 0.3, PadDiam: 0.6},
	}

	report := Check(b, nil)
	assert.Empty(t, violationsOfKind(report, KindUnconnected))
}

func TestUnassignedPadWarned(t *testing.T) {
	b := cleanBoard()
	b.Components[0].Footprint.Pads[0].Net = ""

	report := Check(b, nil)
	vs := violationsOfKind(report, KindUnconnected)
	require.NotEmpty(t, vs)
	assert.Equal(t, SeverityWarning, vs[0].Severity)
	assert.Contains(t, vs[0].Items, "pad R1.1")
}

func TestReportOrderingDeterministic(t *testing.T) {
	b := cleanBoard()
	b.Tracks[0].Width = 0.05
	b.Vias = []board.Via{
		{Net: "SIG", Position: geometry.Point2D{X: 12, Y: 5}, LayerTo: 1, Drill: 0.2, PadDiam: 0.4},
		{Net: "SIG", Position: geometry.Point2D{X: 8, Y: 5}, LayerTo: 1, Drill: 0.2, PadDiam: 0.4},
	}

	report := Check(b, nil)
	require.NotEmpty(t, report.Violations)
	for i := 1; i < len(report.Violations); i++ {
		a, b := report.Violations[i-1], report.Violations[i]
		if a.Severity != b.Severity {
			assert.Greater(t, int(a.Severity), int(b.Severity))
		} else if a.Kind == b.Kind {
			assert.LessOrEqual(t, a.Location.X, b.Location.X)
		}
	}
	assert.Equal(t, len(report.Violations), countAll(report.ByKind))
}

func countAll(byKind map[Kind]int) int {
	n := 0
	for _, c := range byKind {
		n += c
	}
	return n
}
