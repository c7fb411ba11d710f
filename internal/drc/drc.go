// Package drc validates a routed board against manufacturing and
// electrical design rules. It is a pure validator: it never mutates the
// layout, and the same board always yields the same violation set.
package drc

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"pcb-engine/internal/board"
	"pcb-engine/internal/netlist"
	"pcb-engine/pkg/geometry"
)

// Kind identifies a violation category.
type Kind string

const (
	KindTrackWidth  Kind = "track-width"
	KindClearance   Kind = "clearance"
	KindMargin      Kind = "clearance-margin"
	KindDrillSize   Kind = "drill-size"
	KindAnnularRing Kind = "annular-ring"
	KindOutline     Kind = "board-outline"
	KindUnconnected Kind = "unconnected"
)

// Severity ranks a violation.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityFatal
)

func (s Severity) String() string {
	if s == SeverityFatal {
		return "fatal"
	}
	return "warning"
}

// violationNamespace scopes the deterministic violation IDs.
var violationNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("pcb-engine/drc"))

// Violation is one design-rule finding.
type Violation struct {
	ID       string           `json:"id"`
	Kind     Kind             `json:"kind"`
	Severity Severity         `json:"severity"`
	Location geometry.Point2D `json:"location"`
	Items    []string         `json:"items"` // offending entities
	Detail   string           `json:"detail"`
}

// newViolation builds a violation with an ID derived from its content, so
// repeated runs produce identical reports.
func newViolation(kind Kind, sev Severity, loc geometry.Point2D, detail string, items ...string) Violation {
	seed := fmt.Sprintf("%s|%.4f|%.4f|%s|%v", kind, loc.X, loc.Y, detail, items)
	return Violation{
		ID:       uuid.NewSHA1(violationNamespace, []byte(seed)).String(),
		Kind:     kind,
		Severity: sev,
		Location: loc,
		Items:    items,
		Detail:   detail,
	}
}

// Report is the full DRC result.
type Report struct {
	Violations []Violation  `json:"violations"`
	ByKind     map[Kind]int `json:"by_kind"`
	Passed     bool         `json:"passed"`
}

// maxWorkers caps the category fan-out; the categories are independent and
// their results merge by concatenation.
const maxWorkers = 8

// Check runs every rule category against the board and returns the merged,
// deterministically ordered report. nets may be nil; per-net clearance
// rules then fall back to the board minimum.
func Check(b *board.Board, nets *netlist.OrderedNetList) *Report {
	c := &checker{b: b, nets: nets}

	categories := []func() []Violation{
		c.checkTrackWidths,
		c.checkClearances,
		c.checkDrills,
		c.checkAnnularRings,
		c.checkOutline,
		c.checkConnectivity,
	}

	results := make([][]Violation, len(categories))
	sem := make(chan struct{}, maxWorkers)
	var wg sync.WaitGroup
	for i, fn := range categories {
		wg.Add(1)
		go func(i int, fn func() []Violation) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = fn()
		}(i, fn)
	}
	wg.Wait()

	report := &Report{ByKind: make(map[Kind]int)}
	for _, vs := range results {
		report.Violations = append(report.Violations, vs...)
	}

	// Order independent of execution interleaving: severity (fatal first),
	// then kind, location, detail.
	sort.Slice(report.Violations, func(i, j int) bool {
		a, b := report.Violations[i], report.Violations[j]
		if a.Severity != b.Severity {
			return a.Severity > b.Severity
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Location.X != b.Location.X {
			return a.Location.X < b.Location.X
		}
		if a.Location.Y != b.Location.Y {
			return a.Location.Y < b.Location.Y
		}
		return a.Detail < b.Detail
	})

	for _, v := range report.Violations {
		report.ByKind[v.Kind]++
	}
	report.Passed = len(report.Violations) == 0
	return report
}

// checker carries the immutable inputs shared by the categories.
type checker struct {
	b    *board.Board
	nets *netlist.OrderedNetList
}

// clearanceFor resolves a net's clearance rule.
func (c *checker) clearanceFor(net string) float64 {
	if c.nets != nil {
		if n := c.nets.ByName(net); n != nil {
			return n.Rules.MinClearance
		}
	}
	return c.b.Rules.MinClearance
}

// widthFor resolves a net's minimum track width.
func (c *checker) widthFor(net string) float64 {
	if c.nets != nil {
		if n := c.nets.ByName(net); n != nil {
			return n.Rules.MinWidth
		}
	}
	return c.b.Rules.MinTrackWidth
}
