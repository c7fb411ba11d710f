// Package netlist classifies nets and derives per-class electrical rules.
// Classification runs before placement and routing; its output is a totally
// ordered net list that fixes the routing order.
package netlist

import (
	"fmt"
)

// NetClass is the electrical classification of a net.
type NetClass int

// Classes in ascending routing priority. Ground routes first (largest
// copper, least flexible), generic signals last.
const (
	ClassSignal NetClass = iota
	ClassBusMember
	ClassHighSpeed
	ClassClock
	ClassDifferential
	ClassPower
	ClassGround
)

func (c NetClass) String() string {
	switch c {
	case ClassGround:
		return "ground"
	case ClassPower:
		return "power"
	case ClassDifferential:
		return "differential"
	case ClassClock:
		return "clock"
	case ClassHighSpeed:
		return "high-speed"
	case ClassBusMember:
		return "bus-member"
	case ClassSignal:
		return "signal"
	default:
		return "unknown"
	}
}

// RawNet is an unclassified net as delivered by the netlist importer.
type RawNet struct {
	Name string   `json:"name"`
	Pins []string `json:"pins"` // "REF.PAD" identifiers
}

// RuleOverride is a per-net rule override; zero fields inherit the class default.
type RuleOverride struct {
	MinWidth        float64 `json:"min_width,omitempty"`
	MinClearance    float64 `json:"min_clearance,omitempty"`
	TargetImpedance float64 `json:"target_impedance,omitempty"`
}

// Hints carries naming and connectivity hints from the importer.
type Hints struct {
	// Extra names treated as ground / power rails beyond the built-in keywords.
	GroundNames []string `json:"ground_names,omitempty"`
	PowerNames  []string `json:"power_names,omitempty"`
	// Pins known to be clock-capable ("REF.PAD"); a net touching one is a clock net.
	ClockPins []string `json:"clock_pins,omitempty"`
	// Per-net rule overrides, keyed by net name.
	Overrides map[string]RuleOverride `json:"overrides,omitempty"`
}

// Rules is the resolved electrical rule set a net routes under.
type Rules struct {
	MinWidth        float64 `json:"min_width"`     // mm
	MinClearance    float64 `json:"min_clearance"` // mm
	ViaDrill        float64 `json:"via_drill"`     // mm
	ViaDiam         float64 `json:"via_diam"`      // mm
	TargetImpedance float64 `json:"target_impedance,omitempty"` // ohms, 0 = unconstrained
}

// Net is a classified net with its resolved rules.
// Class-specific fields are populated only for the matching class.
type Net struct {
	Name     string   `json:"name"`
	Pins     []string `json:"pins"`
	Class    NetClass `json:"class"`
	Priority int      `json:"priority"`
	Rules    Rules    `json:"rules"`

	// DiffPartner names the other member when Class == ClassDifferential.
	DiffPartner string `json:"diff_partner,omitempty"`
	// BusGroup names the shared prefix when Class == ClassBusMember.
	BusGroup string `json:"bus_group,omitempty"`
	// BusIndex is the numeric suffix within the bus group.
	BusIndex int `json:"bus_index,omitempty"`
}

// InvalidNet records a net excluded from routing and why.
type InvalidNet struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

func (e InvalidNet) Error() string {
	return fmt.Sprintf("invalid net %s: %s", e.Name, e.Reason)
}

// OrderedNetList is the classifier output: nets in routing order plus
// the nets excluded as degenerate.
type OrderedNetList struct {
	Nets    []*Net       `json:"nets"`
	Invalid []InvalidNet `json:"invalid,omitempty"`
}

// ByName returns the classified net with the given name, or nil.
func (l *OrderedNetList) ByName(name string) *Net {
	for _, n := range l.Nets {
		if n.Name == name {
			return n
		}
	}
	return nil
}

// classPriority maps each class to its routing priority. Higher routes first.
var classPriority = map[NetClass]int{
	ClassGround:       100,
	ClassPower:        90,
	ClassDifferential: 80,
	ClassClock:        70,
	ClassHighSpeed:    60,
	ClassBusMember:    50,
	ClassSignal:       40,
}

// classRules maps each class to its default rule set.
// Values follow common fab capabilities: power nets carry more copper,
// clocks and high-speed nets keep extra clearance for EMI.
var classRules = map[NetClass]Rules{
	ClassGround:       {MinWidth: 0.5, MinClearance: 0.3, ViaDrill: 0.4, ViaDiam: 0.8},
	ClassPower:        {MinWidth: 0.5, MinClearance: 0.3, ViaDrill: 0.4, ViaDiam: 0.8},
	ClassDifferential: {MinWidth: 0.15, MinClearance: 0.3, ViaDrill: 0.3, ViaDiam: 0.5, TargetImpedance: 100},
	ClassClock:        {MinWidth: 0.25, MinClearance: 0.3, ViaDrill: 0.3, ViaDiam: 0.6},
	ClassHighSpeed:    {MinWidth: 0.2, MinClearance: 0.3, ViaDrill: 0.3, ViaDiam: 0.5, TargetImpedance: 50},
	ClassBusMember:    {MinWidth: 0.25, MinClearance: 0.2, ViaDrill: 0.3, ViaDiam: 0.6},
	ClassSignal:       {MinWidth: 0.25, MinClearance: 0.2, ViaDrill: 0.3, ViaDiam: 0.6},
}

// resolveRules applies a per-net override on top of the class defaults.
func resolveRules(class NetClass, override RuleOverride) Rules {
	r := classRules[class]
	if override.MinWidth > 0 {
		r.MinWidth = override.MinWidth
	}
	if override.MinClearance > 0 {
		r.MinClearance = override.MinClearance
	}
	if override.TargetImpedance > 0 {
		r.TargetImpedance = override.TargetImpedance
	}
	return r
}
