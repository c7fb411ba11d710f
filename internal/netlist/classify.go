package netlist

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Built-in keyword tables for name-based classification. Matching is
// case-insensitive on the upper-cased net name.
var (
	groundKeywords    = []string{"GND", "GROUND", "VSS", "AGND", "DGND"}
	powerKeywords     = []string{"VCC", "VDD", "POWER", "VBAT", "+5V", "+3V3", "+3.3V", "+12V", "-12V", "VIN"}
	clockKeywords     = []string{"CLK", "CLOCK", "OSC", "XTAL"}
	highSpeedKeywords = []string{"USB", "HDMI", "PCIE", "SATA", "ETH", "RGMII", "MIPI"}
)

// busSuffixRe splits a trailing decimal index off a net name ("DATA7" -> "DATA", 7).
var busSuffixRe = regexp.MustCompile(`^(.*?)(\d+)$`)

// Classify assigns a class, priority, and resolved rules to every net and
// returns them in routing order (priority descending, name ascending on
// ties, so the order is total and stable).
//
// Precedence: ground > power > differential-pair-member > clock >
// high-speed > bus-member > signal. Differential detection runs before bus
// grouping; a net claimed by a pair is never regrouped into a bus even if
// its name also matches a bus pattern.
func Classify(nets []RawNet, hints Hints) *OrderedNetList {
	out := &OrderedNetList{}

	// Degenerate nets are excluded up front, reported, never fatal.
	valid := make([]RawNet, 0, len(nets))
	for _, n := range nets {
		if len(n.Pins) <= 1 {
			out.Invalid = append(out.Invalid, InvalidNet{
				Name:   n.Name,
				Reason: "net has fewer than two pins",
			})
			continue
		}
		valid = append(valid, n)
	}

	// Pass 1: keyword classification.
	byName := make(map[string]*Net, len(valid))
	for _, raw := range valid {
		byName[raw.Name] = &Net{
			Name:  raw.Name,
			Pins:  append([]string(nil), raw.Pins...),
			Class: keywordClass(raw.Name, raw.Pins, hints),
		}
	}

	// Pass 2: differential pairs override clock/high-speed/signal classes
	// but never ground or power.
	detectDifferentialPairs(byName)

	// Pass 3: bus grouping among plain signals only. Differential members
	// were claimed in pass 2 and keep their class (recorded decision: pair
	// detection has precedence when naming patterns overlap).
	detectBuses(byName)

	// Resolve rules and priorities.
	for _, n := range byName {
		n.Priority = classPriority[n.Class]
		n.Rules = resolveRules(n.Class, hints.Overrides[n.Name])
		out.Nets = append(out.Nets, n)
	}

	// Total, stable order: priority descending, then name ascending.
	sort.Slice(out.Nets, func(i, j int) bool {
		if out.Nets[i].Priority != out.Nets[j].Priority {
			return out.Nets[i].Priority > out.Nets[j].Priority
		}
		return out.Nets[i].Name < out.Nets[j].Name
	})
	sort.Slice(out.Invalid, func(i, j int) bool {
		return out.Invalid[i].Name < out.Invalid[j].Name
	})

	return out
}

// keywordClass classifies a net by its name and pin hints alone.
func keywordClass(name string, pins []string, hints Hints) NetClass {
	upper := strings.ToUpper(name)

	if matchesAny(upper, groundKeywords) || matchesAny(upper, upperAll(hints.GroundNames)) {
		return ClassGround
	}
	if matchesAny(upper, powerKeywords) || matchesAny(upper, upperAll(hints.PowerNames)) {
		return ClassPower
	}
	if matchesAny(upper, clockKeywords) || touchesClockPin(pins, hints.ClockPins) {
		return ClassClock
	}
	if matchesAny(upper, highSpeedKeywords) {
		return ClassHighSpeed
	}
	return ClassSignal
}

// detectDifferentialPairs pairs nets with complementary names and symmetric
// pin topology. Both members get ClassDifferential and reference each other,
// which also gives them matched priority.
func detectDifferentialPairs(byName map[string]*Net) {
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names) // deterministic pairing order

	for _, name := range names {
		pos := byName[name]
		if pos.Class == ClassGround || pos.Class == ClassPower || pos.DiffPartner != "" {
			continue
		}
		negName, ok := complementaryName(name)
		if !ok {
			continue
		}
		neg, ok := byName[negName]
		if !ok || neg.DiffPartner != "" || neg.Class == ClassGround || neg.Class == ClassPower {
			continue
		}
		// Symmetric topology: same pin count on both members.
		if len(pos.Pins) != len(neg.Pins) {
			continue
		}
		pos.Class = ClassDifferential
		neg.Class = ClassDifferential
		pos.DiffPartner = negName
		neg.DiffPartner = name
	}
}

// complementaryName maps a positive-side net name to its negative partner.
func complementaryName(name string) (string, bool) {
	switch {
	case strings.HasSuffix(name, "_P"):
		return strings.TrimSuffix(name, "_P") + "_N", true
	case strings.HasSuffix(name, "+"):
		return strings.TrimSuffix(name, "+") + "-", true
	default:
		return "", false
	}
}

// detectBuses groups plain signal nets sharing a common prefix and a run of
// sequential numeric suffixes (>= 2 members, consecutive indexes).
func detectBuses(byName map[string]*Net) {
	type member struct {
		net   *Net
		index int
	}
	groups := make(map[string][]member)

	for _, n := range byName {
		if n.Class != ClassSignal {
			continue
		}
		m := busSuffixRe.FindStringSubmatch(n.Name)
		if m == nil || m[1] == "" {
			continue
		}
		idx, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		groups[m[1]] = append(groups[m[1]], member{net: n, index: idx})
	}

	for prefix, members := range groups {
		if len(members) < 2 {
			continue
		}
		sort.Slice(members, func(i, j int) bool { return members[i].index < members[j].index })
		// Sequential run check: distinct, consecutive indexes.
		sequential := true
		for i := 1; i < len(members); i++ {
			if members[i].index != members[i-1].index+1 {
				sequential = false
				break
			}
		}
		if !sequential {
			continue
		}
		for _, m := range members {
			m.net.Class = ClassBusMember
			m.net.BusGroup = prefix
			m.net.BusIndex = m.index
		}
	}
}

func matchesAny(upper string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(upper, kw) {
			return true
		}
	}
	return false
}

func upperAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = strings.ToUpper(n)
	}
	return out
}

func touchesClockPin(pins, clockPins []string) bool {
	for _, p := range pins {
		for _, cp := range clockPins {
			if p == cp {
				return true
			}
		}
	}
	return false
}
