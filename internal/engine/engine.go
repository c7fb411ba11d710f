// Package engine orchestrates the full layout pipeline: netlist binding
// and classification, placement optimization, routing, and design rule
// checking. Each stage degrades gracefully; the outcome always carries
// whatever the pipeline produced.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pcb-engine/internal/board"
	"pcb-engine/internal/drc"
	"pcb-engine/internal/netlist"
	"pcb-engine/internal/place"
	"pcb-engine/internal/route"
)

// Pipeline failure kinds. Strict mode promotes degraded stages to these.
var (
	ErrInvalidNet           = errors.New("netlist contains invalid nets")
	ErrInfeasiblePlacement  = errors.New("placement infeasible")
	ErrUnroutableConnection = errors.New("one or more connections unroutable")
	ErrBudgetExceeded       = errors.New("run budget exhausted")
	ErrRuleViolation        = errors.New("design rule violations")
)

// Config controls a pipeline run.
type Config struct {
	Seed  int64         `json:"seed"`
	Hints netlist.Hints `json:"hints"`
	Place place.Config  `json:"place"`
	Route route.Config  `json:"route"`

	// SkipPlacement routes the board with component positions as given.
	SkipPlacement bool `json:"skip_placement,omitempty"`
	// SkipRouting stops the pipeline after placement; no routing, no DRC.
	SkipRouting bool `json:"skip_routing,omitempty"`
	// Strict turns degraded outcomes (invalid nets, unrouted connections,
	// fatal DRC findings) into errors instead of report entries.
	Strict bool `json:"strict,omitempty"`
}

// DefaultConfig returns the standard pipeline parameters.
func DefaultConfig() Config {
	return Config{
		Seed:  1,
		Place: place.DefaultConfig(),
		Route: route.DefaultConfig(),
	}
}

// Outcome is the consolidated result of a pipeline run.
type Outcome struct {
	Board     *board.Board            `json:"board"`
	Nets      *netlist.OrderedNetList `json:"nets"`
	Placement *place.Result           `json:"placement,omitempty"`
	Routing   []route.Result          `json:"routing,omitempty"`
	DRC       *drc.Report             `json:"drc,omitempty"`
}

// FullyRouted reports whether every net routed completely.
func (o *Outcome) FullyRouted() bool {
	for _, r := range o.Routing {
		if r.Status != route.StatusRouted {
			return false
		}
	}
	return true
}

// FailedConnections lists every connection the router gave up on.
func (o *Outcome) FailedConnections() []string {
	var failed []string
	for _, r := range o.Routing {
		for _, f := range r.Failed {
			failed = append(failed, r.Net+": "+f)
		}
	}
	return failed
}

// Run executes the pipeline on the board with the given raw netlist. The
// board is mutated in place: pads get net assignments, components move
// during placement, tracks and vias are appended during routing.
func Run(ctx context.Context, b *board.Board, rawNets []netlist.RawNet, cfg Config, log *slog.Logger) (*Outcome, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("invalid board: %w", err)
	}

	out := &Outcome{Board: b}

	// Stage 1: bind pins to pads and classify.
	start := time.Now()
	bound, bindInvalid := bindNetlist(b, rawNets)
	out.Nets = netlist.Classify(bound, cfg.Hints)
	out.Nets.Invalid = append(bindInvalid, out.Nets.Invalid...)
	for _, inv := range out.Nets.Invalid {
		log.Warn("net excluded", "net", inv.Name, "reason", inv.Reason)
	}
	log.Info("netlist classified",
		"nets", len(out.Nets.Nets), "invalid", len(out.Nets.Invalid),
		"elapsed", time.Since(start))
	if cfg.Strict && len(out.Nets.Invalid) > 0 {
		return out, fmt.Errorf("%w: %d excluded", ErrInvalidNet, len(out.Nets.Invalid))
	}

	// Stage 2: placement.
	if !cfg.SkipPlacement {
		start = time.Now()
		res, err := place.Optimize(b, out.Nets, cfg.Place, cfg.Seed)
		if err != nil {
			if errors.Is(err, place.ErrInfeasible) {
				return out, fmt.Errorf("%w: %w", ErrInfeasiblePlacement, err)
			}
			return out, fmt.Errorf("placement: %w", err)
		}
		out.Placement = res
		log.Info("placement optimized",
			"initial_cost", res.InitialCost, "final_cost", res.FinalCost,
			"cost_mean", res.CostMean, "cost_std", res.CostStd,
			"iterations", res.Iterations, "elapsed", time.Since(start))
	}

	if cfg.SkipRouting {
		return out, nil
	}

	// Stage 3: routing.
	start = time.Now()
	routing, err := route.Route(ctx, b, out.Nets, cfg.Route, log)
	out.Routing = routing
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return out, fmt.Errorf("%w: %w", ErrBudgetExceeded, err)
		}
		return out, fmt.Errorf("routing: %w", err)
	}
	routed := 0
	for _, r := range routing {
		if r.Status == route.StatusRouted {
			routed++
		}
	}
	log.Info("routing finished",
		"routed", routed, "total", len(routing),
		"tracks", len(b.Tracks), "vias", len(b.Vias),
		"elapsed", time.Since(start))
	if cfg.Strict && !out.FullyRouted() {
		return out, fmt.Errorf("%w: %s",
			ErrUnroutableConnection, strings.Join(out.FailedConnections(), "; "))
	}

	// Stage 4: DRC.
	start = time.Now()
	out.DRC = drc.Check(b, out.Nets)
	fatal := 0
	for _, v := range out.DRC.Violations {
		if v.Severity == drc.SeverityFatal {
			fatal++
		}
	}
	log.Info("drc finished",
		"violations", len(out.DRC.Violations), "fatal", fatal,
		"elapsed", time.Since(start))
	if cfg.Strict && fatal > 0 {
		return out, fmt.Errorf("%w: %d fatal", ErrRuleViolation, fatal)
	}

	return out, nil
}

// bindNetlist assigns each raw net's pins to board pads. Nets referencing
// missing pads, or pads already claimed by another net, are excluded and
// reported; they never abort the run.
func bindNetlist(b *board.Board, rawNets []netlist.RawNet) ([]netlist.RawNet, []netlist.InvalidNet) {
	var bound []netlist.RawNet
	var invalid []netlist.InvalidNet

	type padSlot struct {
		comp *board.Component
		idx  int
	}

	for _, raw := range rawNets {
		var slots []padSlot
		reason := ""
		for _, pin := range raw.Pins {
			ref, padName, ok := strings.Cut(pin, ".")
			if !ok {
				reason = fmt.Sprintf("malformed pin %q", pin)
				break
			}
			comp := b.FindComponent(ref)
			if comp == nil {
				reason = fmt.Sprintf("pin %s references unknown component %s", pin, ref)
				break
			}
			pad, idx := comp.PadByName(padName)
			if pad == nil {
				reason = fmt.Sprintf("pin %s references unknown pad %s on %s", pin, padName, ref)
				break
			}
			if pad.Net != "" && pad.Net != raw.Name {
				reason = fmt.Sprintf("pin %s already assigned to net %s", pin, pad.Net)
				break
			}
			slots = append(slots, padSlot{comp: comp, idx: idx})
		}
		if reason != "" {
			invalid = append(invalid, netlist.InvalidNet{Name: raw.Name, Reason: reason})
			continue
		}
		for _, s := range slots {
			s.comp.Footprint.Pads[s.idx].Net = raw.Name
		}
		bound = append(bound, raw)
	}
	return bound, invalid
}
