// Package place arranges unlocked components to minimize estimated
// wirelength before routing. A global simulated-annealing phase explores
// the placement space; a local force-directed phase relaxes the result;
// a final snap pass aligns components to the placement grid.
package place

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/stat"

	"pcb-engine/internal/board"
	"pcb-engine/internal/netlist"
)

// Config controls both optimization phases.
type Config struct {
	AnnealIterations int     `json:"anneal_iterations"`
	InitialTempScale float64 `json:"initial_temp_scale"` // T0 = scale * outline bbox diagonal
	TempFloor        float64 `json:"temp_floor"`
	StallIterations  int     `json:"stall_iterations"` // stop after this many consecutive rejections

	ForceIterations      int     `json:"force_iterations"`
	Damping              float64 `json:"damping"`
	ConvergenceThreshold float64 `json:"convergence_threshold"` // mm of total displacement

	PlacementGrid float64 `json:"placement_grid"` // snap resolution, mm

	OverlapWeight float64 `json:"overlap_weight"`
	OutlineWeight float64 `json:"outline_weight"`
}

// DefaultConfig returns the standard optimization parameters.
func DefaultConfig() Config {
	return Config{
		AnnealIterations:     2000,
		InitialTempScale:     1.0,
		TempFloor:            0.01,
		StallIterations:      400,
		ForceIterations:      150,
		Damping:              0.85,
		ConvergenceThreshold: 0.05,
		PlacementGrid:        0.5,
		OverlapWeight:        10.0,
		OutlineWeight:        20.0,
	}
}

// Result reports what the optimizer did.
type Result struct {
	InitialCost   float64 `json:"initial_cost"`
	AnnealedCost  float64 `json:"annealed_cost"`
	FinalCost     float64 `json:"final_cost"`
	AcceptedMoves int     `json:"accepted_moves"`
	Iterations    int     `json:"iterations"`
	Stalled       bool    `json:"stalled"`

	// Cost trace statistics over the annealing run.
	CostMean float64 `json:"cost_mean"`
	CostStd  float64 `json:"cost_std"`
}

// Optimize positions and orients the board's unlocked components in place.
// Given the same board, nets, config, and seed the final placement is
// bit-identical across runs.
func Optimize(b *board.Board, nets *netlist.OrderedNetList, cfg Config, seed int64) (*Result, error) {
	if err := checkFeasible(b); err != nil {
		return nil, err
	}

	model := newCostModel(b, nets, cfg)
	if len(model.movable) == 0 {
		c := model.cost(model.poses())
		return &Result{InitialCost: c, AnnealedCost: c, FinalCost: c}, nil
	}

	rng := rand.New(rand.NewSource(seed))
	res := &Result{InitialCost: model.cost(model.poses())}

	// Global phase.
	best, trace := anneal(model, cfg, rng, res)
	model.apply(best)
	res.AnnealedCost = model.cost(best)
	if len(trace) > 0 {
		res.CostMean = stat.Mean(trace, nil)
		res.CostStd = stat.StdDev(trace, nil)
	}

	// Local phase.
	relax(model, cfg)

	// Snap to the placement grid and clear residual overlap.
	snapToGrid(model, cfg)

	res.FinalCost = model.cost(model.poses())
	return res, nil
}

// checkFeasible rejects placements that cannot possibly fit: total
// component area larger than the outline area. Anything milder degrades to
// placement cost instead of an error.
func checkFeasible(b *board.Board) error {
	outlineArea := b.Bounds().Area()
	var total float64
	for _, c := range b.Components {
		total += c.Area()
	}
	if total > outlineArea {
		return fmt.Errorf("total component area %.1fmm2 exceeds board area %.1fmm2: %w",
			total, outlineArea, ErrInfeasible)
	}
	return nil
}

// ErrInfeasible marks placements with no valid starting layout.
var ErrInfeasible = fmt.Errorf("infeasible placement")
