package place

import (
	"math"
	"math/rand"
)

// allowedRotations are the orientations the annealer proposes.
// The model stores free angles; the optimizer explores the cardinal four.
var allowedRotations = []float64{0, 90, 180, 270}

// anneal runs the global simulated-annealing phase and returns the best
// placement vector found plus the accepted-cost trace. The best placement
// is threaded through the loop as an explicit value, never ambient state.
func anneal(m *costModel, cfg Config, rng *rand.Rand, res *Result) ([]pose, []float64) {
	current := m.poses()
	currentCost := m.cost(current)

	best := clonePoses(current)
	bestCost := currentCost

	t0 := cfg.InitialTempScale * m.bounds.Diagonal()
	temp := t0
	cooling := math.Pow(cfg.TempFloor/t0, 1.0/float64(cfg.AnnealIterations))

	var trace []float64
	rejections := 0

	for i := 0; i < cfg.AnnealIterations; i++ {
		res.Iterations++

		candidate := clonePoses(current)
		m.propose(candidate, temp, t0, rng)
		candidateCost := m.cost(candidate)

		delta := candidateCost - currentCost
		if delta < 0 || rng.Float64() < math.Exp(-delta/temp) {
			current = candidate
			currentCost = candidateCost
			res.AcceptedMoves++
			rejections = 0
			trace = append(trace, currentCost)

			if currentCost < bestCost {
				best = clonePoses(current)
				bestCost = currentCost
			}
		} else {
			rejections++
			if rejections >= cfg.StallIterations {
				res.Stalled = true
				break
			}
		}

		temp *= cooling
		if temp < cfg.TempFloor {
			temp = cfg.TempFloor
		}
	}

	return best, trace
}

// propose mutates the candidate vector with one random move:
// translate (temperature-scaled), rotate, or swap.
func (m *costModel) propose(ps []pose, temp, t0 float64, rng *rand.Rand) {
	switch rng.Intn(3) {
	case 0: // translate
		i := m.movable[rng.Intn(len(m.movable))]
		// Move distance shrinks with temperature.
		maxMove := (m.bounds.Diagonal() / 4) * (temp / t0)
		if maxMove < m.cfg.PlacementGrid {
			maxMove = m.cfg.PlacementGrid
		}
		ps[i].pos.X += (rng.Float64()*2 - 1) * maxMove
		ps[i].pos.Y += (rng.Float64()*2 - 1) * maxMove
		ps[i].pos = m.clampToBounds(ps[i].pos, 1.0)
	case 1: // rotate
		i := m.movable[rng.Intn(len(m.movable))]
		ps[i].rot = allowedRotations[rng.Intn(len(allowedRotations))]
	case 2: // swap
		if len(m.movable) < 2 {
			i := m.movable[0]
			ps[i].rot = allowedRotations[rng.Intn(len(allowedRotations))]
			return
		}
		a := m.movable[rng.Intn(len(m.movable))]
		b := m.movable[rng.Intn(len(m.movable))]
		for b == a {
			b = m.movable[rng.Intn(len(m.movable))]
		}
		ps[a].pos, ps[b].pos = ps[b].pos, ps[a].pos
	}
}

func clonePoses(ps []pose) []pose {
	dup := make([]pose, len(ps))
	copy(dup, ps)
	return dup
}
