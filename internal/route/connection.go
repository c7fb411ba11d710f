package route

import (
	"context"
	"errors"

	"pcb-engine/internal/board"
	"pcb-engine/pkg/geometry"
)

// routeConnection searches, revalidates, and commits one connection.
// Returns the number of tracks and vias committed.
func (r *router) routeConnection(ctx context.Context, conn connection) (int, int, error) {
	steps, err := r.search(ctx, conn)
	if err != nil {
		if r.cfg.RipUpEnabled &&
			(errors.Is(err, errNoPath) || errors.Is(err, errBudgetExceeded)) &&
			r.tryRipUp(conn) {
			steps, err = r.search(ctx, conn)
		}
		if err != nil {
			return 0, 0, err
		}
	}

	// Feasibility is rechecked cell-by-cell immediately before commit;
	// commits since the search may have claimed cells it assumed free.
	own := r.markClearance(conn.net.Name)
	for _, s := range steps {
		if r.g.BlockedFor(conn.net.Name, s.layer, s.cell, own) {
			return 0, 0, errCommitInvalidated
		}
	}

	return r.commit(conn, steps)
}

// commit converts the raw grid path into simplified tracks plus vias,
// appends them to the board, and stamps their occupancy into the grid.
func (r *router) commit(conn connection, steps []pathStep) (int, int, error) {
	net := conn.net
	width := net.Rules.MinWidth
	clearance := r.markClearance(net.Name)

	runs := r.splitRuns(steps)
	if len(runs) == 0 {
		return 0, 0, errNoPath
	}

	// Anchor the path ends on the actual pad centers so connectivity does
	// not depend on grid rounding.
	runs[0].points[0] = conn.from.Position
	last := &runs[len(runs)-1]
	last.points[len(last.points)-1] = conn.to.Position

	_, _, layers := r.g.Dims()
	tracks, vias := 0, 0

	for i := range runs {
		pts := Simplify(runs[i].points, r.cfg.SimplifyEpsilon)
		for j := 1; j < len(pts); j++ {
			if pts[j] == pts[j-1] {
				continue
			}
			t := board.Track{
				Net:   net.Name,
				Layer: runs[i].layer,
				Start: pts[j-1],
				End:   pts[j],
				Width: width,
			}
			r.b.Tracks = append(r.b.Tracks, t)
			r.g.MarkTrack(net.Name, t.Layer, t.Start, t.End, width, clearance, r.reach)
			tracks++
		}

		// A layer change between runs is a through via at the transition point.
		if i+1 < len(runs) {
			pos := transitionPoint(runs[i], runs[i+1])
			v := board.Via{
				Net:       net.Name,
				Position:  pos,
				LayerFrom: 0,
				LayerTo:   layers - 1,
				Drill:     net.Rules.ViaDrill,
				PadDiam:   net.Rules.ViaDiam,
			}
			r.b.Vias = append(r.b.Vias, v)
			r.g.MarkVia(net.Name, pos, v.PadDiam, clearance, r.reach, v.LayerFrom, v.LayerTo)
			vias++
		}
	}

	return tracks, vias, nil
}

// transitionPoint is the shared (x,y) where one run hands off to the next.
func transitionPoint(a, b layerRun) geometry.Point2D {
	return b.points[0]
}

// tryRipUp uncommits lower-priority nets blocking the direct corridor
// between the connection's endpoints. Each net is ripped at most once per
// routing pass; ripped nets are requeued by the caller. Returns true if
// anything was uncommitted.
func (r *router) tryRipUp(conn connection) bool {
	blockers := r.corridorBlockers(conn)
	if len(blockers) == 0 {
		return false
	}

	ripped := false
	for _, net := range blockers {
		other := r.nets.ByName(net)
		if other == nil || r.ripped[net] {
			continue
		}
		if other.Priority >= conn.net.Priority {
			continue
		}
		// Only committed copper is worth ripping; a net whose corridor
		// presence is just its pad stamps frees nothing.
		tracks, vias := r.b.RemoveNet(net)
		if tracks == 0 && vias == 0 {
			continue
		}
		r.log.Debug("ripping up net", "net", net, "for", conn.net.Name)
		r.g.Unmark(net)
		r.remarkNetPads(net)
		r.ripped[net] = true
		ripped = true
	}
	return ripped
}

// corridorBlockers lists nets occupying the straight-line corridor between
// the connection endpoints, on any copper layer, in first-seen order.
func (r *router) corridorBlockers(conn connection) []string {
	a := r.g.ToCell(conn.from.Position)
	b := r.g.ToCell(conn.to.Position)
	_, _, layers := r.g.Dims()

	seen := make(map[string]bool)
	var blockers []string
	note := func(cell geometry.PointInt) {
		for l := 0; l < layers; l++ {
			for _, net := range r.g.NetsAt(l, cell) {
				if net == conn.net.Name || net == obstacleNet || seen[net] {
					continue
				}
				seen[net] = true
				blockers = append(blockers, net)
			}
		}
	}

	// Bresenham walk of the corridor.
	dx := abs(b.X - a.X)
	dy := abs(b.Y - a.Y)
	sx, sy := 1, 1
	if a.X > b.X {
		sx = -1
	}
	if a.Y > b.Y {
		sy = -1
	}
	err := dx - dy
	x, y := a.X, a.Y
	for {
		note(geometry.PointInt{X: x, Y: y})
		if x == b.X && y == b.Y {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x += sx
		}
		if e2 < dx {
			err += dx
			y += sy
		}
	}
	return blockers
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
