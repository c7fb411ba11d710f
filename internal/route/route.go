// Package route connects classified nets with track and via geometry.
// Nets route in priority order; multi-pin nets decompose into a minimum
// spanning tree of point-to-point connections; each connection is found by
// grid-based A* and simplified before commit. Failures degrade the net's
// result, never the run.
package route

import (
	"context"
	"fmt"
	"log/slog"

	"pcb-engine/internal/board"
	"pcb-engine/internal/grid"
	"pcb-engine/internal/netlist"
)

// obstacleNet keys grid occupancy that belongs to no routable net
// (unassigned pads, keep-outs). It never matches a net name.
const obstacleNet = "!static"

// Config controls the router.
type Config struct {
	GridResolution   float64 `json:"grid_resolution"`   // mm per cell
	ViaPenalty       float64 `json:"via_penalty"`       // cost of one layer change
	ProximityPenalty float64 `json:"proximity_penalty"` // extra cost per foreign proximity stamp
	MaxExpansions    int     `json:"max_expansions"`    // A* budget per connection
	SimplifyEpsilon  float64 `json:"simplify_epsilon"`  // mm, Douglas-Peucker tolerance
	RipUpEnabled     bool    `json:"rip_up_enabled"`

	// PairLengthTolerance is the allowed routed-length mismatch between
	// differential pair members before meanders are added; 0 disables
	// length matching.
	PairLengthTolerance float64 `json:"pair_length_tolerance"`
	// MeanderAmplitude is the serpentine wave amplitude in mm.
	MeanderAmplitude float64 `json:"meander_amplitude"`
}

// DefaultConfig returns the standard routing parameters.
func DefaultConfig() Config {
	return Config{
		GridResolution:      0.25,
		ViaPenalty:          5.0,
		ProximityPenalty:    1.0,
		MaxExpansions:       200000,
		SimplifyEpsilon:     0.05,
		RipUpEnabled:        true,
		PairLengthTolerance: 0.5,
		MeanderAmplitude:    1.0,
	}
}

// Status is the routing outcome for one net.
type Status int

const (
	StatusRouted Status = iota
	StatusPartial
	StatusUnrouted
)

func (s Status) String() string {
	switch s {
	case StatusRouted:
		return "routed"
	case StatusPartial:
		return "partially-routed"
	case StatusUnrouted:
		return "unrouted"
	default:
		return "unknown"
	}
}

// Result is the per-net routing report.
type Result struct {
	Net         string   `json:"net"`
	Status      Status   `json:"status"`
	Connections int      `json:"connections"`
	Routed      int      `json:"routed"`
	Failed      []string `json:"failed,omitempty"` // "REF.PAD -> REF.PAD"
	TrackCount  int      `json:"track_count"`
	ViaCount    int      `json:"via_count"`
	RippedUp    bool     `json:"ripped_up,omitempty"`

	// Length is the total committed track length in mm.
	Length float64 `json:"length,omitempty"`
	// LengthMatched marks a differential pair member that received
	// meanders to match its partner's length.
	LengthMatched bool `json:"length_matched,omitempty"`
}

// connection is one point-to-point routing task.
type connection struct {
	net  *netlist.Net
	from board.PadRef
	to   board.PadRef
	// retried marks a connection requeued after commit-time invalidation.
	retried bool
}

// router carries the mutable routing state for one pass.
type router struct {
	b      *board.Board
	g      *grid.Grid
	nets   *netlist.OrderedNetList
	cfg    Config
	log    *slog.Logger
	ripped map[string]bool // nets already ripped up this pass

	// clearMargin inflates every clearance ring stamped into the grid.
	// The search places track centerlines on cell centers, and commit may
	// then move the polyline by up to SimplifyEpsilon (simplification)
	// plus half a cell (pad anchoring). The margin covers those shifts
	// plus half the widest track any net may route with, so committed
	// copper edges keep the full rule distance.
	clearMargin float64

	// reach is how far beyond the copper edge occupancy entries extend.
	// It covers the largest clearance any net resolves to, so a searching
	// net can enforce its own rule against already-stamped copper.
	reach float64
}

// Route connects every net in priority order, committing tracks and vias
// onto the board and returning one Result per net in the same order.
func Route(ctx context.Context, b *board.Board, nets *netlist.OrderedNetList, cfg Config, log *slog.Logger) ([]Result, error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg.GridResolution <= 0 {
		return nil, fmt.Errorf("grid resolution must be positive, got %g", cfg.GridResolution)
	}

	r := &router{
		b:      b,
		g:      grid.New(b, cfg.GridResolution),
		nets:   nets,
		cfg:    cfg,
		log:    log,
		ripped: make(map[string]bool),
	}
	halfW := b.Rules.MinTrackWidth / 2
	maxClear := b.Rules.MinClearance
	for _, net := range nets.Nets {
		if hw := net.Rules.MinWidth / 2; hw > halfW {
			halfW = hw
		}
		if net.Rules.MinClearance > maxClear {
			maxClear = net.Rules.MinClearance
		}
	}
	r.clearMargin = halfW + cfg.SimplifyEpsilon + cfg.GridResolution/2
	r.reach = maxClear + r.clearMargin + 2*cfg.GridResolution
	r.markStatic()

	results := make([]Result, 0, len(nets.Nets))
	resultIdx := make(map[string]int, len(nets.Nets))

	for _, net := range nets.Nets {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res := r.routeNet(ctx, net)
		resultIdx[net.Name] = len(results)
		results = append(results, res)
	}

	// Rip-up pass: nets uncommitted to free space for priority nets get
	// exactly one more attempt. Anything the main pass committed for them
	// is cleared first so the reroute never duplicates copper.
	for _, net := range nets.Nets {
		if !r.ripped[net.Name] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return results, err
		}
		r.b.RemoveNet(net.Name)
		r.g.Unmark(net.Name)
		r.remarkNetPads(net.Name)
		res := r.routeNet(ctx, net)
		res.RippedUp = true
		results[resultIdx[net.Name]] = res
	}

	for i := range results {
		results[i].Length = r.netLength(results[i].Net)
	}
	if cfg.PairLengthTolerance > 0 {
		r.matchPairLengths(results, resultIdx)
	}

	return results, nil
}

// markStatic stamps every pad (and any pre-existing tracks/vias) into the
// grid. Pads keyed by their net so a net can always reach its own pads;
// unassigned pads block everyone.
func (r *router) markStatic() {
	for _, c := range r.b.Components {
		for i := range c.Footprint.Pads {
			r.markPad(c, i)
		}
	}
	for _, t := range r.b.Tracks {
		r.g.MarkTrack(t.Net, t.Layer, t.Start, t.End, t.Width, r.markClearance(t.Net), r.reach)
	}
	for _, v := range r.b.Vias {
		r.g.MarkVia(v.Net, v.Position, v.PadDiam, r.markClearance(v.Net), r.reach, v.LayerFrom, v.LayerTo)
	}
}

// markPad stamps the pad's copper stroke, so fine-pitch rect pads block
// only their real footprint rather than a bounding disk.
func (r *router) markPad(c *board.Component, i int) {
	pad := c.Footprint.Pads[i]
	key := pad.Net
	if key == "" {
		key = obstacleNet
	}
	clearance := r.markClearance(pad.Net)
	seg, halfW := c.PadStroke(i)
	_, _, layers := r.g.Dims()
	if pad.Drill > 0 {
		for l := 0; l < layers; l++ {
			r.g.MarkTrack(key, l, seg.Start, seg.End, 2*halfW, clearance, r.reach)
		}
		return
	}
	for _, l := range pad.Layers {
		r.g.MarkTrack(key, l, seg.Start, seg.End, 2*halfW, clearance, r.reach)
	}
}

// remarkNetPads restores a ripped-up net's pad obstacles after Unmark.
func (r *router) remarkNetPads(net string) {
	for _, c := range r.b.Components {
		for i := range c.Footprint.Pads {
			if c.Footprint.Pads[i].Net == net {
				r.markPad(c, i)
			}
		}
	}
}

// clearanceFor resolves a net's clearance rule, falling back to the board
// minimum for unclassified nets.
func (r *router) clearanceFor(net string) float64 {
	if n := r.nets.ByName(net); n != nil {
		return n.Rules.MinClearance
	}
	return r.b.Rules.MinClearance
}

// markClearance is the ring width used when stamping copper into the
// grid: the net's rule plus the commit-shift margin.
func (r *router) markClearance(net string) float64 {
	return r.clearanceFor(net) + r.clearMargin
}

// routeNet routes all of one net's connections.
func (r *router) routeNet(ctx context.Context, net *netlist.Net) Result {
	res := Result{Net: net.Name}

	pads := r.b.PadsOnNet(net.Name)
	if len(pads) < 2 {
		res.Status = StatusUnrouted
		return res
	}

	conns := r.connections(net, pads)
	res.Connections = len(conns)

	queue := conns
	for len(queue) > 0 {
		conn := queue[0]
		queue = queue[1:]

		if err := ctx.Err(); err != nil {
			res.Failed = append(res.Failed, connLabel(conn))
			continue
		}

		tracks, vias, err := r.routeConnection(ctx, conn)
		switch {
		case err == nil:
			res.Routed++
			res.TrackCount += tracks
			res.ViaCount += vias
		case err == errCommitInvalidated && !conn.retried:
			// Another commit invalidated cells the search assumed free.
			// Requeue for a fresh search rather than committing stale state.
			conn.retried = true
			queue = append(queue, conn)
		default:
			r.log.Debug("connection unroutable",
				"net", net.Name, "from", conn.from.ID(), "to", conn.to.ID(), "err", err)
			res.Failed = append(res.Failed, connLabel(conn))
		}
	}

	switch {
	case res.Routed == res.Connections:
		res.Status = StatusRouted
	case res.Routed == 0:
		res.Status = StatusUnrouted
	default:
		res.Status = StatusPartial
	}
	return res
}

// connections decomposes a net into point-to-point tasks. Two pins connect
// directly; more pins connect along a minimum spanning tree by Euclidean
// pad distance.
func (r *router) connections(net *netlist.Net, pads []board.PadRef) []connection {
	if len(pads) == 2 {
		return []connection{{net: net, from: pads[0], to: pads[1]}}
	}
	edges := spanningEdges(pads)
	conns := make([]connection, 0, len(edges))
	for _, e := range edges {
		conns = append(conns, connection{net: net, from: pads[e.a], to: pads[e.b]})
	}
	return conns
}

func connLabel(c connection) string {
	return c.from.ID() + " -> " + c.to.ID()
}
