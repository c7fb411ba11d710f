package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"pcb-engine/internal/board"
	"pcb-engine/internal/engine"
	"pcb-engine/internal/netlist"
	"pcb-engine/internal/route"
)

var (
	runOut           string
	runSeed          int64
	runStrict        bool
	runSkipPlacement bool
	runGrid          float64
)

var runCmd = &cobra.Command{
	Use:   "run <board.json> <netlist.json>",
	Short: "Run the full pipeline: classify, place, route, check",
	Args:  cobra.ExactArgs(2),
	RunE:  runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVarP(&runOut, "out", "o", "routed.json", "output board file")
	runCmd.Flags().Int64Var(&runSeed, "seed", 1, "random seed for placement")
	runCmd.Flags().BoolVar(&runStrict, "strict", false, "fail on invalid nets, unrouted connections, or fatal DRC findings")
	runCmd.Flags().BoolVar(&runSkipPlacement, "skip-placement", false, "route with component positions as given")
	runCmd.Flags().Float64Var(&runGrid, "grid", 0, "routing grid resolution in mm (0 = default)")
}

func runRun(cmd *cobra.Command, args []string) error {
	b, nets, err := loadInputs(args[0], args[1])
	if err != nil {
		return err
	}

	cfg := engine.DefaultConfig()
	cfg.Seed = runSeed
	cfg.Strict = runStrict
	cfg.SkipPlacement = runSkipPlacement
	cfg.Hints = nets.Hints
	if runGrid > 0 {
		cfg.Route.GridResolution = runGrid
	}

	out, runErr := engine.Run(context.Background(), b, nets.Nets, cfg, slog.Default())
	if out != nil {
		printSummary(out)
		if err := b.SaveToFile(runOut); err != nil {
			return fmt.Errorf("write %s: %w", runOut, err)
		}
		fmt.Printf("wrote %s\n", runOut)
	}
	return runErr
}

func loadInputs(boardPath, netlistPath string) (*board.Board, *netlist.File, error) {
	b, err := board.LoadFromFile(boardPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load board: %w", err)
	}
	nets, err := netlist.LoadFromFile(netlistPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load netlist: %w", err)
	}
	return b, nets, nil
}

func printSummary(out *engine.Outcome) {
	fmt.Printf("Nets: %d classified, %d excluded\n", len(out.Nets.Nets), len(out.Nets.Invalid))
	for _, inv := range out.Nets.Invalid {
		fmt.Printf("  excluded %s: %s\n", inv.Name, inv.Reason)
	}

	if out.Placement != nil {
		fmt.Printf("Placement: cost %.2f -> %.2f in %d iterations (anneal mean %.2f, std %.2f)\n",
			out.Placement.InitialCost, out.Placement.FinalCost, out.Placement.Iterations,
			out.Placement.CostMean, out.Placement.CostStd)
	}

	if out.Routing != nil {
		routed := 0
		for _, r := range out.Routing {
			if r.Status == route.StatusRouted {
				routed++
			}
		}
		fmt.Printf("Routing: %d/%d nets routed, %d tracks, %d vias\n",
			routed, len(out.Routing), len(out.Board.Tracks), len(out.Board.Vias))
		for _, r := range out.Routing {
			if r.Status == route.StatusRouted {
				continue
			}
			fmt.Printf("  %s %s (%d/%d connections)\n", r.Net, r.Status, r.Routed, r.Connections)
		}
	}

	if out.DRC != nil {
		fmt.Printf("DRC: %d violation(s)\n", len(out.DRC.Violations))
		for _, v := range out.DRC.Violations {
			fmt.Printf("  [%s] %s at (%.2f, %.2f): %s\n",
				v.Severity, v.Kind, v.Location.X, v.Location.Y, v.Detail)
		}
	}
}
