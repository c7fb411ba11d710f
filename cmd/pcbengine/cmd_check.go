package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pcb-engine/internal/board"
	"pcb-engine/internal/drc"
	"pcb-engine/internal/netlist"
)

var checkNetlistPath string

var checkCmd = &cobra.Command{
	Use:   "check <board.json>",
	Short: "Run design rule checks on a routed board",
	Long: `Validates a board against its design rules: track widths, copper
clearances, drill sizes, annular rings, the board outline, and net
connectivity. With --netlist, per-net rules from classification apply;
otherwise the board minimums are used throughout.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().StringVar(&checkNetlistPath, "netlist", "", "netlist file for per-net rules")
}

func runCheck(cmd *cobra.Command, args []string) error {
	b, err := board.LoadFromFile(args[0])
	if err != nil {
		return fmt.Errorf("load board: %w", err)
	}

	var nets *netlist.OrderedNetList
	if checkNetlistPath != "" {
		f, err := netlist.LoadFromFile(checkNetlistPath)
		if err != nil {
			return fmt.Errorf("load netlist: %w", err)
		}
		nets = netlist.Classify(f.Nets, f.Hints)
	}

	report := drc.Check(b, nets)
	if report.Passed {
		fmt.Println("DRC passed: no violations")
		return nil
	}

	fmt.Printf("DRC: %d violation(s)\n", len(report.Violations))
	for _, v := range report.Violations {
		fmt.Printf("  [%s] %s at (%.2f, %.2f): %s\n",
			v.Severity, v.Kind, v.Location.X, v.Location.Y, v.Detail)
		for _, item := range v.Items {
			fmt.Printf("      %s\n", item)
		}
	}
	return fmt.Errorf("%d design rule violation(s)", len(report.Violations))
}
