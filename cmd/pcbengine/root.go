package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "pcbengine",
	Short: "Automatic PCB placement and routing engine",
	Long: `pcbengine turns a board description and a netlist into a routed layout:
nets are classified by electrical role, components are placed by simulated
annealing, tracks are routed with grid-based A*, and the result is checked
against design rules.

Examples:
  pcbengine run board.json netlist.json -o routed.json
  pcbengine place board.json netlist.json -o placed.json
  pcbengine check routed.json --netlist netlist.json`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		})))
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
