package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"Agentomics/internal/di"
)

var (
	runRounds int
	runMode   string
	runDryRun bool
	runServe  bool
	runCSV    string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Simulate the configured number of quarters",
	Long: `Seeds the global state (from config or FRED), then runs one round per
quarter until no rounds remain. Every committed quarter goes to the enabled
exports. With --serve the HTTP API stays up after the run until interrupted.`,
	RunE: runSimulation,
}

func init() {
	f := runCmd.Flags()
	f.IntVarP(&runRounds, "rounds", "n", -1, "rounds to simulate (overrides simulation.rounds)")
	f.StringVar(&runMode, "mode", "", "orchestrator mode: sequential or parallel")
	f.BoolVar(&runDryRun, "dry-run", false, "hold every knob at its last seeded value instead of calling the LLM")
	f.BoolVar(&runServe, "serve", false, "enable the HTTP API")
	f.StringVar(&runCSV, "csv", "", "write the table to this CSV file after each round")
}

func runSimulation(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if runRounds >= 0 {
		cfg.Simulation.Rounds = runRounds
	}
	if runMode != "" {
		cfg.Simulation.Mode = runMode
	}
	if runDryRun {
		cfg.LLM.DryRun = true
	}
	if runServe {
		cfg.Server.Enabled = true
	}
	if runCSV != "" {
		cfg.Export.CSVPath = runCSV
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		return fmt.Errorf("app initialization failed: %w", err)
	}
	defer cleanup()
	if err := app.Run(cmd.Context()); err != nil {
		return err
	}

	orch := app.Orchestrator()
	fmt.Fprintf(cmd.OutOrStdout(), "run %s\n\n%s\n", orch.RunID(), orch.Snapshot().RenderReport())
	return nil
}
