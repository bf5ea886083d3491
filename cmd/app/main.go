package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"Agentomics/pkg/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "agentomics",
	Short: "Round-based multi-agent macroeconomy simulation",
	Long: `agentomics simulates an economy quarter by quarter. Each round a central
bank, a big bank and a small bank set their policy knobs, then an economy
agent forecasts GDP growth, unemployment and inflation.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config/config.yaml", "config file path")
	rootCmd.AddCommand(runCmd, alignCmd, watchCmd, reportCmd)
}

// loadConfig reads the config file with environment overrides. A missing file
// at the default path falls back to defaults plus environment.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadWithEnv(configPath)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, fs.ErrNotExist) || cmd.Flags().Changed("config") {
		return nil, err
	}
	cfg = config.Default()
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
