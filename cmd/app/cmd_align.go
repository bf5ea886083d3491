package main

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"Agentomics/internal/di"
	"Agentomics/internal/usecase"
	applogger "Agentomics/pkg/logger"
	"Agentomics/pkg/util"
)

var alignCmd = &cobra.Command{
	Use:   "align",
	Short: "Download the configured FRED series and print their aligned range",
	RunE:  runAlign,
}

func runAlign(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.FRED.APIKey == "" {
		return fmt.Errorf("fred.api_key (or FRED_API_KEY) is required")
	}
	if len(cfg.FRED.Series) == 0 {
		return fmt.Errorf("fred.series is empty")
	}
	log, err := applogger.New(&applogger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: "stderr"})
	if err != nil {
		return err
	}

	src, cleanup, err := di.ProvideIndicatorSource(cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*cfg.FRED.Timeout)
	defer cancel()
	rng, err := usecase.NewSeedLoader(src, log).Align(ctx, di.SeedMappings(cfg))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprint(w, "quarter")
	for _, c := range rng.Columns {
		fmt.Fprint(w, "\t", c)
	}
	fmt.Fprintln(w)
	for i, d := range rng.Dates {
		fmt.Fprint(w, util.QuarterLabel(d))
		for _, v := range rng.Rows[i] {
			fmt.Fprint(w, "\t", strconv.FormatFloat(v, 'f', 4, 64))
		}
		fmt.Fprintln(w)
	}
	return w.Flush()
}
