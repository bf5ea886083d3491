package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"Agentomics/internal/di"
	drepo "Agentomics/internal/domain/repository"
	internalrepo "Agentomics/internal/repository"
	applogger "Agentomics/pkg/logger"
)

var (
	reportRun  string
	reportLast int
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print an exported run as CSV",
	Long: `Reads a run back from ClickHouse (export.clickhouse) or Redis
(export.redis). Without --run the most recent run in Redis is used.`,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportRun, "run", "", "run id")
	reportCmd.Flags().IntVar(&reportLast, "last", 0, "only the last N quarters")
}

func runReport(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	var store drepo.QuarterStore
	var redisStore *internalrepo.RedisSnapshotStore
	switch {
	case cfg.Export.ClickHouse:
		client, cleanup, err := di.ProvideClickHouseClient(cfg, applogger.NewNop())
		if err != nil {
			return err
		}
		defer cleanup()
		store = internalrepo.NewCHQuarterStore(client.DB(), cfg.ClickHouse.Database, cfg.ClickHouse.Table)
	case cfg.Export.Redis:
		rc, err := di.NewRedisCache(cfg)
		if err != nil {
			return err
		}
		redisStore = internalrepo.NewRedisSnapshotStore(rc, cfg.Redis.TTL)
		defer redisStore.Close()
		store = redisStore
	default:
		return fmt.Errorf("enable export.clickhouse or export.redis to read runs back")
	}

	runID := reportRun
	if runID == "" {
		if redisStore == nil {
			return fmt.Errorf("--run is required with the clickhouse store")
		}
		if runID, err = redisStore.LatestRun(ctx); err != nil {
			return err
		}
	}

	t, err := store.Quarters(ctx, runID)
	if err != nil {
		return err
	}
	return t.Tail(reportLast).WriteCSV(cmd.OutOrStdout())
}
