package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"Agentomics/internal/domain/models"
	pkgkafka "Agentomics/pkg/kafka"
)

var watchFromStart bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print committed rounds from the Kafka rounds topic",
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchFromStart, "from-start", false, "replay the topic from the earliest offset")
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if len(cfg.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers (or KAFKA_BROKERS) is required")
	}

	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerTopic(cfg.Kafka.Topic),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.WatchGroup),
		pkgkafka.WithConsumerFromLatest(!watchFromStart),
	)
	if err != nil {
		return err
	}
	defer consumer.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	return consumer.Run(ctx, func(_ context.Context, msg pkgkafka.Message) error {
		var ev models.RoundCommitted
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			// not retryable; skip it
			fmt.Fprintf(out, "skip offset %d: %v\n", msg.Offset, err)
			return nil
		}
		fmt.Fprintln(out, formatRound(&ev))
		return nil
	})
}

func formatRound(ev *models.RoundCommitted) string {
	ids := make([]string, 0, len(ev.Values))
	for id := range ev.Values {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var b strings.Builder
	fmt.Fprintf(&b, "%s q%d remaining=%d", ev.RunID, ev.Quarter, ev.Remaining)
	for _, id := range ids {
		fmt.Fprintf(&b, " %s=%.4f", id, ev.Values[id])
	}
	return b.String()
}
