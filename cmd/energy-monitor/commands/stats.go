package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"energy-monitor/internal/report"
	"energy-monitor/internal/storage"
)

var statsCmd = &cobra.Command{
	Use:   "stats [sensor-id...]",
	Short: "Print stored consumption statistics per sensor",
	Long: `Prints count, average, minimum and maximum consumption per sensor.
With Redis enabled the baseline last published for each sensor is shown too.`,
	RunE: printStats,
}

func printStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	// кэш необязателен для статистики
	rc, err := openCache(ctx, cfg)
	if err != nil {
		logger.Warn("redis unavailable, cached baselines not shown", zap.Error(err))
	}
	defer rc.Close()

	ids := args
	if len(ids) == 0 {
		if ids, err = store.SensorIDs(ctx); err != nil {
			return err
		}
	}

	console := report.NewConsole(cmd.OutOrStdout())
	if len(ids) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No readings stored.")
		return nil
	}

	console.StatsHeader()
	for _, id := range ids {
		stats, err := store.Statistics(ctx, id)
		if errors.Is(err, storage.ErrNoReadings) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: no readings\n\n", id)
			continue
		}
		if err != nil {
			return err
		}
		console.Stats(stats)

		if rc == nil {
			continue
		}
		baseline, ok, err := rc.GetBaseline(ctx, id)
		if err != nil {
			logger.Warn("failed to read cached baseline", zap.String("sensor_id", id), zap.Error(err))
			continue
		}
		if ok {
			console.BaselineReady(baseline)
		}
	}
	return nil
}
