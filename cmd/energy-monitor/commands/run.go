package commands

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"energy-monitor/internal/monitor"
	"energy-monitor/internal/report"
)

const metricsInterval = 5 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the sensor simulation and anomaly monitoring",
	Long: `Collects baseline readings from the simulated sensors, computes a baseline
per sensor, runs the monitoring cycles and prints the final statistics.
With --serve the HTTP API stays up until the process is interrupted.`,
	RunE: runMonitor,
}

func init() {
	runCmd.Flags().Bool("serve", false, "Expose the HTTP API while monitoring")
	runCmd.Flags().Int("cycles", 0, "Number of monitoring cycles")
	runCmd.Flags().Uint64("seed", 0, "Random seed for the simulation (0 = random)")
	runCmd.Flags().Int("port", 0, "HTTP port for --serve")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	console := report.NewConsole(cmd.OutOrStdout())
	console.Title()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	console.Connected(store.Driver())

	rc, err := openCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer rc.Close()

	network := buildNetwork(cfg, console.SensorAdded)
	detector := newDetector(cfg)

	var pub monitor.Publisher
	if rc != nil {
		pub = rc
	}

	m := monitor.New(network, store, detector, pub, console, logger, monitor.Options{
		BaselineSamples:  cfg.Anomaly.BaselineSamples,
		MonitoringCycles: cfg.Simulation.MonitoringCycles,
		BaselineInterval: cfg.Simulation.BaselineInterval,
		ReadingInterval:  cfg.Simulation.ReadingInterval,
	})

	runOnce := func(ctx context.Context) error {
		summary, err := m.Run(ctx)
		if errors.Is(err, context.Canceled) {
			logger.Info("monitoring interrupted", zap.Int("cycles", summary.Cycles))
			return nil
		}
		if err != nil {
			return err
		}
		console.Done()
		logger.Info("monitoring finished",
			zap.Int("baselines", summary.Baselines),
			zap.Int("cycles", summary.Cycles),
			zap.Int("readings", summary.Readings),
			zap.Int("anomalies", summary.Anomalies))
		return nil
	}

	serve, _ := cmd.Flags().GetBool("serve")
	if !serve {
		return runOnce(ctx)
	}

	api, stopAPI := startAPI(ctx, cfg, detector, store, rc, logger)
	defer stopAPI()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return runOnce(gctx) })
	g.Go(func() error {
		monitor.UpdateMetrics(gctx, api.analyzer, metricsInterval)
		return nil
	})
	g.Go(func() error {
		return serveHTTP(gctx, newHTTPServer(cfg, handlersRouter(api)), logger)
	})

	return g.Wait()
}
