package commands

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"energy-monitor/internal/handlers"
	"energy-monitor/internal/metrics"
	"energy-monitor/internal/monitor"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP ingestion and query API",
	Long: `Starts the HTTP API. Baselines are bootstrapped from the readings already
stored in the database and can be recomputed per sensor via the API.`,
	RunE: serveAPI,
}

func init() {
	serveCmd.Flags().Int("port", 0, "HTTP port")
}

func handlersRouter(api apiDeps) http.Handler {
	return handlers.NewRouter(api.handler, handlers.RouterOptions{
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		IngestRateLimit: cfg.Server.IngestRateLimit,
		IngestBurst:     cfg.Server.IngestBurst,
	})
}

func serveAPI(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting energy monitoring API")

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	logger.Info("connected to database", zap.String("driver", store.Driver()))

	rc, err := openCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer rc.Close()
	if rc != nil {
		logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))
	}

	detector := newDetector(cfg)
	n, err := bootstrapBaselines(ctx, store, detector, cfg.Anomaly.HistoryLimit)
	if err != nil {
		return err
	}
	for _, b := range detector.Baselines() {
		metrics.SetBaseline(b.SensorID, b.Mean, b.ThresholdLow, b.ThresholdHigh)
		if rc != nil {
			if err := rc.StoreBaseline(ctx, b); err != nil {
				logger.Warn("failed to cache baseline", zap.String("sensor_id", b.SensorID), zap.Error(err))
			}
		}
	}
	logger.Info("baselines bootstrapped from history", zap.Int("sensors", n))

	api, stopAPI := startAPI(ctx, cfg, detector, store, rc, logger)
	defer stopAPI()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		monitor.UpdateMetrics(gctx, api.analyzer, metricsInterval)
		return nil
	})
	g.Go(func() error {
		return serveHTTP(gctx, newHTTPServer(cfg, handlersRouter(api)), logger)
	})

	return g.Wait()
}
