package commands

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"energy-monitor/internal/analytics"
	"energy-monitor/internal/cache"
	"energy-monitor/internal/config"
	"energy-monitor/internal/handlers"
	"energy-monitor/internal/monitor"
	"energy-monitor/internal/sensors"
	"energy-monitor/internal/storage"
)

const shutdownTimeout = 30 * time.Second

// storeDSN строка подключения для выбранного драйвера
func storeDSN(c *config.Config) string {
	if c.Database.Driver == storage.DriverPostgres {
		return c.Database.PostgresURL
	}
	return c.Database.SQLitePath
}

func openStore(ctx context.Context, c *config.Config) (*storage.SQLStore, error) {
	store, err := storage.Open(ctx, c.Database.Driver, storeDSN(c))
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return store, nil
}

// openCache подключает Redis. Возвращает nil, если кэш выключен.
func openCache(ctx context.Context, c *config.Config) (*cache.RedisCache, error) {
	if !c.Redis.Enabled {
		return nil, nil
	}
	rc, err := cache.NewRedisCache(ctx, c.Redis.Addr, c.Redis.Password, c.Redis.DB, c.Redis.Retention)
	if err != nil {
		return nil, err
	}
	return rc, nil
}

func newDetector(c *config.Config) *analytics.Detector {
	return analytics.NewDetector(c.Anomaly.ThresholdMultiplier,
		analytics.WithLegacyLowSeverity(c.Anomaly.LegacyLowSeverity))
}

// buildNetwork создает сеть датчиков. Seed 0 - случайный.
func buildNetwork(c *config.Config, added func(id, location string)) *sensors.Network {
	seed := c.Simulation.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}

	network := sensors.NewNetwork()
	for i, sc := range c.Simulation.Sensors {
		rng := rand.New(rand.NewPCG(seed, uint64(i)))
		s := sensors.NewSensor(sc.ID, sc.Location, sc.Base, sc.Variance, rng)
		s.AnomalyProbability = c.Simulation.AnomalyProbability
		network.Add(s)
		if added != nil {
			added(sc.ID, sc.Location)
		}
	}
	return network
}

// bootstrapBaselines считает базовые линии по последним сохраненным показаниям
func bootstrapBaselines(ctx context.Context, store storage.Store, detector *analytics.Detector, limit int) (int, error) {
	ids, err := store.SensorIDs(ctx)
	if err != nil {
		return 0, err
	}

	computed := 0
	for _, id := range ids {
		readings, err := store.Readings(ctx, id, limit)
		if err != nil {
			return computed, err
		}
		if detector.ComputeBaseline(readings, id) {
			computed++
		}
	}
	return computed, nil
}

func newHTTPServer(c *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:         ":" + strconv.Itoa(c.Server.Port),
		Handler:      h,
		ReadTimeout:  c.Server.ReadTimeout,
		WriteTimeout: c.Server.WriteTimeout,
		IdleTimeout:  c.Server.IdleTimeout,
	}
}

// serveHTTP обслуживает запросы до отмены ctx, затем плавно останавливает сервер
func serveHTTP(ctx context.Context, srv *http.Server, log *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("server stopped gracefully")
	return nil
}

// apiDeps зависимости HTTP API
type apiDeps struct {
	analyzer *analytics.Analyzer
	handler  *handlers.Handler
}

// startAPI запускает анализатор и обработку его результатов.
// Возвращает функцию остановки, которую нужно вызвать после остановки сервера.
func startAPI(ctx context.Context, c *config.Config, detector *analytics.Detector, store *storage.SQLStore, rc *cache.RedisCache, log *zap.Logger) (apiDeps, func()) {
	analyzer := analytics.NewAnalyzer(detector, c.Anomaly.QueueSize)
	analyzer.Start(c.Anomaly.Workers)
	log.Info("analyzer started",
		zap.Int("workers", c.Anomaly.Workers),
		zap.Float64("threshold_multiplier", detector.Multiplier()))

	var (
		ac  handlers.AnomalyCache
		pub monitor.Publisher
	)
	if rc != nil {
		ac = rc
		pub = rc
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		monitor.ConsumeResults(context.WithoutCancel(ctx), analyzer.Results(), pub, log)
	}()

	stop := func() {
		analyzer.Stop()
		<-done
	}

	return apiDeps{
		analyzer: analyzer,
		handler:  handlers.NewHandler(analyzer, store, ac, c.Anomaly.HistoryLimit, log),
	}, stop
}
