package monitor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"energy-monitor/internal/analytics"
	"energy-monitor/internal/metrics"
)

// ConsumeResults обрабатывает результаты анализатора до закрытия канала.
// publisher может быть nil.
func ConsumeResults(ctx context.Context, results <-chan analytics.Result, publisher Publisher, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}

	for result := range results {
		// без базовой линии датчик не попадает в метки метрик
		if !result.HasBaseline {
			logger.Debug("reading without baseline", zap.String("sensor_id", result.Reading.SensorID))
			continue
		}
		metrics.SetLastConsumption(result.Reading.SensorID, result.Reading.Consumption)
		if !result.IsAnomaly {
			continue
		}

		a := result.Anomaly
		metrics.RecordAnomaly(string(a.Kind), string(a.Severity), a.SensorID)
		logger.Warn("anomaly detected",
			zap.String("sensor_id", a.SensorID),
			zap.String("type", string(a.Kind)),
			zap.String("severity", string(a.Severity)),
			zap.Float64("consumption_kwh", a.Consumption),
			zap.Stringer("expected_range", a.ExpectedRange))

		if publisher != nil {
			if err := publisher.StoreAnomaly(ctx, a); err != nil {
				logger.Warn("failed to publish anomaly", zap.String("sensor_id", a.SensorID), zap.Error(err))
			}
		}
	}
}

// UpdateMetrics периодически публикует состояние анализатора до отмены ctx
func UpdateMetrics(ctx context.Context, analyzer *analytics.Analyzer, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		publishAnalyzerStats(analyzer)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func publishAnalyzerStats(analyzer *analytics.Analyzer) {
	stats := analyzer.GetStats()
	metrics.ActiveSensors.Set(float64(stats.SensorsTracked))
	metrics.QueueSize.Set(float64(stats.QueueSize))
}
