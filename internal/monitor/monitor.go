// Package monitor управляет циклом симуляции: сбор базовых показаний,
// расчет базовых линий, мониторинг и итоговая статистика.
package monitor

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"energy-monitor/internal/analytics"
	"energy-monitor/internal/metrics"
	"energy-monitor/internal/models"
	"energy-monitor/internal/storage"
)

// Source источник показаний, например sensors.Network
type Source interface {
	ReadAll(now time.Time) []models.Reading
	IDs() []string
}

// Store хранилище показаний
type Store interface {
	InsertReadings(ctx context.Context, readings []models.Reading) (int, error)
	Statistics(ctx context.Context, sensorID string) (models.Stats, error)
}

// Publisher внешний потребитель аномалий и базовых линий, например Redis
type Publisher interface {
	StoreAnomaly(ctx context.Context, anomaly models.Anomaly) error
	StoreBaseline(ctx context.Context, baseline models.Baseline) error
}

// Reporter вывод хода мониторинга
type Reporter interface {
	Phase(n int, title string)
	Collected(count int)
	BaselineReady(b models.Baseline)
	BaselineMissing(sensorID string)
	Separator()
	Anomaly(a models.Anomaly)
	CycleNormal(cycle int)
	StatsHeader()
	Stats(s models.Stats)
}

// Options параметры цикла
type Options struct {
	BaselineSamples  int
	MonitoringCycles int
	BaselineInterval time.Duration
	ReadingInterval  time.Duration
}

// Summary итог запуска
type Summary struct {
	BaselineReadings int
	Baselines        int
	Cycles           int
	Readings         int
	Anomalies        int
	Stats            []models.Stats
}

// Monitor цикл мониторинга
type Monitor struct {
	source    Source
	store     Store
	detector  *analytics.Detector
	publisher Publisher
	reporter  Reporter
	logger    *zap.Logger
	opts      Options
	now       func() time.Time
}

// New создает монитор. publisher может быть nil.
func New(source Source, store Store, detector *analytics.Detector, publisher Publisher, reporter Reporter, logger *zap.Logger, opts Options) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		source:    source,
		store:     store,
		detector:  detector,
		publisher: publisher,
		reporter:  reporter,
		logger:    logger,
		opts:      opts,
		now:       time.Now,
	}
}

// Run выполняет все фазы. При отмене ctx возвращает накопленный Summary и ctx.Err().
func (m *Monitor) Run(ctx context.Context) (Summary, error) {
	var summary Summary

	collected, err := m.collectBaseline(ctx, &summary)
	if err != nil {
		return summary, err
	}

	m.computeBaselines(ctx, collected, &summary)

	if err := m.monitor(ctx, &summary); err != nil {
		return summary, err
	}

	m.finalStats(ctx, &summary)
	return summary, nil
}

// collectBaseline фаза 1: накопление показаний для базовых линий
func (m *Monitor) collectBaseline(ctx context.Context, summary *Summary) ([]models.Reading, error) {
	m.reporter.Phase(1, "collecting baseline readings")

	var collected []models.Reading
	for i := 0; i < m.opts.BaselineSamples; i++ {
		if err := ctx.Err(); err != nil {
			return collected, err
		}

		readings := m.source.ReadAll(m.now())
		collected = append(collected, readings...)
		m.persist(ctx, readings, "baseline")

		if err := sleep(ctx, m.opts.BaselineInterval); err != nil {
			return collected, err
		}
	}

	summary.BaselineReadings = len(collected)
	m.reporter.Collected(len(collected))
	m.logger.Info("baseline readings collected",
		zap.Int("rounds", m.opts.BaselineSamples),
		zap.Int("readings", len(collected)))
	return collected, nil
}

// computeBaselines фаза 2: базовая линия по каждому датчику
func (m *Monitor) computeBaselines(ctx context.Context, collected []models.Reading, summary *Summary) {
	m.reporter.Phase(2, "computing baselines")

	for _, id := range m.source.IDs() {
		m.detector.ComputeBaseline(collected, id)
		b, ok := m.detector.Baseline(id)
		if !ok {
			m.reporter.BaselineMissing(id)
			m.logger.Warn("baseline not computed", zap.String("sensor_id", id))
			continue
		}

		summary.Baselines++
		m.reporter.BaselineReady(b)
		metrics.SetBaseline(b.SensorID, b.Mean, b.ThresholdLow, b.ThresholdHigh)

		if m.publisher != nil {
			if err := m.publisher.StoreBaseline(ctx, b); err != nil {
				m.logger.Warn("failed to publish baseline", zap.String("sensor_id", id), zap.Error(err))
			}
		}
	}

	metrics.ActiveSensors.Set(float64(len(m.detector.Baselines())))
}

// monitor фаза 3: циклы чтения и классификации
func (m *Monitor) monitor(ctx context.Context, summary *Summary) error {
	m.reporter.Phase(3, "real-time monitoring")
	m.reporter.Separator()

	for cycle := 1; cycle <= m.opts.MonitoringCycles; cycle++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		readings := m.source.ReadAll(m.now())
		m.persist(ctx, readings, "simulation")
		summary.Readings += len(readings)

		start := time.Now()
		anomalies := m.detector.ClassifyBatch(readings)
		metrics.ClassificationLatency.Observe(time.Since(start).Seconds())

		for _, r := range readings {
			metrics.SetLastConsumption(r.SensorID, r.Consumption)
		}

		if len(anomalies) == 0 {
			m.reporter.CycleNormal(cycle)
		}
		for _, a := range anomalies {
			m.handleAnomaly(ctx, a)
		}
		summary.Anomalies += len(anomalies)
		summary.Cycles = cycle

		if cycle < m.opts.MonitoringCycles {
			if err := sleep(ctx, m.opts.ReadingInterval); err != nil {
				return err
			}
		}
	}

	m.reporter.Separator()
	return nil
}

func (m *Monitor) handleAnomaly(ctx context.Context, a models.Anomaly) {
	m.reporter.Anomaly(a)
	metrics.RecordAnomaly(string(a.Kind), string(a.Severity), a.SensorID)
	m.logger.Warn("anomaly detected",
		zap.String("sensor_id", a.SensorID),
		zap.String("type", string(a.Kind)),
		zap.String("severity", string(a.Severity)),
		zap.Float64("consumption_kwh", a.Consumption))

	if m.publisher != nil {
		if err := m.publisher.StoreAnomaly(ctx, a); err != nil {
			m.logger.Warn("failed to publish anomaly", zap.String("sensor_id", a.SensorID), zap.Error(err))
		}
	}
}

// finalStats фаза 4: агрегаты из хранилища
func (m *Monitor) finalStats(ctx context.Context, summary *Summary) {
	m.reporter.StatsHeader()

	for _, id := range m.source.IDs() {
		stats, err := m.store.Statistics(ctx, id)
		if errors.Is(err, storage.ErrNoReadings) {
			continue
		}
		if err != nil {
			m.logger.Error("failed to load statistics", zap.String("sensor_id", id), zap.Error(err))
			continue
		}
		summary.Stats = append(summary.Stats, stats)
		m.reporter.Stats(stats)
	}
}

func (m *Monitor) persist(ctx context.Context, readings []models.Reading, source string) {
	if len(readings) == 0 {
		return
	}
	metrics.ReadingsReceived.WithLabelValues(source).Add(float64(len(readings)))

	if _, err := m.store.InsertReadings(ctx, readings); err != nil {
		m.logger.Error("failed to store readings", zap.Int("count", len(readings)), zap.Error(err))
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
