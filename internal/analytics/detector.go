package analytics

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"energy-monitor/internal/models"
)

// DefaultThresholdMultiplier множитель k по умолчанию
const DefaultThresholdMultiplier = 2.0

// minBaselineSamples минимальное число показаний для расчета базовой линии
const minBaselineSamples = 2

// Detector детектор аномалий по базовой линии (mean ± k·stdev)
type Detector struct {
	baselines map[string]models.Baseline
	mu        sync.RWMutex

	multiplier        float64
	legacyLowSeverity bool
	now               func() time.Time
}

// Option настройка детектора
type Option func(*Detector)

// WithLegacyLowSeverity для LOW аномалий считает серьезность по нижнему порогу,
// а не по фактическому потреблению
func WithLegacyLowSeverity(enabled bool) Option {
	return func(d *Detector) { d.legacyLowSeverity = enabled }
}

// WithClock подменяет источник времени для ComputedAt
func WithClock(now func() time.Time) Option {
	return func(d *Detector) { d.now = now }
}

// NewDetector создает детектор с множителем k
func NewDetector(multiplier float64, opts ...Option) *Detector {
	if multiplier <= 0 {
		multiplier = DefaultThresholdMultiplier
	}
	d := &Detector{
		baselines:  make(map[string]models.Baseline),
		multiplier: multiplier,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Multiplier возвращает k
func (d *Detector) Multiplier() float64 {
	return d.multiplier
}

// ComputeBaseline пересчитывает базовую линию датчика по историческим показаниям.
// Отрицательные, бесконечные и NaN значения пропускаются. Если подходящих показаний
// меньше двух, базовая линия не меняется и возвращается false.
func (d *Detector) ComputeBaseline(readings []models.Reading, sensorID string) bool {
	values := make([]float64, 0, len(readings))
	for _, r := range readings {
		if r.SensorID != sensorID || !validConsumption(r.Consumption) {
			continue
		}
		values = append(values, r.Consumption)
	}

	if len(values) < minBaselineSamples {
		return false
	}

	mean := calculateAverage(values)
	stdDev := calculateSampleStdDev(values, mean)
	spread := d.multiplier * stdDev

	baseline := models.Baseline{
		SensorID:      sensorID,
		Mean:          mean,
		StdDev:        stdDev,
		ThresholdLow:  math.Max(0, mean-spread),
		ThresholdHigh: mean + spread,
		Samples:       len(values),
		ComputedAt:    d.now(),
	}

	d.mu.Lock()
	d.baselines[sensorID] = baseline
	d.mu.Unlock()

	return true
}

// Baseline возвращает базовую линию датчика
func (d *Detector) Baseline(sensorID string) (models.Baseline, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	b, ok := d.baselines[sensorID]
	return b, ok
}

// Baselines возвращает копию всех базовых линий, отсортированную по датчику
func (d *Detector) Baselines() []models.Baseline {
	d.mu.RLock()
	out := make([]models.Baseline, 0, len(d.baselines))
	for _, b := range d.baselines {
		out = append(out, b)
	}
	d.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].SensorID < out[j].SensorID })
	return out
}

// Classify проверяет одно показание. Без базовой линии аномалия не определяется.
func (d *Detector) Classify(reading models.Reading) (models.Anomaly, bool) {
	stats, ok := d.Baseline(reading.SensorID)
	if !ok {
		return models.Anomaly{}, false
	}

	consumption := reading.Consumption
	anomaly := models.Anomaly{
		SensorID:      reading.SensorID,
		Timestamp:     reading.Timestamp,
		Consumption:   consumption,
		ExpectedRange: models.Range{Low: stats.ThresholdLow, High: stats.ThresholdHigh},
	}

	if stats.Contains(consumption) {
		return models.Anomaly{}, false
	}

	switch {
	case consumption > stats.ThresholdHigh:
		anomaly.Kind = models.KindHigh
		anomaly.Severity = SeverityFor(consumption, stats.Mean)
		anomaly.Message = fmt.Sprintf("high consumption detected: %.2f kWh", consumption)
	case consumption < stats.ThresholdLow:
		value := consumption
		if d.legacyLowSeverity {
			value = stats.ThresholdLow
		}
		anomaly.Kind = models.KindLow
		anomaly.Severity = SeverityFor(value, stats.Mean)
		anomaly.Message = fmt.Sprintf("low consumption detected: %.2f kWh", consumption)
	default:
		return models.Anomaly{}, false
	}

	return anomaly, true
}

// ClassifyBatch проверяет пачку показаний и возвращает аномалии в исходном порядке
func (d *Detector) ClassifyBatch(readings []models.Reading) []models.Anomaly {
	anomalies := make([]models.Anomaly, 0)
	for _, r := range readings {
		if a, ok := d.Classify(r); ok {
			anomalies = append(anomalies, a)
		}
	}
	return anomalies
}

// validConsumption допустимое потребление: конечное и неотрицательное
func validConsumption(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0)
}

// calculateAverage вычисляет среднее значение
func calculateAverage(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// calculateSampleStdDev вычисляет выборочное стандартное отклонение (N-1)
func calculateSampleStdDev(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}

	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(values) - 1)

	return math.Sqrt(variance)
}
