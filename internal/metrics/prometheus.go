package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "energy"

// MaxSensorLabels предел различных значений метки sensor_id.
// Остальные датчики учитываются под OverflowSensorLabel.
const MaxSensorLabels = 256

// OverflowSensorLabel метка для датчиков сверх MaxSensorLabels
const OverflowSensorLabel = "_other"

var sensorLabels = struct {
	sync.Mutex
	seen map[string]struct{}
}{seen: make(map[string]struct{})}

var (
	// RequestsTotal общее количество запросов
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// RequestDuration продолжительность запросов
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// ReadingsReceived показания получены
	ReadingsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_received_total",
			Help:      "Total number of sensor readings received",
		},
		[]string{"source"},
	)

	// AnomaliesDetected обнаруженные аномалии
	AnomaliesDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anomalies_detected_total",
			Help:      "Total number of anomalies detected",
		},
		[]string{"type", "severity", "sensor_id"},
	)

	// ClassificationLatency задержка классификации
	ClassificationLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "classification_latency_seconds",
			Help:      "Reading classification latency in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1},
		},
	)

	// BaselineMean среднее базовой линии
	BaselineMean = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "baseline_mean_kwh",
			Help:      "Baseline mean consumption per sensor",
		},
		[]string{"sensor_id"},
	)

	// BaselineThreshold пороги базовой линии
	BaselineThreshold = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "baseline_threshold_kwh",
			Help:      "Baseline thresholds per sensor",
		},
		[]string{"sensor_id", "bound"},
	)

	// LastConsumption последнее показание датчика
	LastConsumption = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_consumption_kwh",
			Help:      "Last observed consumption per sensor",
		},
		[]string{"sensor_id"},
	)

	// ActiveSensors активные датчики
	ActiveSensors = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sensors",
			Help:      "Number of sensors with a computed baseline",
		},
	)

	// QueueSize размер очереди обработки
	QueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "processing_queue_size",
			Help:      "Current size of the processing queue",
		},
	)

	// StoreOperations операции с базой данных
	StoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Total number of database operations",
		},
		[]string{"operation", "status"},
	)

	// StoreDuration продолжительность операций с базой данных
	StoreDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_duration_seconds",
			Help:      "Database operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// RedisOperations операции с Redis
	RedisOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redis_operations_total",
			Help:      "Total number of Redis operations",
		},
		[]string{"operation", "status"},
	)
)

// ObserveStore учитывает операцию с базой данных
func ObserveStore(operation string, start time.Time, err error) {
	StoreDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	StoreOperations.WithLabelValues(operation, status(err)).Inc()
}

// ObserveRedis учитывает операцию с Redis
func ObserveRedis(operation string, err error) {
	RedisOperations.WithLabelValues(operation, status(err)).Inc()
}

// SensorLabel значение метки sensor_id. Идентификаторы приходят от клиентов API,
// поэтому число различных меток ограничено MaxSensorLabels.
func SensorLabel(sensorID string) string {
	sensorLabels.Lock()
	defer sensorLabels.Unlock()

	if _, ok := sensorLabels.seen[sensorID]; ok {
		return sensorID
	}
	if len(sensorLabels.seen) >= MaxSensorLabels {
		return OverflowSensorLabel
	}
	sensorLabels.seen[sensorID] = struct{}{}
	return sensorID
}

// SetBaseline публикует параметры базовой линии датчика
func SetBaseline(sensorID string, mean, low, high float64) {
	label := SensorLabel(sensorID)
	BaselineMean.WithLabelValues(label).Set(mean)
	BaselineThreshold.WithLabelValues(label, "low").Set(low)
	BaselineThreshold.WithLabelValues(label, "high").Set(high)
}

// RecordAnomaly учитывает обнаруженную аномалию
func RecordAnomaly(kind, severity, sensorID string) {
	AnomaliesDetected.WithLabelValues(kind, severity, SensorLabel(sensorID)).Inc()
}

// SetLastConsumption публикует последнее показание датчика
func SetLastConsumption(sensorID string, value float64) {
	LastConsumption.WithLabelValues(SensorLabel(sensorID)).Set(value)
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func resetSensorLabels() {
	sensorLabels.Lock()
	sensorLabels.seen = make(map[string]struct{})
	sensorLabels.Unlock()
}
