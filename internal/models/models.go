package models

import (
	"fmt"
	"time"
)

// Reading представляет показание датчика энергопотребления
type Reading struct {
	ID          string    `json:"id,omitempty" db:"id"`
	SensorID    string    `json:"sensor_id" db:"sensor_id"`
	Location    string    `json:"location,omitempty" db:"location"`
	Consumption float64   `json:"consumption_kwh" db:"consumption_kwh"`
	Timestamp   time.Time `json:"timestamp" db:"-"`
	Status      string    `json:"status,omitempty" db:"status"`
}

// Baseline статистика датчика, рассчитанная по историческим показаниям
type Baseline struct {
	SensorID      string    `json:"sensor_id"`
	Mean          float64   `json:"mean"`
	StdDev        float64   `json:"stdev"`
	ThresholdLow  float64   `json:"threshold_low"`
	ThresholdHigh float64   `json:"threshold_high"`
	Samples       int       `json:"samples"`
	ComputedAt    time.Time `json:"computed_at"`
}

// Contains проверяет, лежит ли значение в [ThresholdLow, ThresholdHigh]
func (b Baseline) Contains(v float64) bool {
	return v >= b.ThresholdLow && v <= b.ThresholdHigh
}

// Kind направление аномалии
type Kind string

const (
	KindHigh Kind = "HIGH"
	KindLow  Kind = "LOW"
)

// Severity уровень серьезности аномалии
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Range ожидаемый диапазон потребления
type Range struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

func (r Range) String() string {
	return fmt.Sprintf("%.2f - %.2f", r.Low, r.High)
}

// Anomaly обнаруженное отклонение от базовой линии
type Anomaly struct {
	SensorID      string    `json:"sensor_id"`
	Timestamp     time.Time `json:"timestamp"`
	Consumption   float64   `json:"consumption_kwh"`
	ExpectedRange Range     `json:"expected_range"`
	Kind          Kind      `json:"type"`
	Severity      Severity  `json:"severity"`
	Message       string    `json:"message"`
}

// Stats агрегированная статистика по датчику
type Stats struct {
	SensorID string  `json:"sensor_id"`
	Count    int64   `json:"count"`
	Avg      float64 `json:"avg_consumption"`
	Min      float64 `json:"min_consumption"`
	Max      float64 `json:"max_consumption"`
}
