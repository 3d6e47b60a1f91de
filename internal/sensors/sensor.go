package sensors

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"energy-monitor/internal/models"
)

// StatusActive статус показаний работающего датчика
const StatusActive = "active"

// DefaultAnomalyProbability вероятность смоделированного всплеска потребления
const DefaultAnomalyProbability = 0.05

// Sensor симулированный датчик энергопотребления
type Sensor struct {
	ID                 string
	Location           string
	BaseConsumption    float64
	Variance           float64
	AnomalyProbability float64

	mu     sync.Mutex
	rng    *rand.Rand
	active bool
}

// NewSensor создает активный датчик. rng может быть nil.
func NewSensor(id, location string, base, variance float64, rng *rand.Rand) *Sensor {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Sensor{
		ID:                 id,
		Location:           location,
		BaseConsumption:    base,
		Variance:           variance,
		AnomalyProbability: DefaultAnomalyProbability,
		rng:                rng,
		active:             true,
	}
}

// Read генерирует показание. Неактивный датчик ничего не возвращает.
func (s *Sensor) Read(now time.Time) (models.Reading, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return models.Reading{}, false
	}

	consumption := s.BaseConsumption + s.uniform(-s.Variance, s.Variance)

	// Редкие всплески x2..x3
	if s.rng.Float64() < s.AnomalyProbability {
		consumption *= s.uniform(2.0, 3.0)
	}

	consumption = math.Max(0, math.Round(consumption*100)/100)

	return models.Reading{
		SensorID:    s.ID,
		Location:    s.Location,
		Consumption: consumption,
		Timestamp:   now,
		Status:      StatusActive,
	}, true
}

func (s *Sensor) uniform(lo, hi float64) float64 {
	return lo + (hi-lo)*s.rng.Float64()
}

// Activate включает датчик
func (s *Sensor) Activate() {
	s.mu.Lock()
	s.active = true
	s.mu.Unlock()
}

// Deactivate выключает датчик
func (s *Sensor) Deactivate() {
	s.mu.Lock()
	s.active = false
	s.mu.Unlock()
}

// Active возвращает состояние датчика
func (s *Sensor) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}
