package sensors

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func seeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed+1))
}

func TestNewSensor(t *testing.T) {
	s := NewSensor("TEST_001", "Office", 100, 20, nil)
	assert.Equal(t, "TEST_001", s.ID)
	assert.Equal(t, "Office", s.Location)
	assert.Equal(t, 100.0, s.BaseConsumption)
	assert.Equal(t, 20.0, s.Variance)
	assert.Equal(t, DefaultAnomalyProbability, s.AnomalyProbability)
	assert.True(t, s.Active())
}

func TestSensorRead_Active(t *testing.T) {
	s := NewSensor("TEST_001", "Office", 100, 20, seeded(1))
	s.AnomalyProbability = 0

	for i := 0; i < 200; i++ {
		r, ok := s.Read(now)
		require.True(t, ok)
		assert.Equal(t, "TEST_001", r.SensorID)
		assert.Equal(t, "Office", r.Location)
		assert.Equal(t, StatusActive, r.Status)
		assert.Equal(t, now, r.Timestamp)
		assert.GreaterOrEqual(t, r.Consumption, 80.0)
		assert.LessOrEqual(t, r.Consumption, 120.0)
		assert.Equal(t, r.Consumption, math.Round(r.Consumption*100)/100, "rounded to 2 decimals")
	}
}

func TestSensorRead_Spikes(t *testing.T) {
	s := NewSensor("TEST_001", "Office", 100, 0, seeded(2))
	s.AnomalyProbability = 1

	r, ok := s.Read(now)
	require.True(t, ok)
	assert.GreaterOrEqual(t, r.Consumption, 200.0)
	assert.LessOrEqual(t, r.Consumption, 300.0)
}

func TestSensorRead_NeverNegative(t *testing.T) {
	s := NewSensor("TEST_001", "Office", 1, 50, seeded(3))
	for i := 0; i < 200; i++ {
		r, _ := s.Read(now)
		assert.GreaterOrEqual(t, r.Consumption, 0.0)
	}
}

func TestSensorRead_Inactive(t *testing.T) {
	s := NewSensor("TEST_001", "Office", 100, 20, nil)
	s.Deactivate()
	assert.False(t, s.Active())

	_, ok := s.Read(now)
	assert.False(t, ok)

	s.Activate()
	_, ok = s.Read(now)
	assert.True(t, ok)
}

func TestSensorRead_Deterministic(t *testing.T) {
	a := NewSensor("A", "x", 100, 20, seeded(42))
	b := NewSensor("A", "x", 100, 20, seeded(42))
	for i := 0; i < 20; i++ {
		ra, _ := a.Read(now)
		rb, _ := b.Read(now)
		assert.Equal(t, ra, rb)
	}
}
