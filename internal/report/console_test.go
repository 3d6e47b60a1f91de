package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"energy-monitor/internal/models"
)

func TestConsole_BaselineAndStats(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	c.Title()
	c.SensorAdded("SENSOR_001", "Main Office")
	c.Phase(1, "collecting baseline readings")
	c.Collected(80)
	c.BaselineReady(models.Baseline{SensorID: "SENSOR_001", Mean: 100, ThresholdLow: 80, ThresholdHigh: 120})
	c.BaselineMissing("SENSOR_009")
	c.StatsHeader()
	c.Stats(models.Stats{SensorID: "SENSOR_001", Count: 50, Avg: 151.234, Min: 90, Max: 410.5})
	c.Done()

	out := buf.String()
	assert.Contains(t, out, "Energy Monitoring System")
	assert.Contains(t, out, "Sensor SENSOR_001 added (Main Office)")
	assert.Contains(t, out, "Phase 1: collecting baseline readings")
	assert.Contains(t, out, "80 readings collected")
	assert.Contains(t, out, "SENSOR_001: mean = 100.00 kWh, threshold = [80.00, 120.00]")
	assert.Contains(t, out, "SENSOR_009: not enough readings")
	assert.Contains(t, out, "151.23 kWh")
	assert.Contains(t, out, "410.50 kWh")
	assert.Contains(t, out, "50")
}

func TestConsole_AnomalyAndCycle(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	c.Anomaly(models.Anomaly{
		SensorID:      "SENSOR_003",
		Timestamp:     time.Now(),
		Consumption:   1200,
		ExpectedRange: models.Range{Low: 350, High: 650},
		Kind:          models.KindHigh,
		Severity:      models.SeverityHigh,
	})
	c.CycleNormal(7)
	c.Separator()

	out := buf.String()
	assert.Contains(t, out, "ANOMALY DETECTED")
	assert.Contains(t, out, "SENSOR_003")
	assert.Contains(t, out, "HIGH")
	assert.Contains(t, out, "1200.00 kWh")
	assert.Contains(t, out, "350.00 - 650.00 kWh")
	assert.Contains(t, out, "Cycle 7:")
	assert.Contains(t, out, strings.Repeat("-", separatorWidth))
}
