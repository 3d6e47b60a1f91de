package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"energy-monitor/internal/models"
)

func collectResults(t *testing.T, a *Analyzer, n int) []Result {
	t.Helper()
	out := make([]Result, 0, n)
	timeout := time.After(2 * time.Second)
	for len(out) < n {
		select {
		case r, ok := <-a.Results():
			require.True(t, ok, "results channel closed early")
			out = append(out, r)
		case <-timeout:
			t.Fatalf("timed out waiting for results: got %d of %d", len(out), n)
		}
	}
	return out
}

func TestAnalyzer_ProcessesReadings(t *testing.T) {
	d := newS1Detector(t)
	a := NewAnalyzer(d, 16)
	a.Start(3)
	defer a.Stop()

	require.True(t, a.Submit(reading("S1", 200)))
	require.True(t, a.Submit(reading("S1", 100)))
	require.True(t, a.Submit(reading("S9", 100)))

	results := collectResults(t, a, 3)

	var anomalies, withoutBaseline int
	for _, r := range results {
		if r.IsAnomaly {
			anomalies++
			assert.Equal(t, models.KindHigh, r.Anomaly.Kind)
			assert.Equal(t, 200.0, r.Reading.Consumption)
		}
		if !r.HasBaseline {
			withoutBaseline++
			assert.Equal(t, "S9", r.Reading.SensorID)
		}
	}
	assert.Equal(t, 1, anomalies)
	assert.Equal(t, 1, withoutBaseline)

	stats := a.GetStats()
	assert.Equal(t, int64(3), stats.Processed)
	assert.Equal(t, 1, stats.SensorsTracked)
	assert.Equal(t, 2.0, stats.Multiplier)
}

func TestAnalyzer_DropsWhenQueueFull(t *testing.T) {
	a := NewAnalyzer(NewDetector(2.0), 1)
	// workers are not started, so the queue fills up
	assert.True(t, a.Submit(reading("S1", 1)))
	assert.False(t, a.Submit(reading("S1", 2)))
	assert.Equal(t, int64(1), a.GetStats().Dropped)
	assert.Equal(t, 1, a.GetStats().QueueSize)
}

func TestAnalyzer_StopClosesResults(t *testing.T) {
	a := NewAnalyzer(NewDetector(2.0), 4)
	a.Start(2)
	a.Stop()
	a.Stop()

	_, ok := <-a.Results()
	assert.False(t, ok)
	assert.False(t, a.Submit(reading("S1", 1)))
}
