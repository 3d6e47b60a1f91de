package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"energy-monitor/internal/analytics"
	"energy-monitor/internal/metrics"
	"energy-monitor/internal/models"
)

func TestConsumeResults(t *testing.T) {
	results := make(chan analytics.Result, 3)
	anomaly := models.Anomaly{SensorID: "R1", Kind: models.KindLow, Severity: models.SeverityLow, Consumption: 10}

	results <- analytics.Result{Reading: models.Reading{SensorID: "R1", Consumption: 10}, Anomaly: anomaly, IsAnomaly: true, HasBaseline: true}
	results <- analytics.Result{Reading: models.Reading{SensorID: "R1", Consumption: 100}, HasBaseline: true}
	results <- analytics.Result{Reading: models.Reading{SensorID: "R2", Consumption: 5}}
	close(results)

	publisher := &recordingPublisher{}
	ConsumeResults(context.Background(), results, publisher, nil)

	require.Len(t, publisher.anomalies, 1)
	assert.Equal(t, anomaly, publisher.anomalies[0])
	assert.Equal(t, 100.0, testutil.ToFloat64(metrics.LastConsumption.WithLabelValues("R1")))
	// R2 без базовой линии в метрики не попадает
	assert.False(t, metrics.LastConsumption.DeleteLabelValues("R2"))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AnomaliesDetected.WithLabelValues("LOW", "LOW", "R1")))
}

func TestConsumeResults_NilPublisher(t *testing.T) {
	results := make(chan analytics.Result, 1)
	results <- analytics.Result{IsAnomaly: true, HasBaseline: true, Anomaly: models.Anomaly{SensorID: "R3"}}
	close(results)

	assert.NotPanics(t, func() { ConsumeResults(context.Background(), results, nil, nil) })
}

func TestUpdateMetrics_StopsOnCancel(t *testing.T) {
	detector := analytics.NewDetector(2.0)
	detector.ComputeBaseline([]models.Reading{
		{SensorID: "U1", Consumption: 1},
		{SensorID: "U1", Consumption: 3},
	}, "U1")
	analyzer := analytics.NewAnalyzer(detector, 10)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		UpdateMetrics(ctx, analyzer, time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.ActiveSensors) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("UpdateMetrics did not stop")
	}
}
