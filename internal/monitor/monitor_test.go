package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"energy-monitor/internal/analytics"
	"energy-monitor/internal/models"
	"energy-monitor/internal/storage"
)

// scriptSource возвращает заранее заданные показания по вызовам ReadAll
type scriptSource struct {
	ids    []string
	script []map[string]float64
	calls  int
}

func (s *scriptSource) IDs() []string { return s.ids }

func (s *scriptSource) ReadAll(now time.Time) []models.Reading {
	step := s.script[len(s.script)-1]
	if s.calls < len(s.script) {
		step = s.script[s.calls]
	}
	s.calls++

	var out []models.Reading
	for i, id := range s.ids {
		v, ok := step[id]
		if !ok {
			continue
		}
		out = append(out, models.Reading{
			SensorID:    id,
			Consumption: v,
			Timestamp:   now.Add(time.Duration(s.calls*10+i) * time.Microsecond),
			Status:      "active",
		})
	}
	return out
}

type recordingReporter struct {
	mu      sync.Mutex
	events  []string
	ready   []models.Baseline
	missing []string
	found   []models.Anomaly
	normal  []int
	stats   []models.Stats
}

func (r *recordingReporter) add(e string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingReporter) Phase(n int, _ string) { r.add(fmt.Sprintf("phase %d", n)) }
func (r *recordingReporter) Collected(count int) { r.add(fmt.Sprintf("collected %d", count)) }
func (r *recordingReporter) BaselineReady(b models.Baseline) { r.ready = append(r.ready, b) }
func (r *recordingReporter) BaselineMissing(id string) { r.missing = append(r.missing, id) }
func (r *recordingReporter) Separator() {}
func (r *recordingReporter) Anomaly(a models.Anomaly) { r.found = append(r.found, a) }
func (r *recordingReporter) CycleNormal(cycle int) { r.normal = append(r.normal, cycle) }
func (r *recordingReporter) StatsHeader() { r.add("stats") }
func (r *recordingReporter) Stats(s models.Stats) { r.stats = append(r.stats, s) }

type recordingPublisher struct {
	anomalies []models.Anomaly
	baselines []models.Baseline
	err       error
}

func (p *recordingPublisher) StoreAnomaly(_ context.Context, a models.Anomaly) error {
	p.anomalies = append(p.anomalies, a)
	return p.err
}

func (p *recordingPublisher) StoreBaseline(_ context.Context, b models.Baseline) error {
	p.baselines = append(p.baselines, b)
	return p.err
}

type failingStore struct{}

func (failingStore) InsertReadings(context.Context, []models.Reading) (int, error) {
	return 0, errors.New("disk full")
}

func (failingStore) Statistics(context.Context, string) (models.Stats, error) {
	return models.Stats{}, storage.ErrNoReadings
}

func newStore(t *testing.T) *storage.SQLStore {
	t.Helper()
	s, err := storage.Open(context.Background(), storage.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testScript() *scriptSource {
	return &scriptSource{
		ids: []string{"S1", "S2"},
		script: []map[string]float64{
			{"S1": 100, "S2": 50},
			{"S1": 110},
			{"S1": 90},
			{"S1": 105, "S2": 500},
			{"S1": 200},
		},
	}
}

func TestMonitorRun_AllPhases(t *testing.T) {
	store := newStore(t)
	reporter := &recordingReporter{}
	publisher := &recordingPublisher{}
	detector := analytics.NewDetector(2.0)

	m := New(testScript(), store, detector, publisher, reporter, nil, Options{
		BaselineSamples:  3,
		MonitoringCycles: 2,
	})

	summary, err := m.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, summary.BaselineReadings)
	assert.Equal(t, 1, summary.Baselines)
	assert.Equal(t, 2, summary.Cycles)
	assert.Equal(t, 3, summary.Readings)
	assert.Equal(t, 1, summary.Anomalies)

	// S1 получает базовую линию, у S2 одно показание
	require.Len(t, reporter.ready, 1)
	assert.Equal(t, "S1", reporter.ready[0].SensorID)
	assert.InDelta(t, 80.0, reporter.ready[0].ThresholdLow, 1e-9)
	assert.InDelta(t, 120.0, reporter.ready[0].ThresholdHigh, 1e-9)
	assert.Equal(t, []string{"S2"}, reporter.missing)

	// цикл 1 в норме, цикл 2 - 200 kWh выше порога
	assert.Equal(t, []int{1}, reporter.normal)
	require.Len(t, reporter.found, 1)
	assert.Equal(t, models.KindHigh, reporter.found[0].Kind)
	assert.Equal(t, models.SeverityMedium, reporter.found[0].Severity)

	assert.Equal(t, reporter.found, publisher.anomalies)
	assert.Len(t, publisher.baselines, 1)

	require.Len(t, summary.Stats, 2)
	assert.Equal(t, int64(5), summary.Stats[0].Count)
	assert.Equal(t, 200.0, summary.Stats[0].Max)
	assert.Equal(t, int64(2), summary.Stats[1].Count)
	assert.Equal(t, summary.Stats, reporter.stats)

	assert.Equal(t, []string{"phase 1", "collected 4", "phase 2", "phase 3", "stats"}, reporter.events)
}

func TestMonitorRun_WithoutPublisher(t *testing.T) {
	reporter := &recordingReporter{}
	m := New(testScript(), newStore(t), analytics.NewDetector(2.0), nil, reporter, nil, Options{
		BaselineSamples:  3,
		MonitoringCycles: 2,
	})

	summary, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Anomalies)
}

func TestMonitorRun_PublisherErrorsIgnored(t *testing.T) {
	publisher := &recordingPublisher{err: errors.New("redis down")}
	m := New(testScript(), newStore(t), analytics.NewDetector(2.0), publisher, &recordingReporter{}, nil, Options{
		BaselineSamples:  3,
		MonitoringCycles: 2,
	})

	summary, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Anomalies)
	assert.Len(t, publisher.anomalies, 1)
}

func TestMonitorRun_StoreFailuresDoNotStopLoop(t *testing.T) {
	reporter := &recordingReporter{}
	m := New(testScript(), failingStore{}, analytics.NewDetector(2.0), nil, reporter, nil, Options{
		BaselineSamples:  3,
		MonitoringCycles: 2,
	})

	summary, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Cycles)
	assert.Empty(t, summary.Stats)
	assert.Empty(t, reporter.stats)
}

func TestMonitorRun_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reporter := &recordingReporter{}
	m := New(testScript(), newStore(t), analytics.NewDetector(2.0), nil, reporter, nil, Options{
		BaselineSamples:  3,
		MonitoringCycles: 2,
	})

	summary, err := m.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, summary.Cycles)
	assert.Empty(t, reporter.ready)
}

func TestMonitorRun_CancelledDuringSleep(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	m := New(testScript(), newStore(t), analytics.NewDetector(2.0), nil, &recordingReporter{}, nil, Options{
		BaselineSamples:  3,
		MonitoringCycles: 2,
		BaselineInterval: time.Hour,
	})

	start := time.Now()
	_, err := m.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestSleep(t *testing.T) {
	assert.NoError(t, sleep(context.Background(), 0))
	assert.NoError(t, sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleep(ctx, 0), context.Canceled)
	assert.ErrorIs(t, sleep(ctx, time.Hour), context.Canceled)
}
