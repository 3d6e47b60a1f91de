package commands

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"energy-monitor/internal/analytics"
	"energy-monitor/internal/cache"
	"energy-monitor/internal/config"
	"energy-monitor/internal/models"
	"energy-monitor/internal/storage"
)

func TestStoreDSN(t *testing.T) {
	c := config.DefaultConfig()
	assert.Equal(t, c.Database.SQLitePath, storeDSN(c))

	c.Database.Driver = storage.DriverPostgres
	c.Database.PostgresURL = "postgres://user@localhost/energy?sslmode=disable"
	assert.Equal(t, c.Database.PostgresURL, storeDSN(c))
}

func TestOpenCache_Disabled(t *testing.T) {
	rc, err := openCache(context.Background(), config.DefaultConfig())
	require.NoError(t, err)
	assert.Nil(t, rc)
}

func TestBuildNetwork_SeededIsDeterministic(t *testing.T) {
	c := config.DefaultConfig()
	c.Simulation.Seed = 7
	c.Simulation.AnomalyProbability = 0

	var added []string
	n1 := buildNetwork(c, func(id, _ string) { added = append(added, id) })
	n2 := buildNetwork(c, nil)

	assert.Equal(t, []string{"SENSOR_001", "SENSOR_002", "SENSOR_003", "SENSOR_004"}, added)
	assert.Equal(t, added, n1.IDs())

	now := time.Now()
	r1, r2 := n1.ReadAll(now), n2.ReadAll(now)
	require.Len(t, r1, 4)
	for i := range r1 {
		assert.Equal(t, r1[i].Consumption, r2[i].Consumption)
	}

	// без всплесков значения в пределах base +/- variance
	for i, sc := range c.Simulation.Sensors {
		assert.InDelta(t, sc.Base, r1[i].Consumption, sc.Variance+0.01)
	}
}

func TestBootstrapBaselines(t *testing.T) {
	ctx := context.Background()
	store, err := storage.Open(ctx, storage.DriverSQLite, ":memory:")
	require.NoError(t, err)
	defer store.Close()

	t0 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err = store.InsertReadings(ctx, []models.Reading{
		{SensorID: "A", Consumption: 10, Timestamp: t0},
		{SensorID: "A", Consumption: 20, Timestamp: t0.Add(time.Second)},
		{SensorID: "A", Consumption: 1000, Timestamp: t0.Add(-time.Hour)},
		{SensorID: "B", Consumption: 5, Timestamp: t0},
	})
	require.NoError(t, err)

	detector := analytics.NewDetector(2.0)
	n, err := bootstrapBaselines(ctx, store, detector, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// учитываются только два последних показания A
	b, ok := detector.Baseline("A")
	require.True(t, ok)
	assert.InDelta(t, 15.0, b.Mean, 1e-9)
	_, ok = detector.Baseline("B")
	assert.False(t, ok)
}

func TestServeHTTP_ShutsDownOnCancel(t *testing.T) {
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- serveHTTP(ctx, srv, zap.NewNop()) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	content := `
database:
  sqlite_path: ` + filepath.Join(dir, "energy.db") + `
anomaly:
  baseline_samples: 5
simulation:
  reading_interval: 0s
  baseline_interval: 0s
logging:
  level: error
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRunAndStatsCommands(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	rootCmd.SetArgs([]string{"run", "--config", cfgPath, "--cycles", "3", "--seed", "42"})
	require.NoError(t, rootCmd.Execute())

	got := out.String()
	assert.Contains(t, got, "Energy Monitoring System")
	assert.Contains(t, got, "Sensor SENSOR_001 added (Main Office)")
	assert.Contains(t, got, "20 readings collected")
	assert.Contains(t, got, "Final Statistics")
	assert.Contains(t, got, "Done")
	assert.Equal(t, 3, cfg.Simulation.MonitoringCycles)

	out.Reset()
	rootCmd.SetArgs([]string{"stats", "--config", cfgPath, "SENSOR_002", "GHOST"})
	require.NoError(t, rootCmd.Execute())

	got = out.String()
	assert.Contains(t, got, "SENSOR_002:")
	assert.Contains(t, got, "GHOST: no readings")
}

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	return &out
}

func seedReadings(t *testing.T, dir string) {
	t.Helper()
	ctx := context.Background()
	store, err := storage.Open(ctx, storage.DriverSQLite, filepath.Join(dir, "energy.db"))
	require.NoError(t, err)
	defer store.Close()

	t0 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err = store.InsertReadings(ctx, []models.Reading{
		{SensorID: "SENSOR_001", Consumption: 100, Timestamp: t0},
		{SensorID: "SENSOR_001", Consumption: 110, Timestamp: t0.Add(time.Second)},
	})
	require.NoError(t, err)
}

func TestClearCommand(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)
	seedReadings(t, dir)
	out := captureOutput(t)

	rootCmd.SetArgs([]string{"clear", "--config", cfgPath})
	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--force")

	rootCmd.SetArgs([]string{"clear", "--config", cfgPath, "--force"})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "All readings deleted")

	out.Reset()
	rootCmd.SetArgs([]string{"stats", "--config", cfgPath})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "No readings stored.")
}

func TestMissingConfigFileFails(t *testing.T) {
	captureOutput(t)

	rootCmd.SetArgs([]string{"stats", "--config", filepath.Join(t.TempDir(), "absent.yaml")})
	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "absent.yaml")
}

// изменяет постоянный флаг --redis, поэтому идет последним
func TestStatsShowsCachedBaseline(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)
	seedReadings(t, dir)

	mr := miniredis.RunT(t)
	rc, err := cache.NewRedisCache(context.Background(), mr.Addr(), "", 0, time.Hour)
	require.NoError(t, err)
	defer rc.Close()
	require.NoError(t, rc.StoreBaseline(context.Background(), models.Baseline{
		SensorID: "SENSOR_001", Mean: 105, ThresholdLow: 90.86, ThresholdHigh: 119.14,
	}))

	out := captureOutput(t)
	rootCmd.SetArgs([]string{"stats", "--config", cfgPath, "--redis", "--redis-addr", mr.Addr()})
	require.NoError(t, rootCmd.Execute())

	got := out.String()
	assert.Contains(t, got, "SENSOR_001:")
	assert.Contains(t, got, "threshold = [90.86, 119.14]")
}
