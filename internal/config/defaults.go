package config

import "time"

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Port = 8080
	cfg.Server.ReadTimeout = 10 * time.Second
	cfg.Server.WriteTimeout = 10 * time.Second
	cfg.Server.IdleTimeout = 60 * time.Second
	cfg.Server.AllowedOrigins = []string{"*"}
	cfg.Server.IngestRateLimit = 0
	cfg.Server.IngestBurst = 100

	cfg.Database.Driver = "sqlite"
	cfg.Database.SQLitePath = "energy_monitoring.db"
	cfg.Database.PostgresURL = ""

	cfg.Redis.Enabled = false
	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.Retention = time.Hour

	cfg.Anomaly.ThresholdMultiplier = 2.0
	cfg.Anomaly.BaselineSamples = 20
	cfg.Anomaly.HistoryLimit = 100
	cfg.Anomaly.Workers = 4
	cfg.Anomaly.QueueSize = 1000
	cfg.Anomaly.LegacyLowSeverity = false

	cfg.Simulation.MonitoringCycles = 30
	cfg.Simulation.ReadingInterval = 500 * time.Millisecond
	cfg.Simulation.BaselineInterval = 100 * time.Millisecond
	cfg.Simulation.AnomalyProbability = 0.05
	cfg.Simulation.Seed = 0 // 0 - случайный
	cfg.Simulation.Sensors = DefaultSensors()

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "console"
	cfg.Logging.File = ""
	cfg.Logging.MaxSizeMB = 100
	cfg.Logging.MaxBackups = 10
	cfg.Logging.MaxAgeDays = 30

	return cfg
}

// DefaultSensors сеть датчиков по умолчанию
func DefaultSensors() []SensorConfig {
	return []SensorConfig{
		{ID: "SENSOR_001", Location: "Main Office", Base: 150.0, Variance: 30.0},
		{ID: "SENSOR_002", Location: "Warehouse", Base: 250.0, Variance: 50.0},
		{ID: "SENSOR_003", Location: "Server Room", Base: 500.0, Variance: 75.0},
		{ID: "SENSOR_004", Location: "Cafeteria", Base: 100.0, Variance: 20.0},
	}
}
