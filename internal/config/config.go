// Package config загружает конфигурацию energy-monitor.
//
// Источники (по убыванию приоритета): флаги CLI, переменные окружения ENERGY_*,
// YAML файл, значения по умолчанию.
package config

import "time"

// Config конфигурация приложения
type Config struct {
	Server struct {
		Port         int
		ReadTimeout  time.Duration
		WriteTimeout time.Duration
		IdleTimeout  time.Duration

		AllowedOrigins []string
		// IngestRateLimit запросов в секунду на прием показаний, 0 - без ограничения
		IngestRateLimit float64
		IngestBurst     int
	}

	Database struct {
		Driver      string // sqlite | postgres
		SQLitePath  string
		PostgresURL string
	}

	Redis struct {
		Enabled   bool
		Addr      string
		Password  string
		DB        int
		Retention time.Duration
	}

	Anomaly struct {
		ThresholdMultiplier float64
		BaselineSamples     int
		HistoryLimit        int
		Workers             int
		QueueSize           int
		LegacyLowSeverity   bool
	}

	Simulation struct {
		MonitoringCycles   int
		ReadingInterval    time.Duration
		BaselineInterval   time.Duration
		AnomalyProbability float64
		Seed               uint64
		Sensors            []SensorConfig
	}

	Logging struct {
		Level      string
		Format     string
		File       string
		MaxSizeMB  int
		MaxBackups int
		MaxAgeDays int
	}
}

// SensorConfig описание симулируемого датчика
type SensorConfig struct {
	ID       string  `mapstructure:"id"`
	Location string  `mapstructure:"location"`
	Base     float64 `mapstructure:"base"`
	Variance float64 `mapstructure:"variance"`
}
