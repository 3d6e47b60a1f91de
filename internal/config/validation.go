package config

import (
	"fmt"
	"net"
)

// ValidationError ошибка проверки конфигурации
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed for %s: %s", e.Field, e.Message)
}

// Validate проверяет конфигурацию и возвращает все найденные ошибки
func (c *Config) Validate() []error {
	var errs []error
	add := func(field, format string, args ...any) {
		errs = append(errs, &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		add("server.port", "port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.IngestRateLimit < 0 {
		add("server.ingest_rate_limit", "rate limit cannot be negative")
	}
	if c.Server.IngestRateLimit > 0 && c.Server.IngestBurst < 1 {
		add("server.ingest_burst", "burst must be at least 1 when rate limiting is enabled")
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.SQLitePath == "" {
			add("database.sqlite_path", "sqlite_path is required for the sqlite driver")
		}
	case "postgres":
		if c.Database.PostgresURL == "" {
			add("database.postgres_url", "postgres_url is required for the postgres driver")
		}
	default:
		add("database.driver", "unsupported driver %q (expected sqlite or postgres)", c.Database.Driver)
	}

	if c.Redis.Enabled {
		if _, _, err := net.SplitHostPort(c.Redis.Addr); err != nil {
			add("redis.addr", "invalid address format (expected host:port): %v", err)
		}
		if c.Redis.Retention <= 0 {
			add("redis.retention", "retention must be positive")
		}
	}

	if c.Anomaly.ThresholdMultiplier <= 0 {
		add("anomaly.threshold_multiplier", "multiplier must be positive, got %.2f", c.Anomaly.ThresholdMultiplier)
	}
	if c.Anomaly.BaselineSamples < 1 {
		add("anomaly.baseline_samples", "baseline_samples must be at least 1, got %d", c.Anomaly.BaselineSamples)
	}
	if c.Anomaly.HistoryLimit < 2 {
		add("anomaly.history_limit", "history_limit must be at least 2, got %d", c.Anomaly.HistoryLimit)
	}
	if c.Anomaly.Workers < 1 {
		add("anomaly.workers", "workers must be at least 1, got %d", c.Anomaly.Workers)
	}
	if c.Anomaly.QueueSize < 1 {
		add("anomaly.queue_size", "queue_size must be at least 1, got %d", c.Anomaly.QueueSize)
	}

	if c.Simulation.MonitoringCycles < 0 {
		add("simulation.monitoring_cycles", "monitoring_cycles cannot be negative")
	}
	if c.Simulation.ReadingInterval < 0 || c.Simulation.BaselineInterval < 0 {
		add("simulation.reading_interval", "intervals cannot be negative")
	}
	if p := c.Simulation.AnomalyProbability; p < 0 || p > 1 {
		add("simulation.anomaly_probability", "probability must be in [0, 1], got %.2f", p)
	}
	seen := make(map[string]bool, len(c.Simulation.Sensors))
	for i, s := range c.Simulation.Sensors {
		field := fmt.Sprintf("simulation.sensors[%d]", i)
		if s.ID == "" {
			add(field, "sensor id is required")
			continue
		}
		if seen[s.ID] {
			add(field, "duplicate sensor id %q", s.ID)
		}
		seen[s.ID] = true
		if s.Base < 0 || s.Variance < 0 {
			add(field, "base and variance cannot be negative")
		}
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		add("logging.level", "unknown level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		add("logging.format", "unknown format %q (expected json or console)", c.Logging.Format)
	}

	return errs
}
