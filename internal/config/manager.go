package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix префикс переменных окружения
const EnvPrefix = "ENERGY"

// Loader загружает Config через Viper
type Loader struct {
	path  string
	viper *viper.Viper
}

// NewLoader создает загрузчик. Пустой path - только окружение и значения по умолчанию,
// иначе файл обязателен.
func NewLoader(path string) *Loader {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	l := &Loader{path: path, viper: v}
	l.setDefaults()
	return l
}

// Viper возвращает экземпляр для привязки флагов
func (l *Loader) Viper() *viper.Viper {
	return l.viper
}

// Load читает все источники, собирает и проверяет конфигурацию
func (l *Loader) Load() (*Config, error) {
	// явно указанный файл обязан существовать
	if l.path != "" {
		l.viper.SetConfigFile(l.path)
		if err := l.viper.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", l.path, err)
			}
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg, err := l.unmarshalConfig()
	if err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		msgs := make([]string, 0, len(errs))
		for _, e := range errs {
			msgs = append(msgs, e.Error())
		}
		return nil, fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
	}

	return cfg, nil
}

// setDefaults задает значения по умолчанию в viper
func (l *Loader) setDefaults() {
	d := DefaultConfig()
	v := l.viper

	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout", d.Server.IdleTimeout)
	v.SetDefault("server.allowed_origins", d.Server.AllowedOrigins)
	v.SetDefault("server.ingest_rate_limit", d.Server.IngestRateLimit)
	v.SetDefault("server.ingest_burst", d.Server.IngestBurst)

	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.sqlite_path", d.Database.SQLitePath)
	v.SetDefault("database.postgres_url", d.Database.PostgresURL)

	v.SetDefault("redis.enabled", d.Redis.Enabled)
	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.password", d.Redis.Password)
	v.SetDefault("redis.db", d.Redis.DB)
	v.SetDefault("redis.retention", d.Redis.Retention)

	v.SetDefault("anomaly.threshold_multiplier", d.Anomaly.ThresholdMultiplier)
	v.SetDefault("anomaly.baseline_samples", d.Anomaly.BaselineSamples)
	v.SetDefault("anomaly.history_limit", d.Anomaly.HistoryLimit)
	v.SetDefault("anomaly.workers", d.Anomaly.Workers)
	v.SetDefault("anomaly.queue_size", d.Anomaly.QueueSize)
	v.SetDefault("anomaly.legacy_low_severity", d.Anomaly.LegacyLowSeverity)

	v.SetDefault("simulation.monitoring_cycles", d.Simulation.MonitoringCycles)
	v.SetDefault("simulation.reading_interval", d.Simulation.ReadingInterval)
	v.SetDefault("simulation.baseline_interval", d.Simulation.BaselineInterval)
	v.SetDefault("simulation.anomaly_probability", d.Simulation.AnomalyProbability)
	v.SetDefault("simulation.seed", d.Simulation.Seed)
	v.SetDefault("simulation.sensors", d.Simulation.Sensors)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.max_size_mb", d.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", d.Logging.MaxBackups)
	v.SetDefault("logging.max_age_days", d.Logging.MaxAgeDays)
}

// unmarshalConfig собирает Config из viper
func (l *Loader) unmarshalConfig() (*Config, error) {
	v := l.viper
	cfg := &Config{}

	cfg.Server.Port = v.GetInt("server.port")
	cfg.Server.ReadTimeout = v.GetDuration("server.read_timeout")
	cfg.Server.WriteTimeout = v.GetDuration("server.write_timeout")
	cfg.Server.IdleTimeout = v.GetDuration("server.idle_timeout")
	cfg.Server.AllowedOrigins = v.GetStringSlice("server.allowed_origins")
	cfg.Server.IngestRateLimit = v.GetFloat64("server.ingest_rate_limit")
	cfg.Server.IngestBurst = v.GetInt("server.ingest_burst")

	cfg.Database.Driver = strings.ToLower(v.GetString("database.driver"))
	cfg.Database.SQLitePath = v.GetString("database.sqlite_path")
	cfg.Database.PostgresURL = v.GetString("database.postgres_url")

	cfg.Redis.Enabled = v.GetBool("redis.enabled")
	cfg.Redis.Addr = v.GetString("redis.addr")
	cfg.Redis.Password = v.GetString("redis.password")
	cfg.Redis.DB = v.GetInt("redis.db")
	cfg.Redis.Retention = v.GetDuration("redis.retention")

	cfg.Anomaly.ThresholdMultiplier = v.GetFloat64("anomaly.threshold_multiplier")
	cfg.Anomaly.BaselineSamples = v.GetInt("anomaly.baseline_samples")
	cfg.Anomaly.HistoryLimit = v.GetInt("anomaly.history_limit")
	cfg.Anomaly.Workers = v.GetInt("anomaly.workers")
	cfg.Anomaly.QueueSize = v.GetInt("anomaly.queue_size")
	cfg.Anomaly.LegacyLowSeverity = v.GetBool("anomaly.legacy_low_severity")

	cfg.Simulation.MonitoringCycles = v.GetInt("simulation.monitoring_cycles")
	cfg.Simulation.ReadingInterval = v.GetDuration("simulation.reading_interval")
	cfg.Simulation.BaselineInterval = v.GetDuration("simulation.baseline_interval")
	cfg.Simulation.AnomalyProbability = v.GetFloat64("simulation.anomaly_probability")
	cfg.Simulation.Seed = v.GetUint64("simulation.seed")
	if err := v.UnmarshalKey("simulation.sensors", &cfg.Simulation.Sensors); err != nil {
		return nil, fmt.Errorf("simulation.sensors: %w", err)
	}

	cfg.Logging.Level = strings.ToLower(v.GetString("logging.level"))
	cfg.Logging.Format = strings.ToLower(v.GetString("logging.format"))
	cfg.Logging.File = v.GetString("logging.file")
	cfg.Logging.MaxSizeMB = v.GetInt("logging.max_size_mb")
	cfg.Logging.MaxBackups = v.GetInt("logging.max_backups")
	cfg.Logging.MaxAgeDays = v.GetInt("logging.max_age_days")

	return cfg, nil
}
