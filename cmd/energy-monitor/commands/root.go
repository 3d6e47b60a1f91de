package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"energy-monitor/internal/config"
	"energy-monitor/internal/logging"
)

var (
	cfgFile string
	loader  *config.Loader

	// заполняются в PersistentPreRunE
	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "energy-monitor",
	Short: "Energy consumption monitoring and anomaly detection",
	Long: `energy-monitor simulates a network of energy sensors, stores readings
in SQLite or PostgreSQL and flags readings outside the per-sensor baseline.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := bindFlags(cmd); err != nil {
			return err
		}

		var err error
		cfg, err = loader.Load()
		if err != nil {
			return err
		}

		logger, err = logging.New(logging.Options{
			Level:      cfg.Logging.Level,
			Format:     cfg.Logging.Format,
			File:       cfg.Logging.File,
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
		})
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// Execute запускает CLI
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Persistent Flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Path to YAML config file")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.String("log-format", "", "Log format (console, json)")
	flags.String("db-driver", "", "Database driver (sqlite, postgres)")
	flags.String("db-path", "", "SQLite database path")
	flags.String("postgres-url", "", "PostgreSQL connection string")
	flags.Bool("redis", false, "Enable the Redis anomaly cache")
	flags.String("redis-addr", "", "Redis address (host:port)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(clearCmd)
}

// flagKeys соответствие флагов ключам конфигурации
var flagKeys = map[string]string{
	"log-level":    "logging.level",
	"log-format":   "logging.format",
	"db-driver":    "database.driver",
	"db-path":      "database.sqlite_path",
	"postgres-url": "database.postgres_url",
	"redis":        "redis.enabled",
	"redis-addr":   "redis.addr",
	"cycles":       "simulation.monitoring_cycles",
	"seed":         "simulation.seed",
	"port":         "server.port",
}

func initConfig() {
	loader = config.NewLoader(cfgFile)
}

// bindFlags привязывает флаги выполняемой команды к ключам viper
func bindFlags(cmd *cobra.Command) error {
	v := loader.Viper()
	for name, key := range flagKeys {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}
