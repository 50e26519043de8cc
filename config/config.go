// Package config loads the service configuration from file, environment
// and defaults.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AlertStrategy selects how alert aggregation runs.
type AlertStrategy string

const (
	// StrategyGroupBy aggregates in one exact GROUP BY statement.
	StrategyGroupBy AlertStrategy = "groupby"
	// StrategyStream aggregates row by row under a time budget and may
	// return a partial, timed-out result.
	StrategyStream AlertStrategy = "stream"
)

// Config holds all configuration for the event store.
type Config struct {
	// DataPaths holds data directory configuration
	DataPaths struct {
		// DataDir is the base data directory (EVECONSOLE_DATA_DIR, default: ./data)
		DataDir string `mapstructure:"data_dir"`
		// DatabasePath is the SQLite database file path (EVECONSOLE_DATABASE_PATH, default: ${DataDir}/events.sqlite)
		DatabasePath string `mapstructure:"database_path"`
	} `mapstructure:"data_paths"`

	Database struct {
		// MaxReadConns caps the read connection pool
		MaxReadConns int `mapstructure:"max_read_conns"`
	} `mapstructure:"database"`

	Alerts struct {
		// Strategy is "groupby" or "stream"
		Strategy AlertStrategy `mapstructure:"strategy"`
		// TimeBudget bounds the streaming strategy's scan time
		TimeBudget time.Duration `mapstructure:"time_budget"`
	} `mapstructure:"alerts"`

	Query struct {
		// LogQueries logs every generated SQL statement with its arguments
		LogQueries bool `mapstructure:"log_queries"`
	} `mapstructure:"query"`
}

func setDefaults() {
	viper.SetDefault("data_paths.data_dir", "./data")
	viper.SetDefault("database.max_read_conns", 10)
	viper.SetDefault("alerts.strategy", string(StrategyGroupBy))
	viper.SetDefault("alerts.time_budget", 3*time.Second)
	viper.SetDefault("query.log_queries", false)
}

// Load reads configuration from config.yaml (working directory or
// ./config), the EVECONSOLE_* environment, and built-in defaults, in
// that order of precedence.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()

	viper.SetEnvPrefix("EVECONSOLE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, will use defaults and env vars
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	config.resolveDataPaths()

	return &config, nil
}

func (c *Config) validate() error {
	switch c.Alerts.Strategy {
	case StrategyGroupBy, StrategyStream:
	default:
		return fmt.Errorf("invalid alerts.strategy: %q", c.Alerts.Strategy)
	}
	if c.Alerts.TimeBudget <= 0 {
		return fmt.Errorf("alerts.time_budget must be positive, got %s", c.Alerts.TimeBudget)
	}
	if c.Database.MaxReadConns < 1 {
		return fmt.Errorf("database.max_read_conns must be at least 1, got %d", c.Database.MaxReadConns)
	}
	return nil
}

// resolveDataPaths derives unset paths from DataDir.
func (c *Config) resolveDataPaths() {
	dataDir := c.DataPaths.DataDir
	if dataDir == "" {
		dataDir = "./data"
		c.DataPaths.DataDir = dataDir
	}
	if c.DataPaths.DatabasePath == "" {
		c.DataPaths.DatabasePath = filepath.Join(dataDir, "events.sqlite")
	} else if !filepath.IsAbs(c.DataPaths.DatabasePath) {
		c.DataPaths.DatabasePath = filepath.Clean(c.DataPaths.DatabasePath)
	}
}
