// Package config loads and validates deeplogs configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/GuyChahine/deeplogs/internal/logging"
	"github.com/GuyChahine/deeplogs/internal/storage/gcs"
)

// Storage backends.
const (
	BackendLocal  = "local"
	BackendMemory = "memory"
	BackendGCS    = "gcs"
	BackendSQL    = "sql"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Logging logging.Config `mapstructure:"logging"`
	Storage StorageConfig  `mapstructure:"storage"`
	Session SessionConfig  `mapstructure:"session"`
	Bar     BarConfig      `mapstructure:"bar"`
	Metrics MetricsConfig  `mapstructure:"metrics"`
}

// StorageConfig selects where session records and images are kept.
type StorageConfig struct {
	Backend string     `mapstructure:"backend"`
	BaseDir string     `mapstructure:"base_dir"`
	GCS     gcs.Config `mapstructure:"gcs"`
	SQL     SQLConfig  `mapstructure:"sql"`
}

// SQLConfig points the sql backend at a database.
type SQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// SessionConfig controls deferred flushing.
type SessionConfig struct {
	SaveInterval time.Duration `mapstructure:"save_interval"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// BarConfig controls progress bar rendering.
type BarConfig struct {
	RunningMeanSize int           `mapstructure:"running_mean_size"`
	Size            int           `mapstructure:"bar_size"`
	PrintInterval   time.Duration `mapstructure:"print_interval"`
	FillChar        string        `mapstructure:"fill_char"`
	EmptyChar       string        `mapstructure:"empty_char"`
	Color           bool          `mapstructure:"color"`
}

// MetricsConfig toggles Prometheus collectors. When Textfile is set the
// registry is written there in text exposition format on shutdown.
type MetricsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Textfile string `mapstructure:"textfile"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DEEPLOGS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", logging.DefaultMaxSizeMB)
	v.SetDefault("logging.max_backups", logging.DefaultMaxBackups)
	v.SetDefault("logging.max_age_days", logging.DefaultMaxAgeDays)
	v.SetDefault("logging.compress", false)
	v.SetDefault("storage.backend", BackendLocal)
	v.SetDefault("storage.base_dir", "./dplogs")
	v.SetDefault("storage.gcs.bucket", "")
	v.SetDefault("storage.gcs.prefix", "")
	v.SetDefault("storage.sql.dsn", "")
	v.SetDefault("session.save_interval", "5s")
	v.SetDefault("session.write_timeout", "30s")
	v.SetDefault("bar.running_mean_size", 1)
	v.SetDefault("bar.bar_size", 10)
	v.SetDefault("bar.print_interval", "200ms")
	v.SetDefault("bar.fill_char", "█")
	v.SetDefault("bar.empty_char", " ")
	v.SetDefault("bar.color", false)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.textfile", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	switch c.Storage.Backend {
	case BackendLocal:
		if strings.TrimSpace(c.Storage.BaseDir) == "" {
			return fmt.Errorf("storage.base_dir must be set for the local backend")
		}
	case BackendMemory:
	case BackendGCS:
		if c.Storage.GCS.Bucket == "" {
			return fmt.Errorf("storage.gcs.bucket must be set for the gcs backend")
		}
	case BackendSQL:
		if strings.TrimSpace(c.Storage.SQL.DSN) == "" {
			return fmt.Errorf("storage.sql.dsn must be set for the sql backend")
		}
	default:
		return fmt.Errorf("storage.backend %q is not one of local, memory, gcs, sql", c.Storage.Backend)
	}
	if c.Session.SaveInterval <= 0 {
		return fmt.Errorf("session.save_interval must be > 0")
	}
	if c.Session.WriteTimeout <= 0 {
		return fmt.Errorf("session.write_timeout must be > 0")
	}
	if c.Bar.RunningMeanSize <= 0 {
		return fmt.Errorf("bar.running_mean_size must be > 0")
	}
	if c.Bar.Size <= 0 {
		return fmt.Errorf("bar.bar_size must be > 0")
	}
	if c.Bar.PrintInterval < 0 {
		return fmt.Errorf("bar.print_interval must be >= 0")
	}
	if c.Bar.FillChar == "" || c.Bar.EmptyChar == "" {
		return fmt.Errorf("bar.fill_char and bar.empty_char must not be empty")
	}
	return nil
}
