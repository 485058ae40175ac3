// Package config loads pipeline configuration from an optional config.yaml
// with environment overrides (INGEST_ prefix, dots mapped to underscores).
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full runtime configuration.
type Config struct {
	Store           StoreConfig   `mapstructure:"store"`
	MaxFileBytes    int64         `mapstructure:"max_file_bytes"`
	BatchInsertSize int           `mapstructure:"batch_insert_size"`
	Metrics         MetricsConfig `mapstructure:"metrics"`
}

type StoreConfig struct {
	Kind string `mapstructure:"kind"`
	DSN  string `mapstructure:"dsn"`

	// Procedures maps promotion procedure names to backend-local SQL, for
	// backends without stored procedures.
	Procedures map[string]string `mapstructure:"procedures"`
}

type MetricsConfig struct {
	// Backend selects the metrics sink: "datadog" or "" for none.
	Backend    string        `mapstructure:"backend"`
	Job        string        `mapstructure:"job"`
	Tags       string        `mapstructure:"tags"`
	FlushEvery time.Duration `mapstructure:"flush_every"`
}

// Default returns the configuration used when nothing is set: a local SQLite
// file, no metrics.
func Default() Config {
	return Config{
		Store:           StoreConfig{Kind: "sqlite", DSN: "file:ingest.db"},
		MaxFileBytes:    32 << 20,
		BatchInsertSize: 200,
	}
}

// Load reads config from dir (or the working directory when dir is empty).
// A missing config file is not an error; defaults plus environment apply.
func Load(dir string) (Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if dir == "" {
		dir = "."
	}
	v.AddConfigPath(dir)

	v.SetEnvPrefix("INGEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := Default()
	v.SetDefault("store.kind", def.Store.Kind)
	v.SetDefault("store.dsn", def.Store.DSN)
	v.SetDefault("max_file_bytes", def.MaxFileBytes)
	v.SetDefault("batch_insert_size", def.BatchInsertSize)
	v.SetDefault("metrics.backend", "")
	v.SetDefault("metrics.job", "ingest")
	v.SetDefault("metrics.flush_every", time.Minute)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("config: read: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}
