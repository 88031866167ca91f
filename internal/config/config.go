package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Dedupe   DedupeConfig   `yaml:"dedupe" mapstructure:"dedupe"`
	Enrich   EnrichConfig   `yaml:"enrich" mapstructure:"enrich"`
	Graph    GraphConfig    `yaml:"graph" mapstructure:"graph"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string     `yaml:"driver" mapstructure:"driver"` // sqlite | postgres
	DatabaseURL string     `yaml:"database_url" mapstructure:"database_url"`
	Pool        PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// PoolConfig holds optional connection pool tuning parameters (postgres only).
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// PipelineConfig configures batch ingestion behavior.
type PipelineConfig struct {
	// Timezone is the fixed reference civil timezone used to interpret
	// wall-clock timestamps that carry no explicit offset, and to derive
	// all local temporal fields.
	Timezone        string `yaml:"timezone" mapstructure:"timezone"`
	InsertChunkSize int    `yaml:"insert_chunk_size" mapstructure:"insert_chunk_size"`
	MaxErrorSamples int    `yaml:"max_error_samples" mapstructure:"max_error_samples"`
	FileConcurrency int    `yaml:"file_concurrency" mapstructure:"file_concurrency"`
}

// DedupeConfig configures duplicate detection tolerances.
type DedupeConfig struct {
	TimestampToleranceSecs int `yaml:"timestamp_tolerance_secs" mapstructure:"timestamp_tolerance_secs"`
	DurationToleranceSecs  int `yaml:"duration_tolerance_secs" mapstructure:"duration_tolerance_secs"`
	AdvisoryWindowSecs     int `yaml:"advisory_window_secs" mapstructure:"advisory_window_secs"`
}

// EnrichConfig configures cross-record enrichment.
type EnrichConfig struct {
	BurstGapMinutes  int     `yaml:"burst_gap_minutes" mapstructure:"burst_gap_minutes"`
	BaselineFraction float64 `yaml:"baseline_fraction" mapstructure:"baseline_fraction"`
}

// GraphConfig configures graph analytics.
type GraphConfig struct {
	MaxNodes   int     `yaml:"max_nodes" mapstructure:"max_nodes"` // hard ceiling
	Resolution float64 `yaml:"resolution" mapstructure:"resolution"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CDR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "cdr-insight.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("pipeline.timezone", "Asia/Kolkata")
	v.SetDefault("pipeline.insert_chunk_size", 500)
	v.SetDefault("pipeline.max_error_samples", 50)
	v.SetDefault("pipeline.file_concurrency", 4)
	v.SetDefault("dedupe.timestamp_tolerance_secs", 1)
	v.SetDefault("dedupe.duration_tolerance_secs", 1)
	v.SetDefault("dedupe.advisory_window_secs", 5)
	v.SetDefault("enrich.burst_gap_minutes", 5)
	v.SetDefault("enrich.baseline_fraction", 0.7)
	v.SetDefault("graph.max_nodes", 20000)
	v.SetDefault("graph.resolution", 1.0)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
