package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// Config holds all configuration settings for the application
type Config struct {
	Environment string          `mapstructure:"environment"`
	LogLevel    string          `mapstructure:"log_level"`
	Consensus   ConsensusConfig `mapstructure:"consensus"`
	Log         LogConfig       `mapstructure:"log"`
}

// ConsensusConfig holds the default parameters applied to new voting sessions
type ConsensusConfig struct {
	DefaultAlgorithm   string        `mapstructure:"default_algorithm"`
	ConflictResolution string        `mapstructure:"conflict_resolution"`
	Threshold          float64       `mapstructure:"threshold"`
	SessionTimeout     time.Duration `mapstructure:"session_timeout"`
	Calibration        float64       `mapstructure:"calibration"`
	HistoryLimit       int           `mapstructure:"history_limit"`
}

// LogConfig holds log file output settings
type LogConfig struct {
	OutputPath string `mapstructure:"output_path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// Algorithm and conflict-resolution names accepted by Validate. These mirror
// the enum values in pkg/consensus, which owns the canonical definitions.
var (
	knownAlgorithms = map[string]bool{
		"majority":            true,
		"weighted":            true,
		"unanimous":           true,
		"confidence_weighted": true,
		"threshold":           true,
	}
	knownResolutions = map[string]bool{
		"highest_confidence": true,
		"random":             true,
		"weighted_random":    true,
		"first":              true,
	}
)

// Load reads the configuration file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set default configuration values
	setDefaults(v)

	// Read the config file. With an explicit file path a missing file surfaces
	// as an fs.PathError rather than viper's ConfigFileNotFoundError; both mean
	// the same thing here: rely on defaults and env vars.
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Override with environment variables
	v.SetEnvPrefix("CONSENSUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Parse the configuration
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setDefaults sets default values for all configuration options
func setDefaults(v *viper.Viper) {
	// General defaults
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")

	// Consensus defaults
	v.SetDefault("consensus.default_algorithm", "majority")
	v.SetDefault("consensus.conflict_resolution", "highest_confidence")
	v.SetDefault("consensus.threshold", 0.5)
	v.SetDefault("consensus.session_timeout", "0s")
	v.SetDefault("consensus.calibration", 1.0)
	v.SetDefault("consensus.history_limit", 100)

	// Log output defaults
	v.SetDefault("log.output_path", "logs/consensus.log")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.compress", true)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := c.validateConsensus(); err != nil {
		return fmt.Errorf("consensus config: %w", err)
	}

	if err := c.validateLog(); err != nil {
		return fmt.Errorf("log config: %w", err)
	}

	return nil
}

func (c *Config) validateConsensus() error {
	cc := &c.Consensus

	if cc.DefaultAlgorithm != "" && !knownAlgorithms[cc.DefaultAlgorithm] {
		if cc.DefaultAlgorithm == "ranked_choice" {
			return fmt.Errorf("default_algorithm ranked_choice is reserved")
		}
		return fmt.Errorf("unknown default_algorithm: %q", cc.DefaultAlgorithm)
	}

	if cc.ConflictResolution != "" && !knownResolutions[cc.ConflictResolution] {
		return fmt.Errorf("unknown conflict_resolution: %q", cc.ConflictResolution)
	}

	if cc.Threshold <= 0 || cc.Threshold > 1 {
		return fmt.Errorf("threshold must be between 0 and 1")
	}

	if cc.SessionTimeout < 0 {
		return fmt.Errorf("session_timeout cannot be negative")
	}

	if cc.Calibration <= 0 {
		return fmt.Errorf("calibration must be positive")
	}

	if cc.HistoryLimit < 0 {
		return fmt.Errorf("history_limit cannot be negative")
	}

	return nil
}

func (c *Config) validateLog() error {
	if c.Log.OutputPath == "" {
		return fmt.Errorf("output_path cannot be empty")
	}

	if c.Log.MaxSizeMB <= 0 {
		return fmt.Errorf("max_size_mb must be positive")
	}

	if c.Log.MaxAgeDays < 0 {
		return fmt.Errorf("max_age_days cannot be negative")
	}

	if c.Log.MaxBackups < 0 {
		return fmt.Errorf("max_backups cannot be negative")
	}

	return nil
}

// GetLogLevel returns the zap level for the configured log_level, defaulting
// to info for unknown values
func (c *Config) GetLogLevel() zapcore.Level {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return zapcore.InfoLevel
	}
	return level
}

// IsDevelopment reports whether the application runs in development mode
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, "development")
}
