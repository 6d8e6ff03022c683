// Package config loads the dvhgrab configuration file.
package config

import (
	"fmt"
	"strings"

	"github.com/mrsinham/dvhgrab/internal/alias"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes the environment variables overriding configuration
// keys, e.g. DVHGRAB_ANALYSIS_MODE.
const EnvPrefix = "DVHGRAB"

// Config represents the complete application configuration
type Config struct {
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Report   ReportConfig   `mapstructure:"report"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// AnalysisConfig holds the analysis defaults
type AnalysisConfig struct {
	ConfigsDir   string   `mapstructure:"configs_dir"`
	Default      string   `mapstructure:"default"`
	Mode         string   `mapstructure:"mode"`
	Prescription float64  `mapstructure:"prescription"`
	Aliases      []string `mapstructure:"aliases"`
}

// ArchiveConfig holds archive reading options
type ArchiveConfig struct {
	DescribeTag string `mapstructure:"describe_tag"`
}

// ReportConfig holds output options
type ReportConfig struct {
	Export string `mapstructure:"export"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Relative reports whether the configured mode is relative.
func (a AnalysisConfig) Relative() bool {
	return strings.EqualFold(a.Mode, "relative")
}

// Load reads configuration from an optional file and environment
// variables. An empty path uses defaults and the environment only.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	v.SetDefault("analysis.configs_dir", "configs")
	v.SetDefault("analysis.default", "")
	v.SetDefault("analysis.mode", "relative")
	v.SetDefault("analysis.prescription", -1.0)
	v.SetDefault("analysis.aliases", []string{})

	v.SetDefault("archive.describe_tag", "StudyDescription")

	v.SetDefault("report.export", "full")

	v.SetDefault("logging.level", "warn")
	v.SetDefault("logging.format", "text")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.Analysis.ConfigsDir == "" {
		return fmt.Errorf("analysis.configs_dir is required")
	}
	mode := strings.ToLower(c.Analysis.Mode)
	if mode != "relative" && mode != "absolute" {
		return fmt.Errorf("analysis.mode must be one of: relative, absolute")
	}
	if c.Analysis.Prescription == 0 || (c.Analysis.Prescription < 0 && c.Analysis.Prescription != -1) {
		return fmt.Errorf("analysis.prescription must be positive, or -1 when unset")
	}
	for _, a := range c.Analysis.Aliases {
		if _, _, err := alias.ParseCommand(a); err != nil {
			return fmt.Errorf("analysis.aliases: %w", err)
		}
	}

	if c.Archive.DescribeTag == "" {
		return fmt.Errorf("archive.describe_tag is required")
	}

	export := strings.ToLower(c.Report.Export)
	if export != "full" && export != "values" {
		return fmt.Errorf("report.export must be one of: full, values")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
