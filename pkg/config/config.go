// Package config loads block store configuration from a YAML file,
// environment variables, and defaults: environment variables take
// precedence over the file, and the file over defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for a blockstorectl-driven
// deployment: logging behavior, whether Prometheus metrics are
// collected, and the set of named stores available for dispatch.
type Config struct {
	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// MetricsEnabled holds the metrics_enabled setting. No code in this
	// module reads it, so it does not by itself switch Prometheus
	// registration on or off.
	MetricsEnabled bool `mapstructure:"metrics_enabled" yaml:"metrics_enabled"`

	// Stores maps a store name to its configuration. The entry named by
	// Default is the one CreateDefaultStore constructs.
	Stores map[string]StoreConfig `mapstructure:"stores" yaml:"stores"`

	// Default names the store in Stores to use when none is specified
	// explicitly.
	Default string `mapstructure:"default" yaml:"default"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output: DEBUG, INFO, WARN, ERROR.
	Level string `mapstructure:"level" yaml:"level"`

	// Format selects "text" or "json" output.
	Format string `mapstructure:"format" yaml:"format"`

	// Color enables ANSI color in text-format output.
	Color bool `mapstructure:"color" yaml:"color"`
}

// Load reads configuration from configPath (if non-empty and present),
// overlays environment variables prefixed BLOCKS_, and fills in
// defaults for anything left unset.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if !found {
		return cfg, nil
	}

	hook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.TextUnmarshallerHookFunc(),
	)
	if err := v.Unmarshal(cfg, viper.DecodeHook(hook)); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	applyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to path in YAML form with owner-only
// permissions, since store configs may carry credentials.
func SaveConfig(cfg *Config, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: create directory: %w", err)
		}
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "INFO", Format: "text"},
		Stores:  map[string]StoreConfig{},
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

// Validate checks cfg for internally-consistent references: a
// configured Default must name an entry in Stores.
func Validate(cfg *Config) error {
	if cfg.Default != "" {
		if _, ok := cfg.Stores[cfg.Default]; !ok {
			return fmt.Errorf("config: default store %q is not defined in stores", cfg.Default)
		}
	}
	for name, sc := range cfg.Stores {
		if sc.Type == "" {
			return fmt.Errorf("config: store %q has no type", name)
		}
	}
	return nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("BLOCKS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(".")
	v.SetConfigName("blocks")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		return false, fmt.Errorf("config: read config file: %w", err)
	}
	return true, nil
}
