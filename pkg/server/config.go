package server

import (
	"fmt"
	"os"
	"time"

	"github.com/core-tools/hsu-sysd/pkg/errors"
	"github.com/core-tools/hsu-sysd/pkg/logging"
	"github.com/core-tools/hsu-sysd/pkg/processfile"
	"github.com/core-tools/hsu-sysd/pkg/singleton"
	"github.com/core-tools/hsu-sysd/pkg/supervisor"

	"gopkg.in/yaml.v3"
)

// Config represents the top-level settings file structure
type Config struct {
	Server ServerConfigOptions `yaml:"server"`
}

// ServerConfigOptions represents server-level settings. Empty paths are
// derived from the base directory.
type ServerConfigOptions struct {
	Name             string        `yaml:"name,omitempty"`
	BaseDirectory    string        `yaml:"base_directory,omitempty"`
	UnitsDirectory   string        `yaml:"units_directory,omitempty"`
	LogDirectory     string        `yaml:"log_directory,omitempty"`
	RuntimeDirectory string        `yaml:"runtime_directory,omitempty"`
	PIDFile          string        `yaml:"pid_file,omitempty"`
	LogLevel         string        `yaml:"log_level,omitempty"`
	StopTimeout      time.Duration `yaml:"stop_timeout,omitempty"`
	WatchUnits       bool          `yaml:"watch_units,omitempty"`
	WatchDebounce    time.Duration `yaml:"watch_debounce,omitempty"`
}

// DefaultConfig returns the settings used when no settings file exists
func DefaultConfig() *Config {
	config := &Config{}
	setConfigDefaults(config)
	return config
}

// LoadConfigFromFile loads server settings from a YAML file
func LoadConfigFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.NewIOError("failed to read configuration file", err).WithContext("filename", filename)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.NewValidationError("failed to parse YAML configuration", err).WithContext("filename", filename)
	}

	setConfigDefaults(&config)
	return &config, nil
}

// LoadConfigOrDefault loads filename, falling back to defaults when the
// file doesn't exist
func LoadConfigOrDefault(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	return LoadConfigFromFile(filename)
}

// ValidateConfig validates the entire configuration structure
func ValidateConfig(config *Config) error {
	if config == nil {
		return errors.NewValidationError("configuration cannot be nil", nil)
	}
	if err := validateServerConfig(&config.Server); err != nil {
		return errors.NewValidationError("invalid server configuration", err)
	}
	return nil
}

// ProcessFileConfig maps the settings onto the on-disk layout
func (c *Config) ProcessFileConfig() processfile.ProcessFileConfig {
	return processfile.ProcessFileConfig{
		BaseDirectory:    c.Server.BaseDirectory,
		AppName:          c.Server.Name,
		UnitsDirectory:   c.Server.UnitsDirectory,
		LogDirectory:     c.Server.LogDirectory,
		PIDFile:          c.Server.PIDFile,
		RuntimeDirectory: c.Server.RuntimeDirectory,
	}
}

func setConfigDefaults(config *Config) {
	if config.Server.Name == "" {
		config.Server.Name = processfile.DefaultAppName
	}
	if config.Server.LogLevel == "" {
		config.Server.LogLevel = "info"
	}
	if config.Server.StopTimeout == 0 {
		config.Server.StopTimeout = supervisor.DefaultStopTimeout
	}
}

func validateServerConfig(config *ServerConfigOptions) error {
	if err := singleton.ValidateID(config.Name); err != nil {
		return errors.NewValidationError(fmt.Sprintf("invalid server name: %q", config.Name), err)
	}

	if _, err := logging.ParseLevel(config.LogLevel); err != nil {
		return errors.NewValidationError(
			fmt.Sprintf("invalid log level: %s", config.LogLevel),
			err,
		).WithContext("valid_levels", "debug, info, warn, error")
	}

	if config.StopTimeout < 0 {
		return errors.NewValidationError("stop timeout cannot be negative", nil).WithContext("stop_timeout", config.StopTimeout.String())
	}
	if config.WatchDebounce < 0 {
		return errors.NewValidationError("watch debounce cannot be negative", nil).WithContext("watch_debounce", config.WatchDebounce.String())
	}
	return nil
}
