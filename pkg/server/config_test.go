package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/core-tools/hsu-sysd/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromFile(t *testing.T) {
	tests := []struct {
		name        string
		configYAML  string
		expectError bool
		validate    func(t *testing.T, config *Config)
	}{
		{
			name: "full configuration",
			configYAML: `
server:
  name: mysysd
  base_directory: /opt/sysd
  units_directory: /etc/sysd/units
  log_directory: /var/log/sysd
  log_level: debug
  stop_timeout: 3s
  watch_units: true
  watch_debounce: 500ms
  pid_file: /run/sysd.pid
`,
			validate: func(t *testing.T, config *Config) {
				assert.Equal(t, "mysysd", config.Server.Name)
				assert.Equal(t, "/opt/sysd", config.Server.BaseDirectory)
				assert.Equal(t, "/etc/sysd/units", config.Server.UnitsDirectory)
				assert.Equal(t, "/var/log/sysd", config.Server.LogDirectory)
				assert.Equal(t, "debug", config.Server.LogLevel)
				assert.Equal(t, 3*time.Second, config.Server.StopTimeout)
				assert.True(t, config.Server.WatchUnits)
				assert.Equal(t, 500*time.Millisecond, config.Server.WatchDebounce)
				assert.Equal(t, "/run/sysd.pid", config.Server.PIDFile)
			},
		},
		{
			name:       "defaults applied",
			configYAML: "server: {}\n",
			validate: func(t *testing.T, config *Config) {
				assert.Equal(t, "sysd", config.Server.Name)
				assert.Equal(t, "info", config.Server.LogLevel)
				assert.Equal(t, 10*time.Second, config.Server.StopTimeout)
				assert.False(t, config.Server.WatchUnits)
			},
		},
		{
			name:        "malformed yaml",
			configYAML:  "server: [",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "sysd.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.configYAML), 0644))

			config, err := LoadConfigFromFile(path)
			if tt.expectError {
				assert.True(t, errors.IsValidationError(err))
				return
			}
			require.NoError(t, err)
			require.NoError(t, ValidateConfig(config))
			tt.validate(t, config)
		})
	}
}

func TestLoadConfigOrDefault(t *testing.T) {
	config, err := LoadConfigOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), config)

	_, err = LoadConfigFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errors.IsIOError(err))
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		modify func(config *Config)
	}{
		{"bad log level", func(c *Config) { c.Server.LogLevel = "verbose" }},
		{"name with separator", func(c *Config) { c.Server.Name = "a/b" }},
		{"negative stop timeout", func(c *Config) { c.Server.StopTimeout = -time.Second }},
		{"negative debounce", func(c *Config) { c.Server.WatchDebounce = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.modify(config)
			assert.True(t, errors.IsValidationError(ValidateConfig(config)))
		})
	}

	assert.Error(t, ValidateConfig(nil))
	assert.NoError(t, ValidateConfig(DefaultConfig()))
}

func TestConfig_ProcessFileConfig(t *testing.T) {
	config := DefaultConfig()
	config.Server.BaseDirectory = "/opt/sysd"
	config.Server.PIDFile = "/run/sysd.pid"

	layout := config.ProcessFileConfig()
	assert.Equal(t, "sysd", layout.AppName)
	assert.Equal(t, "/opt/sysd", layout.BaseDirectory)
	assert.Equal(t, "/run/sysd.pid", layout.PIDFile)
}
