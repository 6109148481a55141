package unit

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/core-tools/hsu-sysd/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const webTOML = `
owner = "ops"

[unit]
name = "web"
description = "Web frontend"
team = "platform"

[service]
type = "simple"
path = "/usr/bin/web"
args = ["--port", "80"]
env = { MODE = "prod" }
stdout_path = "/var/log/web.out"
restart = "never"
`

const dbYAML = `
unit:
  name: db
service:
  type: Startup
  path: /usr/bin/db
  working_directory: /var/lib/db
  labels:
    tier: data
`

func TestParse_TOML(t *testing.T) {
	definition, err := Parse([]byte(webTOML), FormatTOML)
	require.NoError(t, err)

	assert.Equal(t, "web", definition.Name())
	assert.Equal(t, "Web frontend", definition.DescriptionOr("Not provided"))
	assert.Equal(t, StartupStyleSimple, definition.Service.Style)
	assert.False(t, definition.IsStartup())
	assert.Equal(t, "/usr/bin/web", definition.Service.Path)
	assert.Equal(t, []string{"--port", "80"}, definition.Service.Args)
	assert.Equal(t, map[string]string{"MODE": "prod"}, definition.Service.Env)
	assert.Equal(t, "/var/log/web.out", definition.Service.StdoutPath)
	assert.Empty(t, definition.Service.StderrPath)

	assert.Equal(t, "ops", definition.Extra["owner"])
	assert.Equal(t, "platform", definition.Unit.Extra["team"])
	assert.Equal(t, "never", definition.Service.Extra["restart"])
	assert.NotContains(t, definition.Service.Extra, "path")
}

func TestParse_YAML(t *testing.T) {
	definition, err := Parse([]byte(dbYAML), FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, "db", definition.Name())
	assert.Equal(t, "Not provided", definition.DescriptionOr("Not provided"))
	assert.True(t, definition.IsStartup())
	assert.Equal(t, "/var/lib/db", definition.Service.WorkingDirectory)
	assert.Equal(t, map[string]interface{}{"tier": "data"}, definition.Service.Extra["labels"])
	assert.Empty(t, definition.Extra)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format Format
	}{
		{"malformed toml", "[unit\nname=", FormatTOML},
		{"malformed yaml", "unit: [", FormatYAML},
		{"missing unit", "[service]\ntype = \"Simple\"\npath = \"/bin/x\"\n", FormatTOML},
		{"missing service", "[unit]\nname = \"x\"\n", FormatTOML},
		{"empty name", "[unit]\nname = \"\"\n[service]\ntype = \"Simple\"\npath = \"/bin/x\"\n", FormatTOML},
		{"empty path", "[unit]\nname = \"x\"\n[service]\ntype = \"Simple\"\n", FormatTOML},
		{"bad type", "[unit]\nname = \"x\"\n[service]\ntype = \"Forking\"\npath = \"/bin/x\"\n", FormatTOML},
		{"separator in name", "[unit]\nname = \"a/b\"\n[service]\ntype = \"Simple\"\npath = \"/bin/x\"\n", FormatTOML},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data), tt.format)
			require.Error(t, err)
			assert.True(t, errors.IsValidationError(err))
		})
	}
}

func TestParseStartupStyle(t *testing.T) {
	style, ok := ParseStartupStyle("STARTUP")
	assert.True(t, ok)
	assert.Equal(t, StartupStyleStartup, style)

	_, ok = ParseStartupStyle("")
	assert.False(t, ok)
}

func TestFormatForPath(t *testing.T) {
	assert.Equal(t, FormatYAML, FormatForPath("db.yaml"))
	assert.Equal(t, FormatYAML, FormatForPath("db.YML"))
	assert.Equal(t, FormatTOML, FormatForPath("web.toml"))
	assert.Equal(t, FormatTOML, FormatForPath("web"))
	assert.Equal(t, FormatTOML, FormatForPath("web.service"))
}

func TestParseFile_RecordsSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "web.toml")
	require.NoError(t, os.WriteFile(path, []byte(webTOML), 0644))

	definition, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, definition.SourceFile)

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.toml"))
	assert.True(t, errors.IsIOError(err))
}
