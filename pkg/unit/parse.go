package unit

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/core-tools/hsu-sysd/pkg/errors"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Format is the syntax of a unit file
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// FormatForPath picks YAML for .yaml/.yml files and TOML for everything else
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatTOML
	}
}

var (
	knownTopLevelKeys = []string{"unit", "service"}
	knownUnitKeys     = []string{"name", "description"}
	knownServiceKeys  = []string{"type", "path", "args", "env", "stdout_path", "stderr_path", "working_directory"}
)

// document mirrors the unit file schema for decoding
type document struct {
	Unit struct {
		Name        string `toml:"name" yaml:"name"`
		Description string `toml:"description" yaml:"description"`
	} `toml:"unit" yaml:"unit"`
	Service struct {
		Type             string            `toml:"type" yaml:"type"`
		Path             string            `toml:"path" yaml:"path"`
		Args             []string          `toml:"args" yaml:"args"`
		Env              map[string]string `toml:"env" yaml:"env"`
		StdoutPath       string            `toml:"stdout_path" yaml:"stdout_path"`
		StderrPath       string            `toml:"stderr_path" yaml:"stderr_path"`
		WorkingDirectory string            `toml:"working_directory" yaml:"working_directory"`
	} `toml:"service" yaml:"service"`
}

// ParseFile reads and parses a single unit file
func ParseFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewIOError("failed to read unit file", err).WithContext("file", path)
	}

	definition, err := Parse(data, FormatForPath(path))
	if err != nil {
		return nil, errors.NewValidationError(fmt.Sprintf("invalid unit file %s", filepath.Base(path)), err).WithContext("file", path)
	}
	definition.SourceFile = path
	return definition, nil
}

// Parse decodes a unit file body. Keys outside the known schema are kept in
// the Extra maps.
func Parse(data []byte, format Format) (*Definition, error) {
	var doc document
	raw := make(map[string]interface{})

	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, errors.NewValidationError("failed to parse YAML", err)
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, errors.NewValidationError("failed to parse YAML", err)
		}
	case FormatTOML:
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, errors.NewValidationError("failed to parse TOML", err)
		}
		if err := toml.Unmarshal(data, &raw); err != nil {
			return nil, errors.NewValidationError("failed to parse TOML", err)
		}
	default:
		return nil, errors.NewValidationError(fmt.Sprintf("unsupported unit file format: %s", format), nil)
	}

	definition := &Definition{
		Unit: UnitSection{
			Name:        strings.TrimSpace(doc.Unit.Name),
			Description: doc.Unit.Description,
			Extra:       extraKeys(section(raw, "unit"), knownUnitKeys),
		},
		Service: ServiceSection{
			Path:             doc.Service.Path,
			Args:             doc.Service.Args,
			Env:              doc.Service.Env,
			StdoutPath:       doc.Service.StdoutPath,
			StderrPath:       doc.Service.StderrPath,
			WorkingDirectory: doc.Service.WorkingDirectory,
			Extra:            extraKeys(section(raw, "service"), knownServiceKeys),
		},
		Extra: extraKeys(raw, knownTopLevelKeys),
	}

	if _, ok := raw["unit"]; !ok {
		return nil, errors.NewValidationError("missing [unit] section", nil)
	}
	if _, ok := raw["service"]; !ok {
		return nil, errors.NewValidationError("missing [service] section", nil)
	}

	style, ok := ParseStartupStyle(doc.Service.Type)
	if !ok {
		return nil, errors.NewValidationError(
			fmt.Sprintf("invalid service type: %q", doc.Service.Type),
			nil,
		).WithContext("valid_types", "Simple, Startup")
	}
	definition.Service.Style = style

	if err := ValidateDefinition(definition); err != nil {
		return nil, err
	}
	return definition, nil
}

// ValidateDefinition checks the required fields of a parsed unit
func ValidateDefinition(definition *Definition) error {
	if definition.Unit.Name == "" {
		return errors.NewValidationError("unit name cannot be empty", nil)
	}
	if strings.ContainsAny(definition.Unit.Name, `/\`) {
		return errors.NewValidationError("unit name cannot contain path separators", nil).WithContext("name", definition.Unit.Name)
	}
	if definition.Service.Path == "" {
		return errors.NewValidationError("service path is required", nil).WithContext("name", definition.Unit.Name)
	}
	for key := range definition.Service.Env {
		if key == "" || strings.Contains(key, "=") {
			return errors.NewValidationError("invalid environment variable name: "+key, nil).WithContext("name", definition.Unit.Name)
		}
	}
	return nil
}

func section(raw map[string]interface{}, key string) map[string]interface{} {
	if value, ok := raw[key].(map[string]interface{}); ok {
		return value
	}
	return nil
}

func extraKeys(values map[string]interface{}, known []string) map[string]interface{} {
	extra := make(map[string]interface{})
	for key, value := range values {
		if !contains(known, key) {
			extra[key] = value
		}
	}
	return extra
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
