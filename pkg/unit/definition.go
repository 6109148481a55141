package unit

import (
	"strings"
)

// StartupStyle tells whether a unit is launched at server boot or only on demand
type StartupStyle string

const (
	StartupStyleSimple  StartupStyle = "Simple"
	StartupStyleStartup StartupStyle = "Startup"
)

// ParseStartupStyle accepts the style names case-insensitively
func ParseStartupStyle(s string) (StartupStyle, bool) {
	switch {
	case strings.EqualFold(s, string(StartupStyleSimple)):
		return StartupStyleSimple, true
	case strings.EqualFold(s, string(StartupStyleStartup)):
		return StartupStyleStartup, true
	default:
		return "", false
	}
}

// Definition is one loaded unit file. It is shared by every reader of a
// registry snapshot and must not be modified after loading.
type Definition struct {
	Unit    UnitSection
	Service ServiceSection

	// Top-level keys other than [unit] and [service]
	Extra map[string]interface{}

	// File the definition was parsed from
	SourceFile string
}

// UnitSection holds the identity of a unit
type UnitSection struct {
	Name        string
	Description string

	// Keys of the unit section this program does not interpret
	Extra map[string]interface{}
}

// ServiceSection describes how to launch the unit's process
type ServiceSection struct {
	Style            StartupStyle
	Path             string
	Args             []string
	Env              map[string]string
	StdoutPath       string
	StderrPath       string
	WorkingDirectory string

	// Keys of the service section this program does not interpret
	Extra map[string]interface{}
}

func (d *Definition) Name() string {
	return d.Unit.Name
}

// DescriptionOr returns the description, or fallback when none was provided
func (d *Definition) DescriptionOr(fallback string) string {
	if d.Unit.Description == "" {
		return fallback
	}
	return d.Unit.Description
}

func (d *Definition) IsStartup() bool {
	return d.Service.Style == StartupStyleStartup
}
