package unit

import (
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/core-tools/hsu-sysd/pkg/errors"
	"github.com/core-tools/hsu-sysd/pkg/logging"
)

// Registry holds the current snapshot of unit definitions, keyed by name.
// Load replaces the snapshot wholesale; readers never see a partial update.
type Registry struct {
	directory string
	units     map[string]*Definition
	mutex     sync.RWMutex
	logger    logging.Logger
}

func NewRegistry(directory string, logger logging.Logger) *Registry {
	return &Registry{
		directory: directory,
		units:     make(map[string]*Definition),
		logger:    logger,
	}
}

func (r *Registry) Directory() string {
	return r.directory
}

// Load reads every regular file of the unit directory and swaps in the new
// snapshot. On any failure the previous snapshot stays in place.
func (r *Registry) Load() error {
	units, err := LoadDirectory(r.directory, r.logger)
	if err != nil {
		r.logger.Errorf("Failed to load units, directory: %s, error: %v", r.directory, err)
		return err
	}

	r.mutex.Lock()
	r.units = units
	r.mutex.Unlock()

	r.logger.Infof("Units loaded, directory: %s, count: %d", r.directory, len(units))
	return nil
}

func (r *Registry) Get(name string) (*Definition, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	definition, ok := r.units[name]
	return definition, ok
}

// Lookup projects the named definition under the read lock
func Lookup[T any](r *Registry, name string, project func(*Definition) T) (T, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	definition, ok := r.units[name]
	if !ok {
		var zero T
		return zero, false
	}
	return project(definition), true
}

// ForEach visits every definition of one snapshot in name order
func (r *Registry) ForEach(visit func(*Definition)) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, name := range sortedNames(r.units) {
		visit(r.units[name])
	}
}

func (r *Registry) Names() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return sortedNames(r.units)
}

func (r *Registry) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.units)
}

// LoadDirectory parses all unit files of directory. Files are processed in
// name order, so on a name collision the later file wins.
func LoadDirectory(directory string, logger logging.Logger) (map[string]*Definition, error) {
	entries, err := os.ReadDir(directory)
	if err != nil {
		return nil, errors.NewIOError("failed to read units directory", err).WithContext("directory", directory)
	}
	// os.ReadDir already sorts by file name

	units := make(map[string]*Definition, len(entries))
	for _, entry := range entries {
		path := filepath.Join(directory, entry.Name())

		// Stat follows symlinks, so linked unit files load like regular ones
		info, err := os.Stat(path)
		if err != nil {
			logger.Warnf("Skipping unreadable unit entry, path: %s, error: %v", path, err)
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}

		definition, err := ParseFile(path)
		if err != nil {
			return nil, err
		}

		if previous, exists := units[definition.Name()]; exists {
			logger.Warnf("Duplicate unit name, name: %s, replaced: %s, by: %s",
				definition.Name(), previous.SourceFile, definition.SourceFile)
		}
		units[definition.Name()] = definition
	}
	return units, nil
}

func sortedNames(units map[string]*Definition) []string {
	names := make([]string, 0, len(units))
	for name := range units {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
