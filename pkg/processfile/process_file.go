package processfile

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/core-tools/hsu-sysd/pkg/errors"
	"github.com/core-tools/hsu-sysd/pkg/logging"
)

// Default application name, used for the lock id, endpoint name and file names
const DefaultAppName = "sysd"

const (
	unitsDirectoryName = "configs"
	logDirectoryName   = "log"
)

// ProcessFileConfig holds configuration for the on-disk layout of the server
// (unit directory, log files, PID file, control endpoint)
type ProcessFileConfig struct {
	// Base directory for everything below. If empty, the executable's directory is used
	BaseDirectory string

	// Application name for lock, endpoint and file names
	AppName string

	// Overrides; empty means derived from BaseDirectory
	UnitsDirectory string
	LogDirectory   string
	PIDFile        string

	// Directory holding the Unix domain socket. Ignored on Windows
	RuntimeDirectory string
}

// ProcessFileManager resolves paths of the server layout and manages the PID file
type ProcessFileManager struct {
	config ProcessFileConfig
	logger logging.Logger
}

// NewProcessFileManager creates a new process file manager with the given configuration
func NewProcessFileManager(config ProcessFileConfig, logger logging.Logger) *ProcessFileManager {
	if config.AppName == "" {
		config.AppName = DefaultAppName
	}
	if config.BaseDirectory == "" {
		config.BaseDirectory = executableDirectory()
	}

	return &ProcessFileManager{
		config: config,
		logger: logger,
	}
}

func (m *ProcessFileManager) AppName() string {
	return m.config.AppName
}

func (m *ProcessFileManager) BaseDirectory() string {
	return m.config.BaseDirectory
}

// LockID is the system-wide identifier of the singleton lease
func (m *ProcessFileManager) LockID() string {
	return m.config.AppName
}

// UnitsDirectoryPath returns the directory unit files are loaded from
func (m *ProcessFileManager) UnitsDirectoryPath() string {
	if m.config.UnitsDirectory != "" {
		return m.config.UnitsDirectory
	}
	return filepath.Join(m.config.BaseDirectory, unitsDirectoryName)
}

// LogDirectoryPath returns the directory holding default per-unit output logs
func (m *ProcessFileManager) LogDirectoryPath() string {
	if m.config.LogDirectory != "" {
		return m.config.LogDirectory
	}
	return filepath.Join(m.config.BaseDirectory, logDirectoryName)
}

// ServerLogFilePath returns the server's own log file, beside the executable by default
func (m *ProcessFileManager) ServerLogFilePath() string {
	return filepath.Join(m.config.BaseDirectory, m.config.AppName+".log")
}

// UnitStdoutLogPath returns the default stdout log file of a unit
func (m *ProcessFileManager) UnitStdoutLogPath(unitName string) string {
	stdout, _ := UnitLogPaths(m.LogDirectoryPath(), unitName)
	return stdout
}

// UnitStderrLogPath returns the default stderr log file of a unit
func (m *ProcessFileManager) UnitStderrLogPath(unitName string) string {
	_, stderr := UnitLogPaths(m.LogDirectoryPath(), unitName)
	return stderr
}

// UnitLogPaths returns <logDirectory>/<unit>-stdout.log and <unit>-stderr.log
func UnitLogPaths(logDirectory, unitName string) (stdout, stderr string) {
	return filepath.Join(logDirectory, unitName+"-stdout.log"),
		filepath.Join(logDirectory, unitName+"-stderr.log")
}

// PIDFilePath returns the PID file of the running server
func (m *ProcessFileManager) PIDFilePath() string {
	if m.config.PIDFile != "" {
		return m.config.PIDFile
	}
	return filepath.Join(m.config.BaseDirectory, m.config.AppName+".pid")
}

// EndpointAddress returns the platform address of the control endpoint:
// a named pipe on Windows, a Unix domain socket elsewhere
func (m *ProcessFileManager) EndpointAddress() string {
	if runtime.GOOS == "windows" {
		return `\\.\pipe\` + m.config.AppName
	}
	return filepath.Join(m.getRuntimeDirectory(), m.config.AppName+".sock")
}

// WritePIDFile writes the server PID
func (m *ProcessFileManager) WritePIDFile(pid int) error {
	pidFilePath := m.PIDFilePath()
	m.logger.Debugf("Writing PID file, pid: %d, path: %s", pid, pidFilePath)

	if err := EnsureDirectory(filepath.Dir(pidFilePath)); err != nil {
		m.logger.Errorf("PID file directory validation failed, path: %s, error: %v", pidFilePath, err)
		return errors.NewIOError("PID file directory validation failed", err).WithContext("pid_file", pidFilePath)
	}

	pidContent := fmt.Sprintf("%d\n", pid)
	if err := writeFileAtomic(pidFilePath, []byte(pidContent), 0644); err != nil {
		m.logger.Errorf("Failed to write PID file, pid: %d, path: %s, error: %v", pid, pidFilePath, err)
		return errors.NewIOError("failed to write PID file", err).WithContext("pid_file", pidFilePath).WithContext("pid", pid)
	}

	m.logger.Infof("PID file written, pid: %d, path: %s", pid, pidFilePath)
	return nil
}

// ReadPIDFile reads the server PID
func (m *ProcessFileManager) ReadPIDFile() (int, error) {
	pidFilePath := m.PIDFilePath()

	content, err := os.ReadFile(pidFilePath)
	if err != nil {
		return 0, errors.NewIOError("failed to read PID file", err).WithContext("pid_file", pidFilePath)
	}

	pidStr := strings.TrimSpace(string(content))
	pid, err := strconv.Atoi(pidStr)
	if err != nil || pid <= 0 {
		return 0, errors.NewValidationError("invalid PID in PID file", err).WithContext("pid_file", pidFilePath).WithContext("content", pidStr)
	}
	return pid, nil
}

// RemovePIDFile removes the PID file; a missing file is not an error
func (m *ProcessFileManager) RemovePIDFile() error {
	pidFilePath := m.PIDFilePath()
	if err := os.Remove(pidFilePath); err != nil && !os.IsNotExist(err) {
		m.logger.Warnf("Failed to remove PID file, path: %s, error: %v", pidFilePath, err)
		return errors.NewIOError("failed to remove PID file", err).WithContext("pid_file", pidFilePath)
	}
	return nil
}

// EnsureDirectory creates dir when missing and fails when the path is not a directory
func EnsureDirectory(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			return errors.NewIOError("failed to access directory", err).WithContext("directory", dir)
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.NewIOError("failed to create directory", err).WithContext("directory", dir)
		}
		return nil
	}
	if !info.IsDir() {
		return errors.NewValidationError("path is not a directory", nil).WithContext("path", dir)
	}
	return nil
}

// getRuntimeDirectory returns the directory for the control socket
func (m *ProcessFileManager) getRuntimeDirectory() string {
	if m.config.RuntimeDirectory != "" {
		return m.config.RuntimeDirectory
	}
	// XDG_RUNTIME_DIR if available, otherwise the temp directory
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		return runtimeDir
	}
	return os.TempDir()
}

func executableDirectory() string {
	exe, err := os.Executable()
	if err != nil {
		if wd, wdErr := os.Getwd(); wdErr == nil {
			return wd
		}
		return "."
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe)
}
