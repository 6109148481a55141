package supervisor

import (
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/core-tools/hsu-sysd/pkg/errors"
	"github.com/core-tools/hsu-sysd/pkg/processfile"
	"github.com/core-tools/hsu-sysd/pkg/unit"
)

// command builds and starts the child process of a unit. The output files
// are owned by the child once it has started.
func (s *Supervisor) command(name string, service unit.ServiceSection) (*exec.Cmd, error) {
	executablePath, workDir, err := resolveExecutable(service)
	if err != nil {
		return nil, errors.NewProcessError("failed to resolve executable", err).
			WithContext("name", name).WithContext("path", service.Path)
	}

	defaultStdout, defaultStderr := processfile.UnitLogPaths(s.options.LogDirectory, name)
	stdoutPath := firstNonEmpty(service.StdoutPath, defaultStdout)
	stderrPath := firstNonEmpty(service.StderrPath, defaultStderr)

	stdout, err := openLogFile(stdoutPath)
	if err != nil {
		return nil, errors.NewIOError("failed to open stdout log", err).WithContext("name", name).WithContext("path", stdoutPath)
	}
	defer stdout.Close()

	stderr := stdout
	if stderrPath != stdoutPath {
		stderr, err = openLogFile(stderrPath)
		if err != nil {
			return nil, errors.NewIOError("failed to open stderr log", err).WithContext("name", name).WithContext("path", stderrPath)
		}
		defer stderr.Close()
	}

	cmd := exec.Command(executablePath, service.Args...)
	cmd.Dir = workDir
	cmd.Env = environment(service.Env)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	setupProcessAttributes(cmd)

	s.logger.Debugf("Executing process, name: %s, path: '%s', args: %v, working directory: '%s', stdout: %s, stderr: %s",
		name, executablePath, service.Args, workDir, stdoutPath, stderrPath)

	if err := cmd.Start(); err != nil {
		return nil, errors.NewProcessError("failed to start the process", err).
			WithContext("name", name).WithContext("path", executablePath)
	}
	return cmd, nil
}

// resolveExecutable makes a path with separators absolute; bare names are
// looked up on PATH. The working directory defaults to the server's own.
func resolveExecutable(service unit.ServiceSection) (string, string, error) {
	path := service.Path
	if strings.ContainsAny(path, `/\`) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", "", err
		}
		info, err := os.Stat(absPath)
		if err != nil {
			return "", "", err
		}
		if info.IsDir() {
			return "", "", errors.NewValidationError("executable path is a directory", nil)
		}
		path = absPath
	} else {
		lookedUp, err := exec.LookPath(path)
		if err != nil {
			return "", "", err
		}
		path = lookedUp
	}

	workDir := service.WorkingDirectory
	if workDir != "" {
		info, err := os.Stat(workDir)
		if err != nil {
			return "", "", err
		}
		if !info.IsDir() {
			return "", "", errors.NewValidationError("working directory is not a directory", nil).WithContext("path", workDir)
		}
	}
	return path, workDir, nil
}

// environment appends the unit overrides to the server environment
func environment(overrides map[string]string) []string {
	env := os.Environ()
	keys := make([]string, 0, len(overrides))
	for key := range overrides {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		env = append(env, key+"="+overrides[key])
	}
	return env
}

func openLogFile(path string) (*os.File, error) {
	if err := processfile.EnsureDirectory(filepath.Dir(path)); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
