//go:build windows

package processstate

import (
	"github.com/core-tools/hsu-sysd/pkg/errors"

	"golang.org/x/sys/windows"
)

// STILL_ACTIVE exit code of a process that hasn't terminated
const stillActive = 259

func IsProcessRunning(pid int) (bool, error) {
	if pid <= 0 {
		return false, errors.NewValidationError("invalid PID", nil).WithContext("pid", pid)
	}

	handle, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		if err == windows.ERROR_INVALID_PARAMETER {
			return false, nil
		}
		if err == windows.ERROR_ACCESS_DENIED {
			return true, nil
		}
		return false, errors.NewProcessError("failed to open process", err).WithContext("pid", pid)
	}
	defer windows.CloseHandle(handle)

	var exitCode uint32
	if err := windows.GetExitCodeProcess(handle, &exitCode); err != nil {
		return false, errors.NewProcessError("failed to query process exit code", err).WithContext("pid", pid)
	}
	return exitCode == stillActive, nil
}
