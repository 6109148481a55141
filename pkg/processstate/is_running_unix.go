//go:build !windows

package processstate

import (
	"github.com/core-tools/hsu-sysd/pkg/errors"

	"golang.org/x/sys/unix"
)

// IsProcessRunning probes pid with signal 0. EPERM means the process
// exists under another user.
func IsProcessRunning(pid int) (bool, error) {
	if pid <= 0 {
		return false, errors.NewValidationError("invalid PID", nil).WithContext("pid", pid)
	}

	switch err := unix.Kill(pid, 0); err {
	case nil, unix.EPERM:
		return true, nil
	case unix.ESRCH:
		return false, nil
	default:
		return false, errors.NewProcessError("failed to probe process", err).WithContext("pid", pid)
	}
}
