//go:build !windows

package supervisor

import (
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setupProcessAttributes puts the child into its own process group so the
// whole tree can be signalled through -pid
func setupProcessAttributes(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}

// killProcess sends SIGKILL to the process group, falling back to the
// process itself if the group is gone
func killProcess(process *os.Process) error {
	err := unix.Kill(-process.Pid, unix.SIGKILL)
	if err == nil {
		return nil
	}
	if err := process.Kill(); err != nil && err != os.ErrProcessDone {
		return err
	}
	return nil
}
