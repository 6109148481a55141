//go:build windows

package supervisor

import (
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/windows"
)

// setupProcessAttributes isolates the child in a new process group and keeps
// it from opening a console window of its own
func setupProcessAttributes(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: windows.CREATE_NEW_PROCESS_GROUP | windows.CREATE_NO_WINDOW,
	}
}

// killProcess terminates the process; TerminateProcess doesn't reach grandchildren
func killProcess(process *os.Process) error {
	if err := process.Kill(); err != nil && err != os.ErrProcessDone {
		return err
	}
	return nil
}
