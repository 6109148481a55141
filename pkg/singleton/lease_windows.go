//go:build windows

package singleton

import (
	"golang.org/x/sys/windows"
)

// acquire creates the named mutex Global\<id>. If the object already existed
// another process owns the server role. The handle keeps the object alive, so
// closing it is the release; the kernel closes it on process exit.
func acquire(id string) (bool, func() error, error) {
	name, err := windows.UTF16PtrFromString(`Global\` + id)
	if err != nil {
		return false, nil, err
	}

	handle, err := windows.CreateMutex(nil, false, name)
	if handle == 0 {
		return false, nil, err
	}

	release := func() error {
		return windows.CloseHandle(handle)
	}

	if err == windows.ERROR_ALREADY_EXISTS {
		return false, release, nil
	}
	if err != nil {
		release()
		return false, nil, err
	}
	return true, release, nil
}
