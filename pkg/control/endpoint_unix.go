//go:build !windows

package control

import (
	"context"
	stderrors "errors"
	"net"
	"os"
	"path/filepath"
	"syscall"

	"github.com/core-tools/hsu-sysd/pkg/errors"
)

func listen(address string) (net.Listener, error) {
	dir := filepath.Dir(address)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, err
		}
	}

	// A socket file left behind by a crashed server would make bind fail
	if info, err := os.Lstat(address); err == nil {
		if info.Mode()&os.ModeSocket == 0 {
			return nil, errors.NewConflictError("endpoint path exists and is not a socket", nil).WithContext("path", address)
		}
		if err := os.Remove(address); err != nil {
			return nil, err
		}
	}

	listener, err := net.Listen("unix", address)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(address, 0600); err != nil {
		_ = listener.Close()
		return nil, err
	}
	return listener, nil
}

func dial(ctx context.Context, address string) (net.Conn, error) {
	var dialer net.Dialer
	return dialer.DialContext(ctx, "unix", address)
}

func isNoListener(err error) bool {
	return stderrors.Is(err, syscall.ENOENT) || stderrors.Is(err, syscall.ECONNREFUSED)
}
