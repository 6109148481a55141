//go:build windows

package control

import (
	"context"
	stderrors "errors"
	"net"
	"os"

	"github.com/Microsoft/go-winio"
	"golang.org/x/sys/windows"
)

func listen(address string) (net.Listener, error) {
	return winio.ListenPipe(address, &winio.PipeConfig{
		InputBufferSize:  MaxMessageSize + frameHeaderSize,
		OutputBufferSize: MaxMessageSize + frameHeaderSize,
	})
}

func dial(ctx context.Context, address string) (net.Conn, error) {
	return winio.DialPipeContext(ctx, address)
}

func isNoListener(err error) bool {
	return stderrors.Is(err, os.ErrNotExist) || stderrors.Is(err, windows.ERROR_FILE_NOT_FOUND)
}
