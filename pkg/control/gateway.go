package control

import (
	"context"
	stderrors "errors"
	"io"
	"net"
	"time"

	"github.com/core-tools/hsu-sysd/pkg/errors"
)

// ErrEmptyResponse marks a listener that accepted the request but replied
// with nothing
var ErrEmptyResponse = stderrors.New("empty response")

// Send delivers one request to the listener at address and waits for its response
func Send(ctx context.Context, address string, request []byte) ([]byte, error) {
	if len(request) > MaxMessageSize {
		return nil, errors.NewProtocolError("message too large", nil).
			WithContext("size", len(request)).WithContext("max_size", MaxMessageSize)
	}

	conn, err := dial(ctx, address)
	if err != nil {
		if isNoListener(err) {
			return nil, errors.NewUnavailableError("no listener on control endpoint", err).WithContext("address", address)
		}
		return nil, errors.NewNetworkError("failed to connect to control endpoint", err).WithContext("address", address)
	}
	defer conn.Close()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(IOTimeout)
	}
	_ = conn.SetDeadline(deadline)

	stop := closeOnDone(ctx, conn)
	defer stop()

	if err := writeFrame(conn, request); err != nil {
		return nil, err
	}

	response, err := readFrame(conn)
	if err != nil {
		if err == io.EOF {
			return nil, errors.NewNetworkError("connection closed without a response", ErrEmptyResponse)
		}
		if ctx.Err() != nil {
			return nil, errors.NewCancelledError("request cancelled", ctx.Err())
		}
		return nil, err
	}
	if len(response) == 0 {
		return nil, errors.NewNetworkError("received an empty response", ErrEmptyResponse)
	}
	return response, nil
}

// IsUnavailable reports that nothing listens on the endpoint
func IsUnavailable(err error) bool {
	return errors.IsUnavailableError(err)
}

func IsEmptyResponse(err error) bool {
	return stderrors.Is(err, ErrEmptyResponse)
}

// IsClosed reports a ServeOne on a closed listener
func IsClosed(err error) bool {
	return stderrors.Is(err, net.ErrClosed)
}

// closeOnDone closes conn when ctx is cancelled so blocked reads return
func closeOnDone(ctx context.Context, conn net.Conn) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()
	return func() { close(done) }
}
