package control

import (
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/core-tools/hsu-sysd/pkg/errors"
	"github.com/core-tools/hsu-sysd/pkg/logging"
)

// IOTimeout bounds reading a request and, separately, writing its response.
// The handler's own run time is not covered.
const IOTimeout = 30 * time.Second

// Handler turns a request payload into a response payload
type Handler func(request []byte) []byte

// Listener is the server side of the control channel
type Listener struct {
	address  string
	listener net.Listener
	closed   atomic.Bool
	logger   logging.Logger

	ioTimeout time.Duration
}

// Listen creates the endpoint. Clients can connect as soon as it returns.
func Listen(address string, logger logging.Logger) (*Listener, error) {
	listener, err := listen(address)
	if err != nil {
		logger.Errorf("Failed to create control endpoint, address: %s, error: %v", address, err)
		return nil, errors.NewNetworkError("failed to create control endpoint", err).WithContext("address", address)
	}

	logger.Infof("Control endpoint listening, address: %s", address)
	return &Listener{
		address:   address,
		listener:  listener,
		logger:    logger,
		ioTimeout: IOTimeout,
	}, nil
}

func (l *Listener) Address() string {
	return l.address
}

// ServeOne waits for one connection, runs handler on its request and writes
// the response back. It returns once that connection is closed.
func (l *Listener) ServeOne(handler Handler) error {
	conn, err := l.listener.Accept()
	if err != nil {
		if l.closed.Load() {
			return errors.NewNetworkError("control endpoint closed", net.ErrClosed)
		}
		return errors.NewNetworkError("failed to accept connection", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(l.ioTimeout))

	request, err := readFrame(conn)
	if err != nil {
		if err == io.EOF {
			l.logger.Debugf("Control connection closed without a request")
			return nil
		}
		return err
	}

	response := handler(request)

	_ = conn.SetWriteDeadline(time.Now().Add(l.ioTimeout))
	if err := writeFrame(conn, response); err != nil {
		l.logger.Errorf("Failed to write response, size: %d, error: %v", len(response), err)
		return err
	}

	l.logger.Debugf("Control exchange done, request size: %d, response size: %d", len(request), len(response))
	return nil
}

// Close stops accepting; a ServeOne parked in accept returns an error
// satisfying IsClosed.
func (l *Listener) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := l.listener.Close(); err != nil {
		return errors.NewNetworkError("failed to close control endpoint", err)
	}
	l.logger.Infof("Control endpoint closed, address: %s", l.address)
	return nil
}

func (l *Listener) IsClosed() bool {
	return l.closed.Load()
}
