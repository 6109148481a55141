package client

import (
	"context"
	"fmt"
	"time"

	"github.com/core-tools/hsu-sysd/pkg/control"
	"github.com/core-tools/hsu-sysd/pkg/logging"
	"github.com/core-tools/hsu-sysd/pkg/protocol"
)

const (
	MessageNotRunning    = "Service is not running."
	MessageEmptyResponse = "Connected to the server, but received no response."
)

// DefaultTimeout bounds one exchange; stopping a unit can take the server's
// whole stop timeout
const DefaultTimeout = time.Minute

// Client sends commands to a running server
type Client struct {
	address string
	timeout time.Duration
	logger  logging.Logger
}

func NewClient(address string, timeout time.Duration, logger logging.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		address: address,
		timeout: timeout,
		logger:  logger,
	}
}

// Do sends request and returns the server's text response
func (c *Client) Do(ctx context.Context, request protocol.Request) (string, error) {
	payload, err := protocol.Encode(request)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.logger.Debugf("Sending request, address: %s, request: %s", c.address, request)
	response, err := control.Send(ctx, c.address, payload)
	if err != nil {
		c.logger.Debugf("Request failed, request: %s, error: %v", request, err)
		return "", err
	}
	return string(response), nil
}

// Run is Do with failures rendered as user-facing text
func (c *Client) Run(ctx context.Context, request protocol.Request) string {
	response, err := c.Do(ctx, request)
	if err != nil {
		return Describe(err)
	}
	return response
}

// Describe maps a transport failure onto the text shown to the user
func Describe(err error) string {
	switch {
	case control.IsUnavailable(err):
		return MessageNotRunning
	case control.IsEmptyResponse(err):
		return MessageEmptyResponse
	default:
		return fmt.Sprintf("Failed to reach the server: %v", err)
	}
}
