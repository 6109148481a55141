// Package protocol encodes the control commands exchanged between a client
// invocation and the server. A request is a protobuf-wire message with the
// command as field 1 (varint) and the unit name as field 2 (string).
package protocol

import (
	"fmt"
	"math"

	"github.com/core-tools/hsu-sysd/pkg/errors"

	"google.golang.org/protobuf/encoding/protowire"
)

type Command int32

const (
	CommandStart        Command = 1
	CommandStop         Command = 2
	CommandStatus       Command = 3
	CommandReloadConfig Command = 4
)

const (
	fieldCommand protowire.Number = 1
	fieldName    protowire.Number = 2
)

func (c Command) String() string {
	switch c {
	case CommandStart:
		return "Start"
	case CommandStop:
		return "Stop"
	case CommandStatus:
		return "Status"
	case CommandReloadConfig:
		return "ReloadConfig"
	default:
		return fmt.Sprintf("Command(%d)", int32(c))
	}
}

func (c Command) Valid() bool {
	return c >= CommandStart && c <= CommandReloadConfig
}

// NeedsName tells whether the command addresses a unit
func (c Command) NeedsName() bool {
	return c == CommandStart || c == CommandStop || c == CommandStatus
}

type Request struct {
	Command Command
	Name    string
}

func NewRequest(command Command, name string) Request {
	return Request{Command: command, Name: name}
}

func (r Request) String() string {
	if r.Command.NeedsName() {
		return fmt.Sprintf("%s(%s)", r.Command, r.Name)
	}
	return r.Command.String()
}

func (r Request) Validate() error {
	if !r.Command.Valid() {
		return errors.NewProtocolError(fmt.Sprintf("unknown command: %d", int32(r.Command)), nil)
	}
	if r.Command.NeedsName() && r.Name == "" {
		return errors.NewProtocolError(fmt.Sprintf("command %s requires a service name", r.Command), nil)
	}
	return nil
}

// Encode serializes a valid request
func Encode(r Request) ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	var b []byte
	b = protowire.AppendTag(b, fieldCommand, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.Command))
	if r.Command.NeedsName() {
		b = protowire.AppendTag(b, fieldName, protowire.BytesType)
		b = protowire.AppendString(b, r.Name)
	}
	return b, nil
}

// Decode parses and validates a request. Unknown fields are skipped; a
// repeated field keeps its last value.
func Decode(data []byte) (Request, error) {
	var (
		r          Request
		hasCommand bool
	)

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return Request{}, errors.NewProtocolError("malformed field tag", protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == fieldCommand && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return Request{}, errors.NewProtocolError("malformed command", protowire.ParseError(n))
			}
			if v > math.MaxInt32 {
				return Request{}, errors.NewProtocolError(fmt.Sprintf("unknown command: %d", v), nil)
			}
			r.Command = Command(int32(v))
			hasCommand = true
			data = data[n:]
		case num == fieldName && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return Request{}, errors.NewProtocolError("malformed service name", protowire.ParseError(n))
			}
			r.Name = string(v)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return Request{}, errors.NewProtocolError("malformed field", protowire.ParseError(n)).WithContext("field", int32(num))
			}
			data = data[n:]
		}
	}

	if !hasCommand {
		return Request{}, errors.NewProtocolError("missing command", nil)
	}
	if err := r.Validate(); err != nil {
		return Request{}, err
	}
	return r, nil
}
