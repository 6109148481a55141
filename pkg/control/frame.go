package control

import (
	"encoding/binary"
	"io"

	"github.com/core-tools/hsu-sysd/pkg/errors"
)

// MaxMessageSize bounds the payload of a frame in either direction
const MaxMessageSize = 64 * 1024

const frameHeaderSize = 4

// writeFrame writes a 4-byte big-endian length followed by the payload
func writeFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxMessageSize {
		return errors.NewProtocolError("message too large", nil).
			WithContext("size", len(payload)).WithContext("max_size", MaxMessageSize)
	}

	frame := make([]byte, frameHeaderSize+len(payload))
	binary.BigEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[frameHeaderSize:], payload)

	if _, err := w.Write(frame); err != nil {
		return errors.NewNetworkError("failed to write frame", err)
	}
	return nil
}

// readFrame reads one frame. io.EOF is returned as is when the peer closed
// the connection before sending anything.
func readFrame(r io.Reader) ([]byte, error) {
	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		if err == io.ErrUnexpectedEOF {
			return nil, errors.NewProtocolError("truncated frame header", err)
		}
		return nil, errors.NewNetworkError("failed to read frame header", err)
	}

	size := binary.BigEndian.Uint32(header[:])
	if size > MaxMessageSize {
		return nil, errors.NewProtocolError("message too large", nil).
			WithContext("size", size).WithContext("max_size", MaxMessageSize)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, errors.NewProtocolError("truncated frame payload", err)
		}
		return nil, errors.NewNetworkError("failed to read frame payload", err)
	}
	return payload, nil
}
