package proto

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// HeaderLength is the only header length the protocol accepts.
	HeaderLength = 16
	// MaxPacketBytes bounds the total length a peer may claim.
	MaxPacketBytes = 2048
)

// Operation selects the purpose of a frame.
type Operation int32

const (
	OpHeartbeat      Operation = 2
	OpHeartbeatReply Operation = 3
	OpMessage        Operation = 5
	OpAuth           Operation = 7
	OpAuthReply      Operation = 8
)

func (o Operation) String() string {
	switch o {
	case OpHeartbeat:
		return "heartbeat"
	case OpHeartbeatReply:
		return "heartbeat-reply"
	case OpMessage:
		return "message"
	case OpAuth:
		return "auth"
	case OpAuthReply:
		return "auth-reply"
	default:
		return fmt.Sprintf("op(%d)", int32(o))
	}
}

var (
	ErrIncompleteHeader    = errors.New("incomplete frame header")
	ErrInvalidLength       = errors.New("invalid frame length")
	ErrInvalidHeaderLength = errors.New("invalid frame header length")
	ErrTruncatedBody       = errors.New("truncated frame body")
)

// Frame is one decoded unit of the protocol. Frames are not modified after
// construction.
type Frame struct {
	TotalLength  int32
	HeaderLength int16
	Version      int16
	Operation    Operation
	Sequence     int32
	Body         []byte
}

// Encode builds a version 0 frame. It does not check the body against
// MaxPacketBytes; callers keep bodies small.
func Encode(op Operation, sequence int32, body []byte) []byte {
	buf := make([]byte, HeaderLength+len(body))
	binary.BigEndian.PutUint32(buf[0:4], uint32(int32(HeaderLength+len(body))))
	binary.BigEndian.PutUint16(buf[4:6], uint16(int16(HeaderLength)))
	binary.BigEndian.PutUint16(buf[6:8], 0)
	binary.BigEndian.PutUint32(buf[8:12], uint32(int32(op)))
	binary.BigEndian.PutUint32(buf[12:16], uint32(sequence))
	copy(buf[HeaderLength:], body)
	return buf
}

// Decode parses a single frame from buf. The returned body is a copy, so buf
// may be reused by the caller.
func Decode(buf []byte) (*Frame, error) {
	if len(buf) < HeaderLength {
		return nil, fmt.Errorf("%w: got %d bytes", ErrIncompleteHeader, len(buf))
	}

	f := &Frame{
		TotalLength:  int32(binary.BigEndian.Uint32(buf[0:4])),
		HeaderLength: int16(binary.BigEndian.Uint16(buf[4:6])),
		Version:      int16(binary.BigEndian.Uint16(buf[6:8])),
		Operation:    Operation(int32(binary.BigEndian.Uint32(buf[8:12]))),
		Sequence:     int32(binary.BigEndian.Uint32(buf[12:16])),
	}

	// A total length below the header size would make the body range negative.
	if f.TotalLength < HeaderLength || f.TotalLength > MaxPacketBytes {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLength, f.TotalLength)
	}
	if f.HeaderLength != HeaderLength {
		return nil, fmt.Errorf("%w: %d", ErrInvalidHeaderLength, f.HeaderLength)
	}
	if len(buf) < int(f.TotalLength) {
		return nil, fmt.Errorf("%w: want %d bytes, got %d", ErrTruncatedBody, f.TotalLength, len(buf))
	}

	f.Body = make([]byte, int(f.TotalLength)-HeaderLength)
	copy(f.Body, buf[HeaderLength:f.TotalLength])
	return f, nil
}
