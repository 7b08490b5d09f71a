package discord

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ///////////////////////////////////////////////
// Constants
// ///////////////////////////////////////////////

// Opcode identifies the semantic type of an IPC frame.
type Opcode uint32

const (
	// OpHandshake is the opcode of the first frame sent on a new connection.
	OpHandshake Opcode = 0
	// OpFrame carries activity updates and activity clears.
	OpFrame Opcode = 1
	// OpClose announces that the client is closing the connection.
	OpClose Opcode = 2

	// HeaderSize is the byte length of a frame header: a 4-byte
	// little-endian opcode followed by a 4-byte little-endian payload length.
	HeaderSize = 8

	// MaxPayloadSize is the largest payload accepted in either direction (1 MiB).
	MaxPayloadSize = 1 << 20
)

// String returns the opcode name used in error messages.
func (o Opcode) String() string {
	switch o {
	case OpHandshake:
		return "HANDSHAKE"
	case OpFrame:
		return "FRAME"
	case OpClose:
		return "CLOSE"
	default:
		return fmt.Sprintf("OPCODE(%d)", uint32(o))
	}
}

// ErrPayloadTooLarge is returned when a payload exceeds MaxPayloadSize.
var ErrPayloadTooLarge = errors.New("payload too large")

// ///////////////////////////////////////////////
// Header Codec
// ///////////////////////////////////////////////

// EncodeHeader builds the 8-byte header for a frame with the given opcode and
// payload length.
func EncodeHeader(opcode Opcode, length uint32) [HeaderSize]byte {
	var h [HeaderSize]byte
	binary.LittleEndian.PutUint32(h[0:4], uint32(opcode))
	binary.LittleEndian.PutUint32(h[4:8], length)
	return h
}

// DecodeHeader splits a header into its opcode and payload length.
func DecodeHeader(h [HeaderSize]byte) (Opcode, uint32) {
	return Opcode(binary.LittleEndian.Uint32(h[0:4])), binary.LittleEndian.Uint32(h[4:8])
}

// DecodeLength returns the payload length announced by a header.
func DecodeLength(h [HeaderSize]byte) uint32 {
	_, length := DecodeHeader(h)
	return length
}

// checkPayloadSize rejects payloads longer than MaxPayloadSize.
func checkPayloadSize(n uint64) error {
	if n > MaxPayloadSize {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, n, MaxPayloadSize)
	}
	return nil
}

// ///////////////////////////////////////////////
// Frame Encoding
// ///////////////////////////////////////////////

// EncodeFrame builds a complete frame: [header][payload]. [Client.Write]
// streams the same layout without the copy; EncodeFrame serves code that
// speaks the daemon's side of the protocol, such as test doubles.
func EncodeFrame(opcode Opcode, payload []byte) ([]byte, error) {
	if err := checkPayloadSize(uint64(len(payload))); err != nil {
		return nil, err
	}
	h := EncodeHeader(opcode, uint32(len(payload)))
	frame := make([]byte, 0, HeaderSize+len(payload))
	frame = append(frame, h[:]...)
	return append(frame, payload...), nil
}

// ///////////////////////////////////////////////
// Frame Decoding
// ///////////////////////////////////////////////

// DecodeFrame reads exactly one frame from r. A stream that ends before the
// full header or the full announced payload has arrived is an error; no
// truncated payload is ever returned.
func DecodeFrame(r io.Reader) (Opcode, []byte, error) {
	var h [HeaderSize]byte
	if _, err := io.ReadFull(r, h[:]); err != nil {
		return 0, nil, fmt.Errorf("reading frame header: %w", err)
	}

	opcode, length := DecodeHeader(h)
	if err := checkPayloadSize(uint64(length)); err != nil {
		return 0, nil, err
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, fmt.Errorf("reading frame payload: %w", err)
	}
	return opcode, payload, nil
}
