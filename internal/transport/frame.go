package transport

import (
	"encoding/binary"
	"errors"
	"io"
)

const (
	frameMagic   uint32 = 0x4D4F4E31 // "MON1"
	frameVersion uint16 = 1

	fixedHeaderLen = 16
)

var (
	ErrShortHeader     = errors.New("transport: short frame header")
	ErrBadMagic        = errors.New("transport: bad frame magic")
	ErrBadVersion      = errors.New("transport: unsupported frame version")
	ErrPayloadTooLarge = errors.New("transport: frame payload too large")
)

// Limits constrains frame decode/encode memory use.
type Limits struct {
	MaxPayloadBytes uint64
}

func DefaultLimits() Limits {
	return Limits{MaxPayloadBytes: 8 * 1024 * 1024}
}

// ReadFrame reads one whole message off r.
func ReadFrame(r io.Reader, limits Limits) ([]byte, error) {
	var fixed [fixedHeaderLen]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrShortHeader
		}
		return nil, err
	}

	if binary.BigEndian.Uint32(fixed[0:4]) != frameMagic {
		return nil, ErrBadMagic
	}
	if binary.BigEndian.Uint16(fixed[4:6]) != frameVersion {
		return nil, ErrBadVersion
	}
	payloadLen := binary.BigEndian.Uint64(fixed[8:16])
	if payloadLen > limits.MaxPayloadBytes {
		return nil, ErrPayloadTooLarge
	}

	payload := make([]byte, payloadLen)
	if payloadLen > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, err
		}
	}
	return payload, nil
}

// WriteFrame writes one whole message to w.
func WriteFrame(w io.Writer, payload []byte, limits Limits) error {
	if uint64(len(payload)) > limits.MaxPayloadBytes {
		return ErrPayloadTooLarge
	}

	var fixed [fixedHeaderLen]byte
	binary.BigEndian.PutUint32(fixed[0:4], frameMagic)
	binary.BigEndian.PutUint16(fixed[4:6], frameVersion)
	// fixed[6:8] flags, reserved
	binary.BigEndian.PutUint64(fixed[8:16], uint64(len(payload)))

	if _, err := w.Write(fixed[:]); err != nil {
		return err
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return err
		}
	}
	return nil
}
