// Package capture records raw datagrams to an append-only file so a session
// can be decoded again offline.
package capture

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"time"
)

const (
	headerSize = 16

	// MaxPayload bounds a frame; no datagram is larger than the receive buffer.
	MaxPayload = 64 * 1024
)

// Frame is one captured datagram
type Frame struct {
	CRC32     uint32 // CRC32 over everything after this field
	Size      uint32 // Size of the payload in bytes
	Timestamp uint64 // Receive time, unix nanoseconds
	Payload   []byte
}

// Error is returned for frames that cannot be trusted
type Error struct {
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

var (
	ErrCorruption = &Error{"capture: frame corruption detected"}
	ErrTruncated  = &Error{"capture: frame truncated"}
	ErrTooLarge   = &Error{"capture: payload exceeds 64 KiB"}
)

// NewFrame creates a frame for payload received at ts.
func NewFrame(ts time.Time, payload []byte) Frame {
	f := Frame{
		Size:      uint32(len(payload)),
		Timestamp: uint64(ts.UnixNano()),
		Payload:   payload,
	}
	f.CRC32 = f.checksum()
	return f
}

// Encode serializes a frame.
// Format: [CRC32(4)][Size(4)][Timestamp(8)][Payload], little-endian
func Encode(f Frame) ([]byte, error) {
	if len(f.Payload) > MaxPayload {
		return nil, ErrTooLarge
	}
	buf := make([]byte, headerSize+len(f.Payload))
	binary.LittleEndian.PutUint32(buf[0:], f.CRC32)
	binary.LittleEndian.PutUint32(buf[4:], f.Size)
	binary.LittleEndian.PutUint64(buf[8:], f.Timestamp)
	copy(buf[headerSize:], f.Payload)
	return buf, nil
}

// Decode parses one frame from the start of data. The payload aliases data.
func Decode(data []byte) (Frame, error) {
	if len(data) < headerSize {
		return Frame{}, ErrTruncated
	}
	f := decodeHeader(data)
	if f.Size > MaxPayload {
		return Frame{}, ErrCorruption
	}
	if len(data) < headerSize+int(f.Size) {
		return Frame{}, fmt.Errorf("%w: %d < %d", ErrTruncated, len(data), headerSize+int(f.Size))
	}
	f.Payload = data[headerSize : headerSize+int(f.Size)]
	return f, nil
}

func decodeHeader(h []byte) Frame {
	return Frame{
		CRC32:     binary.LittleEndian.Uint32(h[0:]),
		Size:      binary.LittleEndian.Uint32(h[4:]),
		Timestamp: binary.LittleEndian.Uint64(h[8:]),
	}
}

// Validate checks the frame against its CRC32.
func (f Frame) Validate() error {
	if got := f.checksum(); got != f.CRC32 {
		return fmt.Errorf("%w: crc %08x != %08x", ErrCorruption, f.CRC32, got)
	}
	return nil
}

// Time returns the receive time.
func (f Frame) Time() time.Time {
	return time.Unix(0, int64(f.Timestamp))
}

// EncodedSize is the number of bytes the frame occupies on disk.
func (f Frame) EncodedSize() int {
	return headerSize + len(f.Payload)
}

func (f Frame) checksum() uint32 {
	var h [12]byte
	binary.LittleEndian.PutUint32(h[0:], f.Size)
	binary.LittleEndian.PutUint64(h[4:], f.Timestamp)
	crc := crc32.ChecksumIEEE(h[:])
	return crc32.Update(crc, crc32.IEEETable, f.Payload)
}
