package stream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	ErrShortRead      = errors.New("stream truncated")
	ErrBadMagic       = errors.New("stream magic mismatch")
	ErrUnknownVersion = errors.New("unknown stream version")
)

// Reader consumes a stream produced by Writer. The first short read sets a
// sticky error; later reads return zero values.
type Reader struct {
	data []byte
	off  int
	err  error
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// NewVersionedReader checks the magic and returns the stream version. Versions
// above maxVersion are rejected instead of being misread.
func NewVersionedReader(data []byte, maxVersion uint32) (*Reader, uint32, error) {
	r := NewReader(data)
	if magic := r.ReadDU(); r.err != nil || magic != Magic {
		if r.err != nil {
			return nil, 0, r.err
		}
		return nil, 0, fmt.Errorf("%w: %#x", ErrBadMagic, magic)
	}
	version := r.ReadDU()
	if r.err != nil {
		return nil, 0, r.err
	}
	if version == 0 || version > maxVersion {
		return nil, version, fmt.Errorf("%w: %d (max %d)", ErrUnknownVersion, version, maxVersion)
	}
	return r, version, nil
}

// Err returns the first read error.
func (r *Reader) Err() error { return r.err }

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.off+n > len(r.data) {
		r.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrShortRead, n, r.off, len(r.data)-r.off)
		r.off = len(r.data)
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

// ReadC reads 1 unsigned byte.
func (r *Reader) ReadC() byte {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

// ReadBool reads a one-byte bool.
func (r *Reader) ReadBool() bool {
	return r.ReadC() != 0
}

// ReadH reads 2 bytes as little-endian uint16.
func (r *Reader) ReadH() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

// ReadD reads 4 bytes as little-endian int32.
func (r *Reader) ReadD() int32 {
	return int32(r.ReadDU())
}

// ReadDU reads 4 bytes as little-endian uint32.
func (r *Reader) ReadDU() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

// ReadQ reads 8 bytes as little-endian uint64.
func (r *Reader) ReadQ() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

// ReadF reads a float32.
func (r *Reader) ReadF() float32 {
	return math.Float32frombits(r.ReadDU())
}

// ReadS reads a length-prefixed string.
func (r *Reader) ReadS() string {
	n := r.ReadDU()
	return string(r.take(int(n)))
}

// ReadBytes reads a length-prefixed block. The result aliases the stream.
func (r *Reader) ReadBytes() []byte {
	n := r.ReadDU()
	return r.take(int(n))
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}
