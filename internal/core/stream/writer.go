package stream

import (
	"encoding/binary"
	"math"
)

// Magic prefixes every versioned stream.
const Magic uint32 = 0x444C5257 // "WRLD" little-endian

// Writer builds an ordered little-endian field stream. Strings and nested
// blocks are length-prefixed so readers can skip what they do not understand.
type Writer struct {
	buf []byte
}

func NewWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 256)}
}

// NewVersionedWriter starts a stream with the magic and a format version.
func NewVersionedWriter(version uint32) *Writer {
	w := NewWriter()
	w.WriteDU(Magic)
	w.WriteDU(version)
	return w
}

// WriteC writes 1 byte.
func (w *Writer) WriteC(v byte) {
	w.buf = append(w.buf, v)
}

// WriteBool writes a bool as one byte.
func (w *Writer) WriteBool(v bool) {
	if v {
		w.WriteC(1)
		return
	}
	w.WriteC(0)
}

// WriteH writes 2 bytes little-endian.
func (w *Writer) WriteH(v uint16) {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
}

// WriteD writes 4 bytes little-endian (signed).
func (w *Writer) WriteD(v int32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, uint32(v))
}

// WriteDU writes 4 bytes little-endian unsigned.
func (w *Writer) WriteDU(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

// WriteQ writes 8 bytes little-endian.
func (w *Writer) WriteQ(v uint64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
}

// WriteF writes a float32 as its IEEE-754 bits.
func (w *Writer) WriteF(v float32) {
	w.WriteDU(math.Float32bits(v))
}

// WriteS writes a length-prefixed UTF-8 string.
func (w *Writer) WriteS(s string) {
	w.WriteDU(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

// WriteBytes writes a length-prefixed byte block.
func (w *Writer) WriteBytes(b []byte) {
	w.WriteDU(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

// Bytes returns the stream content.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len returns the current length.
func (w *Writer) Len() int {
	return len(w.buf)
}
