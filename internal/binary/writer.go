package binary

import (
	"bytes"
	"encoding/binary"
)

// Writer accumulates an output buffer with position tracking. Codecs
// build new containers through it so size fields can be computed from
// actual serialized positions.
type Writer struct {
	buf bytes.Buffer
}

// NewWriter creates an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Offset returns the number of bytes written so far.
func (w *Writer) Offset() int64 {
	return int64(w.buf.Len())
}

// Bytes returns the accumulated buffer.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

// WriteBytes appends raw bytes.
func (w *Writer) WriteBytes(b []byte) {
	w.buf.Write(b)
}

// WriteString appends a string as raw bytes.
func (w *Writer) WriteString(s string) {
	w.buf.WriteString(s)
}

// PutByte appends a single byte.
func (w *Writer) PutByte(b byte) {
	w.buf.WriteByte(b)
}

// Pad appends n zero bytes.
func (w *Writer) Pad(n int) {
	for i := 0; i < n; i++ {
		w.buf.WriteByte(0)
	}
}

// Write appends a value of type T in big-endian byte order.
// T must be uint8, uint16, uint32, or uint64.
func Write[T uint8 | uint16 | uint32 | uint64](w *Writer, val T) {
	w.WriteBytes(encode(val, BigEndian))
}

// WriteLE appends a value of type T in little-endian byte order.
func WriteLE[T uint8 | uint16 | uint32 | uint64](w *Writer, val T) {
	w.WriteBytes(encode(val, LittleEndian))
}

// PutLE32 overwrites an already-written little-endian uint32 at off.
// Used to patch size fields after their payload has been serialized.
func PutLE32(b []byte, off int, val uint32) {
	binary.LittleEndian.PutUint32(b[off:off+4], val)
}

// PutBE32 overwrites an already-written big-endian uint32 at off.
func PutBE32(b []byte, off int, val uint32) {
	binary.BigEndian.PutUint32(b[off:off+4], val)
}

func encode[T uint8 | uint16 | uint32 | uint64](val T, endian Endianness) []byte {
	switch v := any(val).(type) {
	case uint8:
		return []byte{v}
	case uint16:
		buf := make([]byte, 2)
		if endian == LittleEndian {
			binary.LittleEndian.PutUint16(buf, v)
		} else {
			binary.BigEndian.PutUint16(buf, v)
		}
		return buf
	case uint32:
		buf := make([]byte, 4)
		if endian == LittleEndian {
			binary.LittleEndian.PutUint32(buf, v)
		} else {
			binary.BigEndian.PutUint32(buf, v)
		}
		return buf
	default:
		buf := make([]byte, 8)
		if endian == LittleEndian {
			binary.LittleEndian.PutUint64(buf, uint64(val))
		} else {
			binary.BigEndian.PutUint64(buf, uint64(val))
		}
		return buf
	}
}
