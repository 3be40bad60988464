// Package binary provides bounds-checked binary reading and writing
// primitives shared by the container codecs.
package binary

import (
	"github.com/hanzoui/workflowmeta/internal/types"
)

// SafeReader wraps an immutable byte buffer with bounds checking and
// helpful error messages. All codec reads go through it so a truncated
// or corrupted container surfaces as a typed error instead of a panic.
type SafeReader struct {
	data []byte
}

// NewSafeReader creates a SafeReader over data. The buffer is never
// modified.
func NewSafeReader(data []byte) *SafeReader {
	return &SafeReader{data: data}
}

// Size returns the total buffer length.
func (sr *SafeReader) Size() int64 {
	return int64(len(sr.data))
}

// Slice returns the sub-buffer [off, off+length). The returned slice
// aliases the underlying buffer; callers must not modify it.
func (sr *SafeReader) Slice(off int64, length int, what string) ([]byte, error) {
	if off < 0 || off > sr.Size() {
		return nil, &types.OutOfBoundsError{What: what, Offset: off, Length: length, Size: sr.Size()}
	}
	if length < 0 || off+int64(length) > sr.Size() {
		return nil, &types.OutOfBoundsError{What: what, Offset: off, Length: length, Size: sr.Size()}
	}
	return sr.data[off : off+int64(length)], nil
}

// ReadAt copies len(b) bytes at the given offset into b.
func (sr *SafeReader) ReadAt(b []byte, off int64, what string) error {
	src, err := sr.Slice(off, len(b), what)
	if err != nil {
		return err
	}
	copy(b, src)
	return nil
}

// ReadString reads a string of the given length at off.
func (sr *SafeReader) ReadString(off int64, length int, what string) (string, error) {
	b, err := sr.Slice(off, length, what)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Read reads a big-endian value of type T from the given offset.
// T must be uint8, uint16, uint32, or uint64.
func Read[T uint8 | uint16 | uint32 | uint64](sr *SafeReader, off int64, what string) (T, error) {
	return ReadEndian[T](sr, off, what, BigEndian)
}
