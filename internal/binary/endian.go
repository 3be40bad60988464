package binary

import "encoding/binary"

// Endianness represents byte order for multi-byte values.
type Endianness int

const (
	// BigEndian byte order. Used by: MP4 box sizes, PNG chunk lengths,
	// FLAC block lengths, TIFF "MM" blocks.
	BigEndian Endianness = iota

	// LittleEndian byte order. Used by: RIFF chunk lengths, Vorbis
	// comment lengths, TIFF "II" blocks.
	LittleEndian
)

// ReadLE reads a little-endian value of type T at the given offset.
//
// Example:
//
//	length, err := binary.ReadLE[uint32](sr, offset, "vorbis comment length")
func ReadLE[T uint8 | uint16 | uint32 | uint64](sr *SafeReader, off int64, what string) (T, error) {
	return ReadEndian[T](sr, off, what, LittleEndian)
}

// ReadBE reads a big-endian value of type T at the given offset.
// Equivalent to Read() but explicit about byte order.
func ReadBE[T uint8 | uint16 | uint32 | uint64](sr *SafeReader, off int64, what string) (T, error) {
	return ReadEndian[T](sr, off, what, BigEndian)
}

// ReadEndian reads a value of type T at the given offset with the given
// byte order. Most code should use the Read/ReadLE/ReadBE wrappers.
func ReadEndian[T uint8 | uint16 | uint32 | uint64](sr *SafeReader, off int64, what string, endian Endianness) (T, error) {
	var zero T
	size := sizeOf[T]()

	buf, err := sr.Slice(off, size, what)
	if err != nil {
		return zero, err
	}

	var val T
	switch any(zero).(type) {
	case uint8:
		val = T(buf[0])
	case uint16:
		if endian == LittleEndian {
			val = T(binary.LittleEndian.Uint16(buf))
		} else {
			val = T(binary.BigEndian.Uint16(buf))
		}
	case uint32:
		if endian == LittleEndian {
			val = T(binary.LittleEndian.Uint32(buf))
		} else {
			val = T(binary.BigEndian.Uint32(buf))
		}
	case uint64:
		if endian == LittleEndian {
			val = T(binary.LittleEndian.Uint64(buf))
		} else {
			val = T(binary.BigEndian.Uint64(buf))
		}
	}

	return val, nil
}

// sizeOf returns the encoded size in bytes of type T.
func sizeOf[T uint8 | uint16 | uint32 | uint64]() int {
	var zero T
	switch any(zero).(type) {
	case uint8:
		return 1
	case uint16:
		return 2
	case uint32:
		return 4
	default:
		return 8
	}
}
