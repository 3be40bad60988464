// Package tiff provides decoding and encoding of a single TIFF Image
// File Directory, the tag table WEBP embeds inside its EXIF chunk.
//
// Only one IFD per block is supported: the next-IFD pointer is ignored
// on decode and always written as zero on encode. Multi-IFD chains and
// EXIF thumbnails are out of scope.
package tiff

import (
	"bytes"
	"fmt"

	"github.com/hanzoui/workflowmeta/internal/binary"
	"github.com/hanzoui/workflowmeta/internal/types"
)

// Well-known EXIF tags used for workflow metadata storage.
const (
	TagImageDescription = 0x010E
	TagMake             = 0x010F
	TagModel            = 0x0110
	TagCopyright        = 0x8298
	TagUserComment      = 0x9286
)

// TypeASCII marks an entry whose value is a NUL-terminated ASCII string.
const TypeASCII = 2

const (
	headerSize = 8  // byte-order magic (2) + 42 (2) + IFD offset (4)
	entrySize  = 12 // tag (2) + type (2) + count (4) + offset/inline (4)
)

// Entry is one 12-byte IFD entry plus its resolved value bytes.
type Entry struct {
	Tag          uint16
	Type         uint16
	Count        uint32
	StoredOffset uint32 // offset field as found in the block; inline values keep 0
	Value        []byte // resolved value, including any trailing NUL for ASCII
}

// IsASCII reports whether the entry holds a NUL-terminated string.
func (e *Entry) IsASCII() bool {
	return e.Type == TypeASCII
}

// ASCIIValue returns the entry's string value with the trailing NUL
// stripped. Returns "" for non-ASCII entries.
func (e *Entry) ASCIIValue() string {
	if !e.IsASCII() {
		return ""
	}
	return string(bytes.TrimRight(e.Value, "\x00"))
}

// NewASCIIEntry builds an ASCII entry for the given tag and string.
func NewASCIIEntry(tag uint16, value string) Entry {
	raw := append([]byte(value), 0)
	return Entry{
		Tag:   tag,
		Type:  TypeASCII,
		Count: uint32(len(raw)),
		Value: raw,
	}
}

// SetASCII replaces the entry's string value, keeping tag and type.
func (e *Entry) SetASCII(value string) {
	e.Value = append([]byte(value), 0)
	e.Count = uint32(len(e.Value))
}

// IFD is a decoded Image File Directory.
type IFD struct {
	LittleEndian bool
	Entries      []Entry

	// TailPadding is the number of bytes between the last value's end
	// and the block's declared end. Preserved verbatim on encode so
	// downstream chunk-length accounting stays consistent.
	TailPadding int

	// Warnings collects non-fatal issues found while decoding.
	Warnings []types.Warning
}

// typeSize returns the byte size of one element of a TIFF field type.
func typeSize(t uint16) uint32 {
	switch t {
	case 1, 2, 6, 7: // BYTE, ASCII, SBYTE, UNDEFINED
		return 1
	case 3, 8: // SHORT, SSHORT
		return 2
	case 4, 9, 11: // LONG, SLONG, FLOAT
		return 4
	case 5, 10, 12: // RATIONAL, SRATIONAL, DOUBLE
		return 8
	default:
		return 1
	}
}

// Decode parses a TIFF block holding a single IFD.
//
// Byte order comes from the "II"/"MM" magic at offset 0; the IFD offset
// is read from offset 4. For each entry the decoder also computes the
// offset its value is expected at when values are laid out sequentially
// after the entry table with word alignment. When the stored offset
// disagrees, the block may have been reordered by another writer: the
// decoder warns but keeps reading, preferring whichever slice decodes
// cleanly (tolerant-read policy).
func Decode(block []byte) (*IFD, error) {
	sr := binary.NewSafeReader(block)

	order, err := sr.ReadString(0, 2, "TIFF byte-order magic")
	if err != nil {
		return nil, fmt.Errorf("read TIFF header: %w", err)
	}

	var endian binary.Endianness
	var little bool
	switch order {
	case "II":
		endian = binary.LittleEndian
		little = true
	case "MM":
		endian = binary.BigEndian
	default:
		return nil, fmt.Errorf("invalid TIFF byte-order magic %q", order)
	}

	ifdOffset, err := binary.ReadEndian[uint32](sr, 4, "IFD offset", endian)
	if err != nil {
		return nil, err
	}

	count, err := binary.ReadEndian[uint16](sr, int64(ifdOffset), "IFD entry count", endian)
	if err != nil {
		return nil, err
	}

	ifd := &IFD{LittleEndian: little}

	tableStart := int64(ifdOffset) + 2
	// Values are expected directly after the entry table and the
	// (always-zero) next-IFD pointer.
	predicted := tableStart + int64(count)*entrySize + 4

	for i := 0; i < int(count); i++ {
		entryOff := tableStart + int64(i)*entrySize

		tag, err := binary.ReadEndian[uint16](sr, entryOff, "entry tag", endian)
		if err != nil {
			return nil, err
		}
		fieldType, err := binary.ReadEndian[uint16](sr, entryOff+2, "entry type", endian)
		if err != nil {
			return nil, err
		}
		valCount, err := binary.ReadEndian[uint32](sr, entryOff+4, "entry count", endian)
		if err != nil {
			return nil, err
		}

		entry := Entry{Tag: tag, Type: fieldType, Count: valCount}
		valueSize := int64(typeSize(fieldType)) * int64(valCount)

		if valueSize <= 4 {
			// Value fits inline in the offset field.
			inline, err := sr.Slice(entryOff+8, 4, "inline entry value")
			if err != nil {
				return nil, err
			}
			entry.Value = bytes.Clone(inline[:valueSize])
			ifd.Entries = append(ifd.Entries, entry)
			continue
		}

		stored, err := binary.ReadEndian[uint32](sr, entryOff+8, "entry value offset", endian)
		if err != nil {
			return nil, err
		}
		entry.StoredOffset = stored

		// Word-align the predicted position before each value.
		if predicted%2 != 0 {
			predicted++
		}

		if int64(stored) != predicted {
			ifd.Warnings = append(ifd.Warnings, types.Warning{
				Stage:   "tiff",
				Offset:  entryOff + 8,
				Message: fmt.Sprintf("entry 0x%04X: stored value offset %d disagrees with expected %d", tag, stored, predicted),
			})
		}

		value, ok := resolveValue(sr, &entry, int64(stored), predicted, int(valueSize), ifd)
		predicted += valueSize
		if !ok {
			// Decode miss: neither slice is trustworthy. Skip the field
			// rather than guessing.
			continue
		}
		entry.Value = value
		ifd.Entries = append(ifd.Entries, entry)
	}

	// Everything between the last value's end and the block end is tail
	// padding, preserved verbatim on re-encode.
	if tail := sr.Size() - predicted; tail > 0 {
		ifd.TailPadding = int(tail)
	}

	return ifd, nil
}

// resolveValue picks the value bytes for an entry whose data lives
// outside the entry table.
//
// The slice at the stored offset is primary. For ASCII entries an
// embedded NUL before the terminator signals the stored offset points at
// the wrong value, so the slice at the predicted offset is used instead.
// If both slices carry embedded NULs the entry is unreadable and is
// dropped with a warning.
func resolveValue(sr *binary.SafeReader, entry *Entry, stored, predicted int64, size int, ifd *IFD) ([]byte, bool) {
	primary, primaryErr := sr.Slice(stored, size, "entry value")
	if !entry.IsASCII() {
		if primaryErr != nil {
			ifd.Warnings = append(ifd.Warnings, types.Warning{
				Stage:   "tiff",
				Offset:  stored,
				Message: fmt.Sprintf("entry 0x%04X: %v", entry.Tag, primaryErr),
			})
			return nil, false
		}
		return bytes.Clone(primary), true
	}

	if primaryErr == nil && !hasEmbeddedNUL(primary) {
		return bytes.Clone(primary), true
	}

	fallback, fallbackErr := sr.Slice(predicted, size, "entry value (predicted offset)")
	if fallbackErr == nil && !hasEmbeddedNUL(fallback) {
		return bytes.Clone(fallback), true
	}

	ifd.Warnings = append(ifd.Warnings, types.Warning{
		Stage:   "tiff",
		Offset:  stored,
		Message: fmt.Sprintf("entry 0x%04X: value unreadable at both stored and expected offsets", entry.Tag),
	})
	return nil, false
}

// hasEmbeddedNUL reports whether an ASCII value slice contains a NUL
// before its trailing terminator run.
func hasEmbeddedNUL(value []byte) bool {
	trimmed := bytes.TrimRight(value, "\x00")
	return bytes.IndexByte(trimmed, 0) >= 0
}

// Encode serializes the IFD back into a TIFF block.
//
// Layout is header, entry table, then values in entry order with a
// one-byte pad before any value that would start at an odd offset.
// TailPadding zero bytes are appended at the end. The next-IFD pointer
// is always written as zero.
func (ifd *IFD) Encode() []byte {
	endian := binary.BigEndian
	if ifd.LittleEndian {
		endian = binary.LittleEndian
	}

	n := len(ifd.Entries)
	valueStart := headerSize + 2 + n*entrySize + 4

	// Lay out the out-of-line values first so entry offset fields can
	// point at their final positions. Inline entries keep offset 0.
	offsets := make([]uint32, n)
	values := binary.NewWriter()
	cursor := valueStart
	for i := range ifd.Entries {
		e := &ifd.Entries[i]
		if len(e.Value) <= 4 {
			continue
		}
		if cursor%2 != 0 {
			values.PutByte(0)
			cursor++
		}
		offsets[i] = uint32(cursor)
		values.WriteBytes(e.Value)
		cursor += len(e.Value)
	}

	w := binary.NewWriter()
	if ifd.LittleEndian {
		w.WriteString("II")
	} else {
		w.WriteString("MM")
	}
	writeEndian(w, uint16(42), endian)
	writeEndian(w, uint32(headerSize), endian) // IFD starts right after the header

	writeEndian(w, uint16(n), endian)
	for i := range ifd.Entries {
		e := &ifd.Entries[i]
		writeEndian(w, e.Tag, endian)
		writeEndian(w, e.Type, endian)
		writeEndian(w, e.Count, endian)
		if len(e.Value) <= 4 {
			var inline [4]byte
			copy(inline[:], e.Value)
			w.WriteBytes(inline[:])
		} else {
			writeEndian(w, offsets[i], endian)
		}
	}
	writeEndian(w, uint32(0), endian) // next IFD offset: single IFD only

	w.WriteBytes(values.Bytes())
	w.Pad(ifd.TailPadding)

	return w.Bytes()
}

func writeEndian[T uint16 | uint32](w *binary.Writer, val T, endian binary.Endianness) {
	if endian == binary.LittleEndian {
		binary.WriteLE(w, val)
	} else {
		binary.Write(w, val)
	}
}
