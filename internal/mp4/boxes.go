// Package mp4 provides the MP4 container codec.
//
// MP4 files are a tree of boxes (atoms): {size u32 BE, type 4CC,
// payload}. Metadata lives under moov -> udta, in three places merged
// into one record: a legacy custom box, a UUID-tagged custom box, and
// the meta -> hdlr/keys/ilst structure.
package mp4

import (
	"fmt"

	"github.com/hanzoui/workflowmeta/internal/binary"
	"github.com/hanzoui/workflowmeta/internal/types"
)

// Box represents one MP4 box (atom).
type Box struct {
	Type       string
	Size       int64 // total size including header
	Offset     int64 // position in the buffer
	HeaderSize int64 // 8, or 16 with a 64-bit size extension
}

// DataOffset returns the buffer offset where the box payload starts.
func (b *Box) DataOffset() int64 {
	return b.Offset + b.HeaderSize
}

// DataSize returns the payload size, excluding the header.
func (b *Box) DataSize() int64 {
	if b.Size < b.HeaderSize {
		return 0
	}
	return b.Size - b.HeaderSize
}

// End returns the buffer offset just past the box.
func (b *Box) End() int64 {
	return b.Offset + b.Size
}

// readBoxHeader reads a box header at offset. parentEnd bounds the box:
// a declared size of zero means "extends to the end of the parent".
func readBoxHeader(sr *binary.SafeReader, offset, parentEnd int64) (*Box, error) {
	size32, err := binary.ReadBE[uint32](sr, offset, "box size")
	if err != nil {
		return nil, err
	}

	boxType, err := sr.ReadString(offset+4, 4, "box type")
	if err != nil {
		return nil, err
	}

	box := &Box{Type: boxType, Offset: offset, HeaderSize: 8}

	switch size32 {
	case 0:
		// Box extends to the end of its parent.
		box.Size = parentEnd - offset
	case 1:
		// 64-bit size extension. The high 32 bits are assumed zero:
		// buffers of 4 GiB and beyond are unsupported.
		high, err := binary.ReadBE[uint32](sr, offset+8, "extended box size (high)")
		if err != nil {
			return nil, err
		}
		if high != 0 {
			return nil, fmt.Errorf("box %q at offset %d: 64-bit size exceeds 4 GiB", boxType, offset)
		}
		low, err := binary.ReadBE[uint32](sr, offset+12, "extended box size (low)")
		if err != nil {
			return nil, err
		}
		box.Size = int64(low)
		box.HeaderSize = 16
	default:
		box.Size = int64(size32)
	}

	if box.Size < box.HeaderSize {
		return nil, fmt.Errorf("box %q at offset %d: invalid size %d", boxType, offset, box.Size)
	}
	if box.End() > parentEnd {
		return nil, fmt.Errorf("box %q at offset %d: size %d overruns parent end %d", boxType, offset, box.Size, parentEnd)
	}

	return box, nil
}

// findBox searches [start, end) for the first box of the given type.
func findBox(sr *binary.SafeReader, start, end int64, boxType string) (*Box, error) {
	offset := start
	for offset+8 <= end {
		box, err := readBoxHeader(sr, offset, end)
		if err != nil {
			return nil, err
		}
		if box.Type == boxType {
			return box, nil
		}
		offset = box.End()
	}
	return nil, &types.BoxNotFoundError{Box: boxType}
}

// eachBox calls fn for every direct child box in [start, end), stopping
// early when fn returns false.
func eachBox(sr *binary.SafeReader, start, end int64, fn func(*Box) bool) error {
	offset := start
	for offset+8 <= end {
		box, err := readBoxHeader(sr, offset, end)
		if err != nil {
			return err
		}
		if !fn(box) {
			return nil
		}
		offset = box.End()
	}
	return nil
}
