// Package vorbis provides the Vorbis comment block byte codec.
//
// A comment block is a little-endian length-prefixed vendor string
// followed by a count and a list of length-prefixed "key=value" strings.
// FLAC embeds one as its block type 4.
package vorbis

import (
	"fmt"
	"strings"

	"github.com/hanzoui/workflowmeta/internal/binary"
	"github.com/hanzoui/workflowmeta/internal/types"
)

// Block is a decoded Vorbis comment block.
type Block struct {
	Vendor   string
	Comments []string // raw "key=value" strings, in stored order
}

// Decode parses a comment block payload.
func Decode(data []byte) (*Block, error) {
	sr := binary.NewSafeReader(data)

	vendorLen, err := binary.ReadLE[uint32](sr, 0, "vendor string length")
	if err != nil {
		return nil, err
	}
	vendor, err := sr.ReadString(4, int(vendorLen), "vendor string")
	if err != nil {
		return nil, err
	}

	offset := int64(4 + vendorLen)
	count, err := binary.ReadLE[uint32](sr, offset, "comment count")
	if err != nil {
		return nil, err
	}
	offset += 4

	block := &Block{Vendor: vendor}
	for i := uint32(0); i < count; i++ {
		length, err := binary.ReadLE[uint32](sr, offset, "comment length")
		if err != nil {
			return nil, fmt.Errorf("comment %d: %w", i, err)
		}
		comment, err := sr.ReadString(offset+4, int(length), "comment")
		if err != nil {
			return nil, fmt.Errorf("comment %d: %w", i, err)
		}
		block.Comments = append(block.Comments, comment)
		offset += 4 + int64(length)
	}

	return block, nil
}

// Encode serializes the block back to its payload bytes.
func (b *Block) Encode() []byte {
	w := binary.NewWriter()
	binary.WriteLE(w, uint32(len(b.Vendor)))
	w.WriteString(b.Vendor)
	binary.WriteLE(w, uint32(len(b.Comments)))
	for _, c := range b.Comments {
		binary.WriteLE(w, uint32(len(c)))
		w.WriteString(c)
	}
	return w.Bytes()
}

// ToRecord splits each "key=value" comment into the record. Comments
// without a separator are skipped with a warning.
func (b *Block) ToRecord(record *types.Record) []types.Warning {
	var warnings []types.Warning
	for _, comment := range b.Comments {
		key, value, found := strings.Cut(comment, "=")
		if !found {
			warnings = append(warnings, types.Warning{
				Stage:   "flac",
				Message: fmt.Sprintf("comment %q has no '=' separator, skipping", comment),
			})
			continue
		}
		record.Set(key, value)
	}
	return warnings
}

// FromRecord builds a comment block carrying every record entry as a
// "key=value" comment, in record order.
func FromRecord(vendor string, record *types.Record) *Block {
	block := &Block{Vendor: vendor}
	for key, value := range record.All() {
		block.Comments = append(block.Comments, key+"="+value)
	}
	return block
}
