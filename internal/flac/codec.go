// Package flac provides the FLAC container codec.
//
// A FLAC file is the 4-byte "fLaC" signature, a chain of metadata
// blocks {4-byte header: last-flag bit, 7-bit type, 24-bit BE length},
// then raw audio frames. Metadata lives in the block type 4 Vorbis
// comment.
package flac

import (
	"fmt"

	"github.com/hanzoui/workflowmeta/internal/binary"
	"github.com/hanzoui/workflowmeta/internal/registry"
	"github.com/hanzoui/workflowmeta/internal/types"
	"github.com/hanzoui/workflowmeta/internal/vorbis"
)

// Metadata block types
const (
	blockTypeStreamInfo    = 0
	blockTypePadding       = 1
	blockTypeVorbisComment = 4
)

// defaultVendor is written when a file had no Vorbis comment block to
// take a vendor string from.
const defaultVendor = "workflowmeta"

func init() {
	registry.Register(types.FormatFLAC, &codec{})
}

type codec struct{}

// block is one metadata framing unit sliced out of the source buffer.
type block struct {
	typ     uint8
	last    bool
	payload []byte
	raw     []byte // header + payload, exactly as found
}

// walkBlocks parses the metadata-block chain. It returns the blocks in
// order and the offset where audio frames begin (the byte after the
// last metadata block).
func walkBlocks(data []byte) ([]block, int64, error) {
	sr := binary.NewSafeReader(data)
	var blocks []block

	offset := int64(4) // past "fLaC"
	for offset < sr.Size() {
		header, err := binary.ReadBE[uint32](sr, offset, "metadata block header")
		if err != nil {
			return nil, 0, err
		}

		isLast := header>>31 == 1
		blockType := uint8(header >> 24 & 0x7F)
		blockLength := int64(header & 0x00FFFFFF)

		raw, err := sr.Slice(offset, int(4+blockLength), "metadata block")
		if err != nil {
			return nil, 0, fmt.Errorf("block type %d at offset %d: %w", blockType, offset, err)
		}

		blocks = append(blocks, block{
			typ:     blockType,
			last:    isLast,
			payload: raw[4:],
			raw:     raw,
		})
		offset += 4 + blockLength

		if isLast {
			break
		}
	}

	return blocks, offset, nil
}

func checkSignature(data []byte) error {
	if len(data) < 4 || string(data[0:4]) != "fLaC" {
		return &types.InvalidContainerError{
			Format: types.FormatFLAC,
			Reason: "missing fLaC signature",
		}
	}
	return nil
}

// Get extracts the metadata record from a FLAC buffer.
//
// Unlike the image and video codecs, a FLAC buffer without its
// signature is unrecoverable at this layer, so Get returns
// InvalidContainerError instead of degrading to an empty record.
func (c *codec) Get(data []byte) (*types.Record, []types.Warning, error) {
	if err := checkSignature(data); err != nil {
		return nil, nil, err
	}

	record := types.NewRecord()
	blocks, _, err := walkBlocks(data)
	if err != nil {
		return record, []types.Warning{{
			Stage:   "flac",
			Message: fmt.Sprintf("metadata chain truncated: %v", err),
		}}, nil
	}

	var warnings []types.Warning
	for _, b := range blocks {
		if b.typ != blockTypeVorbisComment {
			continue
		}
		cb, err := vorbis.Decode(b.payload)
		if err != nil {
			warnings = append(warnings, types.Warning{
				Stage:   "flac",
				Message: fmt.Sprintf("vorbis comment block undecodable: %v", err),
			})
			break
		}
		warnings = append(warnings, cb.ToRecord(record)...)
		break // only the first comment block is decoded
	}

	return record, warnings, nil
}

// Set returns a new FLAC buffer with fields merged into the Vorbis
// comment block.
//
// Every non-comment block is copied in original order (with its
// last-block flag cleared), then a fresh comment block built from the
// merged record is emitted as the new last metadata block, followed by
// the original audio frames.
func (c *codec) Set(data []byte, fields *types.Record) ([]byte, []types.Warning, error) {
	if err := checkSignature(data); err != nil {
		return nil, nil, err
	}

	blocks, audioStart, err := walkBlocks(data)
	if err != nil {
		return nil, nil, fmt.Errorf("walk metadata blocks: %w", err)
	}

	var warnings []types.Warning
	existing := types.NewRecord()
	vendor := defaultVendor
	for _, b := range blocks {
		if b.typ != blockTypeVorbisComment {
			continue
		}
		cb, err := vorbis.Decode(b.payload)
		if err != nil {
			warnings = append(warnings, types.Warning{
				Stage:   "flac",
				Message: fmt.Sprintf("existing vorbis comment block undecodable, rebuilding from incoming fields: %v", err),
			})
			break
		}
		vendor = cb.Vendor
		warnings = append(warnings, cb.ToRecord(existing)...)
		break
	}

	merged := types.Merge(existing, fields)

	w := binary.NewWriter()
	w.WriteString("fLaC")
	for _, b := range blocks {
		if b.typ == blockTypeVorbisComment {
			continue
		}
		// Copied verbatim except the last-block flag: the rebuilt
		// comment block always goes last.
		raw := append([]byte{}, b.raw...)
		raw[0] &= 0x7F
		w.WriteBytes(raw)
	}

	payload := vorbis.FromRecord(vendor, merged).Encode()
	if len(payload)%2 != 0 {
		// Keep block lengths even; trailing bytes past the comment list
		// are ignored by decoders because every field is length-prefixed.
		payload = append(payload, 0)
	}
	header := uint32(1)<<31 | uint32(blockTypeVorbisComment)<<24 | uint32(len(payload))
	binary.Write(w, header)
	w.WriteBytes(payload)

	w.WriteBytes(data[audioStart:])
	return w.Bytes(), warnings, nil
}
