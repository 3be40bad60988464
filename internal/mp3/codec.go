// Package mp3 provides the MP3 container codec.
//
// Metadata lives in the leading ID3v2 tag as TXXX (user-defined text)
// frames: the frame description is the record key, the frame value the
// record value. Tag parsing and serialization are delegated to
// github.com/bogem/id3v2; audio frames after the tag are carried
// through verbatim.
package mp3

import (
	"bytes"
	"fmt"

	"github.com/bogem/id3v2/v2"

	"github.com/hanzoui/workflowmeta/internal/registry"
	"github.com/hanzoui/workflowmeta/internal/types"
)

func init() {
	registry.Register(types.FormatMP3, &codec{})
}

type codec struct{}

// tagEnd returns the offset where audio frames begin: past the ID3v2
// header, its declared (synchsafe) size, and the optional footer.
func tagEnd(data []byte) int64 {
	if len(data) < 10 || string(data[0:3]) != "ID3" {
		return 0
	}
	size := int64(data[6]&0x7F)<<21 | int64(data[7]&0x7F)<<14 |
		int64(data[8]&0x7F)<<7 | int64(data[9]&0x7F)
	end := 10 + size
	if data[5]&0x10 != 0 {
		end += 10 // footer present
	}
	if end > int64(len(data)) {
		return int64(len(data))
	}
	return end
}

// Get extracts the metadata record from the buffer's ID3v2 tag.
//
// A buffer without a tag (or with an unparseable one) degrades to an
// empty record with a warning.
func (c *codec) Get(data []byte) (*types.Record, []types.Warning, error) {
	record := types.NewRecord()

	if len(data) < 10 || string(data[0:3]) != "ID3" {
		return record, []types.Warning{{
			Stage:   "mp3",
			Message: "no ID3v2 tag, no metadata extracted",
		}}, nil
	}

	tag, err := id3v2.ParseReader(bytes.NewReader(data), id3v2.Options{Parse: true})
	if err != nil {
		return record, []types.Warning{{
			Stage:   "mp3",
			Message: fmt.Sprintf("ID3v2 tag unparseable: %v", err),
		}}, nil
	}

	var warnings []types.Warning
	for _, framer := range tag.GetFrames("TXXX") {
		udt, ok := framer.(id3v2.UserDefinedTextFrame)
		if !ok {
			warnings = append(warnings, types.Warning{
				Stage:   "mp3",
				Message: "malformed TXXX frame, skipping",
			})
			continue
		}
		record.Set(udt.Description, udt.Value)
	}

	return record, warnings, nil
}

// Set returns a new MP3 buffer with fields merged into TXXX frames.
//
// All non-TXXX frames are preserved; the audio stream after the tag is
// copied byte for byte. A buffer without any ID3v2 tag gets a fresh one
// prepended.
func (c *codec) Set(data []byte, fields *types.Record) ([]byte, []types.Warning, error) {
	var tag *id3v2.Tag

	hasTag := len(data) >= 10 && string(data[0:3]) == "ID3"
	if hasTag {
		parsed, err := id3v2.ParseReader(bytes.NewReader(data), id3v2.Options{Parse: true})
		if err != nil {
			return nil, nil, &types.InvalidContainerError{
				Format: types.FormatMP3,
				Reason: fmt.Sprintf("ID3v2 tag unparseable: %v", err),
			}
		}
		tag = parsed
	} else {
		tag = id3v2.NewEmptyTag()
	}

	existing := types.NewRecord()
	for _, framer := range tag.GetFrames("TXXX") {
		if udt, ok := framer.(id3v2.UserDefinedTextFrame); ok {
			existing.Set(udt.Description, udt.Value)
		}
	}
	merged := types.Merge(existing, fields)

	tag.DeleteFrames("TXXX")
	for key, value := range merged.All() {
		tag.AddUserDefinedTextFrame(id3v2.UserDefinedTextFrame{
			Encoding:    id3v2.EncodingUTF8,
			Description: key,
			Value:       value,
		})
	}

	var out bytes.Buffer
	if _, err := tag.WriteTo(&out); err != nil {
		return nil, nil, fmt.Errorf("serialize ID3v2 tag: %w", err)
	}
	out.Write(data[tagEnd(data):])

	return out.Bytes(), nil, nil
}
