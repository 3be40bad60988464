// Package webp provides the WEBP container codec.
//
// WEBP is a RIFF container: a 12-byte header ("RIFF", file size, "WEBP")
// followed by chunks of {type 4CC, length u32 LE, payload, pad byte when
// the length is odd}. Metadata lives in the EXIF chunk as a TIFF block of
// ASCII entries holding "key:value" strings.
package webp

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/hanzoui/workflowmeta/internal/binary"
	"github.com/hanzoui/workflowmeta/internal/registry"
	"github.com/hanzoui/workflowmeta/internal/tiff"
	"github.com/hanzoui/workflowmeta/internal/types"
)

const (
	riffHeaderSize = 12 // "RIFF" + size + "WEBP"
	chunkEXIF      = "EXIF"
)

// exifPrefix is the optional "Exif\0\0" marker some writers place before
// the TIFF block inside the EXIF chunk.
var exifPrefix = []byte{'E', 'x', 'i', 'f', 0, 0}

func init() {
	registry.Register(types.FormatWEBP, &codec{})
}

type codec struct{}

// validHeader reports whether data starts with a RIFF/WEBP header.
func validHeader(data []byte) bool {
	return len(data) >= riffHeaderSize &&
		string(data[0:4]) == "RIFF" &&
		string(data[8:12]) == "WEBP"
}

// chunk is one RIFF framing unit, sliced out of the source buffer.
type chunk struct {
	typ     string
	payload []byte // without the trailing pad byte
	raw     []byte // header + payload + pad, exactly as found
}

// walkChunks slices data (past the RIFF header) into chunks. A truncated
// trailing chunk is reported as a warning; everything before it is still
// returned. The second result is the offset where walking stopped: any
// bytes from there on could not be framed as chunks, and rewriters must
// carry them through verbatim.
func walkChunks(data []byte) ([]chunk, int64, []types.Warning) {
	var chunks []chunk
	var warnings []types.Warning

	sr := binary.NewSafeReader(data)
	offset := int64(riffHeaderSize)
	for offset+8 <= sr.Size() {
		typ, _ := sr.ReadString(offset, 4, "chunk type")
		length, _ := binary.ReadLE[uint32](sr, offset+4, "chunk length")

		total := int64(8) + int64(length) + int64(length%2)
		raw, err := sr.Slice(offset, int(min(total, sr.Size()-offset)), "chunk")
		if err != nil || offset+8+int64(length) > sr.Size() {
			warnings = append(warnings, types.Warning{
				Stage:   "webp",
				Offset:  offset,
				Message: fmt.Sprintf("truncated %q chunk (declared length %d)", typ, length),
			})
			break
		}

		chunks = append(chunks, chunk{
			typ:     typ,
			payload: raw[8 : 8+length],
			raw:     raw,
		})
		offset += total
	}

	return chunks, offset, warnings
}

// decodeEXIF parses the TIFF block inside an EXIF chunk payload into a
// record, splitting each ASCII entry on its first colon.
func decodeEXIF(payload []byte, record *types.Record) ([]types.Warning, error) {
	block := bytes.TrimPrefix(payload, exifPrefix)

	ifd, err := tiff.Decode(block)
	if err != nil {
		return nil, err
	}

	warnings := ifd.Warnings
	for i := range ifd.Entries {
		e := &ifd.Entries[i]
		if !e.IsASCII() {
			continue
		}
		key, value, found := strings.Cut(e.ASCIIValue(), ":")
		if !found {
			warnings = append(warnings, types.Warning{
				Stage:   "webp",
				Message: fmt.Sprintf("EXIF entry 0x%04X has no key separator, skipping", e.Tag),
			})
			continue
		}
		record.Set(key, value)
	}
	return warnings, nil
}

// Get extracts the metadata record from a WEBP buffer.
//
// Get never fails: any structural problem, including a buffer too short
// to hold the RIFF header or a missing "RIFF"/"WEBP" magic, degrades to
// an empty record with a warning.
func (c *codec) Get(data []byte) (*types.Record, []types.Warning, error) {
	record := types.NewRecord()

	if !validHeader(data) {
		return record, []types.Warning{{
			Stage:   "webp",
			Message: "missing RIFF/WEBP signature, no metadata extracted",
		}}, nil
	}

	chunks, _, warnings := walkChunks(data)
	for _, ch := range chunks {
		if ch.typ != chunkEXIF {
			continue
		}
		w, err := decodeEXIF(ch.payload, record)
		warnings = append(warnings, w...)
		if err != nil {
			warnings = append(warnings, types.Warning{
				Stage:   "webp",
				Message: fmt.Sprintf("EXIF chunk undecodable: %v", err),
			})
		}
	}

	return record, warnings, nil
}

// Set returns a new WEBP buffer with fields merged into the EXIF chunk.
//
// Existing ASCII entries keep their tags; an entry whose key appears in
// fields gets the incoming value, everything else is untouched. Keys in
// fields that matched no existing entry are appended as new ASCII
// entries with tags descending from one below Make. When the buffer has
// no EXIF chunk at all, one is synthesized. All other chunks, and the
// image payload, are copied byte for byte.
func (c *codec) Set(data []byte, fields *types.Record) ([]byte, []types.Warning, error) {
	if !validHeader(data) {
		return nil, nil, &types.InvalidContainerError{
			Format: types.FormatWEBP,
			Reason: "missing RIFF/WEBP signature",
		}
	}

	pending := fields.Clone()
	chunks, tail, warnings := walkChunks(data)

	w := binary.NewWriter()
	w.WriteBytes(data[0:riffHeaderSize])

	sawEXIF := false
	for _, ch := range chunks {
		if ch.typ != chunkEXIF {
			w.WriteBytes(ch.raw)
			continue
		}
		sawEXIF = true

		rewritten, rwWarnings, err := rewriteEXIF(ch.payload, pending)
		warnings = append(warnings, rwWarnings...)
		if err != nil {
			// Undecodable EXIF chunk: preserve it rather than guess.
			warnings = append(warnings, types.Warning{
				Stage:   "webp",
				Message: fmt.Sprintf("EXIF chunk undecodable, left untouched: %v", err),
			})
			w.WriteBytes(ch.raw)
			continue
		}
		writeChunk(w, chunkEXIF, rewritten)
	}

	if !sawEXIF && pending.Len() > 0 {
		// No EXIF chunk anywhere: synthesize one holding only the new keys.
		ifd := &tiff.IFD{LittleEndian: true}
		appendNewEntries(ifd, pending)
		writeChunk(w, chunkEXIF, ifd.Encode())
	}

	// Bytes the walker could not frame as chunks (a truncated trailer)
	// are carried through verbatim.
	w.WriteBytes(data[tail:])

	out := w.Bytes()
	binary.PutLE32(out, 4, uint32(len(out)-8))
	return out, warnings, nil
}

// rewriteEXIF rebuilds an EXIF chunk payload with pending values merged
// in. Keys that land on an existing entry are removed from pending.
func rewriteEXIF(payload []byte, pending *types.Record) ([]byte, []types.Warning, error) {
	hadPrefix := bytes.HasPrefix(payload, exifPrefix)
	block := bytes.TrimPrefix(payload, exifPrefix)

	ifd, err := tiff.Decode(block)
	if err != nil {
		return nil, nil, err
	}
	warnings := ifd.Warnings

	attempted := pending.Len() > 0
	landed := false
	for i := range ifd.Entries {
		e := &ifd.Entries[i]
		if !e.IsASCII() {
			continue
		}
		key, _, found := strings.Cut(e.ASCIIValue(), ":")
		if !found {
			continue
		}
		if value, ok := pending.Get(key); ok {
			e.SetASCII(key + ":" + value)
			pending.Delete(key)
			landed = true
		}
	}

	if attempted && !landed {
		warnings = append(warnings, types.Warning{
			Stage:   "webp",
			Message: "no existing EXIF entry matched, incoming keys appended as new entries",
		})
	}

	appendNewEntries(ifd, pending)

	encoded := ifd.Encode()
	if hadPrefix {
		encoded = append(append([]byte{}, exifPrefix...), encoded...)
	}
	return encoded, warnings, nil
}

// appendNewEntries adds every remaining pending key as a fresh ASCII
// entry. Tags are assigned descending from one below Make (0x010E,
// 0x010D, ...) to stay clear of the reserved tags above it. Pending is
// drained.
func appendNewEntries(ifd *tiff.IFD, pending *types.Record) {
	nextTag := uint16(tiff.TagMake - 1)
	for _, key := range pending.Keys() {
		value, _ := pending.Get(key)
		ifd.Entries = append(ifd.Entries, tiff.NewASCIIEntry(nextTag, key+":"+value))
		pending.Delete(key)
		nextTag--
	}
}

// writeChunk emits a chunk header, payload, and the pad byte RIFF
// requires after an odd-length payload.
func writeChunk(w *binary.Writer, typ string, payload []byte) {
	w.WriteString(typ)
	binary.WriteLE(w, uint32(len(payload)))
	w.WriteBytes(payload)
	if len(payload)%2 != 0 {
		w.PutByte(0)
	}
}
