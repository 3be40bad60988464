// Package png provides the PNG container codec.
//
// PNG is the 8-byte signature followed by chunks of {length u32 BE,
// type 4CC, payload, crc32 over type+payload}. Metadata lives in tEXt
// chunks as "keyword NUL text" pairs.
package png

import (
	"fmt"
	"hash/crc32"
	"strings"

	"github.com/hanzoui/workflowmeta/internal/binary"
	"github.com/hanzoui/workflowmeta/internal/registry"
	"github.com/hanzoui/workflowmeta/internal/types"
)

var signature = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}

func init() {
	registry.Register(types.FormatPNG, &codec{})
}

type codec struct{}

func validSignature(data []byte) bool {
	return len(data) >= len(signature) && string(data[:len(signature)]) == string(signature)
}

// chunk is one PNG framing unit sliced out of the source buffer.
type chunk struct {
	typ     string
	payload []byte
	raw     []byte // length + type + payload + crc, exactly as found
}

// walkChunks slices data (past the signature) into chunks, stopping
// after IEND or at the first chunk that cannot be framed. The second
// result is the offset where walking stopped; rewriters must copy any
// bytes from there on verbatim.
func walkChunks(data []byte) ([]chunk, int64, []types.Warning) {
	var chunks []chunk
	var warnings []types.Warning

	sr := binary.NewSafeReader(data)
	offset := int64(len(signature))
	for offset+12 <= sr.Size() {
		length, _ := binary.ReadBE[uint32](sr, offset, "chunk length")
		typ, _ := sr.ReadString(offset+4, 4, "chunk type")

		total := int64(12 + length)
		raw, err := sr.Slice(offset, int(total), "chunk")
		if err != nil {
			warnings = append(warnings, types.Warning{
				Stage:   "png",
				Offset:  offset,
				Message: fmt.Sprintf("truncated %q chunk (declared length %d)", typ, length),
			})
			break
		}

		chunks = append(chunks, chunk{typ: typ, payload: raw[8 : 8+length], raw: raw})
		offset += total

		if typ == "IEND" {
			break
		}
	}

	return chunks, offset, warnings
}

// Get extracts the metadata record from a PNG buffer.
//
// Like the WEBP codec, Get never fails: a missing signature degrades to
// an empty record with a warning.
func (c *codec) Get(data []byte) (*types.Record, []types.Warning, error) {
	record := types.NewRecord()

	if !validSignature(data) {
		return record, []types.Warning{{
			Stage:   "png",
			Message: "missing PNG signature, no metadata extracted",
		}}, nil
	}

	chunks, _, warnings := walkChunks(data)
	for _, ch := range chunks {
		if ch.typ != "tEXt" {
			continue
		}
		keyword, text, found := strings.Cut(string(ch.payload), "\x00")
		if !found {
			warnings = append(warnings, types.Warning{
				Stage:   "png",
				Message: "tEXt chunk without NUL separator, skipping",
			})
			continue
		}
		record.Set(keyword, text)
	}

	return record, warnings, nil
}

// Set returns a new PNG buffer with fields merged into tEXt chunks.
//
// Existing tEXt chunks are replaced by the merged set, emitted directly
// after the IHDR chunk; every other chunk, and anything after IEND, is
// copied byte for byte.
func (c *codec) Set(data []byte, fields *types.Record) ([]byte, []types.Warning, error) {
	if !validSignature(data) {
		return nil, nil, &types.InvalidContainerError{
			Format: types.FormatPNG,
			Reason: "missing PNG signature",
		}
	}

	existing, warnings, _ := c.Get(data)
	merged := types.Merge(existing, fields)

	chunks, tail, walkWarnings := walkChunks(data)
	warnings = append(warnings, walkWarnings...)

	w := binary.NewWriter()
	w.WriteBytes(data[:len(signature)])

	emitted := false
	for _, ch := range chunks {
		if ch.typ == "tEXt" {
			continue // replaced by the merged set
		}
		if ch.typ == "IEND" && !emitted {
			writeTextChunks(w, merged)
			emitted = true
		}
		w.WriteBytes(ch.raw)
		if ch.typ == "IHDR" && !emitted {
			writeTextChunks(w, merged)
			emitted = true
		}
	}

	// Degenerate buffer with neither anchor chunk: the merged set still
	// has to land somewhere.
	if !emitted {
		writeTextChunks(w, merged)
	}

	// Bytes past the walk (after IEND, or an unframeable trailer) are
	// carried through verbatim.
	w.WriteBytes(data[tail:])

	return w.Bytes(), warnings, nil
}

func writeTextChunks(w *binary.Writer, record *types.Record) {
	for key, value := range record.All() {
		payload := append(append([]byte(key), 0), value...)
		writeChunk(w, "tEXt", payload)
	}
}

// writeChunk emits a chunk with its length and CRC recomputed.
func writeChunk(w *binary.Writer, typ string, payload []byte) {
	binary.Write(w, uint32(len(payload)))
	w.WriteString(typ)
	w.WriteBytes(payload)

	crc := crc32.NewIEEE()
	crc.Write([]byte(typ))
	crc.Write(payload)
	binary.Write(w, crc.Sum32())
}
