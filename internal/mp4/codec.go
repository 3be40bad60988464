package mp4

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/hanzoui/workflowmeta/internal/binary"
	"github.com/hanzoui/workflowmeta/internal/registry"
	"github.com/hanzoui/workflowmeta/internal/types"
)

const (
	// legacyBoxType is the custom udta child used for backward-compatible
	// workflow storage: version/flags, then the raw workflow text.
	legacyBoxType = "wkfl"

	// namespaceMDTA is the key namespace used by the keys box.
	namespaceMDTA = "mdta"

	// dataTypeUTF8 marks a data sub-box payload as UTF-8 text. Other
	// payload types are not extracted.
	dataTypeUTF8 = 1
)

// workflowUUID identifies the UUID-tagged custom box carrying workflow
// text. The payload follows the 16-byte identifier immediately.
var workflowUUID = uuid.MustParse("4b9f1fad-7a3c-4e1e-9d61-7702c3a3ef29")

func init() {
	registry.Register(types.FormatMP4, &codec{})
}

type codec struct{}

// Get extracts the metadata record from an MP4 buffer.
//
// Any parse failure degrades to an empty record with a warning; Get
// never returns an error to the caller.
func (c *codec) Get(data []byte) (*types.Record, []types.Warning, error) {
	record := types.NewRecord()
	warnings, err := extract(data, record)
	if err != nil {
		warnings = append(warnings, types.Warning{
			Stage:   "mp4",
			Message: fmt.Sprintf("metadata not extracted: %v", err),
		})
		return types.NewRecord(), warnings, nil
	}
	return record, warnings, nil
}

// extract walks moov -> udta and merges all three metadata carriers into
// record: the legacy box, the UUID box, then meta/keys/ilst (later
// carriers win on key collisions).
func extract(data []byte, record *types.Record) ([]types.Warning, error) {
	sr := binary.NewSafeReader(data)

	moov, err := findBox(sr, 0, sr.Size(), "moov")
	if err != nil {
		return nil, err
	}

	udta, err := findBox(sr, moov.DataOffset(), moov.End(), "udta")
	if err != nil {
		// A moov without udta simply has no metadata.
		return nil, nil
	}

	return readUdta(sr, udta, record)
}

func readUdta(sr *binary.SafeReader, udta *Box, record *types.Record) ([]types.Warning, error) {
	var warnings []types.Warning

	err := eachBox(sr, udta.DataOffset(), udta.End(), func(box *Box) bool {
		switch box.Type {
		case legacyBoxType:
			if box.DataSize() < 4 {
				warnings = append(warnings, types.Warning{
					Stage:   "mp4",
					Offset:  box.Offset,
					Message: "legacy workflow box too short, skipping",
				})
				return true
			}
			// Skip the 4-byte version/flags field; the rest is raw text.
			text, err := sr.ReadString(box.DataOffset()+4, int(box.DataSize()-4), "legacy workflow text")
			if err == nil {
				record.Set(types.KeyWorkflow, text)
			}

		case "uuid":
			readUUIDBox(sr, box, record, &warnings)

		case "meta":
			w := readMeta(sr, box, record)
			warnings = append(warnings, w...)
		}
		return true
	})
	if err != nil {
		return warnings, err
	}
	return warnings, nil
}

// readUUIDBox extracts workflow text from a UUID-tagged custom box.
// Boxes with an unrecognized identifier are left alone.
func readUUIDBox(sr *binary.SafeReader, box *Box, record *types.Record, warnings *[]types.Warning) {
	if box.DataSize() < 16 {
		*warnings = append(*warnings, types.Warning{
			Stage:   "mp4",
			Offset:  box.Offset,
			Message: "uuid box shorter than its identifier, skipping",
		})
		return
	}
	var id [16]byte
	if err := sr.ReadAt(id[:], box.DataOffset(), "uuid box identifier"); err != nil {
		return
	}
	if uuid.UUID(id) != workflowUUID {
		return
	}
	text, err := sr.ReadString(box.DataOffset()+16, int(box.DataSize()-16), "uuid workflow text")
	if err == nil {
		record.Set(types.KeyWorkflow, text)
	}
}

// readMeta parses the meta box: skip version/flags, collect the keys
// table, then resolve ilst items against it positionally. Both passes
// must complete before any metadata is extracted, because ilst items are
// positional, not self-labeled.
func readMeta(sr *binary.SafeReader, meta *Box, record *types.Record) []types.Warning {
	var warnings []types.Warning
	start := meta.DataOffset() + 4 // version/flags

	keysBox, err := findBox(sr, start, meta.End(), "keys")
	if err != nil {
		warnings = append(warnings, types.Warning{
			Stage:   "mp4",
			Offset:  meta.Offset,
			Message: "meta box has no keys table, skipping",
		})
		return warnings
	}
	ilstBox, err := findBox(sr, start, meta.End(), "ilst")
	if err != nil {
		warnings = append(warnings, types.Warning{
			Stage:   "mp4",
			Offset:  meta.Offset,
			Message: "meta box has no item list, skipping",
		})
		return warnings
	}

	// First pass: the key dictionary.
	keys, w := readKeys(sr, keysBox)
	warnings = append(warnings, w...)

	// Second pass: item values, labeled by position (1-based).
	index := 0
	err = eachBox(sr, ilstBox.DataOffset(), ilstBox.End(), func(item *Box) bool {
		index++
		value, ok, w := readItemValue(sr, item)
		warnings = append(warnings, w...)
		if !ok {
			return true
		}
		if index > len(keys) {
			warnings = append(warnings, types.Warning{
				Stage:   "mp4",
				Offset:  item.Offset,
				Message: fmt.Sprintf("ilst item %d has no matching key entry, skipping", index),
			})
			return true
		}
		record.Set(keys[index-1], value)
		return true
	})
	if err != nil {
		warnings = append(warnings, types.Warning{
			Stage:   "mp4",
			Offset:  ilstBox.Offset,
			Message: fmt.Sprintf("item list truncated: %v", err),
		})
	}

	return warnings
}

// readKeys decodes the keys box: version/flags, entry count, then
// {size, namespace, name} entries. Indices are 1-based.
func readKeys(sr *binary.SafeReader, keysBox *Box) ([]string, []types.Warning) {
	var warnings []types.Warning

	count, err := binary.ReadBE[uint32](sr, keysBox.DataOffset()+4, "keys entry count")
	if err != nil {
		return nil, []types.Warning{{
			Stage:   "mp4",
			Offset:  keysBox.Offset,
			Message: fmt.Sprintf("keys table unreadable: %v", err),
		}}
	}

	var keys []string
	cursor := keysBox.DataOffset() + 8
	for i := uint32(0); i < count; i++ {
		entrySize, err := binary.ReadBE[uint32](sr, cursor, "keys entry size")
		if err != nil || entrySize < 8 || cursor+int64(entrySize) > keysBox.End() {
			warnings = append(warnings, types.Warning{
				Stage:   "mp4",
				Offset:  cursor,
				Message: fmt.Sprintf("keys entry %d truncated, stopping key scan", i+1),
			})
			break
		}
		name, err := sr.ReadString(cursor+8, int(entrySize-8), "keys entry name")
		if err != nil {
			break
		}
		keys = append(keys, name)
		cursor += int64(entrySize)
	}

	return keys, warnings
}

// readItemValue extracts the UTF-8 payload of an ilst item's data
// sub-box. Items without a data child or with a non-text payload are
// skipped.
func readItemValue(sr *binary.SafeReader, item *Box) (string, bool, []types.Warning) {
	dataBox, err := findBox(sr, item.DataOffset(), item.End(), "data")
	if err != nil {
		return "", false, []types.Warning{{
			Stage:   "mp4",
			Offset:  item.Offset,
			Message: "ilst item has no data sub-box, skipping",
		}}
	}
	if dataBox.DataSize() < 8 {
		return "", false, []types.Warning{{
			Stage:   "mp4",
			Offset:  dataBox.Offset,
			Message: "data sub-box truncated, skipping",
		}}
	}

	dataType, err := binary.ReadBE[uint32](sr, dataBox.DataOffset(), "data type")
	if err != nil || dataType != dataTypeUTF8 {
		return "", false, nil
	}

	// 4-byte locale follows the type, then the payload.
	value, err := sr.ReadString(dataBox.DataOffset()+8, int(dataBox.DataSize()-8), "item value")
	if err != nil {
		return "", false, nil
	}
	return value, true, nil
}

// Set returns a new MP4 buffer with fields merged into the metadata.
//
// Existing metadata from the legacy box, the UUID box, and the
// meta/keys/ilst structure is read first; incoming entries overwrite
// same-named keys. The whole merged set is re-serialized into a freshly
// built udta box, spliced over the old one (or appended to moov when
// none existed), and moov's size field is recomputed.
func (c *codec) Set(data []byte, fields *types.Record) ([]byte, []types.Warning, error) {
	sr := binary.NewSafeReader(data)

	first, err := readBoxHeader(sr, 0, sr.Size())
	if err != nil || first.Type != "ftyp" {
		return nil, nil, &types.InvalidContainerError{
			Format: types.FormatMP4,
			Reason: "no leading ftyp box",
		}
	}

	moov, err := findBox(sr, 0, sr.Size(), "moov")
	if err != nil {
		return nil, nil, err
	}

	existing := types.NewRecord()
	var warnings []types.Warning
	udta, err := findBox(sr, moov.DataOffset(), moov.End(), "udta")
	if err == nil {
		w, err := readUdta(sr, udta, existing)
		warnings = append(warnings, w...)
		if err != nil {
			warnings = append(warnings, types.Warning{
				Stage:   "mp4",
				Message: fmt.Sprintf("existing metadata partially unreadable: %v", err),
			})
		}
	} else {
		udta = nil
	}

	merged := types.Merge(existing, fields)
	newUdta := buildUdta(merged)

	w := binary.NewWriter()
	var delta int64
	if udta != nil {
		// Replace the existing udta in place.
		w.WriteBytes(data[:udta.Offset])
		w.WriteBytes(newUdta)
		w.WriteBytes(data[udta.End():])
		delta = int64(len(newUdta)) - udta.Size
	} else {
		// No udta anywhere in moov: append a new one wholesale.
		w.WriteBytes(data[:moov.End()])
		w.WriteBytes(newUdta)
		w.WriteBytes(data[moov.End():])
		delta = int64(len(newUdta))
	}

	out := w.Bytes()
	patchBoxSize(out, moov, moov.Size+delta)
	return out, warnings, nil
}

// patchBoxSize rewrites a box's size field in place to reflect its
// payload after mutation. The three size encodings are preserved: a
// 32-bit size is patched at the header, a 64-bit extension at its low
// word, and a zero "extends to end of parent" size stays zero.
func patchBoxSize(out []byte, box *Box, newSize int64) {
	sr := binary.NewSafeReader(out)
	declared, err := binary.ReadBE[uint32](sr, box.Offset, "box size")
	if err != nil {
		return
	}
	switch declared {
	case 0:
		// Still extends to the end; nothing to patch.
	case 1:
		binary.PutBE32(out, int(box.Offset)+12, uint32(newSize))
	default:
		binary.PutBE32(out, int(box.Offset), uint32(newSize))
	}
}

// writeBox emits a complete box: recomputed size, type, payload.
func writeBox(w *binary.Writer, boxType string, payload []byte) {
	binary.Write(w, uint32(8+len(payload)))
	w.WriteString(boxType)
	w.WriteBytes(payload)
}

// buildUdta serializes the merged record into a fresh udta box:
// a legacy box and a UUID box carrying the workflow key when present,
// plus a complete meta/hdlr/keys/ilst structure for the full set.
func buildUdta(record *types.Record) []byte {
	inner := binary.NewWriter()

	if workflow, ok := record.Get(types.KeyWorkflow); ok {
		legacy := binary.NewWriter()
		binary.Write(legacy, uint32(0)) // version/flags
		legacy.WriteString(workflow)
		writeBox(inner, legacyBoxType, legacy.Bytes())

		uuidBody := binary.NewWriter()
		uuidBody.WriteBytes(workflowUUID[:])
		uuidBody.WriteString(workflow)
		writeBox(inner, "uuid", uuidBody.Bytes())
	}

	writeBox(inner, "meta", buildMeta(record))

	w := binary.NewWriter()
	writeBox(w, "udta", inner.Bytes())
	return w.Bytes()
}

func buildMeta(record *types.Record) []byte {
	meta := binary.NewWriter()
	binary.Write(meta, uint32(0)) // version/flags

	writeBox(meta, "hdlr", buildHdlr())

	keys := binary.NewWriter()
	binary.Write(keys, uint32(0)) // version/flags
	binary.Write(keys, uint32(record.Len()))
	for key := range record.All() {
		binary.Write(keys, uint32(8+len(key)))
		keys.WriteString(namespaceMDTA)
		keys.WriteString(key)
	}
	writeBox(meta, "keys", keys.Bytes())

	ilst := binary.NewWriter()
	index := uint32(0)
	for _, value := range record.All() {
		index++

		item := binary.NewWriter()
		dataBody := binary.NewWriter()
		binary.Write(dataBody, uint32(dataTypeUTF8))
		binary.Write(dataBody, uint32(0)) // locale
		dataBody.WriteString(value)
		writeBox(item, "data", dataBody.Bytes())

		// Item boxes are typed by their 1-based key index.
		binary.Write(ilst, uint32(8+item.Offset()))
		binary.Write(ilst, index)
		ilst.WriteBytes(item.Bytes())
	}
	writeBox(meta, "ilst", ilst.Bytes())

	return meta.Bytes()
}

// buildHdlr synthesizes the fixed handler box declaring the mdta
// metadata scheme with an empty name.
func buildHdlr() []byte {
	w := binary.NewWriter()
	binary.Write(w, uint32(0)) // version/flags
	binary.Write(w, uint32(0)) // pre_defined
	w.WriteString(namespaceMDTA)
	w.Pad(12)    // reserved
	w.PutByte(0) // empty name
	return w.Bytes()
}
