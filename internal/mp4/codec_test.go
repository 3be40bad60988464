package mp4

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	bin "github.com/hanzoui/workflowmeta/internal/binary"
	"github.com/hanzoui/workflowmeta/internal/types"
)

// createMockBox frames a payload as an MP4 box with a 32-bit size.
func createMockBox(t *testing.T, typ string, payload []byte) []byte {
	t.Helper()

	buf := &bytes.Buffer{}
	binary.Write(buf, binary.BigEndian, uint32(8+len(payload)))
	buf.WriteString(typ)
	buf.Write(payload)
	return buf.Bytes()
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

var mockFtyp = []byte{
	0x00, 0x00, 0x00, 0x10, 'f', 't', 'y', 'p',
	'i', 's', 'o', 'm', 0x00, 0x00, 0x02, 0x00,
}

var mockMdat = []byte{
	0x00, 0x00, 0x00, 0x10, 'm', 'd', 'a', 't',
	0xDE, 0xAD, 0xBE, 0xEF, 0xCA, 0xFE, 0xBA, 0xBE,
}

// createLegacyBox builds the backward-compatible workflow box.
func createLegacyBox(t *testing.T, workflow string) []byte {
	t.Helper()
	payload := append([]byte{0, 0, 0, 0}, workflow...)
	return createMockBox(t, legacyBoxType, payload)
}

// createUUIDBox builds a UUID-tagged custom box.
func createUUIDBox(t *testing.T, id [16]byte, workflow string) []byte {
	t.Helper()
	payload := append(id[:], workflow...)
	return createMockBox(t, "uuid", payload)
}

// createMetaBox builds a meta box with hdlr, keys, and ilst for the
// given ordered pairs.
func createMetaBox(t *testing.T, pairs [][2]string) []byte {
	t.Helper()

	keys := &bytes.Buffer{}
	binary.Write(keys, binary.BigEndian, uint32(0))
	binary.Write(keys, binary.BigEndian, uint32(len(pairs)))
	for _, p := range pairs {
		binary.Write(keys, binary.BigEndian, uint32(8+len(p[0])))
		keys.WriteString(namespaceMDTA)
		keys.WriteString(p[0])
	}

	ilst := &bytes.Buffer{}
	for i, p := range pairs {
		data := &bytes.Buffer{}
		binary.Write(data, binary.BigEndian, uint32(dataTypeUTF8))
		binary.Write(data, binary.BigEndian, uint32(0))
		data.WriteString(p[1])
		dataBox := createMockBox(t, "data", data.Bytes())

		binary.Write(ilst, binary.BigEndian, uint32(8+len(dataBox)))
		binary.Write(ilst, binary.BigEndian, uint32(i+1))
		ilst.Write(dataBox)
	}

	meta := &bytes.Buffer{}
	binary.Write(meta, binary.BigEndian, uint32(0)) // version/flags
	meta.Write(createMockBox(t, "hdlr", buildHdlr()))
	meta.Write(createMockBox(t, "keys", keys.Bytes()))
	meta.Write(createMockBox(t, "ilst", ilst.Bytes()))
	return createMockBox(t, "meta", meta.Bytes())
}

func TestReadBoxHeader(t *testing.T) {
	t.Run("plain size", func(t *testing.T) {
		data := createMockBox(t, "free", make([]byte, 8))
		sr := bin.NewSafeReader(data)
		box, err := readBoxHeader(sr, 0, sr.Size())
		if err != nil {
			t.Fatalf("readBoxHeader() error = %v", err)
		}
		if box.Type != "free" || box.Size != 16 || box.HeaderSize != 8 {
			t.Errorf("box = %+v", box)
		}
	})

	t.Run("zero size extends to parent end", func(t *testing.T) {
		data := concat([]byte{0, 0, 0, 0}, []byte("mdat"), make([]byte, 24))
		sr := bin.NewSafeReader(data)
		box, err := readBoxHeader(sr, 0, sr.Size())
		if err != nil {
			t.Fatalf("readBoxHeader() error = %v", err)
		}
		if box.Size != int64(len(data)) {
			t.Errorf("Size = %d, want %d", box.Size, len(data))
		}
	})

	t.Run("64-bit size extension", func(t *testing.T) {
		data := concat(
			[]byte{0, 0, 0, 1}, []byte("mdat"),
			[]byte{0, 0, 0, 0, 0, 0, 0, 24}, // extended size
			make([]byte, 8),
		)
		sr := bin.NewSafeReader(data)
		box, err := readBoxHeader(sr, 0, sr.Size())
		if err != nil {
			t.Fatalf("readBoxHeader() error = %v", err)
		}
		if box.Size != 24 || box.HeaderSize != 16 {
			t.Errorf("box = %+v", box)
		}
		if box.DataOffset() != 16 || box.DataSize() != 8 {
			t.Errorf("DataOffset/DataSize = %d/%d", box.DataOffset(), box.DataSize())
		}
	})

	t.Run("64-bit size beyond 4GiB rejected", func(t *testing.T) {
		data := concat(
			[]byte{0, 0, 0, 1}, []byte("mdat"),
			[]byte{0, 0, 0, 1, 0, 0, 0, 0},
			make([]byte, 8),
		)
		sr := bin.NewSafeReader(data)
		if _, err := readBoxHeader(sr, 0, sr.Size()); err == nil {
			t.Fatal("expected error for size above 4 GiB")
		}
	})

	t.Run("size smaller than header rejected", func(t *testing.T) {
		data := concat([]byte{0, 0, 0, 4}, []byte("mdat"))
		sr := bin.NewSafeReader(data)
		if _, err := readBoxHeader(sr, 0, sr.Size()); err == nil {
			t.Fatal("expected error for undersized box")
		}
	})

	t.Run("overrunning parent rejected", func(t *testing.T) {
		data := concat([]byte{0, 0, 1, 0}, []byte("mdat"), make([]byte, 8))
		sr := bin.NewSafeReader(data)
		if _, err := readBoxHeader(sr, 0, sr.Size()); err == nil {
			t.Fatal("expected error for box overrunning its parent")
		}
	})
}

func TestFindBox(t *testing.T) {
	data := concat(
		createMockBox(t, "free", make([]byte, 4)),
		createMockBox(t, "moov", []byte("payload!")),
	)
	sr := bin.NewSafeReader(data)

	box, err := findBox(sr, 0, sr.Size(), "moov")
	if err != nil {
		t.Fatalf("findBox() error = %v", err)
	}
	if box.Offset != 12 {
		t.Errorf("Offset = %d, want 12", box.Offset)
	}

	_, err = findBox(sr, 0, sr.Size(), "udta")
	var notFound *types.BoxNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("error = %v, want BoxNotFoundError", err)
	}
	if notFound.Box != "udta" {
		t.Errorf("missing box = %q", notFound.Box)
	}
}

func TestGet_LegacyBox(t *testing.T) {
	udta := createMockBox(t, "udta", createLegacyBox(t, `{"nodes":[]}`))
	data := concat(mockFtyp, createMockBox(t, "moov", udta), mockMdat)

	c := &codec{}
	record, warnings, err := c.Get(data)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
	if got, _ := record.Get(types.KeyWorkflow); got != `{"nodes":[]}` {
		t.Errorf("workflow = %q", got)
	}
}

func TestGet_UUIDBox(t *testing.T) {
	other := createUUIDBox(t, [16]byte{1, 2, 3}, "not ours")
	ours := createUUIDBox(t, workflowUUID, `{"uuid":true}`)
	udta := createMockBox(t, "udta", concat(other, ours))
	data := concat(mockFtyp, createMockBox(t, "moov", udta), mockMdat)

	c := &codec{}
	record, warnings, err := c.Get(data)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
	if got, _ := record.Get(types.KeyWorkflow); got != `{"uuid":true}` {
		t.Errorf("workflow = %q, foreign uuid box must be ignored", got)
	}
}

func TestGet_MetaKeysIlst(t *testing.T) {
	meta := createMetaBox(t, [][2]string{
		{"workflow", `{"meta":1}`},
		{"prompt", "a blue door"},
	})
	udta := createMockBox(t, "udta", meta)
	data := concat(mockFtyp, createMockBox(t, "moov", udta), mockMdat)

	c := &codec{}
	record, warnings, err := c.Get(data)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
	if got, _ := record.Get("workflow"); got != `{"meta":1}` {
		t.Errorf("workflow = %q", got)
	}
	if got, _ := record.Get("prompt"); got != "a blue door" {
		t.Errorf("prompt = %q", got)
	}
}

func TestGet_MetaWinsOverLegacy(t *testing.T) {
	udta := createMockBox(t, "udta", concat(
		createLegacyBox(t, "legacy value"),
		createMetaBox(t, [][2]string{{"workflow", "meta value"}}),
	))
	data := concat(mockFtyp, createMockBox(t, "moov", udta), mockMdat)

	c := &codec{}
	record, _, err := c.Get(data)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got, _ := record.Get(types.KeyWorkflow); got != "meta value" {
		t.Errorf("workflow = %q, meta carrier must win", got)
	}
}

func TestGet_Degradation(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"garbage", []byte("0123456789")},
		{"no moov", concat(mockFtyp, mockMdat)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &codec{}
			record, warnings, err := c.Get(tt.data)
			if err != nil {
				t.Fatalf("Get() error = %v, want graceful degradation", err)
			}
			if record.Len() != 0 {
				t.Errorf("record not empty: %v", record)
			}
			if len(warnings) == 0 {
				t.Error("expected a warning")
			}
		})
	}
}

func TestGet_MoovWithoutUdta(t *testing.T) {
	data := concat(mockFtyp, createMockBox(t, "moov", createMockBox(t, "mvhd", make([]byte, 20))), mockMdat)

	c := &codec{}
	record, warnings, err := c.Get(data)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if record.Len() != 0 || len(warnings) != 0 {
		t.Errorf("expected clean empty record, got %v / %v", record, warnings)
	}
}

func TestGet_MetaMissingKeysWarns(t *testing.T) {
	meta := &bytes.Buffer{}
	binary.Write(meta, binary.BigEndian, uint32(0))
	meta.Write(createMockBox(t, "hdlr", buildHdlr()))
	udta := createMockBox(t, "udta", createMockBox(t, "meta", meta.Bytes()))
	data := concat(mockFtyp, createMockBox(t, "moov", udta), mockMdat)

	c := &codec{}
	record, warnings, err := c.Get(data)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if record.Len() != 0 {
		t.Errorf("record not empty: %v", record)
	}
	if len(warnings) == 0 {
		t.Error("expected a warning for the missing keys table")
	}
}

func TestSet_RequiresFtyp(t *testing.T) {
	data := concat(createMockBox(t, "moov", nil), mockMdat)

	c := &codec{}
	fields := types.NewRecord()
	fields.Set(types.KeyWorkflow, "{}")

	_, _, err := c.Set(data, fields)
	var invalid *types.InvalidContainerError
	if !errors.As(err, &invalid) {
		t.Fatalf("error = %v, want InvalidContainerError", err)
	}
}

func TestSet_RequiresMoov(t *testing.T) {
	data := concat(mockFtyp, mockMdat)

	c := &codec{}
	fields := types.NewRecord()
	fields.Set(types.KeyWorkflow, "{}")

	_, _, err := c.Set(data, fields)
	var notFound *types.BoxNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("error = %v, want BoxNotFoundError", err)
	}
	if notFound.Box != "moov" {
		t.Errorf("missing box = %q", notFound.Box)
	}
}

func TestSet_AppendsUdtaWhenAbsent(t *testing.T) {
	moov := createMockBox(t, "moov", createMockBox(t, "mvhd", make([]byte, 20)))
	data := concat(mockFtyp, moov, mockMdat)

	fields := types.NewRecord()
	fields.Set(types.KeyWorkflow, `{"v":1}`)

	c := &codec{}
	out, _, err := c.Set(data, fields)
	if err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	record, _, err := c.Get(out)
	if err != nil {
		t.Fatalf("Get(Set()) error = %v", err)
	}
	if got, _ := record.Get(types.KeyWorkflow); got != `{"v":1}` {
		t.Errorf("workflow = %q", got)
	}
	if !bytes.HasSuffix(out, mockMdat) {
		t.Error("mdat bytes not preserved")
	}

	// moov size must cover the appended udta.
	sr := bin.NewSafeReader(out)
	moovBox, err := findBox(sr, 0, sr.Size(), "moov")
	if err != nil {
		t.Fatalf("findBox(moov) in output: %v", err)
	}
	if _, err := findBox(sr, moovBox.DataOffset(), moovBox.End(), "udta"); err != nil {
		t.Errorf("udta not inside patched moov: %v", err)
	}
}

func TestSet_ReplacesExistingUdta(t *testing.T) {
	udta := createMockBox(t, "udta", createLegacyBox(t, `{"old":1}`))
	moov := createMockBox(t, "moov", concat(createMockBox(t, "mvhd", make([]byte, 20)), udta))
	data := concat(mockFtyp, moov, mockMdat)

	fields := types.NewRecord()
	fields.Set(types.KeyWorkflow, `{"new":2}`)
	fields.Set("prompt", "sunset")

	c := &codec{}
	out, _, err := c.Set(data, fields)
	if err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	record, warnings, err := c.Get(out)
	if err != nil {
		t.Fatalf("Get(Set()) error = %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
	if got, _ := record.Get(types.KeyWorkflow); got != `{"new":2}` {
		t.Errorf("workflow = %q", got)
	}
	if got, _ := record.Get("prompt"); got != "sunset" {
		t.Errorf("prompt = %q", got)
	}
	if !bytes.HasSuffix(out, mockMdat) {
		t.Error("mdat bytes not preserved")
	}
	if !bytes.HasPrefix(out, mockFtyp) {
		t.Error("ftyp bytes not preserved")
	}
}

func TestSet_MergePreservesUnmentionedKeys(t *testing.T) {
	udta := createMockBox(t, "udta", createMetaBox(t, [][2]string{
		{"workflow", `{"keep":0}`},
		{"seed", "99"},
	}))
	data := concat(mockFtyp, createMockBox(t, "moov", udta), mockMdat)

	fields := types.NewRecord()
	fields.Set("workflow", `{"keep":1}`)

	c := &codec{}
	out, _, err := c.Set(data, fields)
	if err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	record, _, err := c.Get(out)
	if err != nil {
		t.Fatalf("Get(Set()) error = %v", err)
	}
	if got, _ := record.Get("workflow"); got != `{"keep":1}` {
		t.Errorf("workflow = %q", got)
	}
	if got, _ := record.Get("seed"); got != "99" {
		t.Errorf("seed = %q, want preserved through merge", got)
	}
}

func TestSet_Idempotent(t *testing.T) {
	data := concat(mockFtyp, createMockBox(t, "moov", createMockBox(t, "mvhd", make([]byte, 20))), mockMdat)

	fields := types.NewRecord()
	fields.Set(types.KeyWorkflow, `{"a":1}`)

	c := &codec{}
	once, _, err := c.Set(data, fields)
	if err != nil {
		t.Fatalf("first Set() error = %v", err)
	}
	twice, _, err := c.Set(once, fields)
	if err != nil {
		t.Fatalf("second Set() error = %v", err)
	}
	if !bytes.Equal(once, twice) {
		t.Error("second identical Set changed the buffer")
	}
}

func TestSet_PatchesExtendedMoovSize(t *testing.T) {
	// moov with a 64-bit size extension: the low word must be patched,
	// the marker size of 1 left alone.
	inner := createMockBox(t, "mvhd", make([]byte, 20))
	moov := concat(
		[]byte{0, 0, 0, 1}, []byte("moov"),
		[]byte{0, 0, 0, 0, 0, 0, 0, 0}, // extended size, filled below
		inner,
	)
	binary.BigEndian.PutUint64(moov[8:16], uint64(len(moov)))
	data := concat(mockFtyp, moov, mockMdat)

	fields := types.NewRecord()
	fields.Set(types.KeyWorkflow, "{}")

	c := &codec{}
	out, _, err := c.Set(data, fields)
	if err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	offset := int64(len(mockFtyp))
	if got := binary.BigEndian.Uint32(out[offset : offset+4]); got != 1 {
		t.Errorf("size marker = %d, want 1", got)
	}
	patched := binary.BigEndian.Uint64(out[offset+8 : offset+16])
	grown := uint64(len(out) - len(mockFtyp) - len(mockMdat))
	if patched != grown {
		t.Errorf("extended size = %d, want %d", patched, grown)
	}

	record, _, err := c.Get(out)
	if err != nil {
		t.Fatalf("Get(Set()) error = %v", err)
	}
	if got, _ := record.Get(types.KeyWorkflow); got != "{}" {
		t.Errorf("workflow = %q", got)
	}
}
