package workflowmeta

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"testing"
)

// Minimal valid buffers per format, built by hand so the public API
// tests don't reach into the codec packages.

func mockWEBP(t *testing.T) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	buf.WriteString("RIFF")
	buf.Write([]byte{0, 0, 0, 0})
	buf.WriteString("WEBP")
	buf.WriteString("VP8 ")
	binary.Write(buf, binary.LittleEndian, uint32(8))
	buf.Write([]byte{0x9d, 0x01, 0x2a, 0x10, 0x00, 0x10, 0x00, 0x02})
	out := buf.Bytes()
	binary.LittleEndian.PutUint32(out[4:8], uint32(len(out)-8))
	return out
}

func mockMP4(t *testing.T) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	binary.Write(buf, binary.BigEndian, uint32(16))
	buf.WriteString("ftyp")
	buf.WriteString("isom")
	binary.Write(buf, binary.BigEndian, uint32(0x200))
	binary.Write(buf, binary.BigEndian, uint32(8))
	buf.WriteString("moov")
	binary.Write(buf, binary.BigEndian, uint32(16))
	buf.WriteString("mdat")
	buf.Write(bytes.Repeat([]byte{0xAB}, 8))
	return buf.Bytes()
}

func mockFLAC(t *testing.T) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	buf.WriteString("fLaC")
	binary.Write(buf, binary.BigEndian, uint32(1)<<31|34) // streaminfo, last
	buf.Write(make([]byte, 34))
	buf.Write([]byte{0xFF, 0xF8, 0xC9, 0x04})
	return buf.Bytes()
}

func mockPNG(t *testing.T) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	buf.Write([]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A})
	// IEND with its fixed CRC.
	buf.Write([]byte{0, 0, 0, 0, 'I', 'E', 'N', 'D', 0xAE, 0x42, 0x60, 0x82})
	return buf.Bytes()
}

func TestDecode_FormatDispatch(t *testing.T) {
	tests := []struct {
		name   string
		data   []byte
		format Format
	}{
		{"webp", mockWEBP(t), FormatWEBP},
		{"mp4", mockMP4(t), FormatMP4},
		{"flac", mockFLAC(t), FormatFLAC},
		{"png", mockPNG(t), FormatPNG},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file, err := Decode(tt.data)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if file.Format != tt.format {
				t.Errorf("Format = %v, want %v", file.Format, tt.format)
			}
			if file.Fields.Len() != 0 {
				t.Errorf("fresh buffer has fields: %v", file.Fields.Keys())
			}
			if !bytes.Equal(file.Bytes(), tt.data) {
				t.Error("Bytes() differs from input")
			}
		})
	}
}

func TestDecode_UnknownFormat(t *testing.T) {
	_, err := Decode(bytes.Repeat([]byte{0x42}, 64))
	var unsupported *UnsupportedFormatError
	if !errors.As(err, &unsupported) {
		t.Fatalf("error = %v, want UnsupportedFormatError", err)
	}
}

func TestSetWorkflow_RoundTrip(t *testing.T) {
	workflow := `{"nodes":[{"id":1}],"edges":[]}`

	tests := []struct {
		name string
		data []byte
	}{
		{"webp", mockWEBP(t)},
		{"mp4", mockMP4(t)},
		{"flac", mockFLAC(t)},
		{"png", mockPNG(t)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := SetWorkflow(tt.data, workflow)
			if err != nil {
				t.Fatalf("SetWorkflow() error = %v", err)
			}

			record, err := Get(out)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if got := record.Workflow(); got != workflow {
				t.Errorf("Workflow() = %q, want %q", got, workflow)
			}
		})
	}
}

func TestSet_MergesWithExisting(t *testing.T) {
	fields := NewRecord()
	fields.Set(KeyWorkflow, `{"v":1}`)
	fields.Set("prompt", "first pass")

	out, err := Set(mockWEBP(t), fields)
	if err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	update := NewRecord()
	update.Set("prompt", "second pass")
	out, err = Set(out, update)
	if err != nil {
		t.Fatalf("second Set() error = %v", err)
	}

	record, err := Get(out)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got, _ := record.Get(KeyWorkflow); got != `{"v":1}` {
		t.Errorf("workflow = %q, want preserved through second Set", got)
	}
	if got, _ := record.Get("prompt"); got != "second pass" {
		t.Errorf("prompt = %q", got)
	}
}

func TestSetWorkflow_OpaquePayload(t *testing.T) {
	// The workflow value is an uninterpreted string: broken JSON and
	// oversized documents round-trip unchanged.
	tests := []struct {
		name     string
		workflow string
	}{
		{"broken json", `{"unterminated":`},
		{"binary-ish text", "line1\nline2\ttab"},
		{"oversized", strings.Repeat(`{"pad":"xxxxxxxx"},`, 1024)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := SetWorkflow(mockFLAC(t), tt.workflow)
			if err != nil {
				t.Fatalf("SetWorkflow() error = %v", err)
			}
			record, err := Get(out)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if got := record.Workflow(); got != tt.workflow {
				t.Errorf("workflow altered (len %d vs %d)", len(got), len(tt.workflow))
			}
		})
	}
}

// truncatedWEBP has a chunk declaring more payload than remains, which
// decodes with a warning.
func truncatedWEBP(t *testing.T) []byte {
	t.Helper()
	data := mockWEBP(t)
	data = append(data, 'E', 'X', 'I', 'F', 0xFF, 0x00, 0x00, 0x00)
	binary.LittleEndian.PutUint32(data[4:8], uint32(len(data)-8))
	return data
}

func TestDecode_WarningOptions(t *testing.T) {
	data := truncatedWEBP(t)

	file, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(file.Warnings) == 0 {
		t.Fatal("expected warnings from the truncated chunk")
	}

	if _, err := Decode(data, WithStrictWarnings()); err == nil {
		t.Error("WithStrictWarnings did not fail on a warning")
	}

	file, err = Decode(data, WithIgnoreWarnings())
	if err != nil {
		t.Fatalf("Decode(WithIgnoreWarnings) error = %v", err)
	}
	if len(file.Warnings) != 0 {
		t.Errorf("warnings not suppressed: %v", file.Warnings)
	}
}

func TestFile_WorkflowHelper(t *testing.T) {
	out, err := SetWorkflow(mockPNG(t), `{"w":1}`)
	if err != nil {
		t.Fatalf("SetWorkflow() error = %v", err)
	}
	file, err := Decode(out)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if file.Workflow() != `{"w":1}` {
		t.Errorf("Workflow() = %q", file.Workflow())
	}
}
