package workflowmeta

import (
	"fmt"

	"github.com/hanzoui/workflowmeta/internal/registry"

	// Codec packages register themselves with the registry.
	_ "github.com/hanzoui/workflowmeta/internal/flac"
	_ "github.com/hanzoui/workflowmeta/internal/mp3"
	_ "github.com/hanzoui/workflowmeta/internal/mp4"
	_ "github.com/hanzoui/workflowmeta/internal/png"
	_ "github.com/hanzoui/workflowmeta/internal/webp"
)

// File represents a decoded media buffer with its metadata record.
//
// Fields may be mutated and written back with Encode or Save; the
// underlying buffer is never modified.
type File struct {
	// Path to the source file, when opened via Open. Empty for buffers.
	Path string

	// Detected container format.
	Format Format

	// Extracted metadata. Mutating the record does not change the
	// buffer until Encode or Save is called.
	Fields *Record

	// Warnings encountered while decoding (non-fatal issues).
	Warnings []Warning

	data []byte
}

// Decode detects the container format of data and extracts its
// metadata record.
//
// Formats that degrade gracefully (WEBP, MP4, PNG, MP3) yield an empty
// record plus warnings on structural problems; FLAC returns
// InvalidContainerError when its signature is missing. An unrecognized
// buffer returns UnsupportedFormatError.
func Decode(data []byte, opts ...Option) (*File, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	format, err := DetectFormat(data)
	if err != nil {
		return nil, err
	}

	codec := registry.Get(format)
	if codec == nil {
		return nil, &UnsupportedFormatError{Reason: fmt.Sprintf("no codec available for %s", format)}
	}

	record, warnings, err := codec.Get(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", format, err)
	}

	if options.ignoreWarnings {
		warnings = nil
	}
	if options.strictWarnings && len(warnings) > 0 {
		return nil, fmt.Errorf("strict decode failed: %s", warnings[0].Message)
	}

	return &File{
		Format:   format,
		Fields:   record,
		Warnings: warnings,
		data:     data,
	}, nil
}

// Encode returns a new buffer with fields merged into the file's
// embedded metadata. The original buffer is left untouched; all bytes
// outside the metadata region are copied verbatim.
func (f *File) Encode(fields *Record) ([]byte, error) {
	codec := registry.Get(f.Format)
	if codec == nil {
		return nil, &UnsupportedFormatError{Reason: fmt.Sprintf("no codec available for %s", f.Format)}
	}

	out, warnings, err := codec.Set(f.data, fields)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", f.Format, err)
	}
	f.Warnings = append(f.Warnings, warnings...)
	return out, nil
}

// Bytes returns the file's original buffer.
func (f *File) Bytes() []byte {
	return f.data
}

// Workflow returns the decoded workflow JSON string, or "" when absent.
func (f *File) Workflow() string {
	return f.Fields.Workflow()
}

// Get is a one-shot helper: detect the format of data and extract its
// metadata record.
func Get(data []byte) (*Record, error) {
	file, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return file.Fields, nil
}

// Set is a one-shot helper: detect the format of data and return a new
// buffer with fields merged into its metadata.
func Set(data []byte, fields *Record) ([]byte, error) {
	file, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return file.Encode(fields)
}

// SetWorkflow is a one-shot helper for the common case of rewriting
// only the workflow document.
func SetWorkflow(data []byte, workflow string) ([]byte, error) {
	fields := NewRecord()
	fields.Set(KeyWorkflow, workflow)
	return Set(data, fields)
}
