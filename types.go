package workflowmeta

import (
	"github.com/hanzoui/workflowmeta/internal/types"
)

// Record is an alias to types.Record.
// Re-exported from internal/types so codec packages and the public API
// share one definition.
type Record = types.Record

// Warning is an alias to types.Warning.
type Warning = types.Warning

// Format is an alias to types.Format.
type Format = types.Format

// Re-export all format constants.
const (
	FormatUnknown = types.FormatUnknown
	FormatWEBP    = types.FormatWEBP
	FormatMP4     = types.FormatMP4
	FormatFLAC    = types.FormatFLAC
	FormatPNG     = types.FormatPNG
	FormatMP3     = types.FormatMP3
)

// KeyWorkflow is the reserved metadata key holding the workflow JSON.
const KeyWorkflow = types.KeyWorkflow

// NewRecord returns an empty ordered metadata record.
func NewRecord() *Record {
	return types.NewRecord()
}

// Merge combines existing and incoming into a new record: existing
// order is preserved, incoming values win on collisions, novel keys
// are appended. This is the merge policy every codec applies on Set.
func Merge(existing, incoming *Record) *Record {
	return types.Merge(existing, incoming)
}

// DetectFormat determines the container format by examining magic bytes.
func DetectFormat(data []byte) (Format, error) {
	return types.DetectFormat(data)
}

// InvalidContainerError is an alias to types.InvalidContainerError.
type InvalidContainerError = types.InvalidContainerError

// BoxNotFoundError is an alias to types.BoxNotFoundError.
type BoxNotFoundError = types.BoxNotFoundError

// OutOfBoundsError is an alias to types.OutOfBoundsError.
type OutOfBoundsError = types.OutOfBoundsError

// UnsupportedFormatError is an alias to types.UnsupportedFormatError.
type UnsupportedFormatError = types.UnsupportedFormatError
