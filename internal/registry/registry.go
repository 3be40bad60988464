// Package registry manages format-specific codecs for media container types.
package registry

import (
	"github.com/hanzoui/workflowmeta/internal/types"
)

// Codec is the interface every container codec implements.
//
// Both operations are pure transformations: Get never modifies data,
// and Set returns a fresh buffer rather than mutating its input.
type Codec interface {
	// Get extracts the embedded metadata record from data.
	//
	// Non-fatal issues are returned as warnings. Whether a structural
	// failure degrades to an empty record or returns an error is a
	// per-format policy (see each codec package).
	Get(data []byte) (*types.Record, []types.Warning, error)

	// Set returns a new buffer with fields merged into the embedded
	// metadata. Every byte outside the targeted metadata region is
	// copied verbatim. Structural failures are always errors: silently
	// producing a corrupt file is worse than failing loudly. Non-fatal
	// issues (such as a rewrite that found nowhere to land) come back
	// as warnings alongside the new buffer.
	Set(data []byte, fields *types.Record) ([]byte, []types.Warning, error)
}

// codecs maps formats to their codecs.
var codecs = make(map[types.Format]Codec)

// Register registers a codec for a format.
// Called by codec packages during initialization (init functions).
func Register(format types.Format, codec Codec) {
	codecs[format] = codec
}

// Get returns the codec for a given format.
// Returns nil if no codec is registered for the format.
func Get(format types.Format) Codec {
	return codecs[format]
}
