// Package workflowmeta reads and rewrites the metadata record embedded
// in generated media files: a JSON "workflow" string plus free-form
// text fields, carried inside WEBP, MP4, FLAC, PNG, and MP3 containers.
//
// The payload around the metadata is never re-encoded: every byte that
// is not part of the targeted metadata region survives a rewrite
// unchanged, so images still render and audio still plays.
//
// # Quick Start
//
// Reading the workflow from a buffer:
//
//	file, err := workflowmeta.Decode(data)
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(file.Fields.Workflow())
//
// Rewriting it:
//
//	fields := workflowmeta.NewRecord()
//	fields.Set(workflowmeta.KeyWorkflow, `{"nodes":[]}`)
//	out, err := file.Encode(fields)
//
// # Contract
//
// Every codec exposes the same two operations over immutable buffers:
// get extracts an ordered key/value record, set merges incoming fields
// into the existing metadata (incoming wins on collisions, everything
// else is preserved) and returns a new buffer. The workflow value is an
// opaque string: it is never parsed or validated as JSON.
//
// # Error Handling
//
// workflowmeta distinguishes fatal errors from warnings:
//
//   - Decoding degrades gracefully where the container allows it: a
//     WEBP, MP4, PNG, or MP3 buffer with structural problems yields an
//     empty record plus warnings rather than an error.
//   - Rewriting never degrades: a set on a structurally invalid buffer
//     fails with InvalidContainerError or BoxNotFoundError, because
//     silently producing a corrupt file is worse than failing loudly.
//
// Check File.Warnings for non-fatal issues found while decoding:
//
//	for _, w := range file.Warnings {
//		log.Printf("warning: %s", w)
//	}
//
// # Concurrency
//
// All operations are pure transformations with no shared state, so any
// number of calls may run concurrently, even against the same input
// buffer. OpenMany parses files in parallel.
package workflowmeta
