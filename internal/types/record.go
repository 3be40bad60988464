// Package types provides the core data structures shared by all codec packages.
//
// This package defines the Record, Warning, Format, and error types that
// represent embedded metadata across all supported container formats.
package types

import (
	"iter"
	"slices"
)

// KeyWorkflow is the reserved metadata key holding the generation workflow.
//
// The value is a JSON document, but it is stored and compared as an
// uninterpreted string: codecs never parse or validate it.
const KeyWorkflow = "workflow"

// Record is an ordered mapping from metadata key to string value.
//
// Keys are case-sensitive. Insertion order is preserved; setting an
// existing key replaces its value without moving it (last write wins).
//
// The zero value is an empty record ready for use.
type Record struct {
	keys   []string
	values map[string]string
}

// NewRecord returns an empty Record.
func NewRecord() *Record {
	return &Record{}
}

// Get returns the value for key and whether the key is present.
func (r *Record) Get(key string) (string, bool) {
	if r == nil || r.values == nil {
		return "", false
	}
	v, ok := r.values[key]
	return v, ok
}

// Set stores value under key. A new key is appended to the order;
// an existing key keeps its position and gets the new value.
func (r *Record) Set(key, value string) {
	if r.values == nil {
		r.values = make(map[string]string)
	}
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// Delete removes key from the record. Removing an absent key is a no-op.
func (r *Record) Delete(key string) {
	if r == nil || r.values == nil {
		return
	}
	if _, ok := r.values[key]; !ok {
		return
	}
	delete(r.values, key)
	r.keys = slices.DeleteFunc(r.keys, func(k string) bool { return k == key })
}

// Has reports whether key is present.
func (r *Record) Has(key string) bool {
	_, ok := r.Get(key)
	return ok
}

// Len returns the number of keys in the record.
func (r *Record) Len() int {
	if r == nil {
		return 0
	}
	return len(r.keys)
}

// Keys returns the keys in insertion order. The slice is a copy.
func (r *Record) Keys() []string {
	if r == nil {
		return nil
	}
	return slices.Clone(r.keys)
}

// All returns an iterator over key/value pairs in insertion order.
func (r *Record) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		if r == nil {
			return
		}
		for _, k := range r.keys {
			if !yield(k, r.values[k]) {
				return
			}
		}
	}
}

// Clone returns an independent copy of the record.
func (r *Record) Clone() *Record {
	out := NewRecord()
	for k, v := range r.All() {
		out.Set(k, v)
	}
	return out
}

// Workflow returns the value of the reserved "workflow" key, or "" when absent.
func (r *Record) Workflow() string {
	v, _ := r.Get(KeyWorkflow)
	return v
}

// Merge combines existing and incoming into a new record.
//
// Existing keys keep their order and values unless incoming carries the
// same key, in which case the incoming value wins. Incoming keys not
// present in existing are appended in their own order. This is the merge
// policy shared by every codec's Set path.
func Merge(existing, incoming *Record) *Record {
	out := existing.Clone()
	for k, v := range incoming.All() {
		out.Set(k, v)
	}
	return out
}
