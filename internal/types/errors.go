package types

import "fmt"

// InvalidContainerError is returned when a buffer does not carry the
// magic signature of its claimed format (missing "RIFF"/"WEBP", "fLaC",
// leading ftyp box, and so on).
type InvalidContainerError struct {
	Format Format
	Reason string
}

func (e *InvalidContainerError) Error() string {
	return fmt.Sprintf("invalid %s container: %s", e.Format, e.Reason)
}

// BoxNotFoundError is returned when a structurally required box is
// absent, such as an MP4 file without a moov box.
type BoxNotFoundError struct {
	Box string
}

func (e *BoxNotFoundError) Error() string {
	return fmt.Sprintf("required box %q not found", e.Box)
}

// OutOfBoundsError is returned when a read would extend past the end of
// the container buffer.
type OutOfBoundsError struct {
	What   string
	Offset int64
	Length int
	Size   int64
}

func (e *OutOfBoundsError) Error() string {
	if e.Offset >= e.Size {
		return fmt.Sprintf("offset %d out of bounds (buffer size: %d) while reading %s",
			e.Offset, e.Size, e.What)
	}
	return fmt.Sprintf("read of %d bytes at offset %d would exceed buffer size %d while reading %s",
		e.Length, e.Offset, e.Size, e.What)
}

// UnsupportedFormatError is returned when no codec recognizes the buffer.
type UnsupportedFormatError struct {
	Reason string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported format: %s", e.Reason)
}

// Warning represents a non-fatal issue encountered while decoding.
//
// Warnings indicate problems that don't prevent metadata extraction but
// may indicate corrupted or unusual data: an EXIF entry without a key
// separator, a stored IFD offset that disagrees with its predicted
// position, a truncated item list entry.
type Warning struct {
	// Stage where the warning occurred ("tiff", "webp", "mp4", "flac", ...)
	Stage string

	// Warning message
	Message string

	// Buffer offset where the issue occurred (0 if not applicable)
	Offset int64
}

// String returns a human-readable warning message.
func (w Warning) String() string {
	if w.Offset > 0 {
		return fmt.Sprintf("%s (at offset %d): %s", w.Stage, w.Offset, w.Message)
	}
	return fmt.Sprintf("%s: %s", w.Stage, w.Message)
}
