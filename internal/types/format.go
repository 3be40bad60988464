package types

// Format represents a detected media container format.
type Format int

const (
	// FormatUnknown represents an unknown or unsupported container.
	FormatUnknown Format = iota
	// FormatWEBP represents WEBP images (RIFF container).
	FormatWEBP
	// FormatMP4 represents MP4/MOV video (box tree).
	FormatMP4
	// FormatFLAC represents FLAC audio (metadata-block chain).
	FormatFLAC
	// FormatPNG represents PNG images (chunk stream).
	FormatPNG
	// FormatMP3 represents MP3 audio (ID3v2 tag).
	FormatMP3
)

func (f Format) String() string {
	switch f {
	case FormatWEBP:
		return "WEBP"
	case FormatMP4:
		return "MP4"
	case FormatFLAC:
		return "FLAC"
	case FormatPNG:
		return "PNG"
	case FormatMP3:
		return "MP3"
	default:
		return "Unknown"
	}
}

// Extensions returns common file extensions for this format.
func (f Format) Extensions() []string {
	switch f {
	case FormatWEBP:
		return []string{".webp"}
	case FormatMP4:
		return []string{".mp4", ".m4v", ".mov"}
	case FormatFLAC:
		return []string{".flac"}
	case FormatPNG:
		return []string{".png"}
	case FormatMP3:
		return []string{".mp3"}
	default:
		return nil
	}
}

var pngSignature = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}

// DetectFormat determines the container format by examining magic bytes.
//
// Detection is based on signatures at the start of the buffer; it does
// not validate the full container structure.
func DetectFormat(data []byte) (Format, error) {
	if len(data) < 12 {
		return FormatUnknown, &UnsupportedFormatError{Reason: "buffer too small"}
	}

	// RIFF container holding a WEBP payload
	if string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP" {
		return FormatWEBP, nil
	}

	// MP4 files start with an ftyp box: size(4) then "ftyp"
	if string(data[4:8]) == "ftyp" {
		return FormatMP4, nil
	}

	if string(data[0:4]) == "fLaC" {
		return FormatFLAC, nil
	}

	if len(data) >= 8 && string(data[0:8]) == string(pngSignature) {
		return FormatPNG, nil
	}

	// ID3v2 tag, or a bare MPEG frame sync for untagged MP3s
	if string(data[0:3]) == "ID3" {
		return FormatMP3, nil
	}
	if data[0] == 0xFF && (data[1]&0xE0) == 0xE0 {
		return FormatMP3, nil
	}

	return FormatUnknown, &UnsupportedFormatError{Reason: "no known container signature"}
}
