package workflowmeta

// Option configures behavior when decoding buffers.
//
// Options use the functional options pattern:
//
//	file, err := workflowmeta.Decode(data,
//	    workflowmeta.WithStrictWarnings(),
//	)
type Option func(*decodeOptions)

type decodeOptions struct {
	strictWarnings bool // fail on any warning
	ignoreWarnings bool // suppress all warnings
}

func defaultOptions() *decodeOptions {
	return &decodeOptions{}
}

// WithStrictWarnings treats any decode warning as a fatal error.
//
// By default, decoding continues when it encounters issues like a
// malformed metadata entry or an inconsistent stored offset, returning
// warnings alongside the parsed record. With strict warnings enabled,
// any such issue becomes an error.
func WithStrictWarnings() Option {
	return func(o *decodeOptions) {
		o.strictWarnings = true
	}
}

// WithIgnoreWarnings suppresses all decode warnings.
func WithIgnoreWarnings() Option {
	return func(o *decodeOptions) {
		o.ignoreWarnings = true
	}
}

// SaveOption configures behavior when saving files.
type SaveOption func(*saveOptions)

type saveOptions struct {
	backupSuffix string // rename original to path+suffix before replace
}

func defaultSaveOptions() *saveOptions {
	return &saveOptions{}
}

// WithBackup renames an existing file at the destination to
// path+suffix before replacing it.
//
//	err := file.Save("out.webp", workflowmeta.WithBackup(".bak"))
func WithBackup(suffix string) SaveOption {
	return func(o *saveOptions) {
		o.backupSuffix = suffix
	}
}
