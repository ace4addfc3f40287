package testutil

import "os"

// fileData holds one file to be written by a Builder.
type fileData struct {
	path string
	text string
	crlf bool
	perm os.FileMode
}

// FileOption configures a file added to a Builder.
type FileOption func(*fileData)

// WithCRLF writes the file with Windows line endings.
func WithCRLF() FileOption {
	return func(f *fileData) {
		f.crlf = true
	}
}

// WithPerm sets the file mode.
func WithPerm(perm os.FileMode) FileOption {
	return func(f *fileData) {
		f.perm = perm
	}
}
