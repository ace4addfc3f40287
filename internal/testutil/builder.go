package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// Builder accumulates source files and writes them under a temporary root.
type Builder struct {
	t     *testing.T
	root  string
	files []fileData
}

// NewBuilder creates a builder rooted at a fresh temporary directory.
func NewBuilder(t *testing.T) *Builder {
	t.Helper()
	return &Builder{t: t, root: t.TempDir()}
}

// WithFile adds a file at the slash-separated path relative to the root.
func (b *Builder) WithFile(path, text string, opts ...FileOption) *Builder {
	f := fileData{path: path, text: text, perm: 0o644}
	for _, opt := range opts {
		opt(&f)
	}
	b.files = append(b.files, f)
	return b
}

// Build writes all accumulated files and returns the root directory.
func (b *Builder) Build() string {
	b.t.Helper()
	for _, f := range b.files {
		path := filepath.Join(b.root, filepath.FromSlash(f.path))
		require.NoError(b.t, os.MkdirAll(filepath.Dir(path), 0o755))

		text := f.text
		if f.crlf {
			text = strings.ReplaceAll(text, "\n", "\r\n")
		}
		require.NoError(b.t, os.WriteFile(path, []byte(text), f.perm))
	}
	return b.root
}

// Path returns the absolute path of a file added with WithFile.
func (b *Builder) Path(path string) string {
	return filepath.Join(b.root, filepath.FromSlash(path))
}
