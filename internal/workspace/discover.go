package workspace

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
)

// Filter decides which files under a root are Clarion source.
type Filter struct {
	Extensions []string
	Exclude    []string
}

// Match reports whether path has a source extension and no excluded base name.
func (f Filter) Match(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if !slices.ContainsFunc(f.Extensions, func(e string) bool { return strings.EqualFold(e, ext) }) {
		return false
	}
	return !f.excluded(path)
}

func (f Filter) excluded(path string) bool {
	base := filepath.Base(path)
	for _, pattern := range f.Exclude {
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
	}
	return false
}

// Discover lists matching files under root in lexical order. A root that
// is itself a file is returned as is.
func Discover(root string, f Filter) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && f.excluded(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if path == root || f.Match(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discovering source files in %s: %w", root, err)
	}
	return files, nil
}
