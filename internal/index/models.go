package index

import (
	"fmt"
	"time"
)

// Run is one index build.
type Run struct {
	ID          string
	Root        string
	StartedAt   time.Time
	FinishedAt  *time.Time
	Files       int
	Diagnostics int
}

// FileRecord is the stored summary of one source file.
type FileRecord struct {
	ID        int64
	Path      string
	Hash      string
	Lines     int
	RunID     string
	IndexedAt time.Time
}

// SymbolRecord is one stored outline entry.
type SymbolRecord struct {
	ID       int64
	FileID   int64
	ParentID *int64
	Path     string
	Name     string
	Category string
	Kind     string
	Line     int
	Col      int
	EndLine  int
}

// DiagnosticRecord is one stored diagnostic.
type DiagnosticRecord struct {
	Path     string
	Code     string
	Severity string
	Line     int
	Col      int
	Message  string
}

// FileNotFoundError is returned when a path has never been indexed.
type FileNotFoundError struct {
	Path string
}

func (e *FileNotFoundError) Error() string {
	return fmt.Sprintf("file not indexed: %s", e.Path)
}

// RunNotFoundError is returned for an unknown run identifier.
type RunNotFoundError struct {
	ID string
}

func (e *RunNotFoundError) Error() string {
	return fmt.Sprintf("index run not found: %s", e.ID)
}
