package presentation

import (
	"github.com/zjrosen/clarionscope/internal/clarion"
	"github.com/zjrosen/clarionscope/internal/outline"
)

// DiagnosticDTO is a diagnostic with a file path and 1-based position.
type DiagnosticDTO struct {
	Path     string `json:"path"`
	Line     int    `json:"line"`
	Col      int    `json:"col"`
	Severity string `json:"severity"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

// FromDiagnostics converts resolver diagnostics for output.
func FromDiagnostics(path string, diags []clarion.Diagnostic) []DiagnosticDTO {
	out := make([]DiagnosticDTO, len(diags))
	for i, d := range diags {
		out[i] = DiagnosticDTO{
			Path:     path,
			Line:     d.Line + 1,
			Col:      d.Col + 1,
			Severity: string(d.Severity),
			Code:     string(d.Code),
			Message:  d.Message,
		}
	}
	return out
}

// OutlineDTO is the outline of one file.
type OutlineDTO struct {
	Path    string           `json:"path"`
	Symbols []outline.Symbol `json:"symbols"`
}

// FoldingDTO is the folding ranges of one file.
type FoldingDTO struct {
	Path   string                 `json:"path"`
	Ranges []outline.FoldingRange `json:"ranges"`
}

// TokenDTO is one classified lexeme with a 1-based position.
type TokenDTO struct {
	Line   int    `json:"line"`
	Col    int    `json:"col"`
	Kind   string `json:"kind"`
	Text   string `json:"text"`
	Scope  int    `json:"scope"`
	Parent int    `json:"parent"`
}

// FromLexemes converts lexemes for output.
func FromLexemes(lexemes []clarion.Lexeme) []TokenDTO {
	out := make([]TokenDTO, len(lexemes))
	for i, lx := range lexemes {
		out[i] = TokenDTO{
			Line:   lx.Line + 1,
			Col:    lx.Col + 1,
			Kind:   lx.Kind.String(),
			Text:   lx.Text,
			Scope:  lx.Scope,
			Parent: lx.Parent,
		}
	}
	return out
}

// SymbolHitDTO is one index search result.
type SymbolHitDTO struct {
	Path     string `json:"path"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Kind     string `json:"kind"`
	Line     int    `json:"line"`
	EndLine  int    `json:"end_line"`
}

// WatchEventDTO is one change reported by watch in JSON mode.
type WatchEventDTO struct {
	Type        string             `json:"type"`
	Path        string             `json:"path"`
	Changes     []outline.DiffLine `json:"changes,omitempty"`
	Diagnostics []DiagnosticDTO    `json:"diagnostics,omitempty"`
	Error       string             `json:"error,omitempty"`
}
