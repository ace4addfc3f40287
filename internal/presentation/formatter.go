// Package presentation renders analysis results as text or JSON.
package presentation

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/truncate"

	"github.com/zjrosen/clarionscope/internal/outline"
)

var (
	addStyle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#40A02B", Dark: "#A6E3A1"})
	removeStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#D20F39", Dark: "#F38BA8"})
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#DF8E1D", Dark: "#F9E2AF"}).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#8C8FA1", Dark: "#7F849C"})
)

// Formatter handles output formatting
type Formatter struct {
	writer        io.Writer
	color         bool
	maxLabelWidth int
}

// Option configures a Formatter.
type Option func(*Formatter)

// WithColor enables lipgloss styling in text output.
func WithColor(enabled bool) Option {
	return func(f *Formatter) { f.color = enabled }
}

// WithMaxLabelWidth truncates symbol names longer than width cells; 0 disables it.
func WithMaxLabelWidth(width int) Option {
	return func(f *Formatter) { f.maxLabelWidth = width }
}

// NewFormatter creates a new formatter
func NewFormatter(writer io.Writer, opts ...Option) *Formatter {
	f := &Formatter{writer: writer}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// JSON writes v as indented JSON.
func (f *Formatter) JSON(v any) error {
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func (f *Formatter) style(s lipgloss.Style, text string) string {
	if !f.color {
		return text
	}
	return s.Render(text)
}

// label truncates name to the configured width.
func (f *Formatter) label(name string) string {
	if f.maxLabelWidth <= 0 || runewidth.StringWidth(name) <= f.maxLabelWidth {
		return name
	}
	return truncate.StringWithTail(name, uint(f.maxLabelWidth), "…") //nolint:gosec // width checked positive
}

// Outline writes an indented symbol tree with line ranges, names padded
// to a common column.
func (f *Formatter) Outline(o OutlineDTO) error {
	if _, err := fmt.Fprintln(f.writer, o.Path); err != nil {
		return err
	}

	type row struct {
		name  string
		width int
		sym   outline.Symbol
	}
	var rows []row
	widest := 0
	outline.Walk(o.Symbols, func(s outline.Symbol, depth int) {
		name := strings.Repeat("  ", depth+1) + f.label(s.Name)
		w := runewidth.StringWidth(name)
		widest = max(widest, w)
		rows = append(rows, row{name: name, width: w, sym: s})
	})

	for _, r := range rows {
		pad := strings.Repeat(" ", widest-r.width)
		lines := fmt.Sprintf("%d-%d", r.sym.Line+1, r.sym.EndLine+1)
		if _, err := fmt.Fprintf(f.writer, "%s%s  %-9s %s\n", r.name, pad, r.sym.Category, f.style(dimStyle, lines)); err != nil {
			return err
		}
	}
	return nil
}

// Folding writes one "start-end kind" line per range, 1-based.
func (f *Formatter) Folding(fd FoldingDTO) error {
	for _, r := range fd.Ranges {
		if _, err := fmt.Fprintf(f.writer, "%s:%d-%d %s\n", fd.Path, r.StartLine+1, r.EndLine+1, r.Kind); err != nil {
			return err
		}
	}
	return nil
}

// Diagnostics writes compiler-style "path:line:col: severity: message" lines.
func (f *Formatter) Diagnostics(diags []DiagnosticDTO) error {
	for _, d := range diags {
		sev := f.style(warnStyle, d.Severity)
		if _, err := fmt.Fprintf(f.writer, "%s:%d:%d: %s: %s\n", d.Path, d.Line, d.Col, sev, d.Message); err != nil {
			return err
		}
	}
	return nil
}

// Diff writes an outline diff, skipping unchanged lines when changesOnly is set.
func (f *Formatter) Diff(path string, diff []outline.DiffLine, changesOnly bool) error {
	if _, err := fmt.Fprintf(f.writer, "%s\n", path); err != nil {
		return err
	}
	for _, d := range diff {
		var line string
		switch d.Op {
		case outline.DiffAdd:
			line = f.style(addStyle, "+ "+d.Text)
		case outline.DiffRemove:
			line = f.style(removeStyle, "- "+d.Text)
		default:
			if changesOnly {
				continue
			}
			line = "  " + d.Text
		}
		if _, err := fmt.Fprintln(f.writer, line); err != nil {
			return err
		}
	}
	return nil
}

// Tokens writes one tab-separated line per lexeme.
func (f *Formatter) Tokens(tokens []TokenDTO) error {
	for _, t := range tokens {
		if _, err := fmt.Fprintf(f.writer, "%d:%d\t%s\t%q\n", t.Line, t.Col, t.Kind, t.Text); err != nil {
			return err
		}
	}
	return nil
}

// SymbolHits writes index search results.
func (f *Formatter) SymbolHits(hits []SymbolHitDTO) error {
	for _, h := range hits {
		if _, err := fmt.Fprintf(f.writer, "%s:%d: %s %s\n", h.Path, h.Line, h.Category, f.label(h.Name)); err != nil {
			return err
		}
	}
	return nil
}
