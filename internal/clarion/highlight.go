package clarion

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Highlight applies syntax highlighting to Clarion source.
// Whitespace between lexemes and line breaks are preserved, so stripping the
// ANSI sequences from the output yields src again (minus carriage returns).
func Highlight(src string) string {
	if src == "" {
		return ""
	}

	lines := splitLines(src)
	lexemes := Classify(src)

	var result strings.Builder
	next := 0
	for n, text := range lines {
		if n > 0 {
			result.WriteByte('\n')
		}
		lastPos := 0
		for ; next < len(lexemes) && lexemes[next].Line == n; next++ {
			lx := lexemes[next]
			// Preserve whitespace between lexemes
			if lx.Col > lastPos {
				result.WriteString(text[lastPos:lx.Col])
			}
			style := lexemeStyle(lx).TabWidth(lipgloss.NoTabConversion)
			result.WriteString(style.Render(lx.Text))
			lastPos = lx.End()
		}
		if lastPos < len(text) {
			result.WriteString(text[lastPos:])
		}
	}
	return result.String()
}

// lexemeStyle returns the style for a lexeme.
func lexemeStyle(lx Lexeme) lipgloss.Style {
	switch lx.Kind {
	case KindStructureKeyword:
		return StructureStyle
	case KindLabel:
		return LabelStyle
	case KindProperty, KindPropertyFunction:
		return PropertyStyle
	case KindType:
		return TypeStyle
	case KindString:
		if lx.Unterminated {
			return UnterminatedStringStyle
		}
		return StringStyle
	case KindNumber:
		return NumberStyle
	case KindComment:
		return CommentStyle
	case KindEndMarker:
		return EndStyle
	case KindKeyword:
		return KeywordStyle
	default:
		return DefaultStyle
	}
}
