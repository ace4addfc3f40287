package clarion

import "github.com/charmbracelet/lipgloss"

// Lexeme highlight colors, Catppuccin Latte/Mocha.
var (
	StructureColor = lipgloss.AdaptiveColor{Light: "#8839EF", Dark: "#CBA6F7"} // mauve
	LabelColor     = lipgloss.AdaptiveColor{Light: "#1E66F5", Dark: "#89B4FA"} // blue
	PropertyColor  = lipgloss.AdaptiveColor{Light: "#179299", Dark: "#94E2D5"} // teal
	TypeColor      = lipgloss.AdaptiveColor{Light: "#DF8E1D", Dark: "#F9E2AF"} // yellow
	StringColor    = lipgloss.AdaptiveColor{Light: "#40A02B", Dark: "#A6E3A1"} // green
	NumberColor    = lipgloss.AdaptiveColor{Light: "#FE640B", Dark: "#FAB387"} // peach
	CommentColor   = lipgloss.AdaptiveColor{Light: "#9CA0B0", Dark: "#6C7086"} // overlay0
	EndColor       = lipgloss.AdaptiveColor{Light: "#D20F39", Dark: "#F38BA8"} // red
	KeywordColor   = lipgloss.AdaptiveColor{Light: "#EA76CB", Dark: "#F5C2E7"} // pink
)

// Token highlight styles for Clarion source.
var (
	// StructureStyle for words that open a scope: PROCEDURE, CLASS, IF, LOOP
	StructureStyle = lipgloss.NewStyle().
			Foreground(StructureColor).
			Bold(true)

	// LabelStyle for column-0 and declaration labels
	LabelStyle = lipgloss.NewStyle().
			Foreground(LabelColor)

	// PropertyStyle for attributes: PRE, DRIVER, MODULE('x') in attribute position
	PropertyStyle = lipgloss.NewStyle().
			Foreground(PropertyColor)

	// TypeStyle for built-in data types and reference types
	TypeStyle = lipgloss.NewStyle().
			Foreground(TypeColor)

	StringStyle = lipgloss.NewStyle().
			Foreground(StringColor)

	// UnterminatedStringStyle for string literals running to end of line
	UnterminatedStringStyle = lipgloss.NewStyle().
				Foreground(StringColor).
				Underline(true)

	NumberStyle = lipgloss.NewStyle().
			Foreground(NumberColor)

	CommentStyle = lipgloss.NewStyle().
			Foreground(CommentColor).
			Italic(true)

	// EndStyle for END and '.' terminators
	EndStyle = lipgloss.NewStyle().
			Foreground(EndColor).
			Bold(true)

	KeywordStyle = lipgloss.NewStyle().
			Foreground(KeywordColor)

	// DefaultStyle for variables and punctuation
	DefaultStyle = lipgloss.NewStyle()
)
