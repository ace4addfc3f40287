package clarion

import (
	"strings"
	"unicode/utf8"
)

// Lexer classifies Clarion source one physical line at a time.
// Classification never fails; malformed input degrades for that line only.
type Lexer struct {
	lines   []string
	line    int      // next physical line to classify
	pending []Lexeme // classified lexemes not yet returned

	continued   bool   // current physical line continues the previous statement
	omitTerm    string // active OMIT terminator
	pendingOmit string // OMIT terminator found on the current line

	// statement context, carried across continuation lines
	stmtStart bool
	label     string
	prev      string // upper-cased text of the previous significant lexeme
}

// NewLexer creates a lexer for the source text.
func NewLexer(src string) *Lexer {
	return &Lexer{lines: splitLines(src), stmtStart: true}
}

// Classify returns the full lexeme sequence for the source text.
func Classify(src string) []Lexeme {
	l := NewLexer(src)
	var out []Lexeme
	for {
		lx, ok := l.Next()
		if !ok {
			return out
		}
		out = append(out, lx)
	}
}

// LineCount returns the number of physical lines in src.
func LineCount(src string) int {
	return len(splitLines(src))
}

// Next returns the next lexeme, or false when the input is exhausted.
func (l *Lexer) Next() (Lexeme, bool) {
	for len(l.pending) == 0 {
		if l.line >= len(l.lines) {
			return Lexeme{}, false
		}
		l.lexLine(l.line)
		l.line++
	}
	lx := l.pending[0]
	l.pending = l.pending[1:]
	return lx, true
}

func splitLines(src string) []string {
	if src == "" {
		return nil
	}
	lines := strings.Split(src, "\n")
	for i, ln := range lines {
		lines[i] = strings.TrimSuffix(ln, "\r")
	}
	return lines
}

// resetStatement starts a fresh statement context.
func (l *Lexer) resetStatement() {
	l.stmtStart = true
	l.label = ""
	l.prev = ""
}

// emit queues a lexeme and updates the statement context.
func (l *Lexer) emit(lx Lexeme) {
	lx.Scope = -1
	lx.Parent = -1
	switch lx.Kind {
	case KindComment:
		l.pending = append(l.pending, lx)
		return
	case KindLabel:
		l.label = lx.Text
	default:
		if l.stmtStart {
			lx.Stmt = true
			l.stmtStart = false
		}
	}
	if lx.Kind == KindStructureKeyword {
		lx.Name = l.label
	}
	l.pending = append(l.pending, lx)

	l.prev = strings.ToUpper(lx.Text)
	switch {
	case lx.Kind == KindEndMarker, lx.Text == ";":
		l.stmtStart = true
		l.label = ""
	case lx.Kind == KindKeyword && (l.prev == "THEN" || l.prev == "ELSE"):
		l.stmtStart = true
	}
}

// lexLine classifies one physical line into l.pending.
func (l *Lexer) lexLine(n int) {
	text := l.lines[n]

	if l.omitTerm != "" {
		if trimmed := strings.TrimSpace(text); trimmed != "" {
			l.emit(Lexeme{Kind: KindComment, Text: trimmed, Line: n, Col: strings.Index(text, trimmed)})
		}
		if strings.Contains(strings.ToUpper(text), strings.ToUpper(l.omitTerm)) {
			l.omitTerm = ""
		}
		return
	}

	if !l.continued {
		l.resetStatement()
	}
	atLineStart := !l.continued
	continues := false

	pos := 0
	for pos < len(text) {
		ch := text[pos]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\f':
			pos++
			continue

		case ch == '!':
			l.emit(Lexeme{Kind: KindComment, Text: strings.TrimRight(text[pos:], " \t"), Line: n, Col: pos})
			pos = len(text)

		case ch == '|':
			l.emit(Lexeme{Kind: KindPunctuation, Text: "|", Line: n, Col: pos})
			rest := text[pos+1:]
			if trimmed := strings.TrimSpace(rest); trimmed != "" {
				l.emit(Lexeme{Kind: KindComment, Text: trimmed, Line: n, Col: pos + 1 + strings.Index(rest, trimmed)})
			}
			continues = true
			pos = len(text)

		case ch == '\'':
			end, closed := scanString(text, pos)
			l.emit(Lexeme{Kind: KindString, Text: text[pos:end], Line: n, Col: pos, Unterminated: !closed})
			pos = end

		case isDigit(ch) || (ch == '.' && isDigit(peek(text, pos+1))):
			end := scanNumber(text, pos)
			l.emit(Lexeme{Kind: KindNumber, Text: text[pos:end], Line: n, Col: pos})
			pos = end

		case isIdentStart(ch) || (ch == '?' && isIdentStart(peek(text, pos+1))):
			end := scanIdent(text, pos)
			l.emit(l.classifyWord(text, pos, end, n, atLineStart))
			pos = end

		case ch == '.':
			if isIdentStart(peek(text, pos+1)) {
				l.emit(Lexeme{Kind: KindPunctuation, Text: ".", Line: n, Col: pos})
			} else {
				l.emit(Lexeme{Kind: KindEndMarker, Text: ".", Line: n, Col: pos})
			}
			pos++

		default:
			end := scanOperator(text, pos)
			l.emit(Lexeme{Kind: KindPunctuation, Text: text[pos:end], Line: n, Col: pos})
			pos = end
		}
		atLineStart = false
	}

	l.continued = continues
	if l.pendingOmit != "" {
		l.omitTerm = l.pendingOmit
		l.pendingOmit = ""
	}
}

// classifyWord classifies the identifier text[start:end].
func (l *Lexer) classifyWord(text string, start, end, line int, atLineStart bool) Lexeme {
	word := text[start:end]
	upper := strings.ToUpper(word)
	lx := Lexeme{Text: word, Line: line, Col: start}

	kind, isStructure := structureKeywords[upper]
	if atLineStart && isLabel(word, text, start, end) {
		lx.Kind = KindLabel
		return lx
	}

	switch {
	case isStructure:
		lx.Kind = l.classifyStructure(kind, text, end)
	case upper == "END":
		lx.Kind = KindEndMarker
	case keywords[upper]:
		lx.Kind = KindKeyword
		if upper == "OMIT" && l.stmtStart {
			if term, ok := omitTerminator(text[end:]); ok {
				l.pendingOmit = term
			}
		}
	case types[upper]:
		lx.Kind = KindType
	case properties[upper]:
		lx.Kind = propertyKind(text, end)
	default:
		lx.Kind = KindVariable
	}
	return lx
}

// classifyStructure refines a structure word by its position in the statement.
func (l *Lexer) classifyStructure(kind ScopeKind, text string, end int) Kind {
	switch {
	case l.prev == "&":
		return KindType
	case l.prev == ",":
		return propertyKind(text, end)
	case !l.stmtStart:
		return KindKeyword
	case kind == ScopeBreak && nextNonSpace(text, end) != '(':
		return KindKeyword
	default:
		return KindStructureKeyword
	}
}

func propertyKind(text string, end int) Kind {
	if peek(text, end) == '(' {
		return KindPropertyFunction
	}
	return KindProperty
}

// isLabel reports whether the first word of a line is a label. Column 0
// holds labels, but a bare structure word there still opens its structure.
// Structure words are labels only when they name another structure or a
// typed field, as in "Record RECORD".
func isLabel(word, text string, start, end int) bool {
	upper := strings.ToUpper(word)
	if word[0] == '?' || keywords[upper] {
		return false
	}
	kind, isStructure := structureKeywords[upper]
	if !isStructure {
		return start == 0 || (!types[upper] && declarationFollows(text, end, true))
	}
	if kind.IsControlFlow() || kind == ScopeBreak {
		return false
	}
	return declarationFollows(text, end, false)
}

// declarationFollows reports whether the next word after end is a keyword
// that makes the preceding identifier a label.
func declarationFollows(text string, end int, attributes bool) bool {
	i := end
	for i < len(text) && (text[i] == ' ' || text[i] == '\t') {
		i++
	}
	if i == end || i >= len(text) {
		return false
	}
	if text[i] == '&' || text[i] == '*' {
		return isIdentStart(peek(text, i+1))
	}
	if !isIdentStart(text[i]) {
		return false
	}
	upper := strings.ToUpper(text[i:scanIdent(text, i)])
	_, isStructure := structureKeywords[upper]
	return isStructure || types[upper] || (attributes && properties[upper])
}

// omitTerminator extracts the terminator of an unconditional OMIT('term').
func omitTerminator(rest string) (string, bool) {
	rest = strings.TrimLeft(rest, " \t")
	if !strings.HasPrefix(rest, "(") {
		return "", false
	}
	rest = strings.TrimLeft(rest[1:], " \t")
	if !strings.HasPrefix(rest, "'") {
		return "", false
	}
	end, closed := scanString(rest, 0)
	if !closed {
		return "", false
	}
	term := strings.ReplaceAll(rest[1:end-1], "''", "'")
	after := strings.TrimLeft(rest[end:], " \t")
	if term == "" || !strings.HasPrefix(after, ")") {
		return "", false
	}
	return term, true
}

// scanString returns the end of the string literal starting at pos and
// whether it was closed before end of line.
func scanString(text string, pos int) (int, bool) {
	i := pos + 1
	for i < len(text) {
		if text[i] == '\'' {
			if peek(text, i+1) == '\'' {
				i += 2
				continue
			}
			return i + 1, true
		}
		i++
	}
	return len(text), false
}

// scanNumber reads decimal, hex (0FFh), binary (101b) and octal (17o) literals.
func scanNumber(text string, pos int) int {
	i := pos
	for i < len(text) && (isDigit(text[i]) || isHexLetter(text[i])) {
		i++
	}
	if peek(text, i) == '.' && isDigit(peek(text, i+1)) {
		i++
		for i < len(text) && isDigit(text[i]) {
			i++
		}
	}
	if c := peek(text, i); c == 'h' || c == 'H' || c == 'o' || c == 'O' {
		i++
	}
	return i
}

// scanIdent reads an identifier including ':' prefixes and '.' member access.
func scanIdent(text string, pos int) int {
	i := pos
	if text[i] == '?' {
		i++
	}
	for i < len(text) {
		c := text[i]
		switch {
		case isIdentStart(c) || isDigit(c) || c == ':':
			i++
		case c == '.' && isIdentStart(peek(text, i+1)):
			i++
		default:
			return i
		}
	}
	return i
}

// operators lists multi-character operators, longest first.
var operators = []string{":=:", "<>", "<=", ">=", "=<", "=>", "~=", "&=", "+=", "-=", "*=", "/=", "%=", "^="}

func scanOperator(text string, pos int) int {
	if text[pos] >= utf8.RuneSelf {
		_, size := utf8.DecodeRuneInString(text[pos:])
		return pos + size
	}
	for _, op := range operators {
		if strings.HasPrefix(text[pos:], op) {
			return pos + len(op)
		}
	}
	return pos + 1
}

func nextNonSpace(text string, pos int) byte {
	for pos < len(text) && (text[pos] == ' ' || text[pos] == '\t') {
		pos++
	}
	return peek(text, pos)
}

func peek(text string, pos int) byte {
	if pos < 0 || pos >= len(text) {
		return 0
	}
	return text[pos]
}

func isIdentStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isHexLetter(c byte) bool {
	return (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
