package clarion

import (
	"fmt"
	"strings"
)

// ScopeKind identifies the construct a structure keyword opens.
type ScopeKind int

const (
	// ScopeNone is the zero value, used where no scope applies.
	ScopeNone ScopeKind = iota
	ScopeProcedure
	ScopeFunction
	ScopeRoutine
	ScopeClass
	ScopeInterface
	ScopeMap
	ScopeModule
	ScopeFile
	ScopeRecord
	ScopeGroup
	ScopeQueue
	ScopeView
	ScopeJoin
	ScopeWindow
	ScopeApplication
	ScopeReport
	ScopeSheet
	ScopeTab
	ScopeOption
	ScopeMenu
	ScopeMenubar
	ScopeToolbar
	ScopeItemize
	ScopeOle
	ScopeHeader
	ScopeFooter
	ScopeDetail
	ScopeForm
	ScopeBreak
	ScopeIf
	ScopeLoop
	ScopeCase
	ScopeExecute
	ScopeBegin
	ScopeAccept
)

var scopeKindNames = [...]string{
	ScopeNone:        "",
	ScopeProcedure:   "PROCEDURE",
	ScopeFunction:    "FUNCTION",
	ScopeRoutine:     "ROUTINE",
	ScopeClass:       "CLASS",
	ScopeInterface:   "INTERFACE",
	ScopeMap:         "MAP",
	ScopeModule:      "MODULE",
	ScopeFile:        "FILE",
	ScopeRecord:      "RECORD",
	ScopeGroup:       "GROUP",
	ScopeQueue:       "QUEUE",
	ScopeView:        "VIEW",
	ScopeJoin:        "JOIN",
	ScopeWindow:      "WINDOW",
	ScopeApplication: "APPLICATION",
	ScopeReport:      "REPORT",
	ScopeSheet:       "SHEET",
	ScopeTab:         "TAB",
	ScopeOption:      "OPTION",
	ScopeMenu:        "MENU",
	ScopeMenubar:     "MENUBAR",
	ScopeToolbar:     "TOOLBAR",
	ScopeItemize:     "ITEMIZE",
	ScopeOle:         "OLE",
	ScopeHeader:      "HEADER",
	ScopeFooter:      "FOOTER",
	ScopeDetail:      "DETAIL",
	ScopeForm:        "FORM",
	ScopeBreak:       "BREAK",
	ScopeIf:          "IF",
	ScopeLoop:        "LOOP",
	ScopeCase:        "CASE",
	ScopeExecute:     "EXECUTE",
	ScopeBegin:       "BEGIN",
	ScopeAccept:      "ACCEPT",
}

// String returns the keyword that opens the scope kind.
func (k ScopeKind) String() string {
	if k < 0 || int(k) >= len(scopeKindNames) {
		return "UNKNOWN"
	}
	return scopeKindNames[k]
}

// MarshalText lets scope kinds render by keyword in JSON output.
func (k ScopeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses a keyword produced by MarshalText.
func (k *ScopeKind) UnmarshalText(text []byte) error {
	name := strings.ToUpper(string(text))
	for i, n := range scopeKindNames {
		if n == name {
			*k = ScopeKind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown scope kind %q", text)
}

// IsProcedural reports whether the kind is a procedure, function or routine.
func (k ScopeKind) IsProcedural() bool {
	return k == ScopeProcedure || k == ScopeFunction || k == ScopeRoutine
}

// IsControlFlow reports whether the kind is an executable block statement.
func (k ScopeKind) IsControlFlow() bool {
	switch k {
	case ScopeIf, ScopeLoop, ScopeCase, ScopeExecute, ScopeBegin, ScopeAccept:
		return true
	}
	return false
}

// Rule is the termination rule a scope kind follows.
type Rule int

const (
	// RuleExplicitOnly scopes close only on a matching END or '.'.
	RuleExplicitOnly Rule = iota
	// RuleImplicitBySibling scopes close when a dominating sibling begins.
	RuleImplicitBySibling
	// RuleContainer scopes close on END and track the depth of nested structures.
	RuleContainer
)

func (r Rule) String() string {
	switch r {
	case RuleExplicitOnly:
		return "explicit"
	case RuleImplicitBySibling:
		return "implicit"
	case RuleContainer:
		return "container"
	default:
		return "unknown"
	}
}

// MarshalText renders the rule by name.
func (r Rule) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText parses a rule name produced by MarshalText.
func (r *Rule) UnmarshalText(text []byte) error {
	for _, rule := range []Rule{RuleExplicitOnly, RuleImplicitBySibling, RuleContainer} {
		if rule.String() == string(text) {
			*r = rule
			return nil
		}
	}
	return fmt.Errorf("unknown rule %q", text)
}

// RuleFor returns the termination rule of a scope kind.
func RuleFor(k ScopeKind) Rule {
	switch k {
	case ScopeProcedure, ScopeFunction, ScopeRoutine:
		return RuleImplicitBySibling
	case ScopeMap, ScopeModule, ScopeInterface, ScopeClass:
		return RuleContainer
	default:
		return RuleExplicitOnly
	}
}

// Termination records how a scope actually closed.
type Termination int

const (
	TermOpen Termination = iota
	TermEnd              // END
	TermDot              // '.'
	TermSibling          // a dominating sibling began
	TermShared           // closed by the END of a bound child
	TermUntil            // LOOP closed by UNTIL/WHILE
	TermBoundary         // forced closed by a boundary, never terminated
	TermEOF              // implicit scope running to end of file
	TermUnterminated     // explicit scope still open at end of file
)

var terminationNames = [...]string{
	TermOpen:         "open",
	TermEnd:          "end",
	TermDot:          "dot",
	TermSibling:      "sibling",
	TermShared:       "shared",
	TermUntil:        "until",
	TermBoundary:     "boundary",
	TermEOF:          "eof",
	TermUnterminated: "unterminated",
}

func (t Termination) String() string {
	if t < 0 || int(t) >= len(terminationNames) {
		return "unknown"
	}
	return terminationNames[t]
}

// MarshalText renders the termination by name.
func (t Termination) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText parses a termination name produced by MarshalText.
func (t *Termination) UnmarshalText(text []byte) error {
	for i, n := range terminationNames {
		if n == string(text) {
			*t = Termination(i)
			return nil
		}
	}
	return fmt.Errorf("unknown termination %q", text)
}

// Scope is the logical block a StructureKeyword lexeme opens.
// Scopes live in an arena owned by Result and refer to each other by index.
type Scope struct {
	Kind   ScopeKind `json:"kind"`
	Label  string    `json:"label,omitempty"`
	Lexeme int       `json:"lexeme"`

	Start    int `json:"start"`
	StartCol int `json:"start_col"`
	// FinishesAt is the line the scope closes on.
	FinishesAt int `json:"finishes_at"`
	// EndCol is the column just past the closing terminator, or -1 when the
	// scope runs to the end of FinishesAt.
	EndCol int `json:"end_col"`

	Rule        Rule        `json:"rule"`
	Termination Termination `json:"termination"`

	Parent   int   `json:"parent"`
	Children []int `json:"children,omitempty"`

	// DataLine and CodeLine mark DATA and CODE statements of a procedural scope, or -1.
	DataLine int `json:"data_line"`
	CodeLine int `json:"code_line"`
}

// Closed reports whether the scope was closed by a terminator or a sibling.
func (s Scope) Closed() bool {
	switch s.Termination {
	case TermEnd, TermDot, TermSibling, TermShared, TermUntil, TermEOF:
		return true
	}
	return false
}

// LocalData returns the line range of a routine's local data section.
func (s Scope) LocalData() (from, to int, ok bool) {
	if s.DataLine < 0 {
		return 0, 0, false
	}
	to = s.FinishesAt
	if s.CodeLine > s.DataLine {
		to = s.CodeLine - 1
	}
	return s.DataLine + 1, to, true
}

// EndsBefore reports whether s finishes before line/col begins.
func (s Scope) EndsBefore(line, col int) bool {
	if s.FinishesAt != line {
		return s.FinishesAt < line
	}
	return s.EndCol >= 0 && s.EndCol <= col
}

// Contains reports whether the range of s covers the range of other.
func (s Scope) Contains(other Scope) bool {
	if other.Start < s.Start || (other.Start == s.Start && other.StartCol < s.StartCol) {
		return false
	}
	if other.FinishesAt != s.FinishesAt {
		return other.FinishesAt < s.FinishesAt
	}
	if s.EndCol < 0 {
		return true
	}
	return other.EndCol >= 0 && other.EndCol <= s.EndCol
}
