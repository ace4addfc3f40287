// Package clarion implements the Clarion structural classifier and block resolver.
package clarion

import (
	"fmt"
	"strings"
)

// Kind represents the category of a classified lexeme.
type Kind int

const (
	KindVariable Kind = iota
	KindStructureKeyword
	KindLabel
	KindProperty
	KindPropertyFunction
	KindType
	KindString
	KindNumber
	KindComment
	KindEndMarker
	KindKeyword
	KindPunctuation
)

// String returns the string representation of the lexeme kind.
func (k Kind) String() string {
	switch k {
	case KindVariable:
		return "Variable"
	case KindStructureKeyword:
		return "StructureKeyword"
	case KindLabel:
		return "Label"
	case KindProperty:
		return "Property"
	case KindPropertyFunction:
		return "PropertyFunction"
	case KindType:
		return "Type"
	case KindString:
		return "String"
	case KindNumber:
		return "Number"
	case KindComment:
		return "Comment"
	case KindEndMarker:
		return "EndMarker"
	case KindKeyword:
		return "Keyword"
	case KindPunctuation:
		return "Punctuation"
	default:
		return "Unknown"
	}
}

// MarshalText lets lexeme kinds render by name in JSON output.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses a kind name produced by MarshalText.
func (k *Kind) UnmarshalText(text []byte) error {
	for kind := KindVariable; kind <= KindPunctuation; kind++ {
		if kind.String() == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown lexeme kind %q", text)
}

// Lexeme is one classified unit of source text.
type Lexeme struct {
	Kind Kind   `json:"kind"`
	Text string `json:"text"`
	Line int    `json:"line"` // 0-based
	Col  int    `json:"col"`  // 0-based byte column

	// Name is the owning label of a StructureKeyword, if one precedes it.
	Name string `json:"name,omitempty"`
	// Stmt marks the first lexeme of a statement (after an optional label).
	Stmt bool `json:"stmt,omitempty"`
	// Unterminated marks a string literal that ran to end of line.
	Unterminated bool `json:"unterminated,omitempty"`

	// Scope is the index of the scope this lexeme opens, or -1.
	Scope int `json:"scope"`
	// Parent is the index of the innermost scope containing this lexeme, or -1.
	Parent int `json:"parent"`
}

// End returns the column just past the lexeme on its line.
func (l Lexeme) End() int {
	return l.Col + len(l.Text)
}

// Is reports whether the lexeme text equals word, ignoring case.
func (l Lexeme) Is(word string) bool {
	return strings.EqualFold(l.Text, word)
}

// structureKeywords is the set of words that can open a structure scope.
var structureKeywords = map[string]ScopeKind{
	"PROCEDURE":   ScopeProcedure,
	"FUNCTION":    ScopeFunction,
	"ROUTINE":     ScopeRoutine,
	"CLASS":       ScopeClass,
	"INTERFACE":   ScopeInterface,
	"MAP":         ScopeMap,
	"MODULE":      ScopeModule,
	"FILE":        ScopeFile,
	"RECORD":      ScopeRecord,
	"GROUP":       ScopeGroup,
	"QUEUE":       ScopeQueue,
	"VIEW":        ScopeView,
	"JOIN":        ScopeJoin,
	"WINDOW":      ScopeWindow,
	"APPLICATION": ScopeApplication,
	"REPORT":      ScopeReport,
	"SHEET":       ScopeSheet,
	"TAB":         ScopeTab,
	"OPTION":      ScopeOption,
	"MENU":        ScopeMenu,
	"MENUBAR":     ScopeMenubar,
	"TOOLBAR":     ScopeToolbar,
	"ITEMIZE":     ScopeItemize,
	"OLE":         ScopeOle,
	"HEADER":      ScopeHeader,
	"FOOTER":      ScopeFooter,
	"DETAIL":      ScopeDetail,
	"FORM":        ScopeForm,
	"BREAK":       ScopeBreak,
	"IF":          ScopeIf,
	"LOOP":        ScopeLoop,
	"CASE":        ScopeCase,
	"EXECUTE":     ScopeExecute,
	"BEGIN":       ScopeBegin,
	"ACCEPT":      ScopeAccept,
}

// keywords are reserved words that never open a scope.
var keywords = map[string]bool{
	"END": true, "ELSE": true, "ELSIF": true, "OF": true, "OROF": true,
	"THEN": true, "UNTIL": true, "WHILE": true, "TO": true, "BY": true,
	"TIMES": true, "DO": true, "RETURN": true, "EXIT": true, "CYCLE": true,
	"GOTO": true, "CODE": true, "DATA": true, "PROGRAM": true, "MEMBER": true,
	"INCLUDE": true, "SECTION": true, "EQUATE": true, "ONCE": true,
	"COMPILE": true, "OMIT": true, "AND": true, "OR": true, "NOT": true,
	"XOR": true, "SELF": true, "PARENT": true, "NEW": true, "DISPOSE": true,
	"ASSERT": true, "NULL": true, "TRUE": true, "FALSE": true,
}

// types are the built-in data types.
var types = map[string]bool{
	"BYTE": true, "SHORT": true, "USHORT": true, "LONG": true, "ULONG": true,
	"SIGNED": true, "UNSIGNED": true, "REAL": true, "SREAL": true,
	"DECIMAL": true, "PDECIMAL": true, "STRING": true, "CSTRING": true,
	"PSTRING": true, "ASTRING": true, "BSTRING": true, "DATE": true,
	"TIME": true, "MEMO": true, "BLOB": true, "ANY": true, "LIKE": true,
	"BOOL": true,
}

// properties are attribute keywords used in declaration attribute lists.
var properties = map[string]bool{
	"DRIVER": true, "PRE": true, "NAME": true, "OWNER": true, "CREATE": true,
	"RECLAIM": true, "ENCRYPT": true, "THREAD": true, "EXTERNAL": true,
	"DLL": true, "STATIC": true, "TYPE": true, "PRIVATE": true,
	"PROTECTED": true, "VIRTUAL": true, "DERIVED": true, "REPLACE": true,
	"PROC": true, "RAW": true, "PASCAL": true, "LINK": true,
	"IMPLEMENTS": true, "BINDABLE": true, "DIM": true, "OVER": true,
	"AUTO": true, "KEY": true, "INDEX": true, "OPT": true, "DUP": true,
	"NOCASE": true, "PRIMARY": true, "USE": true, "AT": true, "FONT": true,
	"COLOR": true, "ICON": true, "SYSTEM": true, "MAX": true, "GRAY": true,
	"CENTER": true, "CENTERED": true, "TIMER": true, "MDI": true,
	"MODAL": true, "HLP": true, "STATUS": true, "IMM": true, "ALRT": true,
	"MSG": true, "TIP": true, "FROM": true, "FORMAT": true, "VSCROLL": true,
	"HSCROLL": true, "BUTTON": true, "ENTRY": true, "PROMPT": true,
	"LIST": true, "CHECK": true, "RADIO": true, "ITEM": true,
	"TEXT": true, "IMAGE": true, "PANEL": true, "BOX": true, "LINE": true,
	"SPIN": true, "COMBO": true, "REGION": true,
}

// LookupScopeKind returns the scope kind for a structure word.
func LookupScopeKind(word string) (ScopeKind, bool) {
	k, ok := structureKeywords[strings.ToUpper(word)]
	return k, ok
}

// IsKeyword reports whether word is a non-structural reserved word.
func IsKeyword(word string) bool {
	return keywords[strings.ToUpper(word)]
}

// IsType reports whether word is a built-in data type.
func IsType(word string) bool {
	return types[strings.ToUpper(word)]
}

// IsProperty reports whether word is an attribute keyword.
func IsProperty(word string) bool {
	return properties[strings.ToUpper(word)]
}
