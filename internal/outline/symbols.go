// Package outline derives document symbols, folding ranges and outline
// diffs from a resolved Clarion document.
package outline

import (
	"strings"

	"github.com/zjrosen/clarionscope/internal/clarion"
)

// Category groups scope kinds the way an editor outline presents them.
type Category string

const (
	CategoryModule    Category = "module"
	CategoryProcedure Category = "procedure"
	CategoryMethod    Category = "method"
	CategoryRoutine   Category = "routine"
	CategoryClass     Category = "class"
	CategoryInterface Category = "interface"
	CategoryTable     Category = "table"
	CategoryStructure Category = "structure"
	CategoryWindow    Category = "window"
	CategoryReport    Category = "report"
)

// Symbol is one outline entry.
type Symbol struct {
	Name     string            `json:"name"`
	Kind     clarion.ScopeKind `json:"kind"`
	Category Category          `json:"category"`
	Line     int               `json:"line"`
	Col      int               `json:"col"`
	EndLine  int               `json:"end_line"`
	Scope    int               `json:"scope"`
	Children []Symbol          `json:"children,omitempty"`
}

// CategoryOf maps a scope to its outline category. Control-flow scopes
// have none.
func CategoryOf(s clarion.Scope) (Category, bool) {
	switch s.Kind {
	case clarion.ScopeProcedure, clarion.ScopeFunction:
		if strings.Contains(s.Label, ".") {
			return CategoryMethod, true
		}
		return CategoryProcedure, true
	case clarion.ScopeRoutine:
		return CategoryRoutine, true
	case clarion.ScopeClass:
		return CategoryClass, true
	case clarion.ScopeInterface:
		return CategoryInterface, true
	case clarion.ScopeMap, clarion.ScopeModule:
		return CategoryModule, true
	case clarion.ScopeFile, clarion.ScopeView:
		return CategoryTable, true
	case clarion.ScopeRecord, clarion.ScopeGroup, clarion.ScopeQueue, clarion.ScopeJoin:
		return CategoryStructure, true
	case clarion.ScopeWindow, clarion.ScopeApplication, clarion.ScopeSheet, clarion.ScopeTab,
		clarion.ScopeOption, clarion.ScopeMenu, clarion.ScopeMenubar, clarion.ScopeToolbar,
		clarion.ScopeItemize, clarion.ScopeOle:
		return CategoryWindow, true
	case clarion.ScopeReport, clarion.ScopeHeader, clarion.ScopeFooter, clarion.ScopeDetail,
		clarion.ScopeForm, clarion.ScopeBreak:
		return CategoryReport, true
	}
	return "", false
}

// Symbols builds the outline tree. Scopes without a category are skipped
// and their children are lifted to the nearest outlined ancestor.
func Symbols(res clarion.Result) []Symbol {
	return collect(res, res.Roots)
}

func collect(res clarion.Result, indices []int) []Symbol {
	syms := []Symbol{}
	for _, idx := range indices {
		s := res.Scopes[idx]
		cat, ok := CategoryOf(s)
		if !ok {
			syms = append(syms, collect(res, s.Children)...)
			continue
		}
		name := s.Label
		if name == "" {
			name = s.Kind.String()
		}
		sym := Symbol{
			Name:     name,
			Kind:     s.Kind,
			Category: cat,
			Line:     s.Start,
			Col:      s.StartCol,
			EndLine:  s.FinishesAt,
			Scope:    idx,
		}
		if children := collect(res, s.Children); len(children) > 0 {
			sym.Children = children
		}
		syms = append(syms, sym)
	}
	return syms
}

// Walk visits every symbol depth-first with its nesting depth.
func Walk(syms []Symbol, fn func(sym Symbol, depth int)) {
	var walk func([]Symbol, int)
	walk = func(list []Symbol, depth int) {
		for _, s := range list {
			fn(s, depth)
			walk(s.Children, depth+1)
		}
	}
	walk(syms, 0)
}
