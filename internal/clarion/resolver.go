package clarion

import (
	"slices"
	"strings"
)

// Result is the annotated structure of one document.
type Result struct {
	// Lexemes is an annotated copy of the input; the caller's slice is never modified.
	Lexemes []Lexeme `json:"lexemes"`
	// Scopes is the arena all scope indices refer to.
	Scopes []Scope `json:"scopes"`
	// Roots are the top-level scopes in source order.
	Roots       []int        `json:"roots"`
	Diagnostics []Diagnostic `json:"diagnostics"`
	LastLine    int          `json:"last_line"`
}

// Option configures Resolve.
type Option func(*resolveOptions)

type resolveOptions struct {
	lastLine int
}

// WithLastLine sets the line scopes still open at end of input close on.
// It defaults to the line of the last lexeme.
func WithLastLine(line int) Option {
	return func(o *resolveOptions) {
		o.lastLine = line
	}
}

// Parse classifies and resolves src.
func Parse(src string) Result {
	return Resolve(Classify(src), WithLastLine(LineCount(src)-1))
}

// frame is one entry of the open-structure stack.
type frame struct {
	scope  int
	rule   Rule
	anchor int  // label column, or keyword column when unlabelled
	depth  int  // open nested frames, tracked for containers
	bound  bool // shares the parent's terminator
	last   int  // line of the last lexeme attributed to the frame
}

type resolver struct {
	res   *Result
	stack []frame
}

// Resolve builds the scope tree for a lexeme sequence.
// It never fails: anomalies become diagnostics and resolution continues.
func Resolve(lexemes []Lexeme, opts ...Option) Result {
	o := resolveOptions{lastLine: -1}
	for _, opt := range opts {
		opt(&o)
	}

	lexs := make([]Lexeme, len(lexemes))
	copy(lexs, lexemes)
	last := max(o.lastLine, 0)
	for i := range lexs {
		lexs[i].Scope = -1
		lexs[i].Parent = -1
		last = max(last, lexs[i].Line)
	}

	r := &resolver{res: &Result{
		Lexemes:     lexs,
		Scopes:      []Scope{},
		Roots:       []int{},
		Diagnostics: []Diagnostic{},
		LastLine:    last,
	}}
	for i := range lexs {
		r.step(i)
	}
	r.finish(last)

	slices.SortStableFunc(r.res.Diagnostics, func(a, b Diagnostic) int {
		if a.Line != b.Line {
			return a.Line - b.Line
		}
		return a.Col - b.Col
	})
	return *r.res
}

func (r *resolver) step(i int) {
	lx := &r.res.Lexemes[i]
	lx.Parent = r.top()

	switch lx.Kind {
	case KindStructureKeyword:
		r.open(i)
	case KindEndMarker:
		r.terminate(i)
	case KindKeyword:
		if lx.Stmt {
			r.marker(i)
		}
	}

	// Labels may still move to the scope their statement opens.
	if f := r.topFrame(); f != nil && f.scope == lx.Parent && lx.Kind != KindLabel {
		f.last = max(f.last, lx.Line)
	}
}

// top returns the innermost open scope, or -1.
func (r *resolver) top() int {
	if len(r.stack) == 0 {
		return -1
	}
	return r.stack[len(r.stack)-1].scope
}

func (r *resolver) topFrame() *frame {
	if len(r.stack) == 0 {
		return nil
	}
	return &r.stack[len(r.stack)-1]
}

// inContainer reports whether a container is open inside the current
// procedural scope, which makes PROCEDURE a prototype.
func (r *resolver) inContainer() bool {
	for j := len(r.stack) - 1; j >= 0; j-- {
		switch r.stack[j].rule {
		case RuleContainer:
			return true
		case RuleImplicitBySibling:
			return false
		}
	}
	return false
}

// implementedAt reports whether the PROCEDURE or FUNCTION at lexeme i starts
// an implementation rather than a prototype: a statement-position CODE comes
// before the enclosing structure's END or the next procedure.
func (r *resolver) implementedAt(i int) bool {
	depth := 0
	for _, lx := range r.res.Lexemes[i+1:] {
		switch lx.Kind {
		case KindStructureKeyword:
			kind, ok := LookupScopeKind(lx.Text)
			switch {
			case !ok:
			case kind.IsProcedural():
				if depth == 0 {
					return false
				}
			default:
				depth++
			}
		case KindEndMarker:
			if depth == 0 {
				return false
			}
			depth--
		case KindKeyword:
			if lx.Stmt && lx.Is("CODE") {
				return true
			}
		}
	}
	return false
}

func (r *resolver) open(i int) {
	lx := &r.res.Lexemes[i]
	kind, ok := LookupScopeKind(lx.Text)
	if !ok {
		return
	}

	switch kind {
	case ScopeProcedure, ScopeFunction:
		if r.inContainer() && !r.implementedAt(i) {
			return
		}
		for len(r.stack) > 0 {
			r.closeBefore(lx.Line, lx.Col)
		}
	case ScopeRoutine:
		r.closeToImplicit(lx.Line, lx.Col)
		if f := r.topFrame(); f != nil && r.res.Scopes[f.scope].Kind == ScopeRoutine {
			r.closeBefore(lx.Line, lx.Col)
		}
	}

	r.push(i, kind)
}

func (r *resolver) push(i int, kind ScopeKind) {
	lx := &r.res.Lexemes[i]
	parent := r.top()
	lx.Parent = parent

	anchor := lx.Col
	if label := r.adopt(i); label >= 0 {
		anchor = r.res.Lexemes[label].Col
	}

	idx := len(r.res.Scopes)
	r.res.Scopes = append(r.res.Scopes, Scope{
		Kind:        kind,
		Label:       lx.Name,
		Lexeme:      i,
		Start:       lx.Line,
		StartCol:    lx.Col,
		FinishesAt:  lx.Line,
		EndCol:      -1,
		Rule:        RuleFor(kind),
		Termination: TermOpen,
		Parent:      parent,
		DataLine:    -1,
		CodeLine:    -1,
	})
	lx.Scope = idx

	f := frame{scope: idx, rule: RuleFor(kind), anchor: anchor, last: lx.Line}
	if pf := r.topFrame(); pf != nil {
		pk := r.res.Scopes[pf.scope].Kind
		f.bound = kind == ScopeModule && (pk == ScopeClass || pk == ScopeInterface)
		if !f.bound && pf.rule == RuleContainer {
			pf.depth++
		}
		r.res.Scopes[parent].Children = append(r.res.Scopes[parent].Children, idx)
	} else {
		r.res.Roots = append(r.res.Roots, idx)
	}
	r.stack = append(r.stack, f)
}

// adopt moves the label owning lexeme i to the current top scope and
// returns its index, or -1 when the statement has no label.
func (r *resolver) adopt(i int) int {
	if i == 0 {
		return -1
	}
	prev := &r.res.Lexemes[i-1]
	if prev.Kind != KindLabel || prev.Line != r.res.Lexemes[i].Line {
		return -1
	}
	prev.Parent = r.top()
	return i - 1
}

// pop removes the top frame and maintains the parent's depth counter.
func (r *resolver) pop() frame {
	f := r.stack[len(r.stack)-1]
	r.stack = r.stack[:len(r.stack)-1]
	if pf := r.topFrame(); pf != nil && !f.bound && pf.rule == RuleContainer && pf.depth > 0 {
		pf.depth--
	}
	return f
}

func (r *resolver) terminate(i int) {
	lx := r.res.Lexemes[i]
	f := r.topFrame()
	if f == nil || f.rule == RuleImplicitBySibling {
		r.res.Diagnostics = append(r.res.Diagnostics, unexpected(lx))
		return
	}

	// An END left of the innermost container that lines up with an enclosing
	// container belongs to the enclosing one.
	if f.rule == RuleContainer && !f.bound && lx.Col < f.anchor {
		for j := len(r.stack) - 2; j >= 0; j-- {
			g := r.stack[j]
			if g.rule == RuleImplicitBySibling {
				break
			}
			if g.rule == RuleContainer && g.anchor == lx.Col {
				for len(r.stack)-1 > j {
					r.closeBefore(lx.Line, lx.Col)
				}
				break
			}
		}
	}

	term := TermEnd
	if lx.Text == "." {
		term = TermDot
	}
	closed := r.pop()
	r.res.Lexemes[i].Parent = closed.scope
	r.closeAt(closed.scope, lx.Line, lx.End(), term)
	for closed.bound && len(r.stack) > 0 && r.topFrame().depth == 0 {
		closed = r.pop()
		r.closeAt(closed.scope, lx.Line, lx.End(), TermShared)
	}
}

// marker handles statement keywords that affect open scopes without opening one.
func (r *resolver) marker(i int) {
	lx := &r.res.Lexemes[i]
	switch strings.ToUpper(lx.Text) {
	case "UNTIL", "WHILE":
		f := r.topFrame()
		if f == nil {
			return
		}
		if s := r.res.Scopes[f.scope]; s.Kind == ScopeLoop && s.Start < lx.Line {
			closed := r.pop()
			r.closeAt(closed.scope, lx.Line, lx.End(), TermUntil)
		}
	case "CODE":
		r.closeToImplicit(lx.Line, lx.Col)
		lx.Parent = r.top()
		r.adopt(i)
		if f := r.topFrame(); f != nil && r.res.Scopes[f.scope].CodeLine < 0 {
			r.res.Scopes[f.scope].CodeLine = lx.Line
		}
	case "DATA":
		if f := r.topFrame(); f != nil && f.rule == RuleImplicitBySibling && r.res.Scopes[f.scope].DataLine < 0 {
			r.res.Scopes[f.scope].DataLine = lx.Line
		}
	}
}

// closeToImplicit closes every frame above the innermost procedural scope.
func (r *resolver) closeToImplicit(line, col int) {
	for {
		f := r.topFrame()
		if f == nil || f.rule == RuleImplicitBySibling {
			return
		}
		r.closeBefore(line, col)
	}
}

// closeBefore closes the top frame on the line before a boundary at line/col,
// or at the boundary column when the frame already has lexemes on that line.
// Procedural scopes close as siblings; anything else was never terminated.
func (r *resolver) closeBefore(line, col int) {
	f := r.pop()
	s := &r.res.Scopes[f.scope]

	term := TermSibling
	if f.rule != RuleImplicitBySibling {
		term = TermBoundary
	}
	switch {
	case f.last >= line:
		// The frame's own lexemes reach the boundary line.
		r.closeAt(f.scope, line, col, term)
	case line-1 >= s.Start:
		r.closeAt(f.scope, line-1, -1, term)
	default:
		r.closeAt(f.scope, s.Start, col, term)
	}
	if term == TermBoundary {
		r.res.Diagnostics = append(r.res.Diagnostics, unterminated(*s, f.scope))
	}
}

// closeAt records the end of a scope, widening it to cover its children.
func (r *resolver) closeAt(idx, line, endCol int, term Termination) {
	s := &r.res.Scopes[idx]
	s.FinishesAt = line
	s.EndCol = endCol
	s.Termination = term
	for _, c := range s.Children {
		cs := r.res.Scopes[c]
		if endsAfter(cs.FinishesAt, cs.EndCol, s.FinishesAt, s.EndCol) {
			s.FinishesAt = cs.FinishesAt
			s.EndCol = cs.EndCol
		}
	}
}

// endsAfter compares two end positions; a column of -1 means end of line.
func endsAfter(line, col, otherLine, otherCol int) bool {
	if line != otherLine {
		return line > otherLine
	}
	if otherCol < 0 {
		return false
	}
	return col < 0 || col > otherCol
}

// finish closes everything still open at end of input.
func (r *resolver) finish(last int) {
	for len(r.stack) > 0 {
		f := r.pop()
		if f.rule == RuleImplicitBySibling {
			r.closeAt(f.scope, last, -1, TermEOF)
			continue
		}
		r.closeAt(f.scope, last, -1, TermUnterminated)
		r.res.Diagnostics = append(r.res.Diagnostics, unterminated(r.res.Scopes[f.scope], f.scope))
	}
}
