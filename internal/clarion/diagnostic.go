package clarion

import "fmt"

// DiagnosticCode categorizes a resolution anomaly.
type DiagnosticCode string

const (
	// UnterminatedScope is a structure opened but never closed.
	UnterminatedScope DiagnosticCode = "UnterminatedScope"
	// UnexpectedTerminator is an END or '.' that matched no open structure.
	UnexpectedTerminator DiagnosticCode = "UnexpectedTerminator"
)

// Severity of a diagnostic.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Diagnostic is a non-fatal anomaly found while resolving structure.
type Diagnostic struct {
	Code     DiagnosticCode `json:"code"`
	Severity Severity       `json:"severity"`
	Line     int            `json:"line"`
	Col      int            `json:"col"`

	// ScopeKind and Label describe the scope for UnterminatedScope.
	ScopeKind ScopeKind `json:"scope_kind,omitempty"`
	Label     string    `json:"label,omitempty"`
	// Scope is the arena index of the unterminated scope, or -1.
	Scope int `json:"scope"`

	Message string `json:"message"`
}

func unterminated(s Scope, idx int) Diagnostic {
	msg := fmt.Sprintf("%s opened on line %d is never terminated", s.Kind, s.Start+1)
	if s.Label != "" {
		msg = fmt.Sprintf("%s %q opened on line %d is never terminated", s.Kind, s.Label, s.Start+1)
	}
	return Diagnostic{
		Code:      UnterminatedScope,
		Severity:  SeverityWarning,
		Line:      s.Start,
		Col:       s.StartCol,
		ScopeKind: s.Kind,
		Label:     s.Label,
		Scope:     idx,
		Message:   msg,
	}
}

func unexpected(lx Lexeme) Diagnostic {
	return Diagnostic{
		Code:     UnexpectedTerminator,
		Severity: SeverityWarning,
		Line:     lx.Line,
		Col:      lx.Col,
		Scope:    -1,
		Message:  fmt.Sprintf("unexpected %s: no open structure to close", terminatorName(lx)),
	}
}

func terminatorName(lx Lexeme) string {
	if lx.Text == "." {
		return "'.'"
	}
	return "END"
}
