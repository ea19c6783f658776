// Package diagnostics defines brush diagnostic types for lex/parse/runtime errors.
package diagnostics

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/thomasrohde/brush/pkg/ast"
)

// Diagnostic code constants.
const (
	ELex       = "E_LEX"
	EParse     = "E_PARSE"
	EAst       = "E_AST"
	EForm      = "E_FORM"
	EUnbound   = "E_UNBOUND"
	EUnknownFn = "E_UNKNOWN_FN"
	ENotFn     = "E_NOT_FN"
	EArity     = "E_ARITY"
	EType      = "E_TYPE"
	EConst     = "E_CONST"
	EIndex     = "E_INDEX"
	EBudget    = "E_BUDGET"
	EDepth     = "E_DEPTH"
	ECancelled = "E_CANCELLED"
	EIO        = "E_IO"
	EConfig    = "E_CONFIG"
)

// Diagnostic represents a lex, parse, lint, or runtime diagnostic.
type Diagnostic struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Span    *ast.Span `json:"span,omitempty"`
	Hint    string    `json:"hint,omitempty"`
}

// MakeDiag creates a new Diagnostic.
func MakeDiag(code, message string, span *ast.Span, hint string) Diagnostic {
	return Diagnostic{
		Code:    code,
		Message: message,
		Span:    span,
		Hint:    hint,
	}
}

// Location renders the diagnostic position as file:line:col.
func (d Diagnostic) Location() string {
	if d.Span == nil {
		return "<unknown>"
	}
	return fmt.Sprintf("%s:%d:%d", d.Span.File, d.Span.StartLine, d.Span.StartCol)
}

// FormatDiagnostic formats a single diagnostic for display.
func FormatDiagnostic(d Diagnostic, pretty bool) string {
	if !pretty {
		b, _ := json.Marshal(d)
		return string(b)
	}
	out := fmt.Sprintf("error[%s]: %s\n  --> %s", d.Code, d.Message, d.Location())
	if d.Hint != "" {
		out += fmt.Sprintf("\n  hint: %s", d.Hint)
	}
	return out
}

// FormatDiagnostics formats a slice of diagnostics for display.
func FormatDiagnostics(diags []Diagnostic, pretty bool) string {
	if !pretty {
		b, _ := json.Marshal(diags)
		return string(b)
	}
	parts := make([]string, len(diags))
	for i, d := range diags {
		parts[i] = FormatDiagnostic(d, true)
	}
	return strings.Join(parts, "\n\n")
}
