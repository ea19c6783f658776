// Package validator implements static checks of brush programs for `brush check`.
//
// Evaluation never depends on the validator: every problem reported here is
// also detected at run time. The checks only look at the shape of special
// forms and at names that no form in the program could ever bind.
package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/thomasrohde/brush/pkg/ast"
	"github.com/thomasrohde/brush/pkg/diagnostics"
)

// fixedArity lists the builtin forms that take an exact number of arguments.
var fixedArity = map[string]int{
	"+": 2, "-": 2, "*": 2, "/": 2, "%": 2,
	"==": 2, "!=": 2, "<": 2, ">": 2, "<=": 2, ">=": 2,
	"set": 2, "const": 2,
	"if":    3,
	"loop":  2,
	"at":    2,
	"paint": 5,
}

// IsBuiltin reports whether name is a builtin form rather than a user call.
func IsBuiltin(name string) bool {
	if _, ok := fixedArity[name]; ok {
		return true
	}
	return name == "func" || name == "vec"
}

// Builtins returns the builtin form names in sorted order.
func Builtins() []string {
	names := []string{"func", "vec"}
	for name := range fixedArity {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type validator struct {
	diags []diagnostics.Diagnostic
	// bound holds every name any set, const or parameter list introduces.
	bound map[string]bool
}

// Validate checks a program and returns lint diagnostics in source order.
func Validate(program *ast.Program) []diagnostics.Diagnostic {
	v := &validator{bound: make(map[string]bool)}
	for _, form := range program.Forms {
		v.collectBindings(form)
	}
	for _, form := range program.Forms {
		v.validateNode(form)
	}
	return v.diags
}

func (v *validator) addDiag(code, msg string, span ast.Span) {
	v.diags = append(v.diags, diagnostics.MakeDiag(code, msg, &span, ""))
}

// collectBindings records names bound anywhere, since with dynamic scoping a
// callee can see any binding made by a caller.
func (v *validator) collectBindings(node ast.Node) {
	switch n := node.(type) {
	case *ast.Operator:
		if (n.Name == "set" || n.Name == "const") && len(n.Children) > 0 {
			if id, ok := n.Children[0].(*ast.Ident); ok {
				v.bound[id.Name] = true
			}
		}
		for _, child := range n.Children {
			v.collectBindings(child)
		}
	case *ast.IdList:
		for _, name := range n.Names {
			v.bound[name] = true
		}
	case *ast.Block:
		for _, child := range n.Children {
			v.collectBindings(child)
		}
	}
}

func (v *validator) validateNode(node ast.Node) {
	switch n := node.(type) {
	case *ast.Ident:
		if !v.bound[n.Name] {
			v.addDiag(diagnostics.EUnbound, fmt.Sprintf("'%s' is never bound", n.Name), n.Span)
		}
	case *ast.IdList:
		v.addDiag(diagnostics.EForm, fmt.Sprintf("parameter list %s outside 'func'", ast.Print(n)), n.Span)
	case *ast.Block:
		for _, child := range n.Children {
			v.validateNode(child)
		}
	case *ast.Operator:
		v.validateOperator(n)
	}
}

func (v *validator) validateOperator(op *ast.Operator) {
	children := op.Children

	if want, ok := fixedArity[op.Name]; ok && len(children) != want {
		v.addDiag(diagnostics.EForm, fmt.Sprintf("'%s' expects %d arguments, got %d", op.Name, want, len(children)), op.Span)
	}

	switch op.Name {
	case "set", "const":
		if len(children) > 0 {
			if _, ok := children[0].(*ast.Ident); !ok {
				v.addDiag(diagnostics.EForm, fmt.Sprintf("'%s' target must be an identifier, got %s", op.Name, ast.Print(children[0])), children[0].NodeSpan())
			}
			children = children[1:]
		}

	case "func":
		if len(op.Children) < 2 {
			v.addDiag(diagnostics.EForm, fmt.Sprintf("'func' expects a parameter list and at least one body form, got %d arguments", len(op.Children)), op.Span)
		}
		if len(children) > 0 {
			if params, ok := children[0].(*ast.IdList); ok {
				v.checkParams(params)
				children = children[1:]
			} else {
				v.addDiag(diagnostics.EForm, fmt.Sprintf("'func' requires a parameter list like {a b}, got %s", ast.Print(children[0])), children[0].NodeSpan())
			}
		}

	default:
		if !IsBuiltin(op.Name) && !v.bound[op.Name] {
			v.addDiag(diagnostics.EUnknownFn, fmt.Sprintf("unknown function '%s'", op.Name), op.Span)
		}
	}

	for _, child := range children {
		v.validateNode(child)
	}
}

func (v *validator) checkParams(params *ast.IdList) {
	seen := make(map[string]bool, len(params.Names))
	var dups []string
	for _, name := range params.Names {
		if seen[name] && !contains(dups, name) {
			dups = append(dups, name)
		}
		seen[name] = true
	}
	if len(dups) > 0 {
		v.addDiag(diagnostics.EForm, fmt.Sprintf("duplicate parameter %s in %s", quoteAll(dups), ast.Print(params)), params.Span)
	}
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func quoteAll(names []string) string {
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = "'" + name + "'"
	}
	return strings.Join(quoted, ", ")
}
