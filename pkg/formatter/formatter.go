// Package formatter implements the brush source code formatter.
package formatter

import (
	"strings"

	"github.com/thomasrohde/brush/pkg/ast"
)

const (
	indent = "  "
	// MaxWidth is the line width a form may occupy before it is broken up.
	MaxWidth = 80
)

// Format pretty-prints a brush AST back to source code, one top-level form
// per line. Forms wider than MaxWidth are broken one child per line.
func Format(program *ast.Program) string {
	var b strings.Builder
	for _, form := range program.Forms {
		writeNode(&b, form, 0)
		b.WriteByte('\n')
	}
	return b.String()
}

// FormatNode formats a single node starting at column zero.
func FormatNode(n ast.Node) string {
	var b strings.Builder
	writeNode(&b, n, 0)
	return b.String()
}

// keepsFirst reports whether a form keeps its first argument on the head
// line when broken: the binding target of set/const and the parameter
// list of func.
func keepsFirst(name string) bool {
	switch name {
	case "set", "const", "func":
		return true
	}
	return false
}

func newline(b *strings.Builder, depth int) {
	b.WriteByte('\n')
	b.WriteString(strings.Repeat(indent, depth))
}

func writeNode(b *strings.Builder, n ast.Node, depth int) {
	flat := ast.Print(n)
	if depth*len(indent)+len(flat) <= MaxWidth {
		b.WriteString(flat)
		return
	}

	switch n := n.(type) {
	case *ast.Operator:
		if len(n.Children) == 0 {
			b.WriteString(flat)
			return
		}
		b.WriteString("(")
		b.WriteString(n.Name)
		children := n.Children
		if keepsFirst(n.Name) {
			b.WriteByte(' ')
			b.WriteString(ast.Print(children[0]))
			children = children[1:]
		}
		for _, child := range children {
			newline(b, depth+1)
			writeNode(b, child, depth+1)
		}
		b.WriteString(")")

	case *ast.Block:
		if len(n.Children) == 0 {
			b.WriteString(flat)
			return
		}
		b.WriteString("[")
		for _, child := range n.Children {
			newline(b, depth+1)
			writeNode(b, child, depth+1)
		}
		newline(b, depth)
		b.WriteString("]")

	default:
		b.WriteString(flat)
	}
}
