// Package ast defines the brush language AST node types.
package ast

import (
	"math"
	"strconv"
	"strings"
)

// Span represents a source location range.
type Span struct {
	File      string `json:"file"`
	StartLine int    `json:"startLine"`
	StartCol  int    `json:"startCol"`
	EndLine   int    `json:"endLine"`
	EndCol    int    `json:"endCol"`
}

// Node is the interface implemented by all AST nodes.
type Node interface {
	Kind() string
	NodeSpan() Span
	node() // sealed marker
}

// --- Leaves ---

// Number is a numeric literal. All brush numbers are float64.
type Number struct {
	Span  Span
	Value float64
}

func (n *Number) Kind() string   { return "Number" }
func (n *Number) NodeSpan() Span { return n.Span }
func (n *Number) node()          {}

// Str is a string literal. Escape sequences are kept as written.
type Str struct {
	Span  Span
	Value string
}

func (n *Str) Kind() string   { return "Str" }
func (n *Str) NodeSpan() Span { return n.Span }
func (n *Str) node()          {}

type Ident struct {
	Span Span
	Name string
}

func (n *Ident) Kind() string   { return "Ident" }
func (n *Ident) NodeSpan() Span { return n.Span }
func (n *Ident) node()          {}

// --- Compound nodes ---

// Block is a bracketed sequence `[a b c]`. It evaluates its children in
// order and yields the value of the last one.
type Block struct {
	Span     Span
	Children []Node
}

func (n *Block) Kind() string   { return "Block" }
func (n *Block) NodeSpan() Span { return n.Span }
func (n *Block) node()          {}

// IdList is a braced list of names `{a b}`, used as formal parameters.
type IdList struct {
	Span  Span
	Names []string
}

func (n *IdList) Kind() string   { return "IdList" }
func (n *IdList) NodeSpan() Span { return n.Span }
func (n *IdList) node()          {}

// Operator is a parenthesized form `(name args...)`: a special form,
// a builtin operator or a user function call.
type Operator struct {
	Span     Span
	Name     string
	Children []Node
}

func (n *Operator) Kind() string   { return "Operator" }
func (n *Operator) NodeSpan() Span { return n.Span }
func (n *Operator) node()          {}

// --- Program ---

type Program struct {
	Span  Span
	Forms []Node
}

func (n *Program) Kind() string   { return "Program" }
func (n *Program) NodeSpan() Span { return n.Span }
func (n *Program) node()          {}

// FormatNumber renders a number the way brush source writes it:
// integral values without a fractional part. Literals too large for a
// float64 print as 1e999 so the output still lexes as a number.
func FormatNumber(v float64) string {
	if math.IsInf(v, 1) {
		return "1e999"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Print renders a node as single-line s-expression source.
func Print(n Node) string {
	var b strings.Builder
	writeNode(&b, n)
	return b.String()
}

func writeNode(b *strings.Builder, n Node) {
	switch n := n.(type) {
	case *Number:
		b.WriteString(FormatNumber(n.Value))
	case *Str:
		b.WriteByte('"')
		b.WriteString(n.Value)
		b.WriteByte('"')
	case *Ident:
		b.WriteString(n.Name)
	case *Block:
		b.WriteByte('[')
		for i, c := range n.Children {
			if i > 0 {
				b.WriteByte(' ')
			}
			writeNode(b, c)
		}
		b.WriteByte(']')
	case *IdList:
		b.WriteByte('{')
		b.WriteString(strings.Join(n.Names, " "))
		b.WriteByte('}')
	case *Operator:
		b.WriteByte('(')
		b.WriteString(n.Name)
		for _, c := range n.Children {
			b.WriteByte(' ')
			writeNode(b, c)
		}
		b.WriteByte(')')
	case *Program:
		for i, f := range n.Forms {
			if i > 0 {
				b.WriteByte(' ')
			}
			writeNode(b, f)
		}
	}
}
