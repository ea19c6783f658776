// Package evaluator implements the brush tree-walking interpreter.
package evaluator

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/thomasrohde/brush/pkg/ast"
)

// Value is the interface for all brush runtime values.
// Use the sealed marker method to restrict implementations to this package.
type Value interface {
	value() // sealed marker
}

// Num is a numeric value. brush has no boolean type; comparisons produce 1 or 0.
type Num struct {
	Value float64
}

func (Num) value() {}

// Str is a string value.
type Str struct {
	Value string
}

func (Str) value() {}

// Func is a user-defined function. It holds no environment: free names in
// the body resolve against the scope stack live at call time.
type Func struct {
	Params []string
	Body   []ast.Node
}

func (Func) value() {}

// Vector is an ordered sequence of values.
type Vector struct {
	Items []Value
}

func (Vector) value() {}

// RGB is an 8-bit colour.
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// Hex renders the colour as #rrggbb.
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Command is one positioned colour directive produced by paint.
type Command struct {
	X     int64 `json:"x"`
	Y     int64 `json:"y"`
	Color RGB   `json:"color"`
}

func (Command) value() {}

// NewNum creates a numeric value.
func NewNum(n float64) Value {
	return Num{Value: n}
}

// NewStr creates a string value.
func NewStr(s string) Value {
	return Str{Value: s}
}

// NewVector creates a vector value.
func NewVector(items []Value) Value {
	return Vector{Items: items}
}

// Bool maps a Go boolean onto brush's 1/0 numbers.
func Bool(b bool) Value {
	if b {
		return Num{Value: 1}
	}
	return Num{Value: 0}
}

// Truthy reports whether v is a non-zero number. ok is false for non-numbers.
func Truthy(v Value) (truthy, ok bool) {
	n, ok := v.(Num)
	if !ok {
		return false, false
	}
	return n.Value != 0, true
}

// channel converts a number to a colour channel the way an unsigned 8-bit
// cast saturates: truncate, clamp to 0..255, NaN becomes 0.
func channel(v float64) uint8 {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v)
	}
}

// coord truncates toward zero, saturating at the int64 range. NaN becomes 0.
func coord(v float64) int64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v >= math.MaxInt64:
		return math.MaxInt64
	case v <= math.MinInt64:
		return math.MinInt64
	default:
		return int64(v)
	}
}

// TypeName returns the user-facing name of a value's type.
func TypeName(v Value) string {
	switch v.(type) {
	case Num:
		return "number"
	case Str:
		return "string"
	case Func:
		return "function"
	case Vector:
		return "vector"
	case Command:
		return "command"
	default:
		return "unknown"
	}
}

// FormatValue renders a value for display in the REPL and error messages.
func FormatValue(v Value) string {
	switch val := v.(type) {
	case Num:
		if math.IsInf(val.Value, 0) || math.IsNaN(val.Value) {
			return strconv.FormatFloat(val.Value, 'f', -1, 64)
		}
		return ast.FormatNumber(val.Value)
	case Str:
		return `"` + val.Value + `"`
	case Func:
		return "<func {" + strings.Join(val.Params, " ") + "}>"
	case Vector:
		parts := make([]string, len(val.Items))
		for i, item := range val.Items {
			parts[i] = FormatValue(item)
		}
		return "(vec" + prefixed(parts) + ")"
	case Command:
		return fmt.Sprintf("<paint %d %d %s>", val.X, val.Y, val.Color.Hex())
	default:
		return "<nil>"
	}
}

func prefixed(parts []string) string {
	if len(parts) == 0 {
		return ""
	}
	return " " + strings.Join(parts, " ")
}
