// Package help holds the built-in brush language reference printed by
// `brush help`.
package help

import (
	"fmt"
	"sort"
	"strings"
)

// Version is the brush language version the reference describes.
const Version = "v0.1"

// TopicList is the display order of help topics.
var TopicList = []string{
	"syntax",
	"types",
	"forms",
	"functions",
	"paint",
	"budget",
	"diagnostics",
	"repl",
	"config",
	"examples",
}

// QUICKREF is the one-screen overview shown by `brush help` with no topic.
var QUICKREF = `brush ` + Version + ` quick reference

  brush run [-p] [-r] [-c config] [-s steps] [-d depth] [-t ms] [-T trace] FILE|-
  brush check [-p] FILE|-     parse and lint without running
  brush fmt [-w] FILE|-       print canonical layout, -w rewrites the file
  brush repl                  interactive session
  brush trace [-x] FILE       summarise an NDJSON trace, -x as text
  brush config [-c config]    print the effective configuration
  brush help [TOPIC]

run prints the command log as JSON; -r draws it on the canvas and -p
prints diagnostics as coloured text.

A program is a sequence of forms. A form is a number, a "string", a name,
an operator call (op arg ...), a block [form ...] or a name list {a b}.

  (set x 10)                 bind x in the innermost scope
  (const k 3)                bind k immutably
  (set sq (func {n} (* n n)))
  (sq x)                     => 100
  (if (< x 5) [1] [2])       one branch is evaluated
  (loop (< i 3) (set i (+ i 1)))
  (paint x y r g b)          append a coloured cell to the command log

Topics: ` + strings.Join(TopicList, ", ") + `
`

// Topics maps topic names to their reference text.
var Topics = map[string]string{
	"syntax": `SYNTAX

Tokens are numbers, strings and identifiers. Whitespace separates tokens.

  numbers      digits with an optional fraction and exponent: 0 3.5 1e3 2.5E-1
               there is no sign; write (- 0 5) for -5
  strings      "text"; a backslash keeps the next character inside the
               literal, and the escape is kept verbatim
  names        a letter followed by letters, digits or _
  operators    + - * / % == != < > <= >= << >> && || & | ^ = !
  brackets     ( ) [ ] { }

Forms:

  (op arg ...)   call; op is a name or operator
  [form ...]     block; value of the last form, 0 when empty
  {a b c}        name list; only valid as the first argument of func

Bracket nesting deeper than parser.maxDepth (default 512) is rejected.
`,

	"types": `TYPES

  number     64-bit float
  string     text, compared with == and joined with +
  function   parameters plus body, made by func
  vector     ordered values, made by vec and read with at
  command    one painted cell: x, y and an RGB colour

Conditions must be numbers; any non-zero number is true. Comparisons
return 1 or 0.
`,

	"forms": `FORMS

  (+ a b)          numbers add, two strings concatenate
  (- a b) (* a b) (/ a b) (% a b)
                   numbers only; / follows IEEE 754, % keeps the sign
                   of the dividend
  (== a b) (!= a b)
                   compares numbers or strings; the first operand picks
                   the kind and a mismatch is E_TYPE
  (< a b) (> a b) (<= a b) (>= a b)
                   numbers only
  (set name v)     bind or rebind in the innermost scope
  (const name v)   bind immutably; rebinding is E_CONST
  (if c then else) exactly three arguments
  (loop c body)    repeat body while c is true; value of the last body
  (vec a ...)      build a vector
  (at v i)         element i (truncated); out of range is E_INDEX

Arity is checked before any argument is evaluated.
`,

	"functions": `FUNCTIONS

  (set add (func {a b} (+ a b)))
  (add 1 2)        => 3

func takes a name list and one or more body forms. Calling a function
evaluates the arguments in the caller's scope, pushes a new scope, binds
the parameters by position and evaluates the body. The scope is popped on
return and on error.

Scoping is dynamic: a free name in a body resolves against the scopes
active at call time, innermost first. Functions capture nothing.
`,

	"paint": `PAINT

  (paint x y r g b)

appends a command to the log and returns it. x and y are truncated to
integers; r, g and b are truncated and clamped to 0..255, NaN becomes 0.

The command log is the result of a run. brush run prints it as JSON;
brush run -r draws it on a canvas of canvas.width by canvas.height cells.
Cells outside the canvas are clipped. Later paints win.
`,

	"budget": `BUDGET

  limits.maxSteps      loop iterations plus user calls (default 1000000)
  limits.maxCallDepth  nested evaluation depth (default 2048)
  limits.timeoutMs     wall-clock limit per run (default 5000)

Exceeding steps or time is E_BUDGET; exceeding depth is E_DEPTH. Ctrl-C
in the REPL, or a cancelled host context, stops a run with E_CANCELLED.
Zero disables a limit. The run/repl flags -s, -d and -t override the
configured values.
`,

	"diagnostics": `DIAGNOSTICS

  E_LEX         unexpected character or unterminated string
  E_PARSE       malformed form or nesting too deep
  E_AST         name list outside func, or non-name set target
  E_FORM        lint: wrong shape found by brush check
  E_UNBOUND     name is not bound
  E_UNKNOWN_FN  call to a name that is not bound
  E_NOT_FN      call to a bound value that is not a function
  E_ARITY       wrong number of arguments
  E_TYPE        operand of the wrong type
  E_CONST       rebinding a constant
  E_INDEX       vector index out of range
  E_BUDGET      step or time budget exhausted
  E_DEPTH       evaluation too deep
  E_CANCELLED   run interrupted
  E_IO          file could not be read or written
  E_CONFIG      invalid configuration

Exit codes: 0 ok, 1 usage or I/O, 2 lex or parse, 3 config, 4 runtime,
5 budget or cancellation. Commands painted before a failure are kept.
`,

	"repl": `REPL

brush repl keeps one global scope across inputs. An input that ends in
the middle of a form continues on the next line. Ctrl-C cancels the
running input; Ctrl-D exits.

  :names    list global bindings
  :reset    discard every binding
  :quit     leave
`,

	"config": `CONFIG

Configuration is read from ./.brush.yaml, else ~/.brush/config.yaml,
else the defaults. Unknown keys are rejected.

  limits:
    maxSteps: 1000000
    maxCallDepth: 2048
    timeoutMs: 5000
  parser:
    maxDepth: 512
  canvas:
    width: 64
    height: 32
    glyph: "  "
  output:
    color: auto        # auto, always or never

brush config prints the effective configuration and its source.
`,

	"examples": `EXAMPLES

Diagonal line:

  (set i 0)
  (loop (< i 10) [
    (paint i i 255 0 0)
    (set i (+ i 1))
  ])

Filled square with a helper:

  (set row (func {y n} [
    (set x 0)
    (loop (< x n) [(paint x y 0 128 255) (set x (+ x 1))])
  ]))
  (set y 0)
  (loop (< y 4) [(row y 4) (set y (+ y 1))])

Vectors:

  (set v (vec 10 20 30))
  (at v 1)              => 20
`,
}

// MatchTopic resolves a topic by exact name, then by unique prefix.
func MatchTopic(query string) (string, string, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if content, ok := Topics[query]; ok {
		return query, content, nil
	}

	var matches []string
	for _, name := range TopicList {
		if query != "" && strings.HasPrefix(name, query) {
			matches = append(matches, name)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], Topics[matches[0]], nil
	case 0:
		return "", "", fmt.Errorf("unknown help topic %q (topics: %s)", query, strings.Join(TopicList, ", "))
	default:
		sort.Strings(matches)
		return "", "", fmt.Errorf("ambiguous help topic %q: %s", query, strings.Join(matches, ", "))
	}
}
