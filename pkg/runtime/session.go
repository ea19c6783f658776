package runtime

import (
	"context"
	"fmt"
	"sort"

	"github.com/thomasrohde/brush/pkg/evaluator"
	"github.com/thomasrohde/brush/pkg/parser"
)

// Session evaluates successive inputs against one interpreter, so bindings
// made by earlier inputs stay visible. It backs the REPL.
type Session struct {
	rt     *Runtime
	interp *evaluator.Interpreter
	inputs int
}

// NewSession starts a session with an empty global scope.
func (rt *Runtime) NewSession() *Session {
	return &Session{
		rt:     rt,
		interp: evaluator.New(nil, rt.execOptions()),
	}
}

// Eval parses and executes one input. Each input gets a fresh command log.
func (s *Session) Eval(ctx context.Context, source string) (*Result, error) {
	s.inputs++
	filename := fmt.Sprintf("<repl:%d>", s.inputs)
	program, diags := parser.ParseWith(source, filename, s.rt.parseOpts)
	if len(diags) > 0 {
		return nil, &DiagnosticError{Diagnostics: diags}
	}

	s.interp.Load(program)
	res, err := s.interp.Execute(ctx)
	return newResult(res), err
}

// Cancel interrupts the input currently being evaluated.
func (s *Session) Cancel() {
	s.interp.Cancel()
}

// Names lists the global bindings in sorted order.
func (s *Session) Names() []string {
	names := s.interp.Env().Names()
	sort.Strings(names)
	return names
}

// Lookup returns a global binding.
func (s *Session) Lookup(name string) (evaluator.Value, bool) {
	return s.interp.Env().Get(name)
}

// Reset discards every binding.
func (s *Session) Reset() {
	s.interp = evaluator.New(nil, s.rt.execOptions())
}
