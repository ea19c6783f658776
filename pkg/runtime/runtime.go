// Package runtime provides the top-level brush runtime orchestrator.
package runtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/thomasrohde/brush/pkg/ast"
	"github.com/thomasrohde/brush/pkg/config"
	"github.com/thomasrohde/brush/pkg/diagnostics"
	"github.com/thomasrohde/brush/pkg/evaluator"
	"github.com/thomasrohde/brush/pkg/formatter"
	"github.com/thomasrohde/brush/pkg/parser"
	"github.com/thomasrohde/brush/pkg/validator"
)

// Result holds the outcome of a program execution.
type Result struct {
	Value    evaluator.Value
	Commands []evaluator.Command
	Emitted  []evaluator.Command
	Steps    int64
}

func newResult(res *evaluator.ExecResult) *Result {
	if res == nil {
		return nil
	}
	return &Result{
		Value:    res.Value,
		Commands: res.Commands,
		Emitted:  res.Emitted,
		Steps:    res.Steps,
	}
}

// Runtime wires together the brush components for program execution.
type Runtime struct {
	limits    evaluator.Limits
	parseOpts parser.Options
	runID     string
	trace     func(event evaluator.TraceEvent)
	cache     *parseCache
}

// Option is a functional option for configuring the Runtime.
type Option func(*Runtime)

// WithConfig applies the limits and parser settings of a loaded configuration.
func WithConfig(cfg *config.Config) Option {
	return func(rt *Runtime) {
		rt.limits = evaluator.Limits{
			MaxSteps:     cfg.Limits.MaxSteps,
			MaxCallDepth: cfg.Limits.MaxCallDepth,
			Timeout:      cfg.Timeout(),
		}
		rt.parseOpts = parser.Options{MaxDepth: cfg.Parser.MaxDepth}
	}
}

// WithLimits sets the execution limits.
func WithLimits(l evaluator.Limits) Option {
	return func(rt *Runtime) {
		rt.limits = l
	}
}

// WithParserOptions sets the parser options.
func WithParserOptions(opts parser.Options) Option {
	return func(rt *Runtime) {
		rt.parseOpts = opts
	}
}

// WithRunID sets the run ID for trace events.
func WithRunID(id string) Option {
	return func(rt *Runtime) {
		rt.runID = id
	}
}

// WithTrace sets the trace callback.
func WithTrace(fn func(event evaluator.TraceEvent)) Option {
	return func(rt *Runtime) {
		rt.trace = fn
	}
}

// WithCacheSize sets how many parsed programs are kept. Zero disables the cache.
func WithCacheSize(n int) Option {
	return func(rt *Runtime) {
		rt.cache = newParseCache(n)
	}
}

// New creates a new Runtime with the given options.
// By default the limits and parser settings of config.Default apply.
func New(opts ...Option) *Runtime {
	rt := &Runtime{
		runID: "cli",
		cache: newParseCache(defaultCacheSize),
	}
	WithConfig(config.Default())(rt)
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// Limits returns the execution limits in effect.
func (rt *Runtime) Limits() evaluator.Limits {
	return rt.limits
}

// Parse lexes and parses source, reusing the cached program when the same
// source and filename were parsed before.
func (rt *Runtime) Parse(source, filename string) (*ast.Program, error) {
	if prog, ok := rt.cache.get(source, filename); ok {
		return prog, nil
	}
	program, diags := parser.ParseWith(source, filename, rt.parseOpts)
	if len(diags) > 0 {
		return nil, &DiagnosticError{Diagnostics: diags}
	}
	rt.cache.put(source, filename, program)
	return program, nil
}

// Run parses and executes a brush program. When execution fails part way,
// the returned Result still carries the commands produced before the error.
func (rt *Runtime) Run(ctx context.Context, source, filename string) (*Result, error) {
	program, err := rt.Parse(source, filename)
	if err != nil {
		return nil, err
	}

	interp := evaluator.New(program, rt.execOptions())
	res, err := interp.Execute(ctx)
	return newResult(res), err
}

// Check parses and lints a brush program without executing it.
func (rt *Runtime) Check(source, filename string) []diagnostics.Diagnostic {
	program, diags := parser.ParseWith(source, filename, rt.parseOpts)
	if len(diags) > 0 {
		return diags
	}
	return validator.Validate(program)
}

// Format parses and formats a brush program.
func (rt *Runtime) Format(source, filename string) (string, error) {
	program, diags := parser.ParseWith(source, filename, rt.parseOpts)
	if len(diags) > 0 {
		return "", &DiagnosticError{Diagnostics: diags}
	}
	return formatter.Format(program), nil
}

func (rt *Runtime) execOptions() evaluator.Options {
	return evaluator.Options{
		Limits: rt.limits,
		Trace:  rt.trace,
		RunID:  rt.runID,
	}
}

// DiagnosticError wraps diagnostics as an error.
type DiagnosticError struct {
	Diagnostics []diagnostics.Diagnostic
}

func (e *DiagnosticError) Error() string {
	msgs := make([]string, len(e.Diagnostics))
	for i, d := range e.Diagnostics {
		msgs[i] = fmt.Sprintf("%s: %s", d.Code, d.Message)
	}
	return strings.Join(msgs, "; ")
}
