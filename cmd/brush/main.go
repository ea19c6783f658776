// Command brush is the brush CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"git.sr.ht/~sircmpwn/getopt"
	"github.com/fatih/color"

	"github.com/thomasrohde/brush/pkg/canvas"
	"github.com/thomasrohde/brush/pkg/config"
	"github.com/thomasrohde/brush/pkg/diagnostics"
	"github.com/thomasrohde/brush/pkg/evaluator"
	"github.com/thomasrohde/brush/pkg/help"
	"github.com/thomasrohde/brush/pkg/runtime"
)

// Exit codes.
const (
	exitOK      = 0
	exitUsage   = 1
	exitParse   = 2
	exitConfig  = 3
	exitRuntime = 4
	exitBudget  = 5
)

const usage = `usage: brush <command> [options]
commands: run, check, fmt, repl, trace, help, config`

// app carries the streams a command reads and writes.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	// getwd locates the project configuration.
	getwd func() (string, error)
}

func main() {
	a := &app{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr, getwd: os.Getwd}
	os.Exit(a.main(os.Args[1:]))
}

func (a *app) main(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(a.stderr, usage)
		return exitUsage
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "run":
		return a.cmdRun(rest)
	case "check":
		return a.cmdCheck(rest)
	case "fmt":
		return a.cmdFmt(rest)
	case "repl":
		return a.cmdRepl(rest)
	case "trace":
		return a.cmdTrace(rest)
	case "help", "--help", "-h":
		return a.cmdHelp(rest)
	case "config":
		return a.cmdConfig(rest)
	default:
		fmt.Fprintf(a.stderr, "Unknown command: %s\n%s\n", cmd, usage)
		return exitUsage
	}
}

// options holds the flags shared by the commands that execute code.
type options struct {
	pretty     bool
	render     bool
	configPath string
	tracePath  string
	steps      string
	depth      string
	timeout    string
}

// getopts parses flags for the named subcommand. getopt expects argv[0] to
// hold a program name, so one is pushed onto the front.
func getopts(name string, args []string, spec string) ([]getopt.Option, []string, error) {
	// A lone "-" names stdin and ends the options.
	var tail []string
	for i, arg := range args {
		if arg == "-" {
			args, tail = args[:i], args[i:]
			break
		}
	}
	argv := append([]string{"brush " + name}, args...)
	opts, optind, err := getopt.Getopts(argv, spec)
	if err != nil {
		return nil, nil, err
	}
	rest := append([]string{}, argv[optind:]...)
	return opts, append(rest, tail...), nil
}

func (a *app) usageError(err error, text string) int {
	fmt.Fprintf(a.stderr, "%s\nusage: %s\n", err, text)
	return exitUsage
}

// loadConfig reads the configuration file, then applies flag overrides.
func (a *app) loadConfig(o *options) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if o.configPath != "" {
		cfg, err = config.LoadFile(o.configPath)
	} else {
		dir, werr := a.getwd()
		if werr != nil {
			dir = "."
		}
		cfg, err = config.Load(dir)
	}
	if err != nil {
		return nil, err
	}

	overrides := []struct {
		flag, value string
		apply       func(n int64)
	}{
		{"-s", o.steps, func(n int64) { cfg.Limits.MaxSteps = n }},
		{"-d", o.depth, func(n int64) { cfg.Limits.MaxCallDepth = int(n) }},
		{"-t", o.timeout, func(n int64) { cfg.Limits.TimeoutMs = n }},
	}
	for _, ov := range overrides {
		if ov.value == "" {
			continue
		}
		n, perr := strconv.ParseInt(ov.value, 10, 64)
		if perr != nil {
			return nil, &config.Error{Issues: []string{fmt.Sprintf("%s: invalid number %q", ov.flag, ov.value)}}
		}
		ov.apply(n)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// colorEnabled resolves the output.color setting.
func colorEnabled(cfg *config.Config) bool {
	switch cfg.Output.Color {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	default:
		return !color.NoColor
	}
}

func (a *app) cmdRun(args []string) int {
	const runUsage = "brush run [-p] [-r] [-c config] [-s steps] [-d depth] [-t ms] [-T trace.ndjson] FILE|-"
	opts, rest, err := getopts("run", args, "prc:s:d:t:T:")
	if err != nil {
		return a.usageError(err, runUsage)
	}
	var o options
	for _, opt := range opts {
		switch opt.Option {
		case 'p':
			o.pretty = true
		case 'r':
			o.render = true
		case 'c':
			o.configPath = opt.Value
		case 's':
			o.steps = opt.Value
		case 'd':
			o.depth = opt.Value
		case 't':
			o.timeout = opt.Value
		case 'T':
			o.tracePath = opt.Value
		}
	}
	if len(rest) != 1 {
		return a.usageError(errors.New("expected one source file"), runUsage)
	}

	cfg, err := a.loadConfig(&o)
	if err != nil {
		return a.reportError(err, o.pretty, nil)
	}
	source, filename, err := a.readSource(rest[0])
	if err != nil {
		return a.reportError(err, o.pretty, cfg)
	}

	rtOpts := []runtime.Option{runtime.WithConfig(cfg)}
	if o.tracePath != "" {
		tf, err := os.Create(o.tracePath)
		if err != nil {
			return a.reportError(ioError("cannot create trace file", o.tracePath, err), o.pretty, cfg)
		}
		defer tf.Close()
		enc := json.NewEncoder(tf)
		rtOpts = append(rtOpts, runtime.WithTrace(func(ev evaluator.TraceEvent) {
			_ = enc.Encode(ev)
		}))
	}

	rt := runtime.New(rtOpts...)
	ctx, stop := interruptContext(context.Background())
	defer stop()
	result, runErr := rt.Run(ctx, source, filename)

	// Commands painted before a failure are still delivered.
	if result != nil {
		if code := a.writeCommands(result, o.render, cfg); code != exitOK {
			return code
		}
	}
	if runErr != nil {
		return a.reportError(runErr, o.pretty, cfg)
	}
	return exitOK
}

func (a *app) writeCommands(result *runtime.Result, render bool, cfg *config.Config) int {
	if !render {
		b, err := evaluator.CommandsToJSON(result.Commands)
		if err != nil {
			fmt.Fprintf(a.stderr, "error serializing commands: %s\n", err)
			return exitRuntime
		}
		fmt.Fprintln(a.stdout, string(b))
		return exitOK
	}

	grid := canvas.New(cfg.Canvas.Width, cfg.Canvas.Height)
	applied, clipped := grid.Apply(result.Commands)
	err := grid.Render(a.stdout, canvas.RenderOptions{Glyph: cfg.Canvas.Glyph, Color: colorEnabled(cfg)})
	if err != nil {
		return a.reportError(ioError("cannot write canvas", "<stdout>", err), false, cfg)
	}
	fmt.Fprintln(a.stderr, canvas.Summary(applied, clipped))
	return exitOK
}

func (a *app) cmdCheck(args []string) int {
	const checkUsage = "brush check [-p] [-c config] FILE|-"
	opts, rest, err := getopts("check", args, "pc:")
	if err != nil {
		return a.usageError(err, checkUsage)
	}
	var o options
	for _, opt := range opts {
		switch opt.Option {
		case 'p':
			o.pretty = true
		case 'c':
			o.configPath = opt.Value
		}
	}
	if len(rest) != 1 {
		return a.usageError(errors.New("expected one source file"), checkUsage)
	}

	cfg, err := a.loadConfig(&o)
	if err != nil {
		return a.reportError(err, o.pretty, nil)
	}
	source, filename, err := a.readSource(rest[0])
	if err != nil {
		return a.reportError(err, o.pretty, cfg)
	}

	diags := runtime.New(runtime.WithConfig(cfg)).Check(source, filename)
	if len(diags) > 0 {
		a.printDiagnostics(diags, o.pretty, cfg)
		return exitParse
	}
	if o.pretty {
		fmt.Fprintln(a.stdout, "No errors found.")
	} else {
		fmt.Fprintln(a.stdout, "[]")
	}
	return exitOK
}

func (a *app) cmdFmt(args []string) int {
	const fmtUsage = "brush fmt [-w] FILE|-"
	opts, rest, err := getopts("fmt", args, "w")
	if err != nil {
		return a.usageError(err, fmtUsage)
	}
	write := false
	for _, opt := range opts {
		if opt.Option == 'w' {
			write = true
		}
	}
	if len(rest) != 1 {
		return a.usageError(errors.New("expected one source file"), fmtUsage)
	}
	if write && rest[0] == "-" {
		return a.usageError(errors.New("-w cannot rewrite stdin"), fmtUsage)
	}

	source, filename, err := a.readSource(rest[0])
	if err != nil {
		return a.reportError(err, false, nil)
	}
	formatted, err := runtime.New().Format(source, filename)
	if err != nil {
		return a.reportError(err, false, nil)
	}

	if write {
		if formatted == source {
			return exitOK
		}
		if err := os.WriteFile(filename, []byte(formatted), 0o644); err != nil {
			return a.reportError(ioError("cannot write file", filename, err), false, nil)
		}
		return exitOK
	}
	fmt.Fprint(a.stdout, formatted)
	return exitOK
}

func (a *app) cmdHelp(args []string) int {
	if len(args) == 0 {
		fmt.Fprint(a.stdout, help.QUICKREF)
		return exitOK
	}
	_, content, err := help.MatchTopic(args[0])
	if err != nil {
		fmt.Fprintln(a.stderr, err)
		return exitUsage
	}
	fmt.Fprint(a.stdout, content)
	return exitOK
}

func (a *app) cmdConfig(args []string) int {
	const configUsage = "brush config [-c config]"
	opts, rest, err := getopts("config", args, "c:")
	if err != nil {
		return a.usageError(err, configUsage)
	}
	if len(rest) != 0 {
		return a.usageError(errors.New("unexpected arguments"), configUsage)
	}
	var o options
	for _, opt := range opts {
		if opt.Option == 'c' {
			o.configPath = opt.Value
		}
	}

	cfg, err := a.loadConfig(&o)
	if err != nil {
		return a.reportError(err, false, nil)
	}
	out, err := cfg.YAML()
	if err != nil {
		return a.reportError(err, false, cfg)
	}
	source := cfg.Source
	if source == "" {
		source = "defaults"
	}
	fmt.Fprintf(a.stdout, "# source: %s\n%s", source, out)
	return exitOK
}

func (a *app) readSource(file string) (string, string, error) {
	if file == "-" {
		data, err := io.ReadAll(a.stdin)
		if err != nil {
			return "", "", ioError("cannot read", "<stdin>", err)
		}
		return string(data), "<stdin>", nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return "", "", ioError("cannot read file", file, err)
	}
	return string(data), file, nil
}

// fileError is an I/O failure reported as E_IO.
type fileError struct {
	msg  string
	path string
	err  error
}

func ioError(msg, path string, err error) error {
	return &fileError{msg: msg, path: path, err: err}
}

func (e *fileError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.msg, e.path, e.err)
}

func (e *fileError) Unwrap() error {
	return e.err
}

// reportError prints err as diagnostics and maps it to an exit code.
func (a *app) reportError(err error, pretty bool, cfg *config.Config) int {
	diags, code := classify(err)
	a.printDiagnostics(diags, pretty, cfg)
	return code
}

func classify(err error) ([]diagnostics.Diagnostic, int) {
	var diagErr *runtime.DiagnosticError
	var rtErr *evaluator.RuntimeError
	var cfgErr *config.Error
	var fErr *fileError

	switch {
	case errors.As(err, &diagErr):
		return diagErr.Diagnostics, exitParse
	case errors.As(err, &rtErr):
		diag := diagnostics.MakeDiag(rtErr.Code, rtErr.Message, rtErr.Span, "")
		return []diagnostics.Diagnostic{diag}, exitCodeForDiag(rtErr.Code)
	case errors.As(err, &cfgErr):
		return []diagnostics.Diagnostic{diagnostics.MakeDiag(diagnostics.EConfig, cfgErr.Error(), nil, "")}, exitConfig
	case errors.As(err, &fErr):
		return []diagnostics.Diagnostic{diagnostics.MakeDiag(diagnostics.EIO, fErr.Error(), nil, "")}, exitUsage
	default:
		return []diagnostics.Diagnostic{diagnostics.MakeDiag(diagnostics.EIO, err.Error(), nil, "")}, exitUsage
	}
}

func exitCodeForDiag(code string) int {
	switch code {
	case diagnostics.EBudget, diagnostics.EDepth, diagnostics.ECancelled:
		return exitBudget
	default:
		return exitRuntime
	}
}

// printDiagnostics writes JSON diagnostics, or coloured text when pretty.
func (a *app) printDiagnostics(diags []diagnostics.Diagnostic, pretty bool, cfg *config.Config) {
	if !pretty {
		fmt.Fprintln(a.stderr, diagnostics.FormatDiagnostics(diags, false))
		return
	}
	if cfg == nil {
		cfg = config.Default()
	}
	header := color.New(color.FgRed, color.Bold)
	hint := color.New(color.FgCyan)
	if colorEnabled(cfg) {
		header.EnableColor()
		hint.EnableColor()
	} else {
		header.DisableColor()
		hint.DisableColor()
	}

	for _, d := range diags {
		fmt.Fprintf(a.stderr, "%s %s\n  --> %s\n", header.Sprintf("error[%s]:", d.Code), d.Message, d.Location())
		if d.Hint != "" {
			fmt.Fprintf(a.stderr, "  %s %s\n", hint.Sprint("hint:"), d.Hint)
		}
	}
}

// formatDiagnostic is the single-line form used by the REPL.
func formatDiagnostic(d diagnostics.Diagnostic) string {
	if d.Span == nil {
		return fmt.Sprintf("error[%s]: %s", d.Code, d.Message)
	}
	return fmt.Sprintf("error[%s]: %s (%s)", d.Code, d.Message, strings.TrimPrefix(d.Location(), d.Span.File+":"))
}
