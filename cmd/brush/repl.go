package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/thomasrohde/brush/pkg/evaluator"
	"github.com/thomasrohde/brush/pkg/help"
	"github.com/thomasrohde/brush/pkg/parser"
	"github.com/thomasrohde/brush/pkg/runtime"
)

const (
	promptMain  = "brush> "
	promptCont  = "  ...> "
	historyFile = ".brush_history"
)

// lineReader is the part of *liner.State the REPL loop needs.
type lineReader interface {
	Prompt(prompt string) (string, error)
}

// interruptContext returns a context cancelled by Ctrl-C.
func interruptContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt)
}

func (a *app) cmdRepl(args []string) int {
	const replUsage = "brush repl [-c config] [-s steps] [-d depth] [-t ms]"
	opts, rest, err := getopts("repl", args, "c:s:d:t:")
	if err != nil {
		return a.usageError(err, replUsage)
	}
	if len(rest) != 0 {
		return a.usageError(errors.New("unexpected arguments"), replUsage)
	}
	var o options
	for _, opt := range opts {
		switch opt.Option {
		case 'c':
			o.configPath = opt.Value
		case 's':
			o.steps = opt.Value
		case 'd':
			o.depth = opt.Value
		case 't':
			o.timeout = opt.Value
		}
	}
	cfg, err := a.loadConfig(&o)
	if err != nil {
		return a.reportError(err, true, nil)
	}

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	session := runtime.New(runtime.WithConfig(cfg)).NewSession()

	// The prompt runs in raw mode, so SIGINT only arrives while an input
	// is being evaluated.
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt)
	defer signal.Stop(sigc)
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-sigc:
				session.Cancel()
			case <-done:
				return
			}
		}
	}()

	fmt.Fprintf(a.stdout, "brush %s. Type :help for commands, :quit to exit.\n", help.Version)
	a.replLoop(ln, session, func(entry string) { ln.AppendHistory(entry) })
	return exitOK
}

// replLoop reads and evaluates inputs until EOF or :quit.
func (a *app) replLoop(ln lineReader, session *runtime.Session, remember func(string)) {
	for {
		code, ok := readByParseProbe(ln, promptMain, promptCont)
		if !ok {
			fmt.Fprintln(a.stdout)
			return
		}
		trimmed := strings.TrimSpace(code)
		if trimmed == "" {
			continue
		}
		if remember != nil {
			remember(strings.ReplaceAll(code, "\n", " "))
		}

		if strings.HasPrefix(trimmed, ":") {
			if quit := a.replCommand(trimmed, session); quit {
				return
			}
			continue
		}

		res, err := session.Eval(context.Background(), code)
		if res != nil && len(res.Commands) > 0 {
			fmt.Fprintf(a.stdout, "; %d painted\n", len(res.Commands))
		}
		if err != nil {
			diags, _ := classify(err)
			for _, d := range diags {
				fmt.Fprintln(a.stderr, formatDiagnostic(d))
			}
			continue
		}
		fmt.Fprintln(a.stdout, evaluator.FormatValue(res.Value))
	}
}

func (a *app) replCommand(cmd string, session *runtime.Session) bool {
	switch strings.ToLower(cmd) {
	case ":quit", ":q":
		return true
	case ":names":
		for _, name := range session.Names() {
			v, _ := session.Lookup(name)
			fmt.Fprintf(a.stdout, "%s = %s\n", name, evaluator.FormatValue(v))
		}
	case ":reset":
		session.Reset()
		fmt.Fprintln(a.stdout, "bindings cleared")
	case ":help":
		fmt.Fprint(a.stdout, help.Topics["repl"])
	default:
		fmt.Fprintln(a.stdout, "unknown command. Type :help for commands.")
	}
	return false
}

// readByParseProbe keeps reading continuation lines while the buffered
// input is an unfinished form.
func readByParseProbe(ln lineReader, prompt, cont string) (string, bool) {
	var b strings.Builder

	for {
		var line string
		var err error
		if b.Len() == 0 {
			line, err = ln.Prompt(prompt)
		} else {
			line, err = ln.Prompt(cont)
		}
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if errors.Is(err, liner.ErrPromptAborted) {
			// Ctrl-C at the prompt discards the pending input.
			b.Reset()
			continue
		}
		if err != nil {
			return "", false
		}

		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)

		src := b.String()
		_, perr := parser.ParseProgram(src, "<repl>", parser.Options{})
		if perr != nil && parser.IsIncomplete(perr) {
			continue
		}
		return src, true
	}
}
