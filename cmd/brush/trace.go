package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/thomasrohde/brush/pkg/evaluator"
)

// TraceSummary aggregates an NDJSON trace written by `brush run -T`.
type TraceSummary struct {
	RunID          string         `json:"runId"`
	TotalEvents    int            `json:"totalEvents"`
	Forms          int            `json:"forms"`
	Calls          int            `json:"calls"`
	Loops          int            `json:"loops"`
	Iterations     int            `json:"iterations"`
	Paints         int            `json:"paints"`
	BudgetExceeded int            `json:"budgetExceeded"`
	EventsByType   map[string]int `json:"eventsByType"`
	OK             *bool          `json:"ok,omitempty"`
	Steps          int            `json:"steps"`
	StartTime      string         `json:"startTime,omitempty"`
	EndTime        string         `json:"endTime,omitempty"`
	DurationMs     float64        `json:"durationMs"`
	InvalidLines   int            `json:"invalidLines,omitempty"`
}

func (a *app) cmdTrace(args []string) int {
	const traceUsage = "brush trace [-x] FILE"
	opts, rest, err := getopts("trace", args, "x")
	if err != nil {
		return a.usageError(err, traceUsage)
	}
	textOutput := false
	for _, opt := range opts {
		if opt.Option == 'x' {
			textOutput = true
		}
	}
	if len(rest) != 1 {
		return a.usageError(errors.New("expected one trace file"), traceUsage)
	}

	f, err := os.Open(rest[0])
	if err != nil {
		return a.reportError(ioError("cannot read file", rest[0], err), false, nil)
	}
	defer f.Close()

	summary, err := computeTraceSummary(f)
	if err != nil {
		return a.reportError(ioError("cannot read file", rest[0], err), false, nil)
	}

	if textOutput {
		printTraceSummaryText(a.stdout, summary)
		return exitOK
	}
	b, _ := json.Marshal(summary)
	fmt.Fprintln(a.stdout, string(b))
	return exitOK
}

func computeTraceSummary(r io.Reader) (*TraceSummary, error) {
	summary := &TraceSummary{EventsByType: make(map[string]int)}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var event evaluator.TraceEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			summary.InvalidLines++
			continue
		}

		summary.TotalEvents++
		summary.EventsByType[string(event.Event)]++
		if summary.RunID == "" {
			summary.RunID = event.RunID
		}

		switch event.Event {
		case evaluator.TraceRunStart:
			if summary.StartTime == "" {
				summary.StartTime = event.Timestamp
			}
		case evaluator.TraceRunEnd:
			summary.EndTime = event.Timestamp
			if ok, found := event.Data["ok"].(bool); found {
				summary.OK = &ok
			}
			if steps, found := event.Data["steps"].(float64); found {
				summary.Steps = int(steps)
			}
		case evaluator.TraceFormStart:
			summary.Forms++
		case evaluator.TraceCallStart:
			summary.Calls++
		case evaluator.TraceLoopStart:
			summary.Loops++
		case evaluator.TraceLoopEnd:
			if n, found := event.Data["iterations"].(float64); found {
				summary.Iterations += int(n)
			}
		case evaluator.TracePaint:
			summary.Paints++
		case evaluator.TraceBudgetExceeded:
			summary.BudgetExceeded++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if summary.StartTime != "" && summary.EndTime != "" {
		start, err1 := time.Parse(time.RFC3339Nano, summary.StartTime)
		end, err2 := time.Parse(time.RFC3339Nano, summary.EndTime)
		if err1 == nil && err2 == nil {
			summary.DurationMs = float64(end.Sub(start).Microseconds()) / 1000
		}
	}
	return summary, nil
}

func printTraceSummaryText(w io.Writer, s *TraceSummary) {
	fmt.Fprintf(w, "Run: %s\n", s.RunID)
	fmt.Fprintf(w, "Events: %d\n", s.TotalEvents)
	fmt.Fprintf(w, "Forms: %d\n", s.Forms)
	fmt.Fprintf(w, "Calls: %d\n", s.Calls)
	fmt.Fprintf(w, "Loops: %d (%d iterations)\n", s.Loops, s.Iterations)
	fmt.Fprintf(w, "Paints: %d\n", s.Paints)
	if s.BudgetExceeded > 0 {
		fmt.Fprintf(w, "Budget exceeded: %d\n", s.BudgetExceeded)
	}
	if s.OK != nil {
		fmt.Fprintf(w, "OK: %t\n", *s.OK)
	}
	fmt.Fprintf(w, "Steps: %d\n", s.Steps)
	if s.DurationMs > 0 {
		fmt.Fprintf(w, "Duration: %.3fms\n", s.DurationMs)
	}

	types := make([]string, 0, len(s.EventsByType))
	for t := range s.EventsByType {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Fprintf(w, "  %s: %d\n", t, s.EventsByType[t])
	}
}
