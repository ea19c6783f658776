package evaluator

import "time"

// DefaultMaxCallDepth caps evaluation nesting when Limits.MaxCallDepth is zero.
const DefaultMaxCallDepth = 10000

// Limits bounds a single run. Zero values mean unlimited, except MaxCallDepth
// which falls back to DefaultMaxCallDepth.
type Limits struct {
	// MaxSteps caps the number of loop iterations plus user function calls.
	MaxSteps int64
	// MaxCallDepth caps evaluation nesting, including recursive user calls.
	MaxCallDepth int
	// Timeout is the wall-clock budget for the whole run.
	Timeout time.Duration
}

// BudgetTracker tracks resource consumption during execution.
type BudgetTracker struct {
	Steps     int64
	Calls     int64
	Depth     int
	MaxDepth  int
	StartNano int64
}
