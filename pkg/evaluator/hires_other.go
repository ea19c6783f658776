//go:build !windows

package evaluator

import "time"

var hiresEpoch = time.Now()

// hiresNow returns a high-resolution monotonic timestamp in nanoseconds.
func hiresNow() int64 {
	return time.Since(hiresEpoch).Nanoseconds()
}

// hiresSince returns the time elapsed since a hiresNow timestamp.
func hiresSince(startNano int64) time.Duration {
	return time.Duration(hiresNow() - startNano)
}
