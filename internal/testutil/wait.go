// Package testutil holds polling helpers for tests that assert on
// asynchronous filesystem and monitor behavior.
package testutil

import (
	"testing"
	"time"
)

// WaitFor polls cond until it returns true or the timeout expires.
// Returns the condition's final value.
func WaitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}
