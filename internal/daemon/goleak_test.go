package daemon

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain verifies the session reaper's background goroutine always
// exits on Shutdown, matching SPEC_FULL.md §A.4's requirement to cover
// watcher/session-reaper shutdown with goleak.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
