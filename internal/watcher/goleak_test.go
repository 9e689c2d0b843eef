package watcher

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain verifies the watcher's event-processing goroutine and the
// hot-set regeneration thread always exit on Stop, per SPEC_FULL.md
// §A.4's requirement to cover watcher shutdown with goleak.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
