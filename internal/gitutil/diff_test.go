package gitutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseUnifiedDiffRangesSingleHunk(t *testing.T) {
	diff := []byte("diff --git a/foo.go b/foo.go\n--- a/foo.go\n+++ b/foo.go\n@@ -10,2 +10,4 @@\n+added1\n+added2\n line\n")
	ranges := ParseUnifiedDiffRanges(diff)
	require.Equal(t, []LineRange{{Start: 10, End: 13}}, ranges)
}

func TestParseUnifiedDiffRangesMultipleHunks(t *testing.T) {
	diff := []byte("@@ -1,1 +1,1 @@\n-old\n+new\n@@ -50 +52 @@\n-x\n+y\n")
	ranges := ParseUnifiedDiffRanges(diff)
	require.Equal(t, []LineRange{{Start: 1, End: 1}, {Start: 52, End: 52}}, ranges)
}

func TestParseUnifiedDiffRangesPureDeletion(t *testing.T) {
	diff := []byte("@@ -20,3 +19,0 @@\n-a\n-b\n-c\n")
	ranges := ParseUnifiedDiffRanges(diff)
	require.Equal(t, []LineRange{{Start: 19, End: 19}}, ranges)
}

func TestOverlapsDetectsIntersection(t *testing.T) {
	rs := []LineRange{{Start: 10, End: 20}, {Start: 40, End: 50}}
	require.True(t, Overlaps(rs, 15, 25))
	require.True(t, Overlaps(rs, 5, 10))
	require.False(t, Overlaps(rs, 21, 39))
}
