package gitutil

import (
	"bufio"
	"bytes"
	"context"
	"regexp"
	"strconv"
)

// LineRange is an inclusive [Start, End] range in the new version of a file.
type LineRange struct {
	Start int
	End   int
}

// ChangeSet is the parsed diff between a prior commit and the working
// tree, per §4.6 step 2: added_files, modified_files with line ranges,
// deleted_files. Untracked files are folded into Added.
type ChangeSet struct {
	Added    []string
	Modified []ModifiedFile
	Deleted  []string
}

// ModifiedFile pairs a changed path with the line ranges its diff hunks
// touched in the new file version.
type ModifiedFile struct {
	Path   string
	Ranges []LineRange
}

// hunkHeader matches unified diff hunk headers: "@@ -a,b +c,d @@" (b/d
// default to 1 when omitted, per the diff format).
var hunkHeader = regexp.MustCompile(`^@@ -\d+(?:,\d+)? \+(\d+)(?:,(\d+))? @@`)

// ParseUnifiedDiffRanges extracts the new-file line ranges every hunk in
// a unified diff touches. A hunk with a zero-length new side (a pure
// deletion) still anchors on the insertion point so the deleted region's
// neighborhood counts as affected.
func ParseUnifiedDiffRanges(diff []byte) []LineRange {
	var ranges []LineRange
	scanner := bufio.NewScanner(bytes.NewReader(diff))
	for scanner.Scan() {
		m := hunkHeader.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		start, _ := strconv.Atoi(m[1])
		count := 1
		if m[2] != "" {
			count, _ = strconv.Atoi(m[2])
		}
		if count == 0 {
			ranges = append(ranges, LineRange{Start: start, End: start})
			continue
		}
		ranges = append(ranges, LineRange{Start: start, End: start + count - 1})
	}
	return ranges
}

// DiffAgainst computes the change set between baseCommit (HEAD if "" is
// passed as the stored commit is unknown) and the current working tree.
// Per §4.6 step 2, renames are treated as a delete + add (--no-renames).
func (p *Provider) DiffAgainst(ctx context.Context, baseCommit string) (ChangeSet, error) {
	lines, err := p.nameStatus(ctx, baseCommit)
	if err != nil {
		return ChangeSet{}, err
	}

	var cs ChangeSet
	for _, l := range lines {
		switch l.status[0] {
		case 'A':
			cs.Added = append(cs.Added, l.path)
		case 'D':
			cs.Deleted = append(cs.Deleted, l.path)
		default: // M, T, etc.
			ranges, err := p.changedRanges(ctx, baseCommit, l.path)
			if err != nil {
				return ChangeSet{}, err
			}
			cs.Modified = append(cs.Modified, ModifiedFile{Path: l.path, Ranges: ranges})
		}
	}

	untracked, err := p.untrackedFiles(ctx)
	if err != nil {
		return ChangeSet{}, err
	}
	cs.Added = append(cs.Added, untracked...)

	return cs, nil
}

// Overlaps reports whether [start, end] intersects any range in rs.
func Overlaps(rs []LineRange, start, end int) bool {
	for _, r := range rs {
		if start <= r.End && end >= r.Start {
			return true
		}
	}
	return false
}
