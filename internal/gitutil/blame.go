package gitutil

import (
	"bufio"
	"bytes"
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/proxikal/cerberus/internal/cerrors"
)

// BlameLine is one line's attribution, parsed out of `git blame
// --line-porcelain`. Used by the blueprint churn overlay (C8) to compute
// edit frequency and last-author/last-modified metrics.
type BlameLine struct {
	Line      int
	Commit    string
	Author    string
	Timestamp time.Time
}

// Blame runs `git blame --line-porcelain` against the working-tree copy
// of path and returns one BlameLine per source line. Grounded on churn_analyzer.py's
// use of `git blame --line-porcelain`, parsed the same way: a header line
// starting with a 40-hex commit hash followed by the old/new line numbers
// and line count, then porcelain key-value metadata lines until the
// literal source line prefixed with a tab.
func (p *Provider) Blame(ctx context.Context, path string) ([]BlameLine, error) {
	cmd := exec.CommandContext(ctx, "git", "blame", "--line-porcelain", "--", path)
	cmd.Dir = p.repoRoot
	output, err := cmd.Output()
	if err != nil {
		return nil, cerrors.NewStoreError("git_blame", err)
	}
	return parseBlamePorcelain(output), nil
}

func parseBlamePorcelain(output []byte) []BlameLine {
	var lines []BlameLine
	scanner := bufio.NewScanner(bytes.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var cur BlameLine
	authorTime := int64(0)

	for scanner.Scan() {
		text := scanner.Text()
		switch {
		case strings.HasPrefix(text, "\t"):
			cur.Timestamp = time.Unix(authorTime, 0).UTC()
			lines = append(lines, cur)
			cur = BlameLine{}
		case isBlameHeader(text):
			fields := strings.Fields(text)
			cur.Commit = fields[0]
			if len(fields) >= 3 {
				if n, err := strconv.Atoi(fields[2]); err == nil {
					cur.Line = n
				}
			}
		case strings.HasPrefix(text, "author "):
			cur.Author = strings.TrimPrefix(text, "author ")
		case strings.HasPrefix(text, "author-time "):
			if n, err := strconv.ParseInt(strings.TrimPrefix(text, "author-time "), 10, 64); err == nil {
				authorTime = n
			}
		}
	}
	return lines
}

// isBlameHeader recognizes a porcelain header line: a 40-character hex
// commit hash followed by line-number fields, distinguishing it from
// metadata lines like "author ..." or "summary ...".
func isBlameHeader(text string) bool {
	fields := strings.Fields(text)
	if len(fields) < 3 || len(fields[0]) != 40 {
		return false
	}
	for _, c := range fields[0] {
		if !strings.ContainsRune("0123456789abcdef", c) {
			return false
		}
	}
	return true
}

// Show runs `git show ref:path` and returns the file's content at ref.
// Used by the blueprint diff overlay (C8) to reparse a file as it stood
// at an earlier commit and diff its symbol set against HEAD's.
func (p *Provider) Show(ctx context.Context, ref, path string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "show", ref+":"+path)
	cmd.Dir = p.repoRoot
	output, err := cmd.Output()
	if err != nil {
		return "", cerrors.NewStoreError("git_show", err)
	}
	return string(output), nil
}
