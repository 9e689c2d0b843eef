// Package gitutil wraps the subset of git plumbing the incremental
// updater (C6) and blueprint churn overlay (C8) need: locating the repo
// root, finding the current commit, and diffing a prior commit against
// the working tree. Grounded on the teacher's internal/git/provider.go
// (Provider.repoRoot, exec.CommandContext(ctx, "git", ...) with cmd.Dir
// set, name-status/numstat parsing) — trimmed to the commands C6/C8
// actually call; the teacher's staged/WIP/range scope selection and
// contributor/ownership analytics are out of scope here.
package gitutil

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/proxikal/cerberus/internal/cerrors"
)

// Provider wraps git commands rooted at repoRoot.
type Provider struct {
	repoRoot string
}

// NewProvider resolves root to the enclosing git repository's top level.
// Returns an error wrapped as cerrors.StoreError when root isn't inside a
// git working tree (callers treat that as "no incremental updates
// available", not a fatal condition).
func NewProvider(root string) (*Provider, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, cerrors.NewStoreError("git_provider", err)
	}

	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	cmd.Dir = absRoot
	output, err := cmd.Output()
	if err != nil {
		return nil, cerrors.NewStoreError("git_provider", fmt.Errorf("not a git repository: %s", absRoot))
	}

	return &Provider{repoRoot: strings.TrimSpace(string(output))}, nil
}

// Root returns the repository's top-level directory.
func (p *Provider) Root() string { return p.repoRoot }

// HeadCommit returns the full hash of HEAD, or "" if the repository has
// no commits yet (a fresh `git init` with no history).
func (p *Provider) HeadCommit(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "HEAD")
	cmd.Dir = p.repoRoot
	output, err := cmd.Output()
	if err != nil {
		return "", nil
	}
	return strings.TrimSpace(string(output)), nil
}

// nameStatus runs `git diff --name-status` between baseRef (HEAD when
// baseRef is "") and the working tree and parses its output.
func (p *Provider) nameStatus(ctx context.Context, baseRef string) ([]statusLine, error) {
	args := []string{"diff", "--name-status", "--no-renames"}
	if baseRef != "" {
		args = append(args, baseRef)
	} else {
		args = append(args, "HEAD")
	}

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = p.repoRoot
	output, err := cmd.Output()
	if err != nil {
		return nil, cerrors.NewStoreError("git_diff", err)
	}
	return parseNameStatus(output), nil
}

type statusLine struct {
	status string
	path   string
}

func parseNameStatus(output []byte) []statusLine {
	var out []statusLine
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}
		out = append(out, statusLine{status: parts[0], path: parts[1]})
	}
	return out
}

// untrackedFiles lists files git doesn't track yet, honoring .gitignore —
// these count as "added" per §4.6's "include untracked files as added".
func (p *Provider) untrackedFiles(ctx context.Context) ([]string, error) {
	cmd := exec.CommandContext(ctx, "git", "ls-files", "--others", "--exclude-standard")
	cmd.Dir = p.repoRoot
	output, err := cmd.Output()
	if err != nil {
		return nil, cerrors.NewStoreError("git_ls_files", err)
	}
	var files []string
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			files = append(files, line)
		}
	}
	return files, scanner.Err()
}

// TotalTrackedFiles returns the count of files git currently tracks, used
// by the updater's "affected ratio" full-rebuild recommendation.
func (p *Provider) TotalTrackedFiles(ctx context.Context) (int, error) {
	cmd := exec.CommandContext(ctx, "git", "ls-files")
	cmd.Dir = p.repoRoot
	output, err := cmd.Output()
	if err != nil {
		return 0, cerrors.NewStoreError("git_ls_files", err)
	}
	count := 0
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		if scanner.Text() != "" {
			count++
		}
	}
	return count, scanner.Err()
}

// changedRanges runs `git diff baseRef -- path` and parses the unified
// diff hunks into the new-file line ranges they touch.
func (p *Provider) changedRanges(ctx context.Context, baseRef, path string) ([]LineRange, error) {
	args := []string{"diff", "--unified=0"}
	if baseRef != "" {
		args = append(args, baseRef)
	}
	args = append(args, "--", path)

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = p.repoRoot
	output, err := cmd.Output()
	if err != nil {
		return nil, cerrors.NewStoreError("git_diff", err)
	}
	return ParseUnifiedDiffRanges(output), nil
}
