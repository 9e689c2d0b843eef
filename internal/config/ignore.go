package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Matcher decides whether a repo-relative path should be skipped by the
// scanner (C2) or the watcher (C11). Grounded on the teacher's use of
// doublestar.Match for glob-pattern matching in its filesystem watcher.
type Matcher struct {
	patterns []string
}

// NewMatcher builds a Matcher from the exclude patterns plus, when
// respectGitignore is set, the patterns of root's own .gitignore, plus
// the built-in default excludes. Nested .gitignore files below root are
// not read.
func NewMatcher(root string, exclude []string, respectGitignore bool) *Matcher {
	m := &Matcher{patterns: append([]string{}, exclude...)}
	if respectGitignore {
		m.patterns = append(m.patterns, readGitignore(root)...)
	}
	m.patterns = append(m.patterns, defaultExcludes()...)
	return m
}

// Excluded reports whether relPath (slash-separated, relative to root)
// matches any exclude pattern.
func (m *Matcher) Excluded(relPath string) bool {
	relPath = filepath.ToSlash(relPath)
	for _, pattern := range m.patterns {
		if matched, _ := doublestar.Match(pattern, relPath); matched {
			return true
		}
		// Also match as a path-prefix directory exclusion, e.g. "node_modules"
		// should exclude "node_modules/x/y.go" too.
		if matched, _ := doublestar.Match(pattern+"/**", relPath); matched {
			return true
		}
	}
	return false
}

func readGitignore(root string) []string {
	f, err := os.Open(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "/")
		line = strings.TrimSuffix(line, "/")
		patterns = append(patterns, line, "**/"+line)
	}
	return patterns
}

func defaultExcludes() []string {
	return []string{
		".git", "**/.git/**",
		"node_modules", "**/node_modules/**",
		"vendor", "**/vendor/**",
		"__pycache__", "**/__pycache__/**",
		".venv", "**/.venv/**",
		"dist", "**/dist/**",
		"build", "**/build/**",
		".cerberus", "**/.cerberus/**",
	}
}
