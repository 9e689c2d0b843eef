// Package scanner implements the repository walk of spec.md's §4.2 (C2):
// the sequence of eligible files. The walk gathers every eligible entry
// into one sorted slice before handing any out, so memory grows with the
// number of eligible files. Grounded on the teacher's internal/indexing FileScanner — its
// shouldProcessFile/getFilePriority filtering pipeline — rewritten here
// as a channel producer instead of a push-into-MasterIndex consumer, and
// delegating glob matching to internal/config.Matcher instead of the
// teacher's hand-rolled matchDoubleGlob.
package scanner

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/proxikal/cerberus/internal/config"
)

// Entry is one file the scanner has decided is eligible for parsing.
type Entry struct {
	Path    string // relative to Root, forward-slash separated
	AbsPath string
	Size    int64
	ModTime int64 // unix nanos, for the builder's mtime-skip comparison
}

// Scanner walks a project root honoring the ignore matcher and a maximum
// file size, yielding Entry values in deterministic (sorted) order so
// incremental runs produce stable diffs.
type Scanner struct {
	Root        string
	Matcher     *config.Matcher
	MaxFileSize int64
}

// New builds a Scanner bound to root. The Matcher and MaxFileSize fields
// may be set afterward; zero-value Matcher means nothing is excluded and
// zero MaxFileSize means no limit, matching config.Default's explicit
// values rather than silently picking different defaults here.
func New(root string, matcher *config.Matcher, maxFileSize int64) *Scanner {
	return &Scanner{Root: root, Matcher: matcher, MaxFileSize: maxFileSize}
}

// Walk sends eligible files onto out in sorted order, closing it when
// done or when ctx is cancelled. It runs Collect first, so nothing is sent
// until the whole walk has finished and every entry is held in memory at
// once. Directories excluded by the matcher are pruned without descending
// into them, so huge ignored trees like node_modules or .git are not read.
func (s *Scanner) Walk(ctx context.Context, out chan<- Entry) error {
	defer close(out)

	entries, err := s.Collect(ctx)
	if err != nil {
		return err
	}
	for _, e := range entries {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- e:
		}
	}
	return nil
}

// Collect walks synchronously and returns every eligible entry sorted by
// relative path. Used by callers (full reindex, tests) that want the
// whole set at once rather than streaming.
func (s *Scanner) Collect(ctx context.Context) ([]Entry, error) {
	var entries []Entry

	err := filepath.WalkDir(s.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entry: skip, don't abort the whole walk
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		rel, relErr := filepath.Rel(s.Root, path)
		if relErr != nil {
			return nil
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if s.excluded(rel) {
				return filepath.SkipDir
			}
			return nil
		}

		if s.excluded(rel) {
			return nil
		}

		info, statErr := d.Info()
		if statErr != nil {
			return nil
		}
		if s.MaxFileSize > 0 && info.Size() > s.MaxFileSize {
			return nil
		}
		if looksBinary(path, info.Size()) {
			return nil
		}

		entries = append(entries, Entry{
			Path:    rel,
			AbsPath: path,
			Size:    info.Size(),
			ModTime: info.ModTime().UnixNano(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

func (s *Scanner) excluded(rel string) bool {
	if s.Matcher == nil {
		return false
	}
	return s.Matcher.Excluded(rel)
}

// binaryPreCheckBytes mirrors the teacher's magic-number pre-check size:
// only the first chunk of a file is read, never the whole thing.
const binaryPreCheckBytes = 512

// looksBinary checks the first binaryPreCheckBytes bytes of the file for
// a NUL byte (an unopenable file also counts as binary) — avoids loading large
// binary assets (images, archives) into the parse pipeline.
func looksBinary(path string, size int64) bool {
	if size == 0 {
		return false
	}
	f, err := os.Open(path)
	if err != nil {
		return true
	}
	defer f.Close()

	buf := make([]byte, binaryPreCheckBytes)
	n, _ := f.Read(buf)
	buf = buf[:n]

	for _, b := range buf {
		if b == 0 {
			return true
		}
	}
	return false
}
