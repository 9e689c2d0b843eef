package mutate

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/proxikal/cerberus/internal/cerrors"
)

// maxDiffLines is the default truncation point for generated unified
// diffs, matching editor.py's generate_unified_diff default.
const maxDiffLines = 100

// Editor performs the splice/backup/atomic-write half of §4.9's
// pipeline (steps 4-9): it never decides whether an edit is allowed
// (that's guard.go) or whether the result is syntactically valid
// (that's validator.go) — only that a byte-range replacement lands on
// disk safely or not at all.
type Editor struct {
	BackupDir string
}

// NewEditor creates the backup directory (best-effort; a failure here
// surfaces on first CreateBackup instead of at construction) and returns
// an Editor rooted at backupDir.
func NewEditor(backupDir string) *Editor {
	_ = os.MkdirAll(backupDir, 0o755)
	return &Editor{BackupDir: backupDir}
}

// EditResult is what every mutation in this package returns: enough to
// drive the ledger, the undo stack, and the CLI/RPC diff-first response.
type EditResult struct {
	FilePath      string
	BackupPath    string
	OriginalContent []byte
	ModifiedContent []byte
	Diff          string
	LinesChanged  int
	LinesTotal    int
}

// fileState is the optimistic-lock fingerprint captured at read time and
// re-checked immediately before the write (§4.9 steps 4 and 7).
type fileState struct {
	modTime time.Time
	hash    string
}

func getFileState(path string) (fileState, error) {
	info, err := os.Stat(path)
	if err != nil {
		return fileState{}, cerrors.NewNotFoundError("file", path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return fileState{}, cerrors.NewNotFoundError("file", path)
	}
	sum := sha256.Sum256(content)
	return fileState{modTime: info.ModTime(), hash: hex.EncodeToString(sum[:])}, nil
}

func checkUnchanged(path string, expected fileState) error {
	current, err := getFileState(path)
	if err != nil {
		return err
	}
	if current.hash != expected.hash || !current.modTime.Equal(expected.modTime) {
		return cerrors.NewConflictError(path)
	}
	return nil
}

// CreateBackup copies path to BackupDir/{basename}.{timestamp}.backup,
// matching editor.py's create_backup naming scheme exactly.
func (e *Editor) CreateBackup(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", cerrors.NewNotFoundError("file", path)
	}
	timestamp := time.Now().Format("20060102_150405")
	backupPath := filepath.Join(e.BackupDir, fmt.Sprintf("%s.%s.backup", filepath.Base(path), timestamp))
	if err := os.WriteFile(backupPath, content, 0o644); err != nil {
		return "", cerrors.NewStoreError("create_backup", err)
	}
	return backupPath, nil
}

func restoreBackup(backupPath, targetPath string) error {
	content, err := os.ReadFile(backupPath)
	if err != nil {
		return cerrors.NewStoreError("restore_backup", err)
	}
	return os.WriteFile(targetPath, content, 0o644)
}

// atomicWrite writes content to a temp file in path's directory (same
// filesystem, so the final rename is atomic) and renames it over path.
func atomicWrite(path string, content []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return cerrors.NewStoreError("atomic_write_tempfile", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return cerrors.NewStoreError("atomic_write", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return cerrors.NewStoreError("atomic_write", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return cerrors.NewStoreError("atomic_write_rename", err)
	}
	return nil
}

func detectLineEnding(content []byte) string {
	if bytes.Contains(content, []byte("\r\n")) {
		return "\r\n"
	}
	return "\n"
}

func normalizeLineEndings(content []byte, ending string) []byte {
	normalized := bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	if ending == "\r\n" {
		normalized = bytes.ReplaceAll(normalized, []byte("\n"), []byte("\r\n"))
	}
	return normalized
}

var collapseBlankLines = regexp.MustCompile(`\n{3,}`)

// styleFixups applies §4.9 step 9's auto-fixes: strip trailing
// whitespace from every line, collapse 3+ blank lines down to 2, and
// ensure exactly one trailing newline. Grounded on style_guard.py's
// uncontroversial-only auto-fix policy, applied here to the whole
// modified region rather than per-changed-line for simplicity.
func styleFixups(content []byte) []byte {
	lines := bytes.Split(content, []byte("\n"))
	for i, line := range lines {
		lines[i] = bytes.TrimRight(line, " \t")
	}
	fixed := bytes.Join(lines, []byte("\n"))
	fixed = collapseBlankLines.ReplaceAll(fixed, []byte("\n\n"))
	fixed = bytes.TrimRight(fixed, "\n")
	fixed = append(fixed, '\n')
	return fixed
}

func countLines(content []byte) int {
	if len(content) == 0 {
		return 0
	}
	return bytes.Count(content, []byte("\n")) + 1
}

// splice performs the shared read-lock-backup-write sequence behind
// Replace/Insert/Delete: capture state, backup, build modifiedContent via
// build, re-check the lock, write atomically, restoring the backup on any
// write failure.
func (e *Editor) splice(ctx context.Context, path string, build func(original []byte) []byte) (EditResult, error) {
	original, err := os.ReadFile(path)
	if err != nil {
		return EditResult{}, cerrors.NewNotFoundError("file", path)
	}

	state, err := getFileState(path)
	if err != nil {
		return EditResult{}, err
	}

	backupPath, err := e.CreateBackup(path)
	if err != nil {
		return EditResult{}, err
	}

	lineEnding := detectLineEnding(original)
	modified := build(original)
	modified = normalizeLineEndings(modified, lineEnding)
	modified = styleFixups(modified)

	if err := checkUnchanged(path, state); err != nil {
		return EditResult{}, err
	}

	if err := atomicWrite(path, modified); err != nil {
		_ = restoreBackup(backupPath, path)
		return EditResult{}, err
	}

	return EditResult{
		FilePath:        path,
		BackupPath:      backupPath,
		OriginalContent: original,
		ModifiedContent: modified,
		Diff:            GenerateUnifiedDiff(path, original, modified, maxDiffLines),
		LinesChanged:    countChangedLines(original, modified),
		LinesTotal:      countLines(modified),
	}, nil
}

// Replace splices new code into loc's byte range.
func (e *Editor) Replace(ctx context.Context, loc Location, newCode string) (EditResult, error) {
	return e.splice(ctx, loc.FilePath, func(original []byte) []byte {
		var buf bytes.Buffer
		buf.Write(original[:loc.StartByte])
		buf.WriteString(newCode)
		buf.Write(original[loc.EndByte:])
		return buf.Bytes()
	})
}

// Insert splices newCode in at byteOffset with no deletion.
func (e *Editor) Insert(ctx context.Context, path string, byteOffset int, newCode string) (EditResult, error) {
	return e.splice(ctx, path, func(original []byte) []byte {
		var buf bytes.Buffer
		buf.Write(original[:byteOffset])
		buf.WriteString(newCode)
		buf.Write(original[byteOffset:])
		return buf.Bytes()
	})
}

// Delete removes loc's byte range and collapses the resulting double
// blank line, matching editor.py's delete_symbol.
func (e *Editor) Delete(ctx context.Context, loc Location) (EditResult, error) {
	return e.splice(ctx, loc.FilePath, func(original []byte) []byte {
		var buf bytes.Buffer
		buf.Write(original[:loc.StartByte])
		buf.Write(original[loc.EndByte:])
		return collapseDoubleBlank(buf.Bytes())
	})
}

func collapseDoubleBlank(content []byte) []byte {
	lines := bytes.Split(content, []byte("\n"))
	var out [][]byte
	prevBlank := false
	for _, line := range lines {
		blank := len(bytes.TrimSpace(line)) == 0
		if blank && prevBlank {
			continue
		}
		out = append(out, line)
		prevBlank = blank
	}
	return bytes.Join(out, []byte("\n"))
}

func countChangedLines(original, modified []byte) int {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(original)),
		B:        difflib.SplitLines(string(modified)),
		FromFile: "a",
		ToFile:   "b",
		Context:  0,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return 0
	}
	changed := 0
	for _, line := range bytes.Split([]byte(text), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		if (line[0] == '+' || line[0] == '-') && !bytes.HasPrefix(line, []byte("+++")) && !bytes.HasPrefix(line, []byte("---")) {
			changed++
		}
	}
	return changed
}

// GenerateUnifiedDiff renders a standard unified diff via
// github.com/pmezard/go-difflib (already pulled in transitively for
// testify's assertion diffs; promoted here to a direct, domain-facing
// use), then truncates it per editor.py's _truncate_large_diff policy:
// headers and every deleted line are always kept, added lines are
// truncated first since they're the lower-risk half of a change.
func GenerateUnifiedDiff(path string, original, modified []byte, maxLines int) string {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(original)),
		B:        difflib.SplitLines(string(modified)),
		FromFile: "a/" + path,
		ToFile:   "b/" + path,
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return ""
	}
	lines := splitKeepingLines(text)
	if len(lines) <= maxLines {
		return text
	}
	return truncateDiff(lines, maxLines)
}

func splitKeepingLines(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			out = append(out, text[start:i+1])
			start = i + 1
		}
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}

func truncateDiff(lines []string, maxLines int) string {
	var header, deleted, context, added []string
	for _, line := range lines {
		switch {
		case hasAnyPrefix(line, "---", "+++", "@@"):
			header = append(header, line)
		case len(line) > 0 && line[0] == '-':
			deleted = append(deleted, line)
		case len(line) > 0 && line[0] == '+':
			added = append(added, line)
		default:
			context = append(context, line)
		}
	}

	var out []string
	out = append(out, header...)
	out = append(out, deleted...)
	used := len(header) + len(deleted)

	remaining := maxLines - used
	if remaining > 0 {
		n := remaining
		if n > len(context) {
			n = len(context)
		}
		out = append(out, context[:n]...)
		used += n
		remaining = maxLines - used
	}

	if remaining > 0 {
		n := remaining - 1
		if n < 0 {
			n = 0
		}
		if n > len(added) {
			n = len(added)
		}
		out = append(out, added[:n]...)
		if len(added) > n {
			out = append(out, fmt.Sprintf("\n[... %d added lines truncated for brevity ...]\n", len(added)-n))
		}
	} else if len(added) > 0 {
		out = append(out, fmt.Sprintf("\n[... %d added lines truncated for brevity ...]\n", len(added)))
	}

	result := ""
	for _, l := range out {
		result += l
	}
	return result
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if len(s) >= len(p) && s[:len(p)] == p {
			return true
		}
	}
	return false
}
