package mutate

import (
	"bufio"
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"
)

// defaultIndentUnit matches formatter.py's INDENT_DETECTION default.
const defaultIndentUnit = "    "

// maxIndentSampleLines bounds how much of the file is sampled to detect
// its indentation style.
const maxIndentSampleLines = 100

// externalFormatters maps a language to the best-effort shell-out
// formatter §4.9 step 10 tries, matching formatter.py's FORMATTERS table.
var externalFormatters = map[string][]string{
	"python":     {"black", "--quiet", "-"},
	"javascript": {"prettier", "--parser", "babel"},
	"typescript": {"prettier", "--parser", "typescript"},
}

// DetectIndent samples the first maxIndentSampleLines lines of source
// (blank and unindented lines among them are skipped) and returns the dominant indent unit: a tab, or a run of 2 or 4
// spaces. Falls back to defaultIndentUnit when the sample is inconclusive.
func DetectIndent(source []byte) string {
	scanner := bufio.NewScanner(bytes.NewReader(source))
	tabLines, spaceLines := 0, 0
	widthCounts := map[int]int{}

	for lines := 0; scanner.Scan() && lines < maxIndentSampleLines; lines++ {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := leadingWhitespace(line)
		if indent == "" {
			continue
		}
		if strings.Contains(indent, "\t") {
			tabLines++
			continue
		}
		spaceLines++
		widthCounts[len(indent)]++
	}

	if tabLines > spaceLines {
		return "\t"
	}
	if spaceLines == 0 {
		return defaultIndentUnit
	}

	best, bestCount := 0, -1
	for width, count := range widthCounts {
		if count > bestCount {
			best, bestCount = width, count
		}
	}
	switch {
	case best >= 4:
		return "    "
	case best >= 2:
		return "  "
	default:
		return defaultIndentUnit
	}
}

// ReindentBlock reindents a code block to targetLevel units of
// indentUnit, preserving each line's indentation relative to the block's
// own minimum. Grounded on formatter.py's format_code_block.
func ReindentBlock(code string, targetLevel int, indentUnit string) string {
	lines := strings.Split(code, "\n")

	minIndent := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		n := len(leadingWhitespace(line))
		if minIndent == -1 || n < minIndent {
			minIndent = n
		}
	}
	if minIndent == -1 {
		minIndent = 0
	}

	unitLen := len(indentUnit)
	if unitLen == 0 {
		unitLen = len(defaultIndentUnit)
	}

	out := make([]string, len(lines))
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			out[i] = ""
			continue
		}
		indent := leadingWhitespace(line)
		relLevel := (len(indent) - minIndent) / unitLen
		level := targetLevel + relLevel
		if level < 0 {
			level = 0
		}
		out[i] = strings.Repeat(indentUnit, level) + strings.TrimLeft(line, " \t")
	}
	return strings.Join(out, "\n")
}

func leadingWhitespace(line string) string {
	i := 0
	for i < len(line) && (line[i] == ' ' || line[i] == '\t') {
		i++
	}
	return line[:i]
}

// FormatFile best-effort shells out to the configured external formatter
// for language (§4.9 step 10). A missing binary or unconfigured language
// is not an error — formatting is a convenience, not a requirement.
// customCmd overrides the built-in table when non-empty.
func FormatFile(ctx context.Context, path, language, customCmd string) error {
	var args []string
	if customCmd != "" {
		args = append(strings.Fields(customCmd), path)
	} else if cfg, ok := externalFormatters[language]; ok {
		args = append(append([]string{}, cfg...), path)
	} else {
		return nil
	}

	if _, err := exec.LookPath(args[0]); err != nil {
		return nil
	}

	runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(runCtx, args[0], args[1:]...)
	return cmd.Run()
}
