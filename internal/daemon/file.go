package daemon

import (
	"fmt"
	"os"
	"strings"
)

// readWholeFile backs the read_file RPC method with no line range given.
// Grounded on rpc_methods.py's read_file, which returns the full source.
func readWholeFile(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// readLineRange backs read_file (with a [start, end] range) and
// read_range, both 1-indexed and inclusive of end, matching
// rpc_methods.py's read_range slicing.
func readLineRange(path string, start, end int) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	lines := strings.Split(string(content), "\n")
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end {
		return "", fmt.Errorf("invalid line range [%d, %d] for %s (file has %d lines)", start, end, path, len(lines))
	}
	return strings.Join(lines[start-1:end], "\n"), nil
}
