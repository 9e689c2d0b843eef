package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// DetectBuildArtifactDirs inspects language build manifests at root and
// returns glob patterns for their generated-output directories, so the
// scanner excludes build artifacts without the user hand-listing them.
// Grounded on the teacher's build_artifact_detector.go, trimmed to the
// languages this module's parser adapters actually cover.
func DetectBuildArtifactDirs(root string) []string {
	var patterns []string
	patterns = append(patterns, detectNodeOutputs(root)...)
	patterns = append(patterns, detectRustOutputs(root)...)
	patterns = append(patterns, detectPythonOutputs(root)...)
	return patterns
}

func detectNodeOutputs(root string) []string {
	data, err := os.ReadFile(filepath.Join(root, "package.json"))
	if err != nil {
		return nil
	}
	var pkg map[string]any
	if json.Unmarshal(data, &pkg) != nil {
		return nil
	}
	patterns := []string{"**/dist/**", "**/build/**", "**/.next/**", "**/out/**"}
	return patterns
}

func detectRustOutputs(root string) []string {
	if _, err := os.Stat(filepath.Join(root, "Cargo.toml")); err != nil {
		return nil
	}
	return []string{"**/target/**"}
}

func detectPythonOutputs(root string) []string {
	found := false
	for _, name := range []string{"pyproject.toml", "setup.py"} {
		if _, err := os.Stat(filepath.Join(root, name)); err == nil {
			found = true
		}
	}
	if !found {
		return nil
	}
	if data, err := os.ReadFile(filepath.Join(root, "pyproject.toml")); err == nil {
		var doc map[string]any
		_ = toml.Unmarshal(data, &doc)
	}
	return []string{"**/__pycache__/**", "**/*.egg-info/**", "**/.eggs/**"}
}
