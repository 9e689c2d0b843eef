package mutate

import (
	"path/filepath"
	"strings"

	"github.com/proxikal/cerberus/internal/parser"
)

// ValidationResult is the outcome of the Four Pillars' pillars 2-3:
// syntax verification (hard failure) and semantic integrity
// (warning-only), matching validator.py's dry_run_validation contract.
type ValidationResult struct {
	OK       bool
	Errors   []string
	Warnings []string
}

// Validate re-parses modified against reg's adapter for path's extension
// and reports syntax errors. Semantic checks (undefined-symbol lookups
// against the store) are warning-only per §4.9 step 11 and spec.md §7 —
// validator.py's check_undefined_symbols is itself a documented
// placeholder in the original, so no Go equivalent is invented here
// beyond the hook point (Warnings stays empty until a caller supplies
// one).
func Validate(reg *parser.Registry, path string, modified []byte) ValidationResult {
	adapter := reg.For(path)
	if adapter == nil {
		// Unsupported language: nothing to check against, not a failure.
		return ValidationResult{OK: true}
	}

	ok, diagnostics := adapter.Validate(modified)
	if !ok {
		return ValidationResult{OK: false, Errors: diagnostics}
	}
	return ValidationResult{OK: true}
}

// DetectLanguage maps a file extension to the language key
// externalFormatters uses, matching validator.py's
// _detect_language / style_guard.py's _detect_language tables.
func DetectLanguage(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".py":
		return "python"
	case ".js", ".jsx", ".mjs", ".cjs":
		return "javascript"
	case ".ts", ".tsx":
		return "typescript"
	case ".go":
		return "go"
	default:
		return ""
	}
}
