// Package cerrors implements the error taxonomy of spec.md §7: a set of
// recoverable-vs-surfaced error kinds rather than a flat error type, so
// callers can type-switch on what happened instead of parsing messages.
package cerrors

import (
	"fmt"
	"time"
)

// ParseError means a file could not be tokenized. Always recovered locally:
// parser.Registry.Parse returns an empty record carrying it as the
// Diagnostic, and the builder skips such a file, logs the diagnostic, and
// writes no rows for it.
type ParseError struct {
	FilePath  string
	Cause     error
	Timestamp time.Time
}

func NewParseError(filePath string, cause error) *ParseError {
	return &ParseError{FilePath: filePath, Cause: cause, Timestamp: time.Now()}
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.FilePath, e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// StoreError means a transactional write failed; the transaction is rolled
// back and the error is surfaced to the caller.
type StoreError struct {
	Operation string
	Cause     error
}

func NewStoreError(op string, cause error) *StoreError {
	return &StoreError{Operation: op, Cause: cause}
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Operation, e.Cause)
}

func (e *StoreError) Unwrap() error { return e.Cause }

// NotFoundError means a symbol/file/method is unknown. Surfaced as a
// structured result, not panicked or logged as a failure.
type NotFoundError struct {
	Kind string // "symbol", "file", "method"
	Key  string
}

func NewNotFoundError(kind, key string) *NotFoundError {
	return &NotFoundError{Kind: kind, Key: key}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Key)
}

// ConflictError means an optimistic lock failed: the file changed between
// a mutation's read and its write. No backup restore is needed because no
// write ever happened.
type ConflictError struct {
	FilePath string
}

func NewConflictError(filePath string) *ConflictError {
	return &ConflictError{FilePath: filePath}
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s was modified externally during mutation", e.FilePath)
}

// ValidationError means the post-edit syntax check failed. The mutation
// engine restores from backup before returning this.
type ValidationError struct {
	FilePath string
	Issues   []string
}

func NewValidationError(filePath string, issues []string) *ValidationError {
	return &ValidationError{FilePath: filePath, Issues: issues}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s failed syntax validation: %v", e.FilePath, e.Issues)
}

// GuardError means the reference guard blocked a destructive edit. Carries
// the referents that would have been broken; --force overrides it.
type GuardError struct {
	Symbol     string
	Referents  []string
	HighRisk   bool
}

func NewGuardError(symbol string, referents []string, highRisk bool) *GuardError {
	return &GuardError{Symbol: symbol, Referents: referents, HighRisk: highRisk}
}

func (e *GuardError) Error() string {
	if e.HighRisk {
		return fmt.Sprintf("SAFETY BLOCK: %s is HIGH RISK stability; refusing without --force", e.Symbol)
	}
	return fmt.Sprintf("SAFETY BLOCK: %s is referenced from %v; refusing without --force", e.Symbol, e.Referents)
}

// IntegrityError means the verifier found split-store divergence
// (orphaned rows between the relational and vector stores). Surfaced,
// never auto-repaired.
type IntegrityError struct {
	Detail string
}

func NewIntegrityError(detail string) *IntegrityError {
	return &IntegrityError{Detail: detail}
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("index integrity error: %s", e.Detail)
}

// ResolutionError means a best-effort resolution pass could not resolve an
// import or type. Never fatal: the caller records it at low confidence or
// leaves the field NULL.
type ResolutionError struct {
	Subject string
	Reason  string
}

func NewResolutionError(subject, reason string) *ResolutionError {
	return &ResolutionError{Subject: subject, Reason: reason}
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("could not resolve %s: %s", e.Subject, e.Reason)
}
