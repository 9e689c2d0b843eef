package mutate

import (
	"context"

	"github.com/proxikal/cerberus/internal/cerrors"
	"github.com/proxikal/cerberus/internal/store"
)

// highRiskLevel matches the 🔴 label internal/blueprint's stability
// analyzer assigns below the 0.50 composite-score threshold
// (blueprint.CalculateStability / stabilityLevel). guard.go takes the
// level as a plain string rather than importing internal/blueprint
// directly, keeping the two packages decoupled — the facade/CLI/daemon
// layer computes stability and passes the label in.
const highRiskLevel = "🔴 HIGH RISK"

// maxReferents caps how many external referents a GuardError reports,
// matching guard.py's `external_refs[:5]` truncation.
const maxReferents = 5

// CheckReferences implements spec.md §4.9 step 2 (the reference guard):
// unless force is set, it refuses to let a caller mutate a symbol that
// either (a) has live references from outside the file being edited, or
// (b) carries HIGH RISK stability. Grounded on guard.py's
// check_references, reusing cerrors.GuardError's existing formatting
// instead of re-deriving the "[SAFETY BLOCK]" message text.
func CheckReferences(ctx context.Context, s *store.Store, symbolName, filePath string, force bool, stabilityLevel string) error {
	if force {
		return nil
	}

	if stabilityLevel == highRiskLevel {
		return cerrors.NewGuardError(symbolName, nil, true)
	}

	refs, err := s.QueryReferencesTo(ctx, symbolName)
	if err != nil {
		return err
	}

	var external []string
	for _, r := range refs {
		if r.SourceFile != filePath {
			external = append(external, r.SourceFile)
		}
	}
	if len(external) == 0 {
		return nil
	}

	referents := external
	if len(referents) > maxReferents {
		referents = referents[:maxReferents]
	}
	return cerrors.NewGuardError(symbolName, referents, false)
}
