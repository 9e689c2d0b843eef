package retrieval

import (
	edlib "github.com/hbollon/go-edlib"
)

// FuzzyMatcher finds near-misses of a symbol name using Jaro-Winkler
// similarity, folded into keyword-mode results when the BM25 keyword
// search comes up empty. Grounded on the teacher's
// internal/semantic.FuzzyMatcher, trimmed to the single algorithm
// SPEC_FULL.md calls for (Jaro-Winkler, default threshold 0.80) — the
// teacher's levenshtein/cosine algorithm switch and TranslationDictionary
// wiring have no SPEC_FULL.md caller.
type FuzzyMatcher struct {
	threshold float64
}

// NewFuzzyMatcher builds a matcher at threshold (0.80 default when <= 0).
func NewFuzzyMatcher(threshold float64) *FuzzyMatcher {
	if threshold <= 0 || threshold > 1 {
		threshold = 0.80
	}
	return &FuzzyMatcher{threshold: threshold}
}

// Similarity returns the Jaro-Winkler similarity of a and b in [0,1].
func (fm *FuzzyMatcher) Similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}
	score, err := edlib.StringsSimilarity(a, b, edlib.JaroWinkler)
	if err != nil {
		return 0.0
	}
	return float64(score)
}

// FuzzyMatch is one candidate string scored against a target.
type FuzzyMatch struct {
	Term       string
	Similarity float64
}

// FindMatches returns every candidate at or above the matcher's
// threshold, sorted by descending similarity.
func (fm *FuzzyMatcher) FindMatches(target string, candidates []string) []FuzzyMatch {
	var matches []FuzzyMatch
	for _, c := range candidates {
		sim := fm.Similarity(target, c)
		if sim >= fm.threshold {
			matches = append(matches, FuzzyMatch{Term: c, Similarity: sim})
		}
	}
	for i := 0; i < len(matches); i++ {
		for j := i + 1; j < len(matches); j++ {
			if matches[j].Similarity > matches[i].Similarity {
				matches[i], matches[j] = matches[j], matches[i]
			}
		}
	}
	return matches
}
