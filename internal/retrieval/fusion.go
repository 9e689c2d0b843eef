package retrieval

import (
	"fmt"
	"sort"
)

// MatchType records which retrieval method(s) surfaced a result.
type MatchType string

const (
	MatchKeyword  MatchType = "keyword"
	MatchSemantic MatchType = "semantic"
	MatchBoth     MatchType = "both"
)

// Result is one fused hit returned to a caller.
type Result struct {
	Symbol      ScoredSymbol
	BM25Score   float64
	VectorScore float64
	HybridScore float64
	Rank        int
	MatchType   MatchType
}

// stableID is the deduplication key spec.md §4.7 specifies:
// "{file_path}:{name}:{start_line}".
func stableID(s ScoredSymbol) string {
	return fmt.Sprintf("%s:%s:%d", s.Symbol.FilePath, s.Symbol.Name, s.Symbol.StartLine)
}

type fusionEntry struct {
	symbol     ScoredSymbol
	bm25Score  float64
	vecScore   float64
	bm25Rank   int // 0 = absent
	vecRank    int // 0 = absent
}

// ReciprocalRankFusion combines two rankings with RRF: score(d) =
// sum over sources of 1/(k + rank). Deduplicates by stable id. Grounded
// on the original's hybrid_ranker.reciprocal_rank_fusion.
func ReciprocalRankFusion(bm25Results, vectorResults []ScoredSymbol, k int) []Result {
	if k <= 0 {
		k = 60
	}
	entries := make(map[string]*fusionEntry)
	var order []string

	for i, r := range bm25Results {
		id := stableID(r)
		e, ok := entries[id]
		if !ok {
			e = &fusionEntry{symbol: r}
			entries[id] = e
			order = append(order, id)
		}
		e.bm25Score = r.Score
		e.bm25Rank = i + 1
	}
	for i, r := range vectorResults {
		id := stableID(r)
		e, ok := entries[id]
		if !ok {
			e = &fusionEntry{symbol: r}
			entries[id] = e
			order = append(order, id)
		}
		e.vecScore = r.Score
		e.vecRank = i + 1
	}

	results := make([]Result, 0, len(order))
	for _, id := range order {
		e := entries[id]
		var score float64
		if e.bm25Rank > 0 {
			score += 1.0 / float64(k+e.bm25Rank)
		}
		if e.vecRank > 0 {
			score += 1.0 / float64(k+e.vecRank)
		}
		results = append(results, Result{
			Symbol:      e.symbol,
			BM25Score:   e.bm25Score,
			VectorScore: e.vecScore,
			HybridScore: score,
			MatchType:   matchTypeOf(e.bm25Rank > 0, e.vecRank > 0),
		})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].HybridScore > results[j].HybridScore })
	for i := range results {
		results[i].Rank = i + 1
	}
	return results
}

// WeightedScoreFusion combines two rankings by weighted score sum
// rather than rank, for "balanced" mode. Grounded on
// hybrid_ranker.weighted_score_fusion.
func WeightedScoreFusion(bm25Results, vectorResults []ScoredSymbol, keywordWeight, semanticWeight float64) []Result {
	entries := make(map[string]*fusionEntry)
	var order []string

	for _, r := range bm25Results {
		id := stableID(r)
		entries[id] = &fusionEntry{symbol: r, bm25Score: r.Score, bm25Rank: 1}
		order = append(order, id)
	}
	for _, r := range vectorResults {
		id := stableID(r)
		e, ok := entries[id]
		if !ok {
			e = &fusionEntry{symbol: r}
			entries[id] = e
			order = append(order, id)
		}
		e.vecScore = r.Score
		e.vecRank = 1
	}

	results := make([]Result, 0, len(order))
	for _, id := range order {
		e := entries[id]
		score := keywordWeight*e.bm25Score + semanticWeight*e.vecScore
		results = append(results, Result{
			Symbol:      e.symbol,
			BM25Score:   e.bm25Score,
			VectorScore: e.vecScore,
			HybridScore: score,
			MatchType:   matchTypeOf(e.bm25Rank > 0, e.vecRank > 0),
		})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].HybridScore > results[j].HybridScore })
	for i := range results {
		results[i].Rank = i + 1
	}
	return results
}

func matchTypeOf(bm25, vector bool) MatchType {
	switch {
	case bm25 && vector:
		return MatchBoth
	case bm25:
		return MatchKeyword
	default:
		return MatchSemantic
	}
}
