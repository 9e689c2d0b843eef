package retrieval

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/proxikal/cerberus/internal/model"
)

func TestDetectQueryTypeCamelCaseIsKeyword(t *testing.T) {
	require.Equal(t, QueryKeyword, DetectQueryType("ParseRecord"))
}

func TestDetectQueryTypeSnakeCaseIsKeyword(t *testing.T) {
	require.Equal(t, QueryKeyword, DetectQueryType("parse_record"))
}

func TestDetectQueryTypeScreamingSnakeIsKeyword(t *testing.T) {
	require.Equal(t, QueryKeyword, DetectQueryType("MAX_RETRIES"))
}

func TestDetectQueryTypeNaturalLanguageIsSemantic(t *testing.T) {
	require.Equal(t, QuerySemantic, DetectQueryType("how do we retry a failed request"))
}

func TestDetectQueryTypeShortQueryIsKeyword(t *testing.T) {
	require.Equal(t, QueryKeyword, DetectQueryType("foo bar"))
}

func sym(name, file string, start, end int) model.Symbol {
	return model.Symbol{Name: name, Type: model.SymbolFunction, FilePath: file, StartLine: start, EndLine: end}
}

func TestBM25IndexRanksExactTermHigher(t *testing.T) {
	docs := []bm25Doc{
		{Symbol: sym("ParseConfig", "a.go", 1, 5), Snippet: "func ParseConfig() error { return parseToml() }"},
		{Symbol: sym("WriteLog", "b.go", 1, 5), Snippet: "func WriteLog(msg string) { fmt.Println(msg) }"},
	}
	idx := NewBM25Index(docs, 1.5, 0.75)

	results := idx.Search("ParseConfig", 10)
	require.NotEmpty(t, results)
	require.Equal(t, "ParseConfig", results[0].Symbol.Name)
	require.Greater(t, results[0].Score, 0.0)
	require.LessOrEqual(t, results[0].Score, 1.0)
}

func TestBM25IndexStemmingMatchesVariant(t *testing.T) {
	docs := []bm25Doc{
		{Symbol: sym("Authenticator", "auth.go", 1, 3), Snippet: "func Authenticate(user string) bool { return authenticated(user) }"},
	}
	idx := NewBM25Index(docs, 1.5, 0.75)

	results := idx.Search("authentication", 10)
	require.Len(t, results, 1)
}

func TestBM25IndexEmptyQueryReturnsNoResults(t *testing.T) {
	idx := NewBM25Index([]bm25Doc{{Symbol: sym("A", "a.go", 1, 1), Snippet: "func A() {}"}}, 1.5, 0.75)
	require.Empty(t, idx.Search("   ", 10))
}

func TestReciprocalRankFusionMarksBothWhenPresentInBothSources(t *testing.T) {
	shared := ScoredSymbol{Symbol: sym("Shared", "s.go", 1, 1), Score: 0.9}
	onlyBM25 := ScoredSymbol{Symbol: sym("OnlyKeyword", "k.go", 1, 1), Score: 0.8}
	onlyVector := ScoredSymbol{Symbol: sym("OnlySemantic", "v.go", 1, 1), Score: 0.7}

	results := ReciprocalRankFusion([]ScoredSymbol{shared, onlyBM25}, []ScoredSymbol{shared, onlyVector}, 60)
	require.Len(t, results, 3)

	byName := make(map[string]Result, len(results))
	for _, r := range results {
		byName[r.Symbol.Symbol.Name] = r
	}
	require.Equal(t, MatchBoth, byName["Shared"].MatchType)
	require.Equal(t, MatchKeyword, byName["OnlyKeyword"].MatchType)
	require.Equal(t, MatchSemantic, byName["OnlySemantic"].MatchType)

	// Shared appears in both rankings at rank 1, so it should outrank
	// anything appearing in only one ranking.
	require.Equal(t, "Shared", results[0].Symbol.Symbol.Name)
}

func TestWeightedScoreFusionWeightsBM25Over(t *testing.T) {
	bm := []ScoredSymbol{{Symbol: sym("A", "a.go", 1, 1), Score: 1.0}}
	vec := []ScoredSymbol{{Symbol: sym("A", "a.go", 1, 1), Score: 0.0}}

	results := WeightedScoreFusion(bm, vec, 0.9, 0.1)
	require.Len(t, results, 1)
	require.InDelta(t, 0.9, results[0].HybridScore, 0.0001)
}

func TestStableIDDedupesAcrossSources(t *testing.T) {
	a := ScoredSymbol{Symbol: sym("Foo", "f.go", 10, 20)}
	b := ScoredSymbol{Symbol: sym("Foo", "f.go", 10, 99)}
	require.Equal(t, stableID(a), stableID(b))
}

func TestFuzzyMatcherFindsCloseSymbolName(t *testing.T) {
	fm := NewFuzzyMatcher(0.80)
	matches := fm.FindMatches("ParseConfig", []string{"ParseConfigs", "WriteLog", "ParsConfig"})
	require.NotEmpty(t, matches)
	require.Equal(t, "ParseConfigs", matches[0].Term)
}
