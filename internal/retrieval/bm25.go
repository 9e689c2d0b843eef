package retrieval

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/surgebase/porter2"

	"github.com/proxikal/cerberus/internal/model"
)

// wordRE tokenizes snippet text per spec.md §4.7: "[A-Za-z0-9_]+",
// lowercased. Grounded on the original's retrieval/bm25_search.py
// WORD_RE/tokenize pair.
var wordRE = regexp.MustCompile(`[A-Za-z0-9_]+`)

// tokenize splits text into lowercased, stemmed tokens. Stemming folds
// variants like "authenticate"/"authentication" onto the same term,
// borrowed from the teacher's internal/semantic.Stemmer's porter2 use
// (the original Python index has no stemming pass; this is SPEC_FULL's
// addition so the BM25 index exercises the teacher's own term-matching
// idiom instead of exact-token matching only).
func tokenize(text string) []string {
	matches := wordRE.FindAllString(text, -1)
	tokens := make([]string, len(matches))
	for i, m := range matches {
		tokens[i] = porter2.Stem(strings.ToLower(m))
	}
	return tokens
}

// bm25Doc is one indexed snippet: a symbol plus the source window used
// for its BM25 document.
type bm25Doc struct {
	Symbol  model.Symbol
	Snippet string
	tokens  []string
	length  int
}

// BM25Index is an Okapi BM25 index over symbol snippets (k1=1.5, b=0.75
// by default per spec.md §4.7). Grounded on the original's BM25Index
// class (retrieval/bm25_search.py): document-frequency counting,
// precomputed IDF, the standard BM25 term-score formula.
type BM25Index struct {
	k1, b       float64
	docs        []bm25Doc
	avgDocLen   float64
	docFreq     map[string]int
	idf         map[string]float64
}

// NewBM25Index builds an index over docs. k1/b default to 1.5/0.75 when
// zero is passed.
func NewBM25Index(docs []bm25Doc, k1, b float64) *BM25Index {
	if k1 == 0 {
		k1 = 1.5
	}
	if b == 0 {
		b = 0.75
	}

	idx := &BM25Index{k1: k1, b: b, docs: docs, docFreq: make(map[string]int)}

	var total int
	for i := range idx.docs {
		idx.docs[i].tokens = tokenize(idx.docs[i].Snippet)
		idx.docs[i].length = len(idx.docs[i].tokens)
		total += idx.docs[i].length

		seen := make(map[string]bool, len(idx.docs[i].tokens))
		for _, tok := range idx.docs[i].tokens {
			if !seen[tok] {
				seen[tok] = true
				idx.docFreq[tok]++
			}
		}
	}
	if len(idx.docs) > 0 {
		idx.avgDocLen = float64(total) / float64(len(idx.docs))
	}

	idx.idf = make(map[string]float64, len(idx.docFreq))
	for term, df := range idx.docFreq {
		idx.idf[term] = idx.computeIDF(df)
	}

	return idx
}

// computeIDF: log((N - df + 0.5) / (df + 0.5) + 1).
func (idx *BM25Index) computeIDF(docFreq int) float64 {
	n := float64(len(idx.docs))
	return math.Log((n-float64(docFreq)+0.5)/(float64(docFreq)+0.5) + 1.0)
}

func (idx *BM25Index) termScore(term string, docIdx int) float64 {
	idf, ok := idx.idf[term]
	if !ok {
		return 0
	}

	doc := idx.docs[docIdx]
	tf := 0
	for _, tok := range doc.tokens {
		if tok == term {
			tf++
		}
	}
	if tf == 0 {
		return 0
	}

	lengthNorm := 1 - idx.b + idx.b*(float64(doc.length)/idx.avgDocLen)
	numerator := float64(tf) * (idx.k1 + 1)
	denominator := float64(tf) + idx.k1*lengthNorm
	return idf * (numerator / denominator)
}

// Search ranks every document against query, returning the topK highest
// scoring non-zero matches. Scores are softly normalized to [0,1] by
// dividing by 10 and clamping, per spec.md §4.7.
func (idx *BM25Index) Search(query string, topK int) []ScoredSymbol {
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return nil
	}

	type scored struct {
		idx   int
		score float64
	}
	var scores []scored
	for i := range idx.docs {
		var total float64
		for _, term := range queryTokens {
			total += idx.termScore(term, i)
		}
		if total > 0 {
			scores = append(scores, scored{idx: i, score: total})
		}
	}

	sort.Slice(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	if topK > 0 && len(scores) > topK {
		scores = scores[:topK]
	}

	out := make([]ScoredSymbol, len(scores))
	for i, s := range scores {
		out[i] = ScoredSymbol{
			Symbol: idx.docs[s.idx].Symbol,
			Score:  clamp01(s.score / 10.0),
		}
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ScoredSymbol pairs a symbol with a retrieval score in [0,1].
type ScoredSymbol struct {
	Symbol model.Symbol
	Score  float64
}

// SnippetReader extracts the source text a symbol's BM25 document is
// built from. It is separate from Builder's snippetAround, which adds
// context lines around a symbol for embeddings, since a corpus build may
// run without ever loading an Embedder.
type SnippetReader func(sym model.Symbol) (string, error)

// BuildBM25Index builds a BM25Index over the source snippets of the given
// symbols; a symbol whose snippet cannot be read is left out.
func BuildBM25Index(ctx context.Context, symbols []model.Symbol, read SnippetReader, k1, b float64) (*BM25Index, error) {
	docs := make([]bm25Doc, 0, len(symbols))
	for _, sym := range symbols {
		snippet, err := read(sym)
		if err != nil {
			continue
		}
		docs = append(docs, bm25Doc{Symbol: sym, Snippet: snippet})
	}
	return NewBM25Index(docs, k1, b), nil
}
