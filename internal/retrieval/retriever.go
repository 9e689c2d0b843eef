// Package retrieval implements the hybrid retriever of spec.md §4.7
// (C7): BM25 keyword search, vector semantic search, query-type
// detection, and RRF/weighted fusion between them. Grounded on the
// original cerberus/retrieval package for the algorithms' exact
// semantics, reimplemented with the teacher's own ecosystem choices
// (surgebase/porter2, hbollon/go-edlib) for the ambient stemming/fuzzy
// concerns those originals leave to hand-rolled code.
package retrieval

import (
	"context"
	"os"

	"github.com/proxikal/cerberus/internal/cerrors"
	"github.com/proxikal/cerberus/internal/config"
	"github.com/proxikal/cerberus/internal/model"
	"github.com/proxikal/cerberus/internal/store"
)

// Mode selects which retrieval method(s) a query uses.
type Mode string

const (
	ModeKeyword  Mode = "keyword"
	ModeSemantic Mode = "semantic"
	ModeBalanced Mode = "balanced"
	ModeAuto     Mode = "auto"
)

// Retriever wires the store, an optional vector index, and an optional
// embedder into the three search modes plus fusion.
type Retriever struct {
	Store    *store.Store
	Vectors  *store.VectorStore
	Embedder Embedder
	Cfg      config.Retrieval
	Fuzzy    *FuzzyMatcher

	bm25 *BM25Index
}

// New builds a Retriever. vectors/embedder may be nil when embeddings
// are disabled; the retriever then only ever performs keyword search.
func New(s *store.Store, vectors *store.VectorStore, embedder Embedder, cfg config.Retrieval) *Retriever {
	return &Retriever{
		Store:    s,
		Vectors:  vectors,
		Embedder: embedder,
		Cfg:      cfg,
		Fuzzy:    NewFuzzyMatcher(cfg.FuzzyThreshold),
	}
}

// Reindex rebuilds the in-memory BM25 index from the store's current
// symbol set. Callers re-run this after a build or incremental update
// commits new rows.
func (r *Retriever) Reindex(ctx context.Context) error {
	symbols, err := r.Store.AllSymbols(ctx)
	if err != nil {
		return err
	}
	idx, err := BuildBM25Index(ctx, symbols, readSnippet, r.Cfg.BM25K1, r.Cfg.BM25B)
	if err != nil {
		return err
	}
	r.bm25 = idx
	return nil
}

// readSnippet reads the exact symbol body from disk — the BM25 document
// text, matching the original's use of symbol source as snippet_text.
func readSnippet(sym model.Symbol) (string, error) {
	content, err := os.ReadFile(sym.FilePath)
	if err != nil {
		return "", err
	}
	if sym.StartByte < 0 || sym.EndByte > len(content) || sym.StartByte > sym.EndByte {
		return "", cerrors.NewParseError(sym.FilePath, errSnippetRange)
	}
	return string(content[sym.StartByte:sym.EndByte]), nil
}

var errSnippetRange = snippetRangeErr("symbol byte range out of bounds")

type snippetRangeErr string

func (e snippetRangeErr) Error() string { return string(e) }

// FusionMethod picks how "balanced" mode combines BM25 and vector
// rankings.
type FusionMethod string

const (
	FusionRRF      FusionMethod = "rrf"
	FusionWeighted FusionMethod = "weighted"
)

// Search runs query against mode. ModeAuto (the default when mode is
// empty) picks a single method — keyword or semantic — via
// DetectQueryType, per spec.md §4.7's query-type-detection rules.
// ModeBalanced always runs both methods and fuses with fusion (RRF by
// default). Results are capped at Cfg.FinalTopK.
func (r *Retriever) Search(ctx context.Context, query string, mode Mode, fusion FusionMethod) ([]Result, error) {
	if mode == "" {
		mode = ModeAuto
	}
	if mode == ModeAuto {
		if DetectQueryType(query) == QueryKeyword {
			mode = ModeKeyword
		} else {
			mode = ModeSemantic
		}
	}

	topK := r.Cfg.TopKPerMethod
	if topK <= 0 {
		topK = 20
	}

	var bm25Results, vectorResults []ScoredSymbol
	var err error

	if mode == ModeKeyword || mode == ModeBalanced {
		bm25Results = r.searchKeyword(query, topK)
	}
	if mode == ModeSemantic || mode == ModeBalanced {
		vectorResults, err = r.searchVector(ctx, query, topK)
		if err != nil {
			return nil, err
		}
	}

	limit := r.Cfg.FinalTopK
	if limit <= 0 {
		limit = 10
	}

	switch mode {
	case ModeKeyword:
		return toResults(bm25Results, limit, MatchKeyword), nil
	case ModeSemantic:
		return toResults(vectorResults, limit, MatchSemantic), nil
	default:
		var fused []Result
		if fusion == FusionWeighted {
			fused = WeightedScoreFusion(bm25Results, vectorResults, r.Cfg.KeywordWeight, r.Cfg.SemanticWeight)
		} else {
			fused = ReciprocalRankFusion(bm25Results, vectorResults, r.Cfg.RRFK)
		}
		if len(fused) > limit {
			fused = fused[:limit]
		}
		return fused, nil
	}
}

// toResults converts a single-method ranking directly to Result rows,
// matching the original facade's keyword/semantic single-method
// shortcuts (no fusion, no cross-method score blending).
func toResults(scored []ScoredSymbol, limit int, mt MatchType) []Result {
	if len(scored) > limit {
		scored = scored[:limit]
	}
	out := make([]Result, len(scored))
	for i, s := range scored {
		score := s.Score
		out[i] = Result{
			Symbol:      s,
			HybridScore: score,
			Rank:        i + 1,
			MatchType:   mt,
		}
		if mt == MatchKeyword {
			out[i].BM25Score = score
		} else {
			out[i].VectorScore = score
		}
	}
	return out
}

func (r *Retriever) searchKeyword(query string, topK int) []ScoredSymbol {
	if r.bm25 == nil {
		return nil
	}
	results := r.bm25.Search(query, topK)
	if len(results) > 0 || r.Fuzzy == nil {
		return results
	}

	// No exact/stemmed match: fall back to fuzzy symbol-name matching so
	// a typo'd identifier still finds its target.
	names := make([]string, len(r.bm25.docs))
	for i, d := range r.bm25.docs {
		names[i] = d.Symbol.Name
	}
	matches := r.Fuzzy.FindMatches(query, names)
	out := make([]ScoredSymbol, 0, len(matches))
	for _, m := range matches {
		for _, d := range r.bm25.docs {
			if d.Symbol.Name == m.Term {
				out = append(out, ScoredSymbol{Symbol: d.Symbol, Score: m.Similarity})
				break
			}
		}
	}
	return out
}

func (r *Retriever) searchVector(ctx context.Context, query string, topK int) ([]ScoredSymbol, error) {
	if r.Vectors == nil || r.Embedder == nil {
		return nil, nil
	}
	searcher := VectorSearcher{Vectors: r.Vectors, Store: r.Store, Embedder: r.Embedder}
	minSim := r.Cfg.MinSimilarity
	if minSim == 0 {
		minSim = 0.2
	}
	return searcher.Search(ctx, query, topK, minSim)
}

