package retrieval

import (
	"context"

	"github.com/proxikal/cerberus/internal/cerrors"
	"github.com/proxikal/cerberus/internal/store"
)

// Embedder embeds free text into the same vector space indexed symbol
// snippets live in. Matches builder.Embedder's shape so both C4 and C7
// share one implementation.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// VectorSearcher resolves nearest-neighbor vector matches back to full
// symbols, since store.VectorStore only carries a numeric id.
type VectorSearcher struct {
	Vectors  *store.VectorStore
	Store    *store.Store
	Embedder Embedder
}

// Search embeds query, finds its topK nearest neighbors above
// minSimilarity, and resolves each back to a model.Symbol via the
// embeddings_metadata table.
func (v *VectorSearcher) Search(ctx context.Context, query string, topK int, minSimilarity float64) ([]ScoredSymbol, error) {
	if v.Embedder == nil {
		return nil, nil
	}

	vecs, err := v.Embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, cerrors.NewStoreError("embed_query", err)
	}
	if len(vecs) == 0 {
		return nil, nil
	}
	queryVec := store.Normalize(vecs[0])

	matches, err := v.Vectors.Search(queryVec, topK, minSimilarity)
	if err != nil {
		return nil, err
	}

	out := make([]ScoredSymbol, 0, len(matches))
	for _, m := range matches {
		meta, ok, err := v.Store.EmbeddingMetadataBySymbolID(ctx, m.SymbolID)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		sym, ok, err := v.Store.SymbolByFileAndName(ctx, meta.FilePath, meta.Name)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out = append(out, ScoredSymbol{Symbol: sym, Score: m.Score})
	}
	return out, nil
}
