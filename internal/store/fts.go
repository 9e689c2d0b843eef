package store

import (
	"context"
	"strings"

	"github.com/proxikal/cerberus/internal/cerrors"
)

// FTSHit is one row from a full-text symbol-name search.
type FTSHit struct {
	Name      string
	Signature string
	FilePath  string
	StartLine int
}

// SearchSymbolNames runs an FTS5 MATCH query over symbol names and
// signatures. Each query token is expanded to a prefix query (`term*`) and
// the tokens are ANDed, so a partial identifier matches only from the
// start of an indexed word; text in the middle of a word (a substring
// match) is not found.
func (s *Store) SearchSymbolNames(ctx context.Context, query string, limit int) ([]FTSHit, error) {
	matchQuery := toFTSQuery(query)
	if matchQuery == "" {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, signature, file_path, start_line
		FROM symbols_fts WHERE symbols_fts MATCH ?
		ORDER BY rank LIMIT ?
	`, matchQuery, limit)
	if err != nil {
		return nil, cerrors.NewStoreError("search_symbol_names", err)
	}
	defer rows.Close()

	var hits []FTSHit
	for rows.Next() {
		var h FTSHit
		if err := rows.Scan(&h.Name, &h.Signature, &h.FilePath, &h.StartLine); err != nil {
			return nil, cerrors.NewStoreError("search_symbol_names", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// toFTSQuery turns a free-text query into an FTS5 MATCH expression:
// every token becomes a prefix match, tokens are ANDed. FTS5 special
// characters are stripped from tokens first since they'd otherwise be
// interpreted as query syntax rather than literal text.
func toFTSQuery(query string) string {
	fields := strings.Fields(query)
	var parts []string
	for _, f := range fields {
		f = sanitizeFTSToken(f)
		if f == "" {
			continue
		}
		parts = append(parts, `"`+f+`"*`)
	}
	return strings.Join(parts, " AND ")
}

func sanitizeFTSToken(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		}
	}
	return b.String()
}
