package mutate

import (
	"context"
	"time"

	"github.com/proxikal/cerberus/internal/model"
	"github.com/proxikal/cerberus/internal/store"
)

// tokensPerLine approximates the tokens a full-file rewrite would have
// cost versus a surgical edit, matching ledger.py's record_mutation
// ("4 tokens per line average").
const tokensPerLine = 4

// Ledger records every mutation's write-efficiency into the shared
// store's diff_metrics table, proving out §1's "surgical edits save
// tokens" value proposition with data. Grounded on
// original_source/src/cerberus/mutation/ledger.py's DiffLedger, adapted
// to write into the main Store rather than a dedicated ledger database.
type Ledger struct {
	Store *store.Store
}

func NewLedger(s *store.Store) *Ledger {
	return &Ledger{Store: s}
}

// RecordMutation computes write efficiency and estimated tokens saved for
// one operation and appends it to diff_metrics.
func (l *Ledger) RecordMutation(ctx context.Context, operation, filePath string, linesChanged, linesTotal int) (model.DiffMetric, error) {
	var efficiency float64
	if linesTotal > 0 {
		efficiency = float64(linesChanged) / float64(linesTotal)
	}
	tokensSaved := (linesTotal - linesChanged) * tokensPerLine

	metric := model.DiffMetric{
		Timestamp:       time.Now(),
		Operation:       operation,
		FilePath:        filePath,
		LinesChanged:    linesChanged,
		LinesTotal:      linesTotal,
		WriteEfficiency: efficiency,
		TokensSaved:     tokensSaved,
	}
	if err := l.Store.InsertDiffMetric(ctx, metric); err != nil {
		return model.DiffMetric{}, err
	}
	return metric, nil
}

// Stats returns the aggregated view the CLI/RPC `index_stats` surface
// exposes.
func (l *Ledger) Stats(ctx context.Context) (store.LedgerStats, error) {
	return l.Store.LedgerStats(ctx)
}

// RecordAction appends one action_log row, matching SPEC_FULL.md §C's
// mutation-outcome logging.
func (l *Ledger) RecordAction(ctx context.Context, operation, symbol, filePath, outcome string) error {
	return l.Store.InsertActionLog(ctx, model.ActionLogEntry{
		Timestamp: time.Now(),
		Operation: operation,
		Symbol:    symbol,
		FilePath:  filePath,
		Outcome:   outcome,
	})
}
