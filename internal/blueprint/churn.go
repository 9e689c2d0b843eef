package blueprint

import (
	"context"
	"fmt"
	"time"

	"github.com/proxikal/cerberus/internal/gitutil"
	"github.com/proxikal/cerberus/internal/model"
)

// ChurnMetrics is a symbol's recent edit activity, grounded on
// churn_analyzer.py and schemas.py's ChurnMetrics.
type ChurnMetrics struct {
	LastModified          string  `json:"last_modified,omitempty"`
	LastModifiedTimestamp float64 `json:"last_modified_timestamp,omitempty"`
	EditFrequency         int     `json:"edit_frequency"`
	UniqueAuthors         int     `json:"unique_authors"`
	LastAuthor            string  `json:"last_author,omitempty"`
}

type churnAnalyzer struct {
	git   *gitutil.Provider
	cache map[string][]gitutil.BlameLine
}

func newChurnAnalyzer(git *gitutil.Provider) *churnAnalyzer {
	return &churnAnalyzer{git: git, cache: make(map[string][]gitutil.BlameLine)}
}

// Analyze blames sym's file once per file (cached across symbols in the
// same file within one Generate call) and reduces the lines in sym's
// range to last-modified/edit-frequency/author metrics. Returns nil when
// git isn't available or the blame yields nothing for this range.
func (a *churnAnalyzer) Analyze(ctx context.Context, sym model.Symbol) *ChurnMetrics {
	if a.git == nil {
		return nil
	}

	blame, ok := a.cache[sym.FilePath]
	if !ok {
		lines, err := a.git.Blame(ctx, sym.FilePath)
		if err != nil {
			a.cache[sym.FilePath] = nil
			return nil
		}
		a.cache[sym.FilePath] = lines
		blame = lines
	}
	if blame == nil {
		return nil
	}

	var inRange []gitutil.BlameLine
	for _, l := range blame {
		if l.Line >= sym.StartLine && l.Line <= sym.EndLine {
			inRange = append(inRange, l)
		}
	}
	if len(inRange) == 0 {
		return nil
	}

	latest := inRange[0]
	authors := make(map[string]bool, len(inRange))
	cutoff := time.Now().AddDate(0, 0, -7)
	recentDays := make(map[string]bool)

	for _, l := range inRange {
		authors[l.Author] = true
		if l.Timestamp.After(latest.Timestamp) {
			latest = l
		}
		if l.Timestamp.After(cutoff) {
			recentDays[l.Timestamp.Format("2006-01-02")] = true
		}
	}

	return &ChurnMetrics{
		LastModified:          formatRelativeTime(latest.Timestamp),
		LastModifiedTimestamp: float64(latest.Timestamp.Unix()),
		EditFrequency:         len(recentDays),
		UniqueAuthors:         len(authors),
		LastAuthor:            latest.Author,
	}
}

// formatRelativeTime matches churn_analyzer.py's _format_relative_time
// bucket boundaries exactly: just now / Nmin / Nh / Nd / Nw / Nmo / Ny.
func formatRelativeTime(t time.Time) string {
	delta := time.Since(t)
	switch {
	case delta < time.Minute:
		return "just now"
	case delta < time.Hour:
		return fmt.Sprintf("%dmin ago", int(delta.Minutes()))
	case delta < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(delta.Hours()))
	case delta < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(delta.Hours()/24))
	case delta < 30*24*time.Hour:
		return fmt.Sprintf("%dw ago", int(delta.Hours()/(24*7)))
	case delta < 365*24*time.Hour:
		return fmt.Sprintf("%dmo ago", int(delta.Hours()/(24*30)))
	default:
		return fmt.Sprintf("%dy ago", int(delta.Hours()/(24*365)))
	}
}
