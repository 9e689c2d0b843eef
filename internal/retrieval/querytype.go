package retrieval

import (
	"regexp"
	"strings"
)

// QueryType is the detected shape of a search query, per spec.md §4.7.
type QueryType string

const (
	QueryKeyword  QueryType = "keyword"
	QuerySemantic QueryType = "semantic"
)

// exactMatchIndicators flag identifier-shaped queries: CamelCase,
// snake_case, SCREAMING_SNAKE_CASE. Grounded on the original Python
// QUERY_DETECTION table (cerberus/retrieval/config.py).
var exactMatchIndicators = []*regexp.Regexp{
	regexp.MustCompile(`^[A-Z][a-z]+[A-Z]`),
	regexp.MustCompile(`^[a-z]+_[a-z]+`),
	regexp.MustCompile(`^[A-Z_]+$`),
}

// semanticIndicators flag natural-language queries: question/action
// words, or three-or-more consecutive spaces (copied straight from the
// original's "multiple words" heuristic).
var semanticIndicators = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(how|what|where|when|why|find|search|get|code|logic|implementation)\b`),
	regexp.MustCompile(`\s{3,}`),
}

// shortQueryThreshold: queries with <= this many words default to keyword.
const shortQueryThreshold = 3

// DetectQueryType classifies a query as keyword or semantic so auto mode
// can route it without the caller specifying a mode.
func DetectQueryType(query string) QueryType {
	for _, re := range exactMatchIndicators {
		if re.MatchString(query) {
			return QueryKeyword
		}
	}
	for _, re := range semanticIndicators {
		if re.MatchString(query) {
			return QuerySemantic
		}
	}
	if len(strings.Fields(query)) <= shortQueryThreshold {
		return QueryKeyword
	}
	return QuerySemantic
}
