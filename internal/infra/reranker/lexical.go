// Package reranker scores (query, passage) pairs to reorder dense-search
// candidates. Lexical implements a cross-encoder stand-in usable without
// a networked model; it satisfies the same rag.Reranker contract a real
// cross-encoder adapter would, so one can be swapped in later without
// touching the Answerer.
package reranker

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/ragviet/ragviet-service/internal/domain/rag"
)

var wordSplit = regexp.MustCompile(`[\p{L}\p{N}]+`)

// Lexical scores a passage by token-overlap with the query, normalized
// by passage length so short, on-topic passages aren't penalized against
// long ones.
type Lexical struct {
	enabled bool
}

// NewLexical constructs the reranker. enabled=false makes it behave as
// an unavailable reranker (callers must still be able to degrade
// gracefully to unranked input).
func NewLexical(enabled bool) *Lexical {
	return &Lexical{enabled: enabled}
}

func (r *Lexical) Available() bool { return r.enabled }

func (r *Lexical) Rerank(_ context.Context, query string, docs []rag.SearchResult, topK int) ([]rag.RerankedResult, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	if !r.enabled {
		return truncateUnranked(docs, topK), nil
	}

	queryTokens := tokenSet(query)
	scored := make([]rag.RerankedResult, len(docs))
	for i, d := range docs {
		scored[i] = rag.RerankedResult{SearchResult: d, RerankScore: overlapScore(queryTokens, d.Text)}
	}
	sort.SliceStable(scored, func(a, b int) bool { return scored[a].RerankScore > scored[b].RerankScore })
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

func truncateUnranked(docs []rag.SearchResult, topK int) []rag.RerankedResult {
	if len(docs) > topK {
		docs = docs[:topK]
	}
	out := make([]rag.RerankedResult, len(docs))
	for i, d := range docs {
		out[i] = rag.RerankedResult{SearchResult: d}
	}
	return out
}

func tokenSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range wordSplit.FindAllString(strings.ToLower(text), -1) {
		set[w] = true
	}
	return set
}

func overlapScore(queryTokens map[string]bool, passage string) float64 {
	if len(queryTokens) == 0 {
		return 0
	}
	passageTokens := wordSplit.FindAllString(strings.ToLower(passage), -1)
	if len(passageTokens) == 0 {
		return 0
	}
	matches := 0
	for _, t := range passageTokens {
		if queryTokens[t] {
			matches++
		}
	}
	return float64(matches) / float64(len(passageTokens))
}

var _ rag.Reranker = (*Lexical)(nil)
