package reranker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ragviet/ragviet-service/internal/domain/rag"
)

func result(filename, text string) rag.SearchResult {
	return rag.SearchResult{ChunkMetadata: rag.ChunkMetadata{Filename: filename, Text: text}}
}

func TestRerankOrdersByLexicalOverlap(t *testing.T) {
	r := NewLexical(true)
	docs := []rag.SearchResult{
		result("a.pdf", "hoàn toàn không liên quan đến câu hỏi"),
		result("b.pdf", "chính sách bảo hành sản phẩm điện tử"),
	}

	out, err := r.Rerank(context.Background(), "chính sách bảo hành sản phẩm", docs, 2)

	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, "b.pdf", out[0].Filename)
	require.Greater(t, out[0].RerankScore, out[1].RerankScore)
}

func TestRerankRespectsTopK(t *testing.T) {
	r := NewLexical(true)
	docs := []rag.SearchResult{result("a.pdf", "one"), result("b.pdf", "two"), result("c.pdf", "three")}

	out, err := r.Rerank(context.Background(), "one two three", docs, 1)

	require.NoError(t, err)
	require.Len(t, out, 1)
}

func TestRerankUnavailableReturnsUnrankedTruncated(t *testing.T) {
	r := NewLexical(false)
	docs := []rag.SearchResult{result("a.pdf", "one"), result("b.pdf", "two")}

	out, err := r.Rerank(context.Background(), "anything", docs, 1)

	require.NoError(t, err)
	require.False(t, r.Available())
	require.Len(t, out, 1)
	require.Equal(t, "a.pdf", out[0].Filename)
	require.Zero(t, out[0].RerankScore)
}

func TestRerankEmptyInput(t *testing.T) {
	r := NewLexical(true)

	out, err := r.Rerank(context.Background(), "query", nil, 5)

	require.NoError(t, err)
	require.Nil(t, out)
}
