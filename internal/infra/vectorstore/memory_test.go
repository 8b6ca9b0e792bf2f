package vectorstore

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ragviet/ragviet-service/internal/domain/rag"
)

// hashEmbedder is a tiny deterministic stand-in so vector store tests
// don't depend on a real model: equal texts yield equal vectors and the
// L2 distance between unrelated texts is reliably non-zero.
type hashEmbedder struct{ dim int }

func (h hashEmbedder) Load(context.Context) error { return nil }
func (h hashEmbedder) Dimension() int             { return h.dim }
func (h hashEmbedder) Encode(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, h.dim)
		var seed uint32 = 2166136261
		for _, r := range t {
			seed = (seed ^ uint32(r)) * 16777619
		}
		for d := 0; d < h.dim; d++ {
			seed = seed*1664525 + 1013904223
			v[d] = float32(seed%1000) / 1000
		}
		out[i] = v
	}
	return out, nil
}

func newTestStore() *Store {
	return New(hashEmbedder{dim: 8}, nil, nil)
}

func meta(user, filename string, page, chunkID int, text string) rag.ChunkMetadata {
	return rag.ChunkMetadata{Text: text, Filename: filename, PageNumber: page, ChunkID: chunkID, UserID: user}
}

func TestAddAndSearchRespectsPositionInvariant(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	err := store.Add(ctx, []rag.ChunkMetadata{
		meta("u1", "a.pdf", 1, 0, "Điều 1 quy định về thủ tục"),
		meta("u1", "a.pdf", 2, 0, "Điều 2 quy định về hồ sơ"),
	})
	require.NoError(t, err)

	stats, err := store.GetStats(ctx, "")
	require.NoError(t, err)
	require.Equal(t, 2, stats.TotalChunks)
	require.Equal(t, 1, stats.TotalFiles)
}

func TestSearchTenantIsolation(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, []rag.ChunkMetadata{
		meta("u1", "same.pdf", 1, 0, "nội dung của user một"),
		meta("u2", "same.pdf", 1, 0, "nội dung của user hai"),
	}))

	results, err := store.Search(ctx, "nội dung", 10, "", "u1")
	require.NoError(t, err)
	for _, r := range results {
		require.Equal(t, "u1", r.UserID)
	}
}

func TestSearchFilenameFilter(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, []rag.ChunkMetadata{
		meta("u1", "a.pdf", 1, 0, "quy định chung"),
		meta("u1", "b.pdf", 1, 0, "quy định riêng"),
	}))

	results, err := store.Search(ctx, "quy định", 10, "b.pdf", "u1")
	require.NoError(t, err)
	for _, r := range results {
		require.Equal(t, "b.pdf", r.Filename)
	}
}

func TestGetAdjacentExpandsWithinPageRange(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	var chunks []rag.ChunkMetadata
	for _, page := range []int{3, 4, 5, 6, 7} {
		chunks = append(chunks, meta("u1", "a.pdf", page, 0, strings.Repeat("x", page)))
	}
	require.NoError(t, store.Add(ctx, chunks))

	seed := rag.SearchResult{ChunkMetadata: meta("u1", "a.pdf", 5, 0, "")}
	expanded, err := store.GetAdjacent(ctx, []rag.SearchResult{seed}, 2)
	require.NoError(t, err)

	pages := map[int]bool{}
	for _, r := range expanded {
		pages[r.PageNumber] = true
	}
	require.True(t, pages[3])
	require.True(t, pages[4])
	require.True(t, pages[5])
	require.True(t, pages[6])
	require.True(t, pages[7])
}

func TestDeleteByFilenameRemovesOnlyThatFile(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, []rag.ChunkMetadata{
		meta("u1", "a.pdf", 1, 0, "nội dung a"),
		meta("u1", "b.pdf", 1, 0, "nội dung b"),
	}))

	require.NoError(t, store.DeleteByFilename(ctx, "a.pdf", "u1"))

	results, err := store.Search(ctx, "nội dung", 10, "", "u1")
	require.NoError(t, err)
	for _, r := range results {
		require.NotEqual(t, "a.pdf", r.Filename)
	}
}

func TestDeleteTempFilesByUser(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, []rag.ChunkMetadata{
		meta("u1", "tmpabc123.pdf", 1, 0, "orphaned upload"),
		meta("u1", "real.pdf", 1, 0, "kept upload"),
	}))

	require.NoError(t, store.DeleteTempFilesByUser(ctx, "u1", []string{"real.pdf"}))

	stats, err := store.GetStats(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 1, stats.TotalChunks)
	require.Equal(t, 1, stats.Files["real.pdf"])
}

func TestSearchOnEmptyStoreReturnsEmptyNotError(t *testing.T) {
	store := newTestStore()
	results, err := store.Search(context.Background(), "anything", 5, "", "")
	require.NoError(t, err)
	require.Empty(t, results)
}
