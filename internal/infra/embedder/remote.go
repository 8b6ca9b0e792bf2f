package embedder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/ragviet/ragviet-service/internal/domain/rag"
	"github.com/ragviet/ragviet-service/internal/infra/llm/chatgpt"
)

// maxBatchTokens stays well below provider request caps.
const maxBatchTokens = 200_000

// Remote calls an OpenAI-compatible embeddings endpoint, batching texts
// under a token budget. Load performs one probe call to confirm the
// model is reachable and to learn its dimension.
type Remote struct {
	client *chatgpt.Client
	model  string
	dim    int
	logger *slog.Logger
}

// NewRemote constructs an embedder backed by an OpenAI-compatible client.
func NewRemote(client *chatgpt.Client, model string, logger *slog.Logger) *Remote {
	if logger == nil {
		logger = slog.Default()
	}
	return &Remote{client: client, model: strings.TrimSpace(model), logger: logger.With("component", "embedder.remote", "model", model)}
}

func (e *Remote) Load(ctx context.Context) error {
	resp, err := e.client.CreateEmbedding(ctx, chatgpt.EmbeddingRequest{Model: e.model, Input: []string{"ping"}})
	if err != nil {
		return fmt.Errorf("probe embedding model %s: %w", e.model, err)
	}
	if len(resp.Data) == 0 {
		return fmt.Errorf("probe embedding model %s: empty response", e.model)
	}
	e.dim = len(resp.Data[0].Embedding)
	return nil
}

func (e *Remote) Dimension() int { return e.dim }

func (e *Remote) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var (
		out         [][]float32
		batch       []string
		batchTokens int
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		resp, err := e.client.CreateEmbedding(ctx, chatgpt.EmbeddingRequest{Model: e.model, Input: batch})
		if err != nil {
			return fmt.Errorf("create embedding: %w", err)
		}
		if len(resp.Data) != len(batch) {
			e.logger.Warn("embedding result count mismatch", "expected", len(batch), "got", len(resp.Data))
		}
		for _, item := range resp.Data {
			vec := make([]float32, len(item.Embedding))
			copy(vec, item.Embedding)
			out = append(out, vec)
		}
		batch = batch[:0]
		batchTokens = 0
		return nil
	}

	for _, text := range texts {
		tokens := estimateTokens(text)
		if tokens > maxBatchTokens {
			return nil, fmt.Errorf("text too large for embedding request: estimated tokens=%d", tokens)
		}
		if batchTokens+tokens > maxBatchTokens && len(batch) > 0 {
			if err := flush(); err != nil {
				return nil, err
			}
		}
		batch = append(batch, text)
		batchTokens += tokens
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return out, nil
}

// estimateTokens is a rough, upper-biased count used only to stay under
// provider batch caps.
func estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	runes := utf8.RuneCountInString(text)
	words := len(strings.Fields(text))
	byRunes := (runes + 1) / 2
	if byRunes < words {
		return words
	}
	return byRunes
}

var _ rag.Embedder = (*Remote)(nil)
