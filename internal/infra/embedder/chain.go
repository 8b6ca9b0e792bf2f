package embedder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ragviet/ragviet-service/internal/domain/rag"
)

// Chain tries each candidate model in order at Load time; the first one
// that loads wins and its dimension fixes the store's dimension for the
// process lifetime, per the embedder fallback-chain contract. If every
// candidate fails to load, LoadFirst returns an error and the chain has
// no active model.
type Chain struct {
	active     rag.Embedder
	activeName string
	logger     *slog.Logger
}

// NamedEmbedder pairs a model name with its implementation for logging.
type NamedEmbedder struct {
	Name     string
	Embedder rag.Embedder
}

// NewChain constructs the chain; call Load to resolve the active model.
func NewChain(logger *slog.Logger) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{logger: logger.With("component", "embedder.chain")}
}

// LoadFirst attempts each candidate in order and keeps the first to load
// successfully.
func (c *Chain) LoadFirst(ctx context.Context, candidates []NamedEmbedder) error {
	var lastErr error
	for _, cand := range candidates {
		if err := cand.Embedder.Load(ctx); err != nil {
			c.logger.Warn("embedder model failed to load, trying next", "model", cand.Name, "error", err)
			lastErr = err
			continue
		}
		c.active = cand.Embedder
		c.activeName = cand.Name
		c.logger.Info("embedder model loaded", "model", cand.Name, "dimension", cand.Embedder.Dimension())
		return nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no embedder candidates configured")
	}
	return fmt.Errorf("all embedder models failed to load: %w", lastErr)
}

func (c *Chain) Load(ctx context.Context) error {
	if c.active == nil {
		return fmt.Errorf("embedder chain not initialized: call LoadFirst")
	}
	return nil
}

func (c *Chain) Dimension() int {
	if c.active == nil {
		return 0
	}
	return c.active.Dimension()
}

func (c *Chain) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if c.active == nil {
		return nil, fmt.Errorf("embedder chain not initialized")
	}
	return c.active.Encode(ctx, texts)
}

// ActiveModel returns the name of the model that won the fallback race.
func (c *Chain) ActiveModel() string { return c.activeName }

var _ rag.Embedder = (*Chain)(nil)
