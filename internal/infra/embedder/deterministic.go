package embedder

import (
	"context"
	"hash/fnv"

	"github.com/ragviet/ragviet-service/internal/domain/rag"
)

// Deterministic hashes text into a pseudo-random vector without any
// network dependency. Used in dev/test and as the last resort in the
// model fallback chain.
type Deterministic struct {
	dim int
}

// NewDeterministic constructs the hash-based embedder with a fixed dimension.
func NewDeterministic(dim int) *Deterministic {
	if dim <= 0 {
		dim = 768
	}
	return &Deterministic{dim: dim}
}

func (e *Deterministic) Load(context.Context) error { return nil }

func (e *Deterministic) Dimension() int { return e.dim }

func (e *Deterministic) Encode(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vector := make([]float32, e.dim)
		hash := fnv.New64a()
		_, _ = hash.Write([]byte(text))
		seed := hash.Sum64()
		for j := 0; j < e.dim; j++ {
			seed = seed*1099511628211 + 1469598103934665603
			vector[j] = float32(seed%997) / 997.0
		}
		vectors[i] = vector
	}
	return vectors, nil
}

var _ rag.Embedder = (*Deterministic)(nil)
