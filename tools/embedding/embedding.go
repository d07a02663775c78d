// Package embedding turns fetched page chunks into vectors for the
// step-scoped research corpus.
package embedding

import (
	"context"

	"github.com/museworks/museflow/provider"
)

// Embedding wraps the configured LLM provider's embedding endpoint.
type Embedding struct {
	provider provider.Provider
}

// EmbedVec pairs a corpus chunk id with its vector.
type EmbedVec struct {
	DocID string
	Vec   []float32
}

func NewEmbedding(provider provider.Provider) *Embedding {
	return &Embedding{
		provider: provider,
	}
}

// EmbedMany embeds texts in one call. Output order mirrors input order,
// which ingestion relies on to pair vectors back to chunks.
func (e Embedding) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vecs, err := e.provider.CreateEmbedding(ctx, texts)
	if err != nil {
		return nil, err
	}

	return vecs, nil
}
