package index

import (
	"context"

	"github.com/defectscope/defectscope/internal/domain"
)

// Embedder is the local interface for the embedding decorator chain.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
