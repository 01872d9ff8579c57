package search

import (
	"context"

	"github.com/defectscope/defectscope/internal/domain"
)

// Embedder vectorizes the query. It must be the same chain the index was built with.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
