package defectscope

import "github.com/defectscope/defectscope/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrEmptyQuery             = domain.ErrEmptyQuery
	ErrNoData                 = domain.ErrNoData
	ErrNoEmbeddings           = domain.ErrNoEmbeddings
	ErrRateLimited            = domain.ErrRateLimited
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
)
