// Package search ranks indexed complaints by cosine similarity to a free-text query.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/defectscope/defectscope/internal/domain"
	"github.com/defectscope/defectscope/internal/domain/index"
	"github.com/defectscope/defectscope/internal/metrics"
)

// Service handles similarity search over a session's embedding index.
type Service struct {
	embed    Embedder
	defaultK int
}

// New creates a search service. defaultK <= 0 selects index.DefaultK.
func New(embed Embedder, defaultK int) *Service {
	if defaultK <= 0 {
		defaultK = index.DefaultK
	}
	return &Service{embed: embed, defaultK: defaultK}
}

// Search embeds query once and returns the k most similar complaints.
// Blank queries and empty indexes are rejected before the provider is called.
func (s *Service) Search(ctx context.Context, idx *index.Index, query string, k int) ([]index.Hit, error) {
	hits, err := s.search(ctx, idx, query, k)
	metrics.SearchRequestsTotal.WithLabelValues(outcome(err)).Inc()
	return hits, err
}

func (s *Service) search(ctx context.Context, idx *index.Index, query string, k int) ([]index.Hit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.ErrEmptyQuery
	}
	if idx.Len() == 0 {
		return nil, domain.ErrNoEmbeddings
	}
	if k <= 0 {
		k = s.defaultK
	}

	res, err := s.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	return idx.Rank(res.Embedding, k), nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrEmptyQuery), errors.Is(err, domain.ErrNoData):
		return "rejected"
	default:
		return "error"
	}
}
