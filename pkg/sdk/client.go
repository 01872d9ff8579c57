package defectscope

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/defectscope/defectscope/internal/domain"
	"github.com/defectscope/defectscope/internal/domain/batch"
	"github.com/defectscope/defectscope/internal/domain/complaint"
	"github.com/defectscope/defectscope/internal/domain/index"
	domsession "github.com/defectscope/defectscope/internal/domain/session"
	analysisuc "github.com/defectscope/defectscope/internal/usecase/analysis"
	indexuc "github.com/defectscope/defectscope/internal/usecase/index"
	searchuc "github.com/defectscope/defectscope/internal/usecase/search"
)

// Internal interfaces, swapped for mocks in tests.
type indexBuilder interface {
	Build(ctx context.Context, records []complaint.Record) (*index.Index, batch.Report)
}

type searchUseCase interface {
	Search(ctx context.Context, idx *index.Index, query string, k int) ([]index.Hit, error)
}

// Client is the defectscope SDK entry point. It is safe for concurrent use.
type Client struct {
	builder  indexBuilder
	searcher searchUseCase
	obs      *observer
}

// New creates a Client. Without an embedder the client can still Analyze.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}

	switch {
	case cfg.workers < 0:
		return nil, errors.New("defectscope: workers must not be negative")
	case cfg.ratePerSec < 0:
		return nil, errors.New("defectscope: rate must not be negative")
	case cfg.maxInputChars < 0:
		return nil, errors.New("defectscope: max input chars must not be negative")
	case cfg.maxInputChars > domain.DefaultMaxInputChars:
		return nil, fmt.Errorf("defectscope: max input chars must not exceed %d", domain.DefaultMaxInputChars)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	var emb domain.Embedder = noopEmbedder{}
	if cfg.embedder != nil {
		emb = cfg.embedder
	}
	emb = domain.NewTruncatingEmbedder(emb, cfg.maxInputChars)

	return &Client{
		builder: indexuc.New(emb, indexuc.Config{
			Workers:     cfg.workers,
			RatePerSec:  cfg.ratePerSec,
			Burst:       cfg.burst,
			CallTimeout: cfg.callTimeout,
		}, zap.NewNop()),
		searcher: searchuc.New(emb, cfg.defaultK),
		obs:      obs,
	}, nil
}

// Analyze aggregates a batch of normalized complaints. It never calls the embedder.
func (c *Client) Analyze(records []Complaint) Analysis {
	done := c.obs.begin("analyze")
	res := analysisuc.Analyze(records)
	done(len(records), nil)
	return res
}

// AnalyzeRaw normalizes raw complaints and aggregates them.
func (c *Client) AnalyzeRaw(raws []RawComplaint) Analysis {
	return c.Analyze(Normalize(raws))
}

// BuildIndex embeds every complaint summary with bounded concurrency. Records that fail to
// embed are left out and listed in the index summary; the build itself never fails.
func (c *Client) BuildIndex(ctx context.Context, records []Complaint) *Index {
	done := c.obs.begin("build_index")
	idx, report := c.builder.Build(ctx, records)
	summary := domsession.Summarize(report)

	var err error
	if idx.Len() == 0 && summary.Failed > 0 {
		err = fmt.Errorf("all %d embeddable records failed: %w", summary.Failed, firstError(report))
	}
	done(len(records), err)

	return &Index{idx: idx, summary: summary}
}

// Search returns the k complaints most similar to query, best first. k <= 0 selects the
// client default. A blank query returns ErrEmptyQuery and an empty index ErrNoEmbeddings.
func (c *Client) Search(ctx context.Context, idx *Index, query string, k int) (hits []Hit, err error) {
	done := c.obs.begin("search")
	defer func() { done(len(hits), err) }()

	var inner *index.Index
	if idx != nil {
		inner = idx.idx
	}
	hits, err = c.searcher.Search(ctx, inner, query, k)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return hits, nil
}

// embedderAdapter wraps public Embedder to satisfy internal domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

// noopEmbedder fails every call; it stands in until an embedder is configured.
type noopEmbedder struct{}

func (noopEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{}, fmt.Errorf(
		"defectscope: embedder not configured (use WithEmbedder or WithOpenAI): %w",
		domain.ErrEmbeddingProviderError,
	)
}

// firstError is the cause of the earliest failed embedding. Skipped records never embedded,
// so their reasons are not provider failures.
func firstError(report batch.Report) error {
	for _, item := range report.Items {
		if item.Status() == batch.StatusError {
			return item.Err()
		}
	}
	return nil
}
