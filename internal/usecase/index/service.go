// Package index builds an embedding index over a complaint batch with bounded concurrency.
package index

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/defectscope/defectscope/internal/domain"
	"github.com/defectscope/defectscope/internal/domain/batch"
	"github.com/defectscope/defectscope/internal/domain/complaint"
	"github.com/defectscope/defectscope/internal/domain/index"
	"github.com/defectscope/defectscope/internal/metrics"
)

// Defaults for Config zero values.
const (
	DefaultWorkers     = 4
	DefaultCallTimeout = 30 * time.Second
)

var errEmptySummary = fmt.Errorf("empty summary: %w", domain.ErrNoData)

// Config tunes the build.
type Config struct {
	Workers     int           // concurrent provider calls
	RatePerSec  float64       // provider calls per second, 0 = unlimited
	Burst       int           // limiter burst, defaults to Workers
	CallTimeout time.Duration // per-record deadline
}

// Builder embeds complaint summaries and assembles an immutable index.
type Builder struct {
	embedder Embedder
	workers  int
	timeout  time.Duration
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// New creates a Builder.
func New(embedder Embedder, cfg Config, logger *zap.Logger) *Builder {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.Workers
	}
	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}
	return &Builder{
		embedder: embedder,
		workers:  cfg.Workers,
		timeout:  cfg.CallTimeout,
		limiter:  rate.NewLimiter(limit, cfg.Burst),
		logger:   logger,
	}
}

// Build embeds every record's summary once. A failed record is excluded from the index and
// reported; it never aborts the batch. Entries keep the original record order.
func (b *Builder) Build(ctx context.Context, records []complaint.Record) (*index.Index, batch.Report) {
	start := time.Now()

	vectors := make([][]float32, len(records))
	results := make([]batch.Result, len(records))

	var g errgroup.Group
	g.SetLimit(b.workers)

	for i, rec := range records {
		if strings.TrimSpace(rec.Summary) == "" {
			results[i] = batch.NewSkipped(i, rec.ComplaintID, errEmptySummary)
			continue
		}
		if err := ctx.Err(); err != nil {
			results[i] = batch.NewError(i, rec.ComplaintID, fmt.Errorf("not dispatched: %w", err))
			continue
		}
		g.Go(func() error {
			vec, err := b.embedOne(ctx, rec.Summary)
			if err != nil {
				results[i] = batch.NewError(i, rec.ComplaintID, err)
				return nil
			}
			vectors[i] = vec
			results[i] = batch.NewOK(i, rec.ComplaintID)
			return nil
		})
	}
	_ = g.Wait() // workers report through results, never through the group

	entries := make([]index.Entry, 0, len(records))
	for i, rec := range records {
		if results[i].Status() == batch.StatusOK {
			entries = append(entries, index.Entry{Position: i, Record: rec, Vector: vectors[i]})
		}
	}

	report := batch.Report{Items: results}
	b.observe(report, time.Since(start))

	return index.New(entries), report
}

func (b *Builder) embedOne(ctx context.Context, text string) ([]float32, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	res, err := b.embedder.Embed(callCtx, text)
	if err != nil {
		return nil, err
	}
	if len(res.Embedding) == 0 {
		return nil, fmt.Errorf("%w: empty vector", domain.ErrEmbeddingProviderError)
	}
	return res.Embedding, nil
}

func (b *Builder) observe(report batch.Report, elapsed time.Duration) {
	metrics.IndexBuildDuration.Observe(elapsed.Seconds())
	for _, st := range []batch.ItemStatus{batch.StatusOK, batch.StatusError, batch.StatusSkipped} {
		if n := report.Count(st); n > 0 {
			metrics.IndexRecordsTotal.WithLabelValues(string(st)).Add(float64(n))
		}
	}

	for _, f := range report.Failures() {
		if errors.Is(f.Err(), errEmptySummary) {
			continue
		}
		b.logger.Warn("Complaint excluded from index",
			zap.Int("position", f.Position()),
			zap.String("complaint_id", f.ID()),
			zap.Error(f.Err()),
		)
	}

	b.logger.Info("Embedding index built",
		zap.Int("records", len(report.Items)),
		zap.Int("indexed", report.Count(batch.StatusOK)),
		zap.Int("failed", report.Count(batch.StatusError)),
		zap.Int("skipped", report.Count(batch.StatusSkipped)),
		zap.Duration("duration", elapsed),
	)
}
