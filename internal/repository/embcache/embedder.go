// Package embcache caches embedding vectors in a key-value store so repeated
// complaint texts and queries skip the provider.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/defectscope/defectscope/internal/db"
	"github.com/defectscope/defectscope/internal/domain"
)

const (
	defaultTTL         = 7 * 24 * time.Hour
	defaultCallTimeout = 30 * time.Second
	headerSize         = 4 // uint32 dimension count
)

// store is the slice of db.KVStore the cache needs.
type store interface {
	GetEx(ctx context.Context, key string, ttl time.Duration) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Options configures the cache key space and entry lifetime.
type Options struct {
	KeyPrefix string                 // e.g. "defectscope:"
	Model     string                 // vectors of different models never share keys
	TTL       time.Duration          // sliding, refreshed on every hit; 0 means one week
	Lookups   *prometheus.CounterVec // optional, label "result" = hit | miss
	// CallTimeout bounds a shared provider call, which outlives any single caller's context.
	// 0 means 30s.
	CallTimeout time.Duration
}

// CachedEmbedder serves vectors from the store and calls the provider once per distinct text,
// even when the same text is requested concurrently.
type CachedEmbedder struct {
	inner       domain.Embedder
	store       store
	namespace   string
	ttl         time.Duration
	callTimeout time.Duration
	lookups     *prometheus.CounterVec
	flight      singleflight.Group
	logger      *zap.Logger
}

// flightResult is shared by every caller of one provider call. The first caller to collect it
// gets the token usage; the others get the vector alone.
type flightResult struct {
	res     domain.EmbeddingResult
	claimed atomic.Bool
}

// New wraps inner with a read-through cache.
func New(inner domain.Embedder, s store, opts Options, logger *zap.Logger) *CachedEmbedder {
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	return &CachedEmbedder{
		inner:       inner,
		store:       s,
		namespace:   opts.KeyPrefix + "emb_cache:" + opts.Model + ":",
		ttl:         opts.TTL,
		callTimeout: opts.CallTimeout,
		lookups:     opts.Lookups,
		logger:      logger,
	}
}

// Embed returns the cached vector with zero token usage, or the provider result on a miss.
// Concurrent misses for one text share a provider call that runs detached from any caller's
// cancellation; each caller still stops waiting when its own ctx ends. Tokens are reported once.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := c.key(text)

	if vec, ok := c.lookup(ctx, key); ok {
		c.count("hit")
		return domain.EmbeddingResult{Embedding: vec}, nil
	}
	c.count("miss")

	ch := c.flight.DoChan(key, func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.callTimeout)
		defer cancel()

		res, err := c.inner.Embed(callCtx, text)
		if err != nil {
			return nil, err
		}
		c.save(callCtx, key, res.Embedding)
		return &flightResult{res: res}, nil
	})

	select {
	case <-ctx.Done():
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", ctx.Err())
	case r := <-ch:
		if r.Err != nil {
			return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", r.Err)
		}
		fr, _ := r.Val.(*flightResult)
		if fr.claimed.CompareAndSwap(false, true) {
			return fr.res, nil
		}
		return domain.EmbeddingResult{Embedding: fr.res.Embedding}, nil
	}
}

// HealthCheck delegates to the inner embedder when it supports health checks.
func (c *CachedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := c.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return c.namespace + hex.EncodeToString(sum[:])
}

func (c *CachedEmbedder) count(result string) {
	if c.lookups != nil {
		c.lookups.WithLabelValues(result).Inc()
	}
}

func (c *CachedEmbedder) lookup(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.store.GetEx(ctx, key, c.ttl)
	switch {
	case errors.Is(err, db.ErrKeyNotFound):
		return nil, false
	case err != nil:
		c.logger.Warn("Embedding cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	vec, err := decodeEntry(data)
	if err != nil {
		c.logger.Warn("Discarding malformed embedding cache entry", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return vec, true
}

// save is best effort; a failed write never fails the embedding.
func (c *CachedEmbedder) save(ctx context.Context, key string, vec []float32) {
	if len(vec) == 0 {
		return
	}
	if err := c.store.SetWithTTL(ctx, key, encodeEntry(vec), c.ttl); err != nil {
		c.logger.Warn("Embedding cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// encodeEntry lays out a vector as a little-endian uint32 length followed by float32 bits.
func encodeEntry(vec []float32) []byte {
	buf := make([]byte, headerSize+4*len(vec))
	binary.LittleEndian.PutUint32(buf, uint32(len(vec))) //nolint:gosec // embedding dims fit in uint32
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[headerSize+4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeEntry(data []byte) ([]float32, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("entry too short: %d bytes", len(data))
	}
	dims := int(binary.LittleEndian.Uint32(data))
	if dims == 0 || len(data) != headerSize+4*dims {
		return nil, fmt.Errorf("entry declares %d dims in %d bytes", dims, len(data))
	}
	vec := make([]float32, dims)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[headerSize+4*i:]))
	}
	return vec, nil
}
