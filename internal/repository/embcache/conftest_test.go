package embcache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/defectscope/defectscope/internal/db"
	"github.com/defectscope/defectscope/internal/domain"
)

type mockEmbedder struct {
	result  domain.EmbeddingResult
	err     error
	calls   atomic.Int32
	release chan struct{} // when set, Embed blocks until closed
}

func (m *mockEmbedder) Embed(ctx context.Context, _ string) (domain.EmbeddingResult, error) {
	m.calls.Add(1)
	if m.release != nil {
		select {
		case <-m.release:
		case <-ctx.Done():
			return domain.EmbeddingResult{}, ctx.Err()
		}
	}
	return m.result, m.err
}

// mockKVStore implements the consumer interface for tests.
type mockKVStore struct {
	mu     sync.Mutex
	getFn  func(ctx context.Context, key string, ttl time.Duration) ([]byte, error)
	setFn  func(ctx context.Context, key string, value []byte, ttl time.Duration) error
	getTTL time.Duration
}

func (m *mockKVStore) GetEx(ctx context.Context, key string, ttl time.Duration) ([]byte, error) {
	m.mu.Lock()
	m.getTTL = ttl
	m.mu.Unlock()
	if m.getFn != nil {
		return m.getFn(ctx, key, ttl)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockKVStore) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.setFn != nil {
		return m.setFn(ctx, key, value, ttl)
	}
	return nil
}

func newTestCachedEmbedder(t *testing.T, inner *mockEmbedder) (*CachedEmbedder, *mockKVStore) {
	t.Helper()
	ms := &mockKVStore{}
	ce := New(inner, ms, Options{KeyPrefix: "test:", Model: "m1"}, zap.NewNop())
	return ce, ms
}
