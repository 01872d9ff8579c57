package redis

import (
	"context"
	"time"

	"github.com/redis/rueidis"

	"github.com/defectscope/defectscope/internal/db"
)

// GetEx returns the value at key and resets its expiry in one round trip,
// or db.ErrKeyNotFound when the key is missing or already expired.
func (s *Store) GetEx(ctx context.Context, key string, ttl time.Duration) ([]byte, error) {
	cmd := s.client.B().Getex().Key(key).ExSeconds(seconds(ttl)).Build()
	return s.bytes(ctx, db.OpGetEx, cmd)
}

// SetWithTTL stores a value that expires after ttl.
func (s *Store) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	cmd := s.client.B().Set().Key(key).Value(rueidis.BinaryString(value)).ExSeconds(seconds(ttl)).Build()
	return s.exec(ctx, db.OpSet, cmd)
}

// Del removes a key. Deleting a missing key is not an error.
func (s *Store) Del(ctx context.Context, key string) error {
	return s.exec(ctx, db.OpDel, s.client.B().Del().Key(key).Build())
}

func (s *Store) bytes(ctx context.Context, op string, cmd rueidis.Completed) ([]byte, error) {
	data, err := s.client.Do(ctx, cmd).AsBytes()
	if rueidis.IsRedisNil(err) {
		return nil, db.ErrKeyNotFound
	}
	if err != nil {
		return nil, &db.Error{Op: op, Err: err}
	}
	return data, nil
}

func (s *Store) exec(ctx context.Context, op string, cmd rueidis.Completed) error {
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: op, Err: err}
	}
	return nil
}

// seconds rounds ttl to whole seconds, never below one; EX 0 is rejected by the server.
func seconds(ttl time.Duration) int64 {
	return max(int64(ttl/time.Second), 1)
}
