// Package session stores analysis sessions in memory or in Redis/Valkey.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/defectscope/defectscope/internal/db"
	"github.com/defectscope/defectscope/internal/domain"
	domsession "github.com/defectscope/defectscope/internal/domain/session"
)

// store is the consumer interface for session persistence (ISP).
type store interface {
	GetEx(ctx context.Context, key string, ttl time.Duration) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// Repo keeps sessions as JSON values with a sliding TTL.
type Repo struct {
	store  store
	prefix string
	ttl    time.Duration
}

// New creates a Redis-backed session repository.
func New(s store, prefix string, ttl time.Duration) *Repo {
	return &Repo{store: s, prefix: prefix, ttl: ttl}
}

func (r *Repo) key(id string) string {
	return r.prefix + "session:" + id
}

// Save stores or replaces a session.
func (r *Repo) Save(ctx context.Context, s *domsession.Session) error {
	data, err := encode(s)
	if err != nil {
		return err
	}
	if err := r.store.SetWithTTL(ctx, r.key(s.ID), data, r.ttl); err != nil {
		return fmt.Errorf("save session %s: %w", s.ID, err)
	}
	return nil
}

// Get loads a session and extends its TTL in the same round trip.
func (r *Repo) Get(ctx context.Context, id string) (*domsession.Session, error) {
	data, err := r.store.GetEx(ctx, r.key(id), r.ttl)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	return decode(data)
}

// Delete removes a session. Deleting an unknown session is not an error.
func (r *Repo) Delete(ctx context.Context, id string) error {
	if err := r.store.Del(ctx, r.key(id)); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}
