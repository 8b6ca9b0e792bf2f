// Package authstore adds a Valkey cache-through layer in front of a
// rag.ChatStore's auth-session methods, mirroring the teacher's
// Valkey/Postgres pairing for cached lookups.
package authstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/ragviet/ragviet-service/internal/domain/rag"
)

// CachedSessionStore wraps a rag.ChatStore, serving auth-session reads
// from Valkey when present and falling back to the store (Postgres, in
// production) on cache miss. All other ChatStore methods delegate
// straight through.
type CachedSessionStore struct {
	rag.ChatStore
	client valkey.Client
	prefix string
	logger *slog.Logger
}

// NewCachedSessionStore wraps store with a Valkey-backed session cache.
func NewCachedSessionStore(store rag.ChatStore, client valkey.Client, logger *slog.Logger) *CachedSessionStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedSessionStore{ChatStore: store, client: client, prefix: "auth_session", logger: logger.With("component", "authstore.valkey")}
}

func (c *CachedSessionStore) CreateAuthSession(ctx context.Context, userID string, ttl int64) (rag.AuthSession, error) {
	session, err := c.ChatStore.CreateAuthSession(ctx, userID, ttl)
	if err != nil {
		return rag.AuthSession{}, err
	}
	if err := c.cache(ctx, session, time.Duration(ttl)*time.Second); err != nil {
		c.logger.Warn("cache auth session failed", "error", err)
	}
	return session, nil
}

func (c *CachedSessionStore) GetAuthSession(ctx context.Context, token string) (rag.AuthSession, bool, error) {
	if session, ok, err := c.fromCache(ctx, token); err == nil && ok {
		return session, true, nil
	}

	session, ok, err := c.ChatStore.GetAuthSession(ctx, token)
	if err != nil || !ok {
		return session, ok, err
	}

	remaining := time.Until(session.ExpiresAt.Time)
	if remaining > 0 {
		if err := c.cache(ctx, session, remaining); err != nil {
			c.logger.Warn("backfill auth session cache failed", "error", err)
		}
	}
	return session, true, nil
}

func (c *CachedSessionStore) DeleteAuthSession(ctx context.Context, token string) error {
	if err := c.ChatStore.DeleteAuthSession(ctx, token); err != nil {
		return err
	}
	cmd := c.client.B().Del().Key(c.key(token)).Build()
	return c.client.Do(ctx, cmd).Error()
}

func (c *CachedSessionStore) cache(ctx context.Context, session rag.AuthSession, ttl time.Duration) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = time.Second
	}
	cmd := c.client.B().Set().Key(c.key(session.Token)).Value(string(payload)).Ex(ttl).Build()
	return c.client.Do(ctx, cmd).Error()
}

func (c *CachedSessionStore) fromCache(ctx context.Context, token string) (rag.AuthSession, bool, error) {
	cmd := c.client.B().Get().Key(c.key(token)).Build()
	result := c.client.Do(ctx, cmd)
	payload, err := result.ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return rag.AuthSession{}, false, nil
		}
		return rag.AuthSession{}, false, err
	}
	var session rag.AuthSession
	if err := json.Unmarshal([]byte(payload), &session); err != nil {
		return rag.AuthSession{}, false, err
	}
	return session, true, nil
}

func (c *CachedSessionStore) key(token string) string {
	return fmt.Sprintf("%s:%s", c.prefix, token)
}

var _ rag.ChatStore = (*CachedSessionStore)(nil)
