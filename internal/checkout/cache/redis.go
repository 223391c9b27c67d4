package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ms-booking/internal/apperrors"
	"ms-booking/internal/models"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "checkout_session:"

const defaultTTL = 30 * time.Minute

// SessionCache keeps pending checkouts in Redis until the gateway confirms or
// expires them. Entries expire on their own after the TTL.
type SessionCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewSessionCache(client *redis.Client, ttl time.Duration) *SessionCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &SessionCache{Client: client, TTL: ttl}
}

func key(sessionID string) string {
	return keyPrefix + sessionID
}

func (c *SessionCache) SavePending(ctx context.Context, pending models.PendingCheckout) error {
	if pending.SessionID == "" {
		return errors.New("pending checkout has no session id")
	}
	data, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("marshal pending checkout: %w", err)
	}
	return c.Client.Set(ctx, key(pending.SessionID), data, c.TTL).Err()
}

func (c *SessionCache) GetPending(ctx context.Context, sessionID string) (*models.PendingCheckout, error) {
	data, err := c.Client.Get(ctx, key(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var pending models.PendingCheckout
	if err := json.Unmarshal(data, &pending); err != nil {
		return nil, fmt.Errorf("decode pending checkout %s: %w", sessionID, err)
	}
	return &pending, nil
}

func (c *SessionCache) DeletePending(ctx context.Context, sessionID string) error {
	return c.Client.Del(ctx, key(sessionID)).Err()
}

// Ping reports whether Redis is reachable.
func (c *SessionCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}
