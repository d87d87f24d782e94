// Package cache implements a read-through cache in front of
// KeyValueStore.Get, backed by Redis. Writes always go straight to the
// underlying store and invalidate the cached entry, so a cache outage never
// risks serving a stale post-transition snapshot.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"sparkfund/services/identity-verification/internal/domain"
	"sparkfund/services/identity-verification/internal/store"
)

// CachedStore wraps a store.KeyValueStore with a Redis read-through cache
// for Get.
type CachedStore struct {
	next   store.KeyValueStore
	client *redis.Client
	ttl    time.Duration
}

func New(next store.KeyValueStore, addr, password string, db int, ttl time.Duration) *CachedStore {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	return &CachedStore{next: next, client: client, ttl: ttl}
}

func cacheKey(id uuid.UUID) string {
	return "verification_request:" + id.String()
}

func (c *CachedStore) Get(ctx context.Context, id uuid.UUID) (*domain.VerificationRequest, error) {
	raw, err := c.client.Get(ctx, cacheKey(id)).Bytes()
	if err == nil {
		var req domain.VerificationRequest
		if jsonErr := json.Unmarshal(raw, &req); jsonErr == nil {
			return &req, nil
		}
	}

	req, err := c.next.Get(ctx, id)
	if err != nil || req == nil {
		return req, err
	}

	if body, marshalErr := json.Marshal(req); marshalErr == nil {
		c.client.Set(ctx, cacheKey(id), body, c.ttl)
	}
	return req, nil
}

func (c *CachedStore) Create(ctx context.Context, req *domain.VerificationRequest) error {
	if err := c.next.Create(ctx, req); err != nil {
		return err
	}
	c.client.Del(ctx, cacheKey(req.ID))
	return nil
}

func (c *CachedStore) Update(ctx context.Context, next *domain.VerificationRequest, expectedVersion int) error {
	if err := c.next.Update(ctx, next, expectedVersion); err != nil {
		return err
	}
	c.client.Del(ctx, cacheKey(next.ID))
	return nil
}
