package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/simaogato/folio-backend/internal/domain"
)

// TransactionListCache stores transaction list pages in Redis.
// Entries are namespaced by a generation counter: invalidation bumps the
// counter and old entries age out through their TTL.
type TransactionListCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewClient creates a Redis client and checks it can reach the server
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

// NewTransactionListCache creates a new TransactionListCache
func NewTransactionListCache(client redis.UniversalClient, prefix string, ttl time.Duration) *TransactionListCache {
	return &TransactionListCache{client: client, prefix: prefix, ttl: ttl}
}

// Get returns the cached page for key and the generation it was looked up in; ok is false on a miss
func (c *TransactionListCache) Get(ctx context.Context, key string) (*domain.Page[domain.Transaction], int64, bool, error) {
	gen, err := c.generation(ctx)
	if err != nil {
		return nil, 0, false, err
	}

	raw, err := c.client.Get(ctx, c.entryKey(gen, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, gen, false, nil
	}
	if err != nil {
		return nil, gen, false, fmt.Errorf("redis get: %w", err)
	}

	var page domain.Page[domain.Transaction]
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, gen, false, fmt.Errorf("failed to decode cached page: %w", err)
	}

	return &page, gen, true, nil
}

// Set stores a page under key for generation gen, as returned by the Get that missed.
// A page for a generation that has since been invalidated is never read again.
func (c *TransactionListCache) Set(ctx context.Context, gen int64, key string, page *domain.Page[domain.Transaction]) error {
	raw, err := json.Marshal(page)
	if err != nil {
		return fmt.Errorf("failed to encode page: %w", err)
	}

	if err := c.client.Set(ctx, c.entryKey(gen, key), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

// Invalidate drops every cached page by moving to a new generation
func (c *TransactionListCache) Invalidate(ctx context.Context) error {
	if err := c.client.Incr(ctx, c.generationKey()).Err(); err != nil {
		return fmt.Errorf("redis incr: %w", err)
	}
	return nil
}

// Ping reports whether Redis is reachable
func (c *TransactionListCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *TransactionListCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, c.generationKey()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get generation: %w", err)
	}
	return gen, nil
}

func (c *TransactionListCache) generationKey() string {
	return c.prefix + ":gen"
}

func (c *TransactionListCache) entryKey(gen int64, key string) string {
	return fmt.Sprintf("%s:list:%d:%s", c.prefix, gen, key)
}
