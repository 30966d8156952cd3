package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const quoteKeyPrefix = "quote:"

// DefaultQuoteTTL applies when no positive TTL is configured.
const DefaultQuoteTTL = 15 * time.Minute

// ErrQuoteNotFound is returned when a quote is unknown or has expired.
var ErrQuoteNotFound = errors.New("checkout: quote not found")

// QuoteCache keeps issued quotes in Redis until they expire.
type QuoteCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewQuoteCache constructs a cache helper. A nil client disables caching.
func NewQuoteCache(client *redis.Client, ttl time.Duration) *QuoteCache {
	if ttl <= 0 {
		ttl = DefaultQuoteTTL
	}
	return &QuoteCache{client: client, ttl: ttl}
}

// TTL reports how long stored quotes live.
func (c *QuoteCache) TTL() time.Duration {
	if c == nil || c.ttl <= 0 {
		return DefaultQuoteTTL
	}
	return c.ttl
}

// Put stores q under its id.
func (c *QuoteCache) Put(ctx context.Context, q Quote) error {
	if c == nil || c.client == nil || q.ID == "" {
		return nil
	}
	data, err := json.Marshal(q)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, quoteKeyPrefix+q.ID, data, c.ttl).Err()
}

// Get loads a quote by id.
func (c *QuoteCache) Get(ctx context.Context, id string) (Quote, error) {
	if c == nil || c.client == nil || id == "" {
		return Quote{}, ErrQuoteNotFound
	}
	data, err := c.client.Get(ctx, quoteKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Quote{}, ErrQuoteNotFound
		}
		return Quote{}, err
	}
	var q Quote
	if err := json.Unmarshal(data, &q); err != nil {
		return Quote{}, err
	}
	return q, nil
}

// Delete drops a quote, e.g. once it has been settled.
func (c *QuoteCache) Delete(ctx context.Context, id string) error {
	if c == nil || c.client == nil || id == "" {
		return nil
	}
	return c.client.Del(ctx, quoteKeyPrefix+id).Err()
}
