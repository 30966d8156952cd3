package ratelimit

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// Decision is the outcome of a single limiter check.
type Decision struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	Reset     time.Time
}

// Limiter decides whether the caller identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Ulule adapts a ulule/limiter instance to Limiter.
type Ulule struct {
	L *limiter.Limiter
}

// NewRedis builds a fixed-window limiter from a ulule formatted rate ("60-M", "10-S")
// backed by Redis so every API replica shares the same counters.
func NewRedis(client *redis.Client, prefix, formatted string) (Ulule, error) {
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return Ulule{}, err
	}
	store, err := limiterredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: prefix})
	if err != nil {
		return Ulule{}, err
	}
	return Ulule{L: limiter.New(store, rate)}, nil
}

// Allow increments the counter for key.
func (u Ulule) Allow(ctx context.Context, key string) (Decision, error) {
	lctx, err := u.L.Get(ctx, key)
	if err != nil {
		return Decision{}, err
	}
	return Decision{
		Allowed:   !lctx.Reached,
		Limit:     lctx.Limit,
		Remaining: lctx.Remaining,
		Reset:     time.Unix(lctx.Reset, 0),
	}, nil
}
