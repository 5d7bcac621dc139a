// Package leaderboard caches the top-N profile window in Redis so that
// leaderboard reads do not hit the primary store on every request.
package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"ecoQuestAPI/internal/types/user"
)

const (
	keyPrefix     = "ecoquest:leaderboard:top:"
	generationKey = "ecoquest:leaderboard:gen"
)

// ErrCorrupt means the cached window could not be decoded. The generation in
// the returned Window is still valid.
var ErrCorrupt = errors.New("corrupt leaderboard cache entry")

type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// Window is one cache lookup. Generation is the value current when the
// lookup ran; pass it back to Set so a window loaded before an Invalidate is
// written under a key nobody reads any more.
type Window struct {
	Generation int64
	Profiles   []*user.Profile
	Hit        bool
}

// NewClient parses a redis:// URL and pings the server.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

func NewCache(rdb *redis.Client, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, ttl: ttl}
}

func key(gen int64, limit int) string {
	return keyPrefix + strconv.FormatInt(gen, 10) + ":" + strconv.Itoa(limit)
}

func (c *Cache) generation(ctx context.Context) (int64, error) {
	gen, err := c.rdb.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read leaderboard generation: %w", err)
	}
	return gen, nil
}

// Get looks up the window for limit at the current generation.
func (c *Cache) Get(ctx context.Context, limit int) (Window, error) {
	gen, err := c.generation(ctx)
	if err != nil {
		return Window{}, err
	}
	w := Window{Generation: gen}

	raw, err := c.rdb.Get(ctx, key(gen, limit)).Bytes()
	if errors.Is(err, redis.Nil) {
		return w, nil
	}
	if err != nil {
		return w, fmt.Errorf("failed to read leaderboard cache: %w", err)
	}
	if err := json.Unmarshal(raw, &w.Profiles); err != nil {
		return w, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	w.Hit = true
	return w, nil
}

// Set stores profiles as the window for limit at generation gen.
func (c *Cache) Set(ctx context.Context, gen int64, limit int, profiles []*user.Profile) error {
	raw, err := json.Marshal(profiles)
	if err != nil {
		return fmt.Errorf("failed to encode leaderboard cache: %w", err)
	}
	if err := c.rdb.Set(ctx, key(gen, limit), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write leaderboard cache: %w", err)
	}
	return nil
}

// Invalidate moves to a new generation. Windows of older generations are no
// longer read and expire with their TTL.
func (c *Cache) Invalidate(ctx context.Context) error {
	if err := c.rdb.Incr(ctx, generationKey).Err(); err != nil {
		return fmt.Errorf("failed to invalidate leaderboard cache: %w", err)
	}
	return nil
}
