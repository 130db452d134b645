package weather

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"irricast/internal/config"
	"irricast/internal/types"
)

// Fetcher is the upstream contract the caching client wraps. Satisfied by
// *Upstream in production and by fakes in tests.
type Fetcher interface {
	FetchDaily(ctx context.Context, loc types.Location, days int) ([]types.ForecastDay, error)
}

// Client is the caching forecast client. Entries are cached per location and
// horizon bucket with a TTL; concurrent cache misses for the same key are
// collapsed into a single upstream call. When the upstream fails and an
// expired entry exists, the entry is served with every day marked Stale.
type Client struct {
	upstream Fetcher
	ttl      time.Duration
	maxDays  int
	clock    types.Clock
	logger   *slog.Logger
	group    singleflight.Group

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	days      []types.ForecastDay
	fetchedAt time.Time
}

// NewClient creates a caching forecast client over the given upstream.
func NewClient(upstream Fetcher, cfg config.WeatherConfig, clock types.Clock, logger *slog.Logger) *Client {
	return &Client{
		upstream: upstream,
		ttl:      cfg.CacheTTL,
		maxDays:  cfg.MaxDays,
		clock:    clock,
		logger:   logger.With(slog.String("component", "weather_client")),
		cache:    make(map[string]cacheEntry),
	}
}

// horizonBucket maps a requested horizon onto one of three upstream fetch
// sizes so that nearby horizons share a cache entry.
func (c *Client) horizonBucket(days int) int {
	switch {
	case days <= 3:
		return 3
	case days <= 7:
		return 7
	default:
		return c.maxDays
	}
}

// Fetch returns up to days daily forecast entries for the location. The
// result slice is always a copy; callers may mutate it freely.
func (c *Client) Fetch(ctx context.Context, loc types.Location, days int) ([]types.ForecastDay, error) {
	if days < 1 {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidDays, "forecast horizon must be at least 1 day", nil)
	}
	if days > c.maxDays {
		days = c.maxDays
	}

	bucket := c.horizonBucket(days)
	key := fmt.Sprintf("%s:%d", loc.Key(), bucket)

	if entry, ok := c.fresh(key); ok {
		return truncateCopy(entry.days, days), nil
	}

	// The flight is shared by every waiter, so it must not die with the
	// caller that happened to start it. The upstream HTTP client carries
	// its own timeout.
	fetchCtx := context.WithoutCancel(ctx)

	result, err, _ := c.group.Do(key, func() (any, error) {
		// Another flight may have refreshed the entry while this caller
		// waited on the singleflight lock.
		if entry, ok := c.fresh(key); ok {
			return entry.days, nil
		}

		fetched, fetchErr := c.upstream.FetchDaily(fetchCtx, loc, bucket)
		if fetchErr != nil {
			return c.fallback(key, fetchErr)
		}

		c.mu.Lock()
		c.cache[key] = cacheEntry{days: fetched, fetchedAt: c.clock.Now()}
		c.mu.Unlock()

		return fetched, nil
	})
	if err != nil {
		return nil, err
	}

	return truncateCopy(result.([]types.ForecastDay), days), nil
}

// fresh returns the cached entry for key if it exists and is within TTL.
func (c *Client) fresh(key string) (cacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.cache[key]
	if !ok {
		return cacheEntry{}, false
	}
	if c.clock.Now().Sub(entry.fetchedAt) >= c.ttl {
		return cacheEntry{}, false
	}
	return entry, true
}

// fallback serves an expired cache entry marked stale when the upstream
// fails. With no entry at all the upstream error propagates. The cache entry
// itself is left untouched so a later successful refresh replaces it cleanly.
func (c *Client) fallback(key string, fetchErr error) ([]types.ForecastDay, error) {
	c.mu.RLock()
	entry, ok := c.cache[key]
	c.mu.RUnlock()

	if !ok {
		c.logger.Error("forecast fetch failed with no cached fallback",
			slog.String("cache_key", key),
			slog.String("error", fetchErr.Error()),
		)
		return nil, fetchErr
	}

	c.logger.Warn("forecast fetch failed; serving stale cache entry",
		slog.String("cache_key", key),
		slog.Time("fetched_at", entry.fetchedAt),
		slog.String("error", fetchErr.Error()),
	)

	stale := make([]types.ForecastDay, len(entry.days))
	copy(stale, entry.days)
	for i := range stale {
		stale[i].Stale = true
	}
	return stale, nil
}

func truncateCopy(days []types.ForecastDay, n int) []types.ForecastDay {
	if n > len(days) {
		n = len(days)
	}
	out := make([]types.ForecastDay, n)
	copy(out, days[:n])
	return out
}
