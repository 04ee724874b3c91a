package leaderboard

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
)

// CountersReader is the collaborator feeding raw rows into aggregation.
// Reads may be slow; the cache bounds them with its own timeout.
type CountersReader interface {
	ReadCounters(ctx context.Context, window Window) ([]PlayerCounters, error)
}

// CacheHooks are optional observation points for metrics.
type CacheHooks struct {
	Hit       func()
	Miss      func()
	Recompute func()
}

// CacheConfig configures the leaderboard cache.
type CacheConfig struct {
	// TTL bounds how old a cached ranking may be before a query triggers
	// recomputation.
	TTL time.Duration

	// ReadTimeout bounds the counters read; past it the cache serves the
	// last-known-good ranking instead of failing the request.
	ReadTimeout time.Duration

	// RefreshIntervalRounds is advisory metadata echoed to clients. The
	// dispatcher, not the cache, acts on it.
	RefreshIntervalRounds int

	// Clock is injectable for tests; defaults to time.Now.
	Clock func() time.Time

	Hooks CacheHooks
}

type cacheKey struct {
	typ   Type
	start int64
	end   int64
}

func (k cacheKey) String() string {
	return fmt.Sprintf("%s|%d|%d", k.typ, k.start, k.end)
}

type cachedRanking struct {
	entries    []Entry
	computedAt time.Time
}

// Cache serves aggregated rankings with bounded staleness. The key is
// (type, window) only: limit and offset are applied against the cached full
// ranking, so pagination never misses a hit. Concurrent queries for the
// same stale key converge on one recomputation.
type Cache struct {
	agg        *Aggregator
	counters   CountersReader
	cfg        CacheConfig
	flight     singleflight.Group
	mu         sync.RWMutex
	rankings   map[cacheKey]cachedRanking
}

// NewCache creates a cache over the given counters reader and aggregator.
func NewCache(counters CountersReader, agg *Aggregator, cfg CacheConfig) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 2 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Cache{
		agg:      agg,
		counters: counters,
		cfg:      cfg,
		rankings: make(map[cacheKey]cachedRanking),
	}
}

// InvalidateAll drops every cached ranking so the next query of each key
// recomputes. The dispatcher calls this on its round cadence.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	c.rankings = make(map[cacheKey]cachedRanking)
	c.mu.Unlock()
}

// Get serves a leaderboard query, recomputing at most once per stale key.
// A caller whose ctx is cancelled stops waiting, but the in-flight
// recomputation keeps running for the remaining waiters.
func (c *Cache) Get(ctx context.Context, q Query) (Data, error) {
	if q.Type == "" {
		q.Type = TypeKD
	}
	if q.Limit <= 0 || q.Offset < 0 {
		return Data{}, errors.Wrapf(ErrInvalidRange, "limit=%d offset=%d", q.Limit, q.Offset)
	}

	key := cacheKey{typ: q.Type, start: q.StartTime, end: q.EndTime}

	if entries, ok := c.fresh(key); ok {
		if c.cfg.Hooks.Hit != nil {
			c.cfg.Hooks.Hit()
		}
		return c.buildData(q, entries, false)
	}
	if c.cfg.Hooks.Miss != nil {
		c.cfg.Hooks.Miss()
	}

	ch := c.flight.DoChan(key.String(), func() (interface{}, error) {
		return c.recompute(key)
	})

	select {
	case <-ctx.Done():
		return Data{}, errors.Wrap(ctx.Err(), "leaderboard query abandoned")
	case res := <-ch:
		if res.Err != nil {
			if errors.Is(res.Err, ErrAggregationTimeout) {
				return c.serveFallback(q, key)
			}
			// All waiters of this flight see the failure; singleflight has
			// already released the key, so the next query retries.
			return Data{}, errors.Wrap(res.Err, "leaderboard recompute failed")
		}
		return c.buildData(q, res.Val.([]Entry), false)
	}
}

func (c *Cache) fresh(key cacheKey) ([]Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.rankings[key]
	if !ok || c.cfg.Clock().Sub(r.computedAt) >= c.cfg.TTL {
		return nil, false
	}
	return r.entries, true
}

// recompute runs detached from any caller context: a disconnected client
// must not cancel work other waiters still need.
func (c *Cache) recompute(key cacheKey) (interface{}, error) {
	if c.cfg.Hooks.Recompute != nil {
		c.cfg.Hooks.Recompute()
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ReadTimeout)
	defer cancel()

	counters, err := c.counters.ReadCounters(ctx, Window{Start: key.start, End: key.end})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, errors.Wrap(ErrAggregationTimeout, err.Error())
		}
		return nil, err
	}

	entries := c.agg.Rank(counters, key.typ, Window{Start: key.start, End: key.end})

	c.mu.Lock()
	c.rankings[key] = cachedRanking{entries: entries, computedAt: c.cfg.Clock()}
	c.mu.Unlock()

	return entries, nil
}

// serveFallback answers a timed-out recompute with the last-known-good
// ranking, however old, or an empty stale-marked list when none exists.
func (c *Cache) serveFallback(q Query, key cacheKey) (Data, error) {
	c.mu.RLock()
	r, ok := c.rankings[key]
	c.mu.RUnlock()

	if ok {
		log.Printf("leaderboard read timed out, serving ranking from %s", r.computedAt.Format(time.RFC3339))
		return c.buildData(q, r.entries, true)
	}
	log.Printf("leaderboard read timed out with no cached fallback for %s", key)
	return c.buildData(q, nil, true)
}

func (c *Cache) buildData(q Query, entries []Entry, stale bool) (Data, error) {
	page, err := Paginate(entries, q.Limit, q.Offset)
	if err != nil {
		return Data{}, err
	}
	return Data{
		Type:                  q.Type,
		Limit:                 q.Limit,
		Offset:                q.Offset,
		StartTime:             q.StartTime,
		EndTime:               q.EndTime,
		RefreshIntervalRounds: c.cfg.RefreshIntervalRounds,
		CacheTTLSeconds:       int(c.cfg.TTL / time.Second),
		Entries:               page,
		Stale:                 stale,
	}, nil
}
