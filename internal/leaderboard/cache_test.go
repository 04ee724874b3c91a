package leaderboard

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
)

// fakeReader counts reads and can block or fail on demand.
type fakeReader struct {
	mu      sync.Mutex
	rows    []PlayerCounters
	reads   int32
	block   chan struct{} // when set, reads wait here first
	failErr error
}

func (f *fakeReader) ReadCounters(ctx context.Context, window Window) ([]PlayerCounters, error) {
	atomic.AddInt32(&f.reads, 1)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return nil, f.failErr
	}
	out := make([]PlayerCounters, len(f.rows))
	copy(out, f.rows)
	return out, nil
}

func (f *fakeReader) readCount() int {
	return int(atomic.LoadInt32(&f.reads))
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestCache(reader *fakeReader, clock *fakeClock, ttl time.Duration) *Cache {
	return NewCache(reader, NewAggregator(3), CacheConfig{
		TTL:                   ttl,
		ReadTimeout:           100 * time.Millisecond,
		RefreshIntervalRounds: 5,
		Clock:                 clock.Now,
	})
}

// TestCacheHitWithinTTL a second query inside the TTL must not touch the
// reader, and pagination variants share the same cached ranking.
func TestCacheHitWithinTTL(t *testing.T) {
	reader := &fakeReader{rows: []PlayerCounters{
		counters("a", 3, 1, 5, 1, 1, 1),
		counters("b", 2, 1, 5, 1, 1, 1),
	}}
	clock := &fakeClock{now: time.Unix(1000, 0)}
	cache := newTestCache(reader, clock, 5*time.Second)

	first, err := cache.Get(context.Background(), Query{Type: TypeKD, Limit: 10})
	if err != nil {
		t.Fatalf("first get: %v", err)
	}
	if len(first.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(first.Entries))
	}

	// Different pagination, same key: must be a hit.
	second, err := cache.Get(context.Background(), Query{Type: TypeKD, Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if reader.readCount() != 1 {
		t.Errorf("expected 1 read, got %d", reader.readCount())
	}
	if len(second.Entries) != 1 || second.Entries[0].UID != "b" || second.Entries[0].Rank != 2 {
		t.Errorf("paginated hit wrong: %+v", second.Entries)
	}

	// Past the TTL the same key recomputes.
	clock.Advance(6 * time.Second)
	if _, err := cache.Get(context.Background(), Query{Type: TypeKD, Limit: 10}); err != nil {
		t.Fatalf("third get: %v", err)
	}
	if reader.readCount() != 2 {
		t.Errorf("expected recompute after TTL, reads = %d", reader.readCount())
	}
}

// TestCacheDistinctKeys different metrics and windows are independent keys.
func TestCacheDistinctKeys(t *testing.T) {
	reader := &fakeReader{rows: []PlayerCounters{counters("a", 1, 1, 5, 1, 1, 1)}}
	clock := &fakeClock{now: time.Unix(1000, 0)}
	cache := newTestCache(reader, clock, time.Minute)

	queries := []Query{
		{Type: TypeKD, Limit: 10},
		{Type: TypeMaxLength, Limit: 10},
		{Type: TypeKD, Limit: 10, StartTime: 1, EndTime: 2},
	}
	for _, q := range queries {
		if _, err := cache.Get(context.Background(), q); err != nil {
			t.Fatalf("get %+v: %v", q, err)
		}
	}
	if reader.readCount() != 3 {
		t.Errorf("expected 3 reads for 3 keys, got %d", reader.readCount())
	}
}

// TestCacheSingleFlight N concurrent queries for the same stale key
// trigger exactly one underlying read.
func TestCacheSingleFlight(t *testing.T) {
	reader := &fakeReader{
		rows:  []PlayerCounters{counters("a", 1, 1, 5, 1, 1, 1)},
		block: make(chan struct{}),
	}
	clock := &fakeClock{now: time.Unix(1000, 0)}
	cache := newTestCache(reader, clock, time.Minute)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	started := make(chan struct{}, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			started <- struct{}{}
			_, errs[i] = cache.Get(context.Background(), Query{Type: TypeKD, Limit: 10})
		}(i)
	}

	for i := 0; i < n; i++ {
		<-started
	}
	// Give the goroutines time to converge on the flight, then release it.
	time.Sleep(20 * time.Millisecond)
	close(reader.block)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("query %d failed: %v", i, err)
		}
	}
	if reader.readCount() != 1 {
		t.Errorf("single-flight violated: %d reads for %d concurrent queries", reader.readCount(), n)
	}
}

// TestCacheInvalidateAll the dispatcher refresh signal forces the next
// query to recompute even inside the TTL.
func TestCacheInvalidateAll(t *testing.T) {
	reader := &fakeReader{rows: []PlayerCounters{counters("a", 1, 1, 5, 1, 1, 1)}}
	clock := &fakeClock{now: time.Unix(1000, 0)}
	cache := newTestCache(reader, clock, time.Hour)

	if _, err := cache.Get(context.Background(), Query{Type: TypeKD, Limit: 10}); err != nil {
		t.Fatalf("get: %v", err)
	}
	cache.InvalidateAll()
	if _, err := cache.Get(context.Background(), Query{Type: TypeKD, Limit: 10}); err != nil {
		t.Fatalf("get after invalidate: %v", err)
	}
	if reader.readCount() != 2 {
		t.Errorf("expected recompute after InvalidateAll, reads = %d", reader.readCount())
	}
}

// TestCacheTimeoutServesLastKnownGood a read past its bound serves the
// previous ranking marked stale instead of failing.
func TestCacheTimeoutServesLastKnownGood(t *testing.T) {
	reader := &fakeReader{rows: []PlayerCounters{counters("a", 1, 1, 5, 1, 1, 1)}}
	clock := &fakeClock{now: time.Unix(1000, 0)}
	cache := newTestCache(reader, clock, time.Second)

	warm, err := cache.Get(context.Background(), Query{Type: TypeKD, Limit: 10})
	if err != nil {
		t.Fatalf("warm get: %v", err)
	}
	if warm.Stale {
		t.Error("fresh result must not be stale")
	}

	// Expire the entry and make the next read hang past ReadTimeout.
	clock.Advance(time.Minute)
	reader.block = make(chan struct{})
	defer close(reader.block)

	got, err := cache.Get(context.Background(), Query{Type: TypeKD, Limit: 10})
	if err != nil {
		t.Fatalf("timeout fallback must not fail: %v", err)
	}
	if !got.Stale {
		t.Error("fallback result must be marked stale")
	}
	if len(got.Entries) != 1 || got.Entries[0].UID != "a" {
		t.Errorf("fallback must serve last-known-good entries, got %+v", got.Entries)
	}
}

// TestCacheTimeoutWithoutFallback with nothing cached, a timeout yields an
// empty stale list, not an error.
func TestCacheTimeoutWithoutFallback(t *testing.T) {
	reader := &fakeReader{block: make(chan struct{})}
	defer close(reader.block)
	clock := &fakeClock{now: time.Unix(1000, 0)}
	cache := newTestCache(reader, clock, time.Second)

	got, err := cache.Get(context.Background(), Query{Type: TypeKD, Limit: 10})
	if err != nil {
		t.Fatalf("expected stale empty result, got error: %v", err)
	}
	if !got.Stale || len(got.Entries) != 0 {
		t.Errorf("want empty stale result, got stale=%v entries=%v", got.Stale, got.Entries)
	}
}

// TestCacheRecomputeFailureReleasesKey a failed flight surfaces the error
// and the next query retries (the key is not stuck in-flight).
func TestCacheRecomputeFailureReleasesKey(t *testing.T) {
	boom := errors.New("counters store exploded")
	reader := &fakeReader{failErr: boom}
	clock := &fakeClock{now: time.Unix(1000, 0)}
	cache := newTestCache(reader, clock, time.Minute)

	if _, err := cache.Get(context.Background(), Query{Type: TypeKD, Limit: 10}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}

	// Clear the failure; the same key must recompute successfully.
	reader.mu.Lock()
	reader.failErr = nil
	reader.rows = []PlayerCounters{counters("a", 1, 1, 5, 1, 1, 1)}
	reader.mu.Unlock()

	got, err := cache.Get(context.Background(), Query{Type: TypeKD, Limit: 10})
	if err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	if len(got.Entries) != 1 {
		t.Errorf("expected 1 entry after retry, got %d", len(got.Entries))
	}
	if reader.readCount() != 2 {
		t.Errorf("expected 2 reads, got %d", reader.readCount())
	}
}

// TestCacheInvalidRange rejected before any recomputation happens.
func TestCacheInvalidRange(t *testing.T) {
	reader := &fakeReader{}
	clock := &fakeClock{now: time.Unix(1000, 0)}
	cache := newTestCache(reader, clock, time.Minute)

	if _, err := cache.Get(context.Background(), Query{Type: TypeKD, Limit: 0}); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
	if reader.readCount() != 0 {
		t.Errorf("invalid query must not trigger a read, got %d", reader.readCount())
	}
}

// TestCacheAdvisoryFields response metadata echoes configuration.
func TestCacheAdvisoryFields(t *testing.T) {
	reader := &fakeReader{}
	clock := &fakeClock{now: time.Unix(1000, 0)}
	cache := NewCache(reader, NewAggregator(3), CacheConfig{
		TTL:                   5 * time.Second,
		ReadTimeout:           time.Second,
		RefreshIntervalRounds: 7,
		Clock:                 clock.Now,
	})

	got, err := cache.Get(context.Background(), Query{Type: TypeMaxLength, Limit: 20, Offset: 3, StartTime: 10, EndTime: 99})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Type != TypeMaxLength || got.Limit != 20 || got.Offset != 3 ||
		got.StartTime != 10 || got.EndTime != 99 ||
		got.RefreshIntervalRounds != 7 || got.CacheTTLSeconds != 5 {
		t.Errorf("advisory fields wrong: %+v", got)
	}
}
