package api

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestRateLimiterSharedPerIP(t *testing.T) {
	rl := NewIPRateLimiter(RateLimitConfig{RequestsPerSecond: 1, Burst: 1})
	defer rl.Stop()

	a := rl.getLimiter("10.0.0.1")
	b := rl.getLimiter("10.0.0.1")
	if a != b {
		t.Error("same IP must share one limiter")
	}
	if c := rl.getLimiter("10.0.0.2"); c == a {
		t.Error("distinct IPs must not share a limiter")
	}
}

// Request handlers refresh lastSeen while the cleanup loop scans entries,
// so the field must be safe to touch from both sides concurrently. Run
// with the race detector to catch unsynchronized access.
func TestRateLimiterConcurrentTouchAndScan(t *testing.T) {
	rl := NewIPRateLimiter(RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000})
	defer rl.Stop()

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				rl.getLimiter(fmt.Sprintf("10.0.%d.%d", g, i%8))
			}
		}(g)
	}

	// Mirror of the cleanup pass, racing against the touches above.
	scanDone := make(chan struct{})
	go func() {
		defer close(scanDone)
		cutoff := time.Now().Add(-time.Hour).UnixNano()
		for {
			select {
			case <-stop:
				return
			default:
			}
			rl.limiters.Range(func(key, value any) bool {
				if value.(*ipLimiterEntry).lastSeen.Load() < cutoff {
					rl.limiters.Delete(key)
				}
				return true
			})
		}
	}()

	wg.Wait()
	close(stop)
	<-scanDone

	if _, ok := rl.limiters.Load("10.0.0.0"); !ok {
		t.Error("recently touched entry must survive the scan")
	}
}
