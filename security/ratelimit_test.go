package security

import (
	"fmt"
	"testing"
	"time"
)

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(1, 2, nil)
	defer rl.Stop()

	// Burst of 2 allowed immediately
	if !rl.Allow("1.2.3.4") {
		t.Error("first request should be allowed")
	}
	if !rl.Allow("1.2.3.4") {
		t.Error("second request (within burst) should be allowed")
	}
	if rl.Allow("1.2.3.4") {
		t.Error("third request should be rejected")
	}

	// Independent identifier has its own bucket
	if !rl.Allow("5.6.7.8") {
		t.Error("request from other identifier should be allowed")
	}
}

func TestRateLimiter_LRUEviction(t *testing.T) {
	rl := NewRateLimiterWithConfig(10, 10, 3, nil)
	defer rl.Stop()

	for i := 0; i < 5; i++ {
		rl.Allow(fmt.Sprintf("ip-%d", i))
	}

	if size := rl.Size(); size != 3 {
		t.Errorf("Size() = %d, want 3 after LRU eviction", size)
	}
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter(10, 10, nil)
	defer rl.Stop()

	rl.Allow("stale")

	// Force the entry to look inactive, then sweep
	rl.mu.Lock()
	rl.lruList.Back().Value.(*rateLimiterEntry).lastAccess = time.Now().Add(-time.Hour)
	rl.mu.Unlock()

	rl.cleanup()

	if size := rl.Size(); size != 0 {
		t.Errorf("Size() = %d, want 0 after cleanup", size)
	}
}
