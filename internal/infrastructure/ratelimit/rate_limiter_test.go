package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

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
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestAllowWithinBudget(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	rl := NewRateLimiter(3, time.Minute, clock)

	for i := 0; i < 3; i++ {
		ok, _ := rl.Allow("user-1")
		assert.True(t, ok, "send %d should be allowed", i+1)
	}

	ok, wait := rl.Allow("user-1")
	assert.False(t, ok, "limit+1 send must be rejected")
	assert.Greater(t, wait, time.Duration(0))

	// Another user has an independent budget.
	ok, _ = rl.Allow("user-2")
	assert.True(t, ok)
}

func TestWindowReset(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	rl := NewRateLimiter(2, time.Minute, clock)

	rl.Allow("user-1")
	rl.Allow("user-1")
	ok, _ := rl.Allow("user-1")
	assert.False(t, ok)

	clock.Advance(time.Minute)
	ok, _ = rl.Allow("user-1")
	assert.True(t, ok, "budget must refresh after the window elapses")
}

func TestRejectionDoesNotConsume(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	rl := NewRateLimiter(1, time.Minute, clock)

	rl.Allow("user-1")
	for i := 0; i < 10; i++ {
		ok, _ := rl.Allow("user-1")
		assert.False(t, ok)
	}

	clock.Advance(time.Minute)
	ok, _ := rl.Allow("user-1")
	assert.True(t, ok, "rejected calls must not extend the window")
}

func TestConcurrentAllowNoLostUpdates(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	rl := NewRateLimiter(100, time.Minute, clock)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0

	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := rl.Allow("user-1"); ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, allowed, "exactly the budget must be admitted")
}

func TestCleanup(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	rl := NewRateLimiter(5, time.Minute, clock)

	rl.Allow("user-1")
	clock.Advance(10 * time.Minute)
	rl.Cleanup()

	rl.mu.Lock()
	_, exists := rl.windows["user-1"]
	rl.mu.Unlock()
	assert.False(t, exists, "idle window should be dropped")
}
