package ratelimit

import (
	"sync"
	"time"
)

// Clock abstracts wall time so window expiry is testable.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func SystemClock() Clock { return systemClock{} }

// window tracks one user's usage inside the current fixed window.
type window struct {
	count int
	start time.Time
}

// RateLimiter enforces a per-user fixed window: at most limit calls per
// windowSize, resetting windowSize after first use in the window. Safe for
// concurrent callers on the same userID.
type RateLimiter struct {
	mu         sync.Mutex
	windows    map[string]*window
	limit      int
	windowSize time.Duration
	clock      Clock
}

func NewRateLimiter(limit int, windowSize time.Duration, clock Clock) *RateLimiter {
	if clock == nil {
		clock = SystemClock()
	}
	return &RateLimiter{
		windows:    make(map[string]*window),
		limit:      limit,
		windowSize: windowSize,
		clock:      clock,
	}
}

// Allow reports whether userID may act now, consuming budget if so. When
// denied it returns how long the caller should wait before retrying.
func (rl *RateLimiter) Allow(userID string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()

	w, exists := rl.windows[userID]
	if !exists || now.Sub(w.start) >= rl.windowSize {
		rl.windows[userID] = &window{count: 1, start: now}
		return true, 0
	}

	if w.count >= rl.limit {
		return false, w.start.Add(rl.windowSize).Sub(now)
	}

	w.count++
	return true, 0
}

// Cleanup drops windows idle for several window lengths. Called
// periodically so the per-user map does not grow without bound.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	for userID, w := range rl.windows {
		if now.Sub(w.start) > 5*rl.windowSize {
			delete(rl.windows, userID)
		}
	}
}

// StartCleanupRoutine runs Cleanup on a ticker until stop is closed.
func (rl *RateLimiter) StartCleanupRoutine(stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(10 * rl.windowSize)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				rl.Cleanup()
			case <-stop:
				return
			}
		}
	}()
}
