package handlers

import (
	"sync"
	"time"
)

// RateLimiter counts auth attempts per client IP in fixed windows. All
// counters are forgotten together when a window ends.
type RateLimiter struct {
	attempts map[string]int
	limit    int
	window   time.Duration
	resetAt  time.Time
	mutex    sync.Mutex

	stop     chan struct{}
	stopOnce sync.Once
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		attempts: make(map[string]int),
		limit:    limit,
		window:   window,
		resetAt:  time.Now().Add(window),
		stop:     make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// Allow records an attempt from ip and reports whether it is within the limit.
// Rejected attempts are not counted.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	if rl.attempts[ip] >= rl.limit {
		return false
	}
	rl.attempts[ip]++
	return true
}

// RetryAfter is the time left until the current window ends.
func (rl *RateLimiter) RetryAfter() time.Duration {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()
	if left := time.Until(rl.resetAt); left > 0 {
		return left
	}
	return 0
}

func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			rl.mutex.Lock()
			clear(rl.attempts)
			rl.resetAt = now.Add(rl.window)
			rl.mutex.Unlock()
		case <-rl.stop:
			return
		}
	}
}
