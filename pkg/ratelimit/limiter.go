package ratelimit

import (
	"sync"
	"time"
)

// Limiter paces outgoing network calls.
type Limiter interface {
	// Allow reports whether a call may proceed right now.
	Allow() bool
	// Wait blocks until the limiter admits another call.
	Wait()
	// Reset restores the limiter to its initial state.
	Reset()
}

// TokenBucket admits up to capacity calls per refill period.
type TokenBucket struct {
	capacity     int
	tokens       int
	refillPeriod time.Duration
	lastRefill   time.Time
	mu           sync.Mutex
}

// NewTokenBucket creates a token bucket limiter.
func NewTokenBucket(capacity int, refillPeriod time.Duration) *TokenBucket {
	return &TokenBucket{
		capacity:     capacity,
		tokens:       capacity,
		refillPeriod: refillPeriod,
		lastRefill:   time.Now(),
	}
}

func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

func (tb *TokenBucket) Wait() {
	for !tb.Allow() {
		tb.mu.Lock()
		remaining := tb.refillPeriod - time.Since(tb.lastRefill)
		tb.mu.Unlock()

		if remaining > 0 {
			time.Sleep(remaining)
		} else {
			time.Sleep(100 * time.Millisecond)
		}
	}
}

func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.tokens = tb.capacity
	tb.lastRefill = time.Now()
}

func (tb *TokenBucket) refill() {
	now := time.Now()
	if now.Sub(tb.lastRefill) >= tb.refillPeriod {
		tb.tokens = tb.capacity
		tb.lastRefill = now
	}
}

// FixedInterval enforces a minimum gap between consecutive calls. It
// is the crawl politeness delay: every physical network call on a path
// waits out the interval, no matter how many goroutines share the
// limiter.
type FixedInterval struct {
	interval time.Duration
	last     time.Time
	mu       sync.Mutex
}

// NewFixedInterval creates a fixed-gap limiter. A zero or negative
// interval admits every call immediately.
func NewFixedInterval(interval time.Duration) *FixedInterval {
	return &FixedInterval{interval: interval}
}

func (f *FixedInterval) Allow() bool {
	if f.interval <= 0 {
		return true
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now()
	if f.last.IsZero() || now.Sub(f.last) >= f.interval {
		f.last = now
		return true
	}
	return false
}

func (f *FixedInterval) Wait() {
	if f.interval <= 0 {
		return
	}
	for {
		f.mu.Lock()
		now := time.Now()
		if f.last.IsZero() || now.Sub(f.last) >= f.interval {
			f.last = now
			f.mu.Unlock()
			return
		}
		sleep := f.interval - now.Sub(f.last)
		f.mu.Unlock()
		time.Sleep(sleep)
	}
}

func (f *FixedInterval) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = time.Time{}
}

// Combined gates a call behind several limiters at once. Wait blocks
// until every limiter has admitted the call, in order.
type Combined struct {
	limiters []Limiter
}

// Combine builds a limiter from several others.
func Combine(limiters ...Limiter) *Combined {
	return &Combined{limiters: limiters}
}

func (c *Combined) Allow() bool {
	for _, l := range c.limiters {
		if !l.Allow() {
			return false
		}
	}
	return true
}

func (c *Combined) Wait() {
	for _, l := range c.limiters {
		l.Wait()
	}
}

func (c *Combined) Reset() {
	for _, l := range c.limiters {
		l.Reset()
	}
}
