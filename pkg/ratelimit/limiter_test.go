package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenBucketAllowsUpToCapacity(t *testing.T) {
	tb := NewTokenBucket(3, time.Minute)

	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())
}

func TestTokenBucketRefills(t *testing.T) {
	tb := NewTokenBucket(1, 20*time.Millisecond)

	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())

	time.Sleep(30 * time.Millisecond)
	assert.True(t, tb.Allow())
}

func TestTokenBucketReset(t *testing.T) {
	tb := NewTokenBucket(1, time.Minute)

	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())

	tb.Reset()
	assert.True(t, tb.Allow())
}

func TestFixedIntervalZeroIsNoOp(t *testing.T) {
	f := NewFixedInterval(0)

	start := time.Now()
	for i := 0; i < 100; i++ {
		f.Wait()
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond)
	assert.True(t, f.Allow())
}

func TestFixedIntervalEnforcesGap(t *testing.T) {
	interval := 30 * time.Millisecond
	f := NewFixedInterval(interval)

	start := time.Now()
	f.Wait()
	f.Wait()
	f.Wait()

	assert.GreaterOrEqual(t, time.Since(start), 2*interval)
}

func TestFixedIntervalAllow(t *testing.T) {
	f := NewFixedInterval(time.Minute)

	assert.True(t, f.Allow())
	assert.False(t, f.Allow())

	f.Reset()
	assert.True(t, f.Allow())
}

func TestCombinedAllowRequiresAll(t *testing.T) {
	c := Combine(NewTokenBucket(1, time.Minute), NewFixedInterval(0))

	assert.True(t, c.Allow())
	assert.False(t, c.Allow())
}

func TestCombinedWaitSequencesLimiters(t *testing.T) {
	interval := 20 * time.Millisecond
	c := Combine(NewFixedInterval(interval), NewFixedInterval(interval))

	start := time.Now()
	c.Wait()
	c.Wait()

	assert.GreaterOrEqual(t, time.Since(start), interval)
}

func TestCombinedReset(t *testing.T) {
	tb := NewTokenBucket(1, time.Minute)
	f := NewFixedInterval(time.Minute)
	c := Combine(tb, f)

	assert.True(t, c.Allow())
	assert.False(t, c.Allow())

	c.Reset()
	assert.True(t, c.Allow())
}
