package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConstantBackoff(t *testing.T) {
	cb := &ConstantBackoff{Delay: 10 * time.Second}

	assert.Equal(t, time.Duration(0), cb.NextDelay(0))
	assert.Equal(t, 10*time.Second, cb.NextDelay(1))
	assert.Equal(t, 10*time.Second, cb.NextDelay(5))
}

func TestExponentialBackoffGrows(t *testing.T) {
	eb := &ExponentialBackoff{
		BaseDelay:  time.Second,
		MaxDelay:   time.Minute,
		Multiplier: 2.0,
	}

	assert.Equal(t, time.Second, eb.NextDelay(1))
	assert.Equal(t, 2*time.Second, eb.NextDelay(2))
	assert.Equal(t, 4*time.Second, eb.NextDelay(3))
}

func TestExponentialBackoffCapsAtMax(t *testing.T) {
	eb := &ExponentialBackoff{
		BaseDelay:  time.Second,
		MaxDelay:   5 * time.Second,
		Multiplier: 2.0,
	}

	assert.Equal(t, 5*time.Second, eb.NextDelay(10))
}

func TestExponentialBackoffJitterStaysInRange(t *testing.T) {
	eb := DefaultExponentialBackoff()

	for i := 0; i < 100; i++ {
		delay := eb.NextDelay(3)
		assert.GreaterOrEqual(t, delay, time.Duration(0))
		assert.LessOrEqual(t, delay, eb.MaxDelay+time.Duration(float64(eb.MaxDelay)*eb.JitterFactor))
	}
}

func TestWaitReturnsImmediatelyForZeroDelay(t *testing.T) {
	start := time.Now()
	assert.NoError(t, Wait(context.Background(), 0))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestWaitCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := Wait(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}
