package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextDelayJitterBounds(t *testing.T) {
	p := RetryPolicy{First: 100 * time.Millisecond, Max: time.Minute, Jitter: 0.25}

	lo := 75 * time.Millisecond
	hi := 125 * time.Millisecond
	for i := 0; i < 1000; i++ {
		d := p.NextDelay(1)
		assert.GreaterOrEqual(t, d, lo)
		assert.LessOrEqual(t, d, hi)
	}
}

func TestNextDelayExponentialGrowth(t *testing.T) {
	p := RetryPolicy{First: 100 * time.Millisecond, Max: 250 * time.Millisecond, Jitter: 0}

	assert.Equal(t, 100*time.Millisecond, p.NextDelay(1))
	assert.Equal(t, 200*time.Millisecond, p.NextDelay(2))
	// 第三次起被上限截断
	assert.Equal(t, 250*time.Millisecond, p.NextDelay(3))
	assert.Equal(t, 250*time.Millisecond, p.NextDelay(10))
}

func TestNextDelayLargeAttemptDoesNotOverflow(t *testing.T) {
	p := RetryPolicy{First: time.Second, Max: 2 * time.Minute, Jitter: 0}

	assert.Equal(t, 2*time.Minute, p.NextDelay(64))
	assert.GreaterOrEqual(t, p.NextDelay(128), time.Duration(0))
}

func TestExhausted(t *testing.T) {
	unlimited := RetryPolicy{First: time.Second, Max: time.Minute}
	assert.False(t, unlimited.Exhausted(1000))

	bounded := RetryPolicy{First: time.Second, Max: time.Minute, MaxRetries: 3}
	assert.False(t, bounded.Exhausted(3))
	assert.True(t, bounded.Exhausted(4))
}

func TestRetryContext(t *testing.T) {
	ctx := &RetryContext{}

	assert.Equal(t, 0, ctx.Attempts())
	assert.Equal(t, 0, ctx.ResetCount())

	assert.Equal(t, 1, ctx.Next())
	assert.Equal(t, 2, ctx.Next())
	assert.Equal(t, 2, ctx.Attempts())

	ctx.Reset()
	assert.Equal(t, 0, ctx.Attempts())
	assert.Equal(t, 1, ctx.ResetCount())
}
