package gateway

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// RetryPolicy 带抖动的指数退避策略
type RetryPolicy struct {
	First      time.Duration // 首次退避
	Max        time.Duration // 退避上限
	Jitter     float64       // 抖动比例，取值 [0,1]
	MaxRetries int           // 最大重试次数，0 表示不限
}

// DefaultRetryPolicy 默认策略：2s 起步，120s 封顶，50% 抖动，不限次数
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		First:  2 * time.Second,
		Max:    120 * time.Second,
		Jitter: 0.5,
	}
}

// NextDelay 计算第 attempt 次重试的延迟：
// min(First·2^(attempt-1), Max) · (1 + U[-Jitter, +Jitter])，下限为 0。
func (p RetryPolicy) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	base := float64(p.First) * math.Pow(2, float64(attempt-1))
	if base > float64(p.Max) {
		base = float64(p.Max)
	}

	factor := 1 + (rand.Float64()*2-1)*p.Jitter
	d := time.Duration(base * factor)
	if d < 0 {
		d = 0
	}
	return d
}

// Exhausted 第 attempt 次重试是否超出预算
func (p RetryPolicy) Exhausted(attempt int) bool {
	return p.MaxRetries > 0 && attempt > p.MaxRetries
}

// RetryContext 重连尝试计数；Ready/Resumed 成功后归零
type RetryContext struct {
	mu         sync.Mutex
	attempts   int
	resetCount int
}

// Next 进入下一次重试，返回当前尝试序号（从 1 开始）
func (c *RetryContext) Next() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts++
	return c.attempts
}

// Attempts 当前连续失败的尝试次数
func (c *RetryContext) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// ResetCount 成功连接的累计次数
func (c *RetryContext) ResetCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resetCount
}

// Reset 连接成功后清零尝试计数
func (c *RetryContext) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts = 0
	c.resetCount++
}
