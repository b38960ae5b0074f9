package gateway

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/qiminjie89/gatelink/internal/protocol"
	"github.com/qiminjie89/gatelink/pkg/logger"
	"github.com/qiminjie89/gatelink/pkg/metrics"
	"github.com/qiminjie89/gatelink/pkg/transport"
)

// opClientClose 本地关闭哨兵，不属于线上协议，只在出站队列内流转
const opClientClose = protocol.Opcode(-1)

// Client 网关客户端门面。
// 持有会话状态、心跳定时器、重试上下文与三条流（dispatch / receiver / sender），
// 并在监督循环中反复执行连接尝试直到永久关闭。
type Client struct {
	token        string
	identify     IdentifyOptions
	retryPolicy  RetryPolicy
	retry        *RetryContext
	dialer       transport.Dialer
	codec        protocol.Codec
	readyTimeout time.Duration

	state     *SessionState
	heartbeat *HeartbeatTimer

	dispatchCh chan Event
	receiverCh chan *protocol.Payload
	sendCh     chan *protocol.Payload

	quit      chan struct{}
	closeOnce sync.Once

	// 会话失效后的重连延迟，可在测试中替换
	invalidSessionDelay func() time.Duration

	log *zap.Logger
}

// NewClient 创建客户端。Identify 中的恢复起点非空时，首次连接尝试 Resume。
func NewClient(opts Options) *Client {
	opts.withDefaults()

	c := &Client{
		token:        opts.Token,
		identify:     opts.Identify,
		retryPolicy:  opts.Retry,
		retry:        &RetryContext{},
		dialer:       opts.Dialer,
		codec:        opts.Codec,
		readyTimeout: opts.ReadyTimeout,
		state:        NewSessionState(),
		heartbeat:    NewHeartbeatTimer(),
		dispatchCh:   make(chan Event, opts.BufferSize),
		receiverCh:   make(chan *protocol.Payload, opts.BufferSize),
		sendCh:       make(chan *protocol.Payload, opts.BufferSize),
		quit:         make(chan struct{}),
		invalidSessionDelay: func() time.Duration {
			return time.Second + time.Duration(rand.Int63n(int64(4*time.Second)))
		},
		log: logger.With(zap.String("component", "gateway_client")),
	}

	if opts.Identify.ResumeSessionID != "" && opts.Identify.ResumeSequence != nil {
		c.state.SetSessionID(opts.Identify.ResumeSessionID)
		c.state.SetSequence(*opts.Identify.ResumeSequence)
		c.state.SetResumable(true)
	}

	return c
}

// Run 启动重连监督循环，阻塞直到永久关闭或致命错误。
// 每次尝试失败后按退避策略调度下一次；Ready/Resumed 成功会重置退避计数。
func (c *Client) Run(ctx context.Context, url string) error {
	if url == "" {
		return errors.New("gateway: empty gateway url")
	}

	defer func() {
		c.publishDispatch(&StateChange{State: StateDisconnected})
		c.log.Info("disconnected from gateway")
		close(c.dispatchCh)
		close(c.receiverCh)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.quit:
			return nil
		default:
		}

		attemptURL := url
		if ru := c.state.ResumeGatewayURL(); ru != "" && c.state.CanResume() {
			attemptURL = ru
		}

		err := c.runAttempt(ctx, attemptURL)
		if err == nil {
			return nil
		}
		if isFatal(err) {
			c.log.Error("gateway client terminated", zap.Error(err))
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// 会话失效：短随机延迟后立即重试，不消耗退避预算
		if errors.Is(err, errInvalidSession) {
			delay := c.invalidSessionDelay()
			c.log.Info("session invalidated, reconnecting",
				zap.Duration("delay", delay),
			)
			if !c.sleep(ctx, delay) {
				return ctx.Err()
			}
			continue
		}

		// 重连请求（本地或服务端）：立即重连
		if errors.Is(err, errReconnectRequested) || errors.Is(err, errServerReconnect) {
			continue
		}

		attempt := c.retry.Next()
		if c.retryPolicy.Exhausted(attempt) {
			c.log.Error("retry budget exhausted",
				zap.Int("attempts", attempt-1),
				zap.Error(err),
			)
			return fmt.Errorf("%w after %d attempts: %v", ErrMaxRetriesExceeded, attempt-1, err)
		}

		delay := c.retryPolicy.NextDelay(attempt)
		if attempt == 1 {
			c.publishDispatch(&StateChange{State: StateRetryStarted, Delay: delay})
		} else {
			c.publishDispatch(&StateChange{State: StateRetryFailed, Attempt: attempt - 1, Delay: delay})
			// 连续失败超过一次后放弃 Resume，下次连接重新 Identify
			c.state.SetResumable(false)
		}
		c.log.Info("scheduling reconnect",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
		)

		if !c.sleep(ctx, delay) {
			return ctx.Err()
		}
	}
}

// sleep 可被取消或 Close 打断的延迟；正常睡满返回 true
func (c *Client) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	case <-c.quit:
		return false
	}
}

// Dispatch 返回高层事件流：解码后的服务端事件与合成状态变更。
// 溢出策略为保留最新。客户端永久关闭后通道关闭。
func (c *Client) Dispatch() <-chan Event {
	return c.dispatchCh
}

// Receiver 返回原始入站载荷流，溢出策略为保留最新
func (c *Client) Receiver() <-chan *protocol.Payload {
	return c.receiverCh
}

// Send 把载荷放入发送队列。非阻塞：队列满时丢弃最旧条目。
// 单一逻辑生产者；并发调用方需自行串行化。
func (c *Client) Send(p *protocol.Payload) {
	c.enqueue(p)
}

// SendAll 订阅 src 并逐个转发到发送队列，直到 src 关闭或 ctx 结束
func (c *Client) SendAll(ctx context.Context, src <-chan *protocol.Payload) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.quit:
			return
		case p, ok := <-src:
			if !ok {
				return
			}
			c.enqueue(p)
		}
	}
}

// Close 关闭客户端。reconnect 为 true 时放弃当前会话并立即重连（重新 Identify）；
// 为 false 时永久关闭，Run 返回 nil。Close(false) 幂等。
func (c *Client) Close(reconnect bool) {
	if reconnect {
		c.state.SetResumable(false)
		c.enqueue(&protocol.Payload{Op: protocol.OpReconnect})
		return
	}
	c.closeOnce.Do(func() {
		c.enqueue(&protocol.Payload{Op: opClientClose})
		close(c.quit)
	})
}

// SessionID 当前会话 ID，供调用方持久化用于后续 Resume
func (c *Client) SessionID() string {
	return c.state.SessionID()
}

// Sequence 最近观察到的序列号
func (c *Client) Sequence() (int64, bool) {
	return c.state.Sequence()
}

// enqueue 出站队列的保留最新写入
func (c *Client) enqueue(p *protocol.Payload) {
	for {
		select {
		case c.sendCh <- p:
			return
		default:
		}
		select {
		case <-c.sendCh:
			metrics.StreamDropped.WithLabelValues("sender").Inc()
		default:
		}
	}
}

// publishDispatch Dispatch 流的保留最新写入
func (c *Client) publishDispatch(ev Event) {
	for {
		select {
		case c.dispatchCh <- ev:
			return
		default:
		}
		select {
		case <-c.dispatchCh:
			metrics.StreamDropped.WithLabelValues("dispatch").Inc()
		default:
		}
	}
}

// publishReceiver Receiver 流的保留最新写入
func (c *Client) publishReceiver(p *protocol.Payload) {
	for {
		select {
		case c.receiverCh <- p:
			return
		default:
		}
		select {
		case <-c.receiverCh:
			metrics.StreamDropped.WithLabelValues("receiver").Inc()
		default:
		}
	}
}
