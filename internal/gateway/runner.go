package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/qiminjie89/gatelink/internal/protocol"
	"github.com/qiminjie89/gatelink/pkg/logger"
	"github.com/qiminjie89/gatelink/pkg/metrics"
	"github.com/qiminjie89/gatelink/pkg/transport"
)

// 关闭码：调用方请求的永久关闭用 1000，其余情况避开 1000/1001 以保住服务端会话
const (
	closeCodeNormal  = 1000
	closeCodeResumed = 4000
)

// runAttempt 驱动一次完整的传输连接尝试：
// 拨号、Identify/Resume、读写与心跳三路并行，任意一路终止则整体收尾。
// 返回 nil 表示调用方请求的干净关闭。
func (c *Client) runAttempt(ctx context.Context, url string) error {
	connID := uuid.NewString()[:8]
	log := logger.ForConn(connID)

	log.Debug("dialing gateway", zap.String("url", url))
	sess, err := c.dialer.Dial(ctx, url, nil)
	if err != nil {
		metrics.ConnectAttempts.WithLabelValues("error").Inc()
		return fmt.Errorf("gateway: dial: %w", err)
	}
	metrics.ConnectAttempts.WithLabelValues("ok").Inc()
	metrics.Connected.Set(1)
	defer metrics.Connected.Set(0)

	c.state.TouchAck()

	done := make(chan struct{})
	errCh := make(chan error, 1)
	fail := func(err error) {
		select {
		case errCh <- err:
		default:
		}
	}

	var ready atomic.Bool
	armReadyWait := func() {
		if c.readyTimeout <= 0 {
			return
		}
		go func() {
			select {
			case <-done:
			case <-time.After(c.readyTimeout):
				if !ready.Load() {
					fail(fmt.Errorf("%w: no ready within %s", ErrAuthenticationFailed, c.readyTimeout))
				}
			}
		}()
	}

	pc := &payloadContext{
		state:     c.state,
		heartbeat: c.heartbeat,
		retry:     c.retry,
		token:     c.token,
		identify:  c.identify,
		send:      c.enqueue,
		dispatch: func(ev Event) {
			switch ev.(type) {
			case *ReadyEvent, *ResumedEvent:
				ready.Store(true)
			}
			c.publishDispatch(ev)
		},
		fail:         fail,
		armReadyWait: armReadyWait,
		log:          log,
	}

	var wg sync.WaitGroup
	wg.Add(3)
	go c.readPump(&wg, sess, pc, log)
	go c.writePump(&wg, done, sess, fail, log)
	go c.heartbeatLoop(&wg, done, fail, log)

	var res error
	select {
	case res = <-errCh:
	case <-ctx.Done():
		res = ctx.Err()
	}

	close(done)
	c.heartbeat.Stop()
	code := closeCodeResumed
	if errors.Is(res, errCloseRequested) {
		code = closeCodeNormal
	}
	sess.Close(code, "")
	wg.Wait()

	return c.classifyAttempt(res, log)
}

// classifyAttempt 把一次尝试的终止原因映射为监督循环的处理方式
func (c *Client) classifyAttempt(res error, log *zap.Logger) error {
	switch {
	case errors.Is(res, errCloseRequested):
		log.Info("connection closed by caller")
		return nil
	case errors.Is(res, errReconnectRequested):
		metrics.Reconnects.WithLabelValues("caller").Inc()
		return res
	case errors.Is(res, errServerReconnect):
		metrics.Reconnects.WithLabelValues("server_reconnect").Inc()
		return res
	case errors.Is(res, errInvalidSession):
		metrics.Reconnects.WithLabelValues("invalid_session").Inc()
		return res
	case errors.Is(res, ErrZombieConnection):
		metrics.Reconnects.WithLabelValues("zombie").Inc()
		return res
	default:
		metrics.Reconnects.WithLabelValues("transport").Inc()
		log.Warn("connection attempt ended", zap.Error(res))
		return res
	}
}

// readPump 读取入站帧：解码失败记日志后丢弃，其余载荷发布到 receiver 流并分发
func (c *Client) readPump(wg *sync.WaitGroup, sess transport.Session, pc *payloadContext, log *zap.Logger) {
	defer wg.Done()

	for {
		data, err := sess.Read()
		if err != nil {
			pc.fail(classifyReadError(err))
			return
		}

		p, derr := c.codec.Decode(data)
		if derr != nil {
			metrics.DecodeErrors.Inc()
			log.Warn("dropping undecodable frame", zap.Error(derr))
			continue
		}

		metrics.PayloadsReceived.WithLabelValues(p.Op.Name()).Inc()
		c.publishReceiver(p)
		handlePayload(pc, p)
	}
}

// classifyReadError 把读错误映射为错误种类：认证失败、致命关闭码或普通传输错误
func classifyReadError(err error) error {
	if code, ok := transport.CloseCode(err); ok {
		if code == protocol.CloseAuthenticationFailed {
			return fmt.Errorf("%w: close code %d", ErrAuthenticationFailed, code)
		}
		return &protocol.CloseError{Code: code}
	}
	return fmt.Errorf("gateway: transport read: %w", err)
}

// writePump 消费出站队列并写帧。哨兵载荷（本地关闭/重连请求）不上线，只终止本次尝试。
func (c *Client) writePump(wg *sync.WaitGroup, done chan struct{}, sess transport.Session, fail func(error), log *zap.Logger) {
	defer wg.Done()

	for {
		select {
		case <-done:
			return
		case p := <-c.sendCh:
			switch p.Op {
			case opClientClose:
				fail(errCloseRequested)
				return
			case protocol.OpReconnect:
				fail(errReconnectRequested)
				return
			}

			data, err := c.codec.Encode(p)
			if err != nil {
				log.Warn("encode outbound payload failed",
					zap.String("op", p.Op.Name()),
					zap.Error(err),
				)
				continue
			}
			if err := sess.Write(data); err != nil {
				fail(fmt.Errorf("gateway: transport write: %w", err))
				return
			}

			metrics.PayloadsSent.WithLabelValues(p.Op.Name()).Inc()
			if p.Op == protocol.OpHeartbeat {
				metrics.HeartbeatsSent.Inc()
			}
		}
	}
}

// heartbeatLoop 每个滴答检查确认延迟：超出一个周期判定僵尸连接，否则入队心跳
func (c *Client) heartbeatLoop(wg *sync.WaitGroup, done chan struct{}, fail func(error), log *zap.Logger) {
	defer wg.Done()

	for {
		select {
		case <-done:
			return
		case <-c.heartbeat.Ticks():
			period := c.heartbeat.Period()
			if elapsed := time.Since(c.state.LastAck()); elapsed > period {
				log.Warn("missing heartbeat ack",
					zap.Duration("elapsed", elapsed),
					zap.Duration("period", period),
				)
				fail(ErrZombieConnection)
				return
			}
			c.enqueue(protocol.HeartbeatPayload(currentSeq(c.state)))
		}
	}
}
