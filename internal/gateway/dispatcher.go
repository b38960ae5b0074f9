package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/qiminjie89/gatelink/internal/protocol"
	"github.com/qiminjie89/gatelink/pkg/metrics"
)

// payloadContext 处理单个入站载荷时借用的客户端能力。
// 显式传入而非持有客户端引用，处理函数只在调用期间可见这些资源。
type payloadContext struct {
	state     *SessionState
	heartbeat *HeartbeatTimer
	retry     *RetryContext
	token     string
	identify  IdentifyOptions

	send         func(*protocol.Payload) // 出站队列
	dispatch     func(Event)             // Dispatch 流
	fail         func(error)             // 终止本次连接尝试
	armReadyWait func()                  // Identify 发出后启动 Ready 等待

	log *zap.Logger
}

// handlePayload 按操作码分发一个入站载荷
func handlePayload(pc *payloadContext, p *protocol.Payload) {
	switch p.Op {
	case protocol.OpHello:
		handleHello(pc, p)
	case protocol.OpHeartbeat:
		handleHeartbeatRequest(pc)
	case protocol.OpHeartbeatAck:
		handleHeartbeatAck(pc)
	case protocol.OpDispatch:
		handleDispatch(pc, p)
	case protocol.OpReconnect:
		handleReconnect(pc)
	case protocol.OpInvalidSession:
		handleInvalidSession(pc, p)
	default:
		pc.log.Debug("unhandled opcode",
			zap.String("op", p.Op.Name()),
		)
	}
}

// handleHello 启动心跳并发起 Resume 或 Identify
func handleHello(pc *payloadContext, p *protocol.Payload) {
	var hello protocol.HelloData
	if err := json.Unmarshal(p.Data, &hello); err != nil {
		pc.fail(fmt.Errorf("gateway: malformed hello: %w", err))
		return
	}
	if hello.HeartbeatInterval <= 0 {
		pc.fail(fmt.Errorf("gateway: invalid heartbeat interval %d", hello.HeartbeatInterval))
		return
	}

	interval := time.Duration(hello.HeartbeatInterval) * time.Millisecond
	pc.heartbeat.Start(interval)

	if pc.state.CanResume() {
		seq, _ := pc.state.Sequence()
		payload, err := protocol.ResumePayload(protocol.ResumeData{
			Token:     pc.token,
			SessionID: pc.state.SessionID(),
			Seq:       seq,
		})
		if err != nil {
			pc.fail(err)
			return
		}
		pc.log.Info("resuming session",
			zap.String("session_id", pc.state.SessionID()),
			zap.Int64("seq", seq),
		)
		metrics.SessionHandshakes.WithLabelValues("resume").Inc()
		pc.send(payload)
		return
	}

	pc.state.SetResumable(false)
	payload, err := protocol.IdentifyPayload(protocol.IdentifyData{
		Token:          pc.token,
		Properties:     pc.identify.Properties,
		Compress:       pc.identify.Compress,
		LargeThreshold: pc.identify.LargeThreshold,
		Shard:          pc.identify.shard(),
		Presence:       pc.identify.Presence,
	})
	if err != nil {
		pc.fail(err)
		return
	}
	pc.log.Info("identifying", zap.Duration("heartbeat_interval", interval))
	metrics.SessionHandshakes.WithLabelValues("identify").Inc()
	pc.send(payload)
	if pc.armReadyWait != nil {
		pc.armReadyWait()
	}
}

// handleHeartbeatRequest 服务端主动索要心跳，立即应答
func handleHeartbeatRequest(pc *payloadContext) {
	pc.send(protocol.HeartbeatPayload(currentSeq(pc.state)))
}

// handleHeartbeatAck 刷新确认时间
func handleHeartbeatAck(pc *payloadContext) {
	pc.state.TouchAck()
	metrics.HeartbeatAcks.Inc()
}

// handleDispatch 先推进序列号，再解码并投递事件。
// Ready/Resumed 额外完成状态簿记并发布 connected / retry_succeeded。
func handleDispatch(pc *payloadContext, p *protocol.Payload) {
	if p.Seq != nil {
		pc.state.UpdateSequence(*p.Seq)
	}

	ev, err := decodeDispatch(p)
	if err != nil {
		pc.log.Warn("decode dispatch event failed",
			zap.String("event", p.Type),
			zap.Error(err),
		)
		return
	}

	switch e := ev.(type) {
	case *ReadyEvent:
		pc.state.SetSessionID(e.SessionID)
		if e.ResumeGatewayURL != "" {
			pc.state.SetResumeGatewayURL(e.ResumeGatewayURL)
		}
		pc.dispatch(ev)
		latchConnected(pc)
	case *ResumedEvent:
		pc.dispatch(ev)
		latchConnected(pc)
	default:
		pc.dispatch(ev)
	}
}

// latchConnected Ready/Resumed 之后的公共簿记
func latchConnected(pc *payloadContext) {
	if pc.retry.ResetCount() == 0 {
		pc.log.Info("connected to gateway")
		pc.dispatch(&StateChange{State: StateConnected})
	} else {
		attempts := pc.retry.Attempts()
		pc.log.Info("reconnected to gateway", zap.Int("attempts", attempts))
		pc.dispatch(&StateChange{State: StateRetrySucceeded, Attempt: attempts})
	}
	pc.retry.Reset()
	pc.state.SetResumable(true)
}

// handleReconnect 服务端要求重连；保留恢复状态
func handleReconnect(pc *payloadContext) {
	pc.log.Info("server requested reconnect")
	pc.fail(errServerReconnect)
}

// handleInvalidSession 会话失效；载荷体为布尔值，表示是否仍可 Resume
func handleInvalidSession(pc *payloadContext, p *protocol.Payload) {
	var resumable bool
	if err := json.Unmarshal(p.Data, &resumable); err != nil {
		pc.log.Warn("malformed invalid session payload", zap.Error(err))
	}

	if !resumable {
		pc.state.Invalidate()
	}
	pc.log.Warn("session invalidated", zap.Bool("resumable", resumable))
	pc.fail(errInvalidSession)
}

// currentSeq 取当前序列号指针，未观察到时为 nil（心跳 d 为 null）
func currentSeq(s *SessionState) *int64 {
	if seq, ok := s.Sequence(); ok {
		return &seq
	}
	return nil
}
