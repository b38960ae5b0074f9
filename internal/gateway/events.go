package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/qiminjie89/gatelink/internal/protocol"
)

// Event 出现在 Dispatch 流上的条目：解码后的服务端事件或合成的状态变更
type Event interface {
	// EventType 事件名，状态变更为 "GATEWAY_STATE_CHANGE"
	EventType() string
}

// ReadyEvent 会话建立完成
type ReadyEvent struct {
	SessionID        string
	ResumeGatewayURL string
	Data             json.RawMessage // 完整事件体，供上层按需解码
}

// EventType 实现 Event
func (*ReadyEvent) EventType() string { return "READY" }

// ResumedEvent 会话恢复完成
type ResumedEvent struct{}

// EventType 实现 Event
func (*ResumedEvent) EventType() string { return "RESUMED" }

// DispatchEvent 未特化处理的服务端事件（开放集合）
type DispatchEvent struct {
	Type string
	Seq  int64
	Data json.RawMessage
}

// EventType 实现 Event
func (e *DispatchEvent) EventType() string { return e.Type }

// State 监督循环层面的连接状态
type State int

const (
	StateConnected State = iota
	StateDisconnected
	StateRetryStarted
	StateRetryFailed
	StateRetrySucceeded
)

// String 状态名称
func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateRetryStarted:
		return "retry_started"
	case StateRetryFailed:
		return "retry_failed"
	case StateRetrySucceeded:
		return "retry_succeeded"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// StateChange 注入 Dispatch 流的合成状态变更事件
type StateChange struct {
	State   State
	Attempt int           // RetryFailed / RetrySucceeded 时有效
	Delay   time.Duration // RetryStarted / RetryFailed 时有效
}

// EventType 实现 Event
func (*StateChange) EventType() string { return "GATEWAY_STATE_CHANGE" }

// decodeDispatch 按事件名解码事件体；未注册的事件名走开放集合
func decodeDispatch(p *protocol.Payload) (Event, error) {
	var seq int64
	if p.Seq != nil {
		seq = *p.Seq
	}

	switch p.Type {
	case "READY":
		var d protocol.ReadyData
		if err := json.Unmarshal(p.Data, &d); err != nil {
			return nil, fmt.Errorf("decode READY: %w", err)
		}
		return &ReadyEvent{
			SessionID:        d.SessionID,
			ResumeGatewayURL: d.ResumeGatewayURL,
			Data:             p.Data,
		}, nil
	case "RESUMED":
		return &ResumedEvent{}, nil
	default:
		return &DispatchEvent{Type: p.Type, Seq: seq, Data: p.Data}, nil
	}
}
