// Package protocol 定义网关控制面的载荷封装、操作码与事件体
package protocol

import (
	"encoding/json"
)

// Opcode 网关操作码
type Opcode int

// 操作码取值与参考服务端保持一致（5 未使用）
const (
	OpDispatch            Opcode = 0  // 服务端事件下发
	OpHeartbeat           Opcode = 1  // 心跳（双向）
	OpIdentify            Opcode = 2  // 新会话握手
	OpStatusUpdate        Opcode = 3  // 状态更新
	OpVoiceStateUpdate    Opcode = 4  // 语音状态更新
	OpResume              Opcode = 6  // 恢复既有会话
	OpReconnect           Opcode = 7  // 服务端要求重连
	OpRequestGuildMembers Opcode = 8  // 请求成员列表
	OpInvalidSession      Opcode = 9  // 会话失效
	OpHello               Opcode = 10 // 握手欢迎，携带心跳间隔
	OpHeartbeatAck        Opcode = 11 // 心跳确认
)

// IsValid 判断操作码是否为协议定义的取值
func (op Opcode) IsValid() bool {
	switch op {
	case OpDispatch, OpHeartbeat, OpIdentify, OpStatusUpdate, OpVoiceStateUpdate,
		OpResume, OpReconnect, OpRequestGuildMembers, OpInvalidSession,
		OpHello, OpHeartbeatAck:
		return true
	}
	return false
}

// Name 返回操作码名称，用于日志与监控标签
func (op Opcode) Name() string {
	switch op {
	case OpDispatch:
		return "dispatch"
	case OpHeartbeat:
		return "heartbeat"
	case OpIdentify:
		return "identify"
	case OpStatusUpdate:
		return "status_update"
	case OpVoiceStateUpdate:
		return "voice_state_update"
	case OpResume:
		return "resume"
	case OpReconnect:
		return "reconnect"
	case OpRequestGuildMembers:
		return "request_guild_members"
	case OpInvalidSession:
		return "invalid_session"
	case OpHello:
		return "hello"
	case OpHeartbeatAck:
		return "heartbeat_ack"
	default:
		return "unknown"
	}
}

/*
线上 JSON 封装格式：

	{"op": <int>, "d": <any>, "s": <int|null>, "t": <string|null>}

Dispatch 载荷必定携带 s 与 t；其余载荷二者可空。
*/

// Payload 网关载荷封装
type Payload struct {
	Op   Opcode          `json:"op"`
	Data json.RawMessage `json:"d,omitempty"`
	Seq  *int64          `json:"s,omitempty"`
	Type string          `json:"t,omitempty"`
}

// IdentifyProperties Identify 载荷的连接属性
type IdentifyProperties struct {
	OS      string `json:"os"`
	Browser string `json:"browser"`
	Device  string `json:"device"`
}

// IdentifyData Identify 载荷体
type IdentifyData struct {
	Token          string             `json:"token"`
	Properties     IdentifyProperties `json:"properties"`
	Compress       bool               `json:"compress"`
	LargeThreshold int                `json:"large_threshold,omitempty"`
	Shard          *[2]int            `json:"shard,omitempty"`
	Presence       json.RawMessage    `json:"presence,omitempty"`
}

// ResumeData Resume 载荷体
type ResumeData struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	Seq       int64  `json:"seq"`
}

// HelloData Hello 载荷体，心跳间隔单位为毫秒
type HelloData struct {
	HeartbeatInterval int64 `json:"heartbeat_interval"`
}

// ReadyData READY 事件体（只保留会话恢复所需字段）
type ReadyData struct {
	SessionID        string `json:"session_id"`
	ResumeGatewayURL string `json:"resume_gateway_url"`
}

// HeartbeatPayload 构造心跳载荷，seq 为空时 d 为 null
func HeartbeatPayload(seq *int64) *Payload {
	data := json.RawMessage("null")
	if seq != nil {
		b, _ := json.Marshal(*seq)
		data = b
	}
	return &Payload{Op: OpHeartbeat, Data: data}
}

// IdentifyPayload 构造 Identify 载荷
func IdentifyPayload(d IdentifyData) (*Payload, error) {
	body, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return &Payload{Op: OpIdentify, Data: body}, nil
}

// ResumePayload 构造 Resume 载荷
func ResumePayload(d ResumeData) (*Payload, error) {
	body, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return &Payload{Op: OpResume, Data: body}, nil
}
